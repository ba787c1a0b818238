package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
)

// Result is the outcome of a test.
type Result string

// Test results.
const (
	ResultPassed  Result = "PASSED"
	ResultFailed  Result = "FAILED"
	ResultSkipped Result = "SKIPPED"
)

// LogTestStart records the start of a test, and its data at DEBUG.
func (r *Router) LogTestStart(ctx context.Context, name string, data Fields) {
	r.output(ctx, 2, InfoLevel, "Starting test: "+name, nil, nil)
	if len(data) > 0 {
		r.output(ctx, 2, DebugLevel, "Test data: "+name, nil, data)
	}
}

// LogTestEnd records the result of a test. A zero duration is omitted.
func (r *Router) LogTestEnd(ctx context.Context, name string, result Result, d time.Duration) {
	r.testEnd(ctx, 3, name, result, d)
}

func (r *Router) testEnd(ctx context.Context, calldepth int, name string, result Result, d time.Duration) {
	msg := fmt.Sprintf("Test finished: %s - %s", name, result)
	var fields Fields
	if d > 0 {
		msg += fmt.Sprintf(" (%.2fs)", d.Seconds())
		fields = Fields{"duration": d}
	}
	r.output(ctx, calldepth, InfoLevel, msg, nil, fields)
}

// LogStep records a test step, and its data at DEBUG.
func (r *Router) LogStep(ctx context.Context, name string, data Fields) {
	r.output(ctx, 2, InfoLevel, "Step: "+name, nil, nil)
	if len(data) > 0 {
		r.output(ctx, 2, DebugLevel, "Step data: "+name, nil, data)
	}
}

// LogAssertion records an assertion. A failed assertion with both actual
// and expected values also logs them at ERROR.
func (r *Router) LogAssertion(ctx context.Context, desc string, ok bool, actual, expected any) {
	outcome := "passed"
	if !ok {
		outcome = "failed"
	}
	r.output(ctx, 2, InfoLevel, fmt.Sprintf("Assertion: %s - %s", desc, outcome), nil, nil)

	if !ok && actual != nil && expected != nil {
		r.output(ctx, 2, ErrorLevel, "Assertion failed: "+desc, nil, Fields{
			"expected": expected,
			"actual":   actual,
		})
	}
}

// LogScreenshot records a saved screenshot.
func (r *Router) LogScreenshot(ctx context.Context, path, desc string) {
	msg := "Screenshot saved: " + path
	if desc != "" {
		msg += " - " + desc
	}
	r.output(ctx, 2, InfoLevel, msg, nil, nil)
}

// LogPageAction records a browser page action at DEBUG.
func (r *Router) LogPageAction(ctx context.Context, action, element, value string) {
	msg := "Page action: " + action
	if element != "" {
		msg += " element=" + element
	}
	if value != "" {
		msg += " value=" + value
	}
	r.output(ctx, 2, DebugLevel, msg, nil, nil)
}

// BeginTest resolves the scenario of nodeID, binds it to a new slot in the
// returned context and logs the test start. The returned func logs the
// result with the elapsed time and clears the binding; call it exactly
// once, typically deferred.
func (r *Router) BeginTest(ctx context.Context, nodeID string) (context.Context, func(Result)) {
	key := r.resolver.Resolve(nodeID)
	ctx, release := scenario.Bind(ctx, key)
	ctx = WithTestName(ctx, nodeID)

	start := r.now()
	r.output(ctx, 2, InfoLevel, "Starting test: "+nodeID, nil, nil)

	return ctx, func(result Result) {
		defer release()
		r.testEnd(ctx, 3, nodeID, result, r.now().Sub(start))
	}
}
