package testlog

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
)

// Start binds the scenario of nodeID to a context derived from t.Context
// and logs the test start. The end record, with the elapsed time and a
// result taken from t.Failed and t.Skipped, is logged from t.Cleanup.
//
// An empty nodeID is derived from the calling file and t.Name, e.g.
// "/repo/tests/checkout/cart_test.go::TestAdd", so tests laid out under the
// marker directory route without naming their scenario.
func Start(t testing.TB, nodeID string) context.Context {
	t.Helper()
	if nodeID == "" {
		nodeID = callerNodeID(t, 2)
	}

	ctx, end := load().wrapped.BeginTest(t.Context(), nodeID)
	t.Cleanup(func() {
		end(result(t))
	})
	return ctx
}

func callerNodeID(t testing.TB, skip int) string {
	_, file, _, ok := runtime.Caller(skip)
	if !ok {
		return t.Name()
	}
	return filepath.ToSlash(file) + "::" + t.Name()
}

func result(t testing.TB) Result {
	switch {
	case t.Skipped():
		return ResultSkipped
	case t.Failed():
		return ResultFailed
	}
	return ResultPassed
}
