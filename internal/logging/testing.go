package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestRouter wraps a Router with test observation capabilities.
type TestRouter struct {
	*Router
	observed *observer.ObservedLogs
}

// NewTestRouter creates a console-less, file-less Router at DEBUG with dedup
// disabled that records every routed entry in memory.
func NewTestRouter(opts ...Option) *TestRouter {
	cfg := NewDefaultConfig()
	cfg.Level = "DEBUG"
	cfg.Console.Enabled = false
	cfg.File.Enabled = false
	cfg.Dedup.Enabled = false
	return NewTestRouterWithConfig(cfg, opts...)
}

// NewTestRouterWithConfig creates an observed Router from cfg. It panics if
// cfg is invalid.
func NewTestRouterWithConfig(cfg *Config, opts ...Option) *TestRouter {
	core, observed := observer.New(zapcore.DebugLevel)
	r, err := NewRouter(cfg, append(opts, WithCore(core))...)
	if err != nil {
		panic("logging: " + err.Error())
	}
	return &TestRouter{Router: r, observed: observed}
}

// All returns all logged entries.
func (t *TestRouter) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries matching message substring.
func (t *TestRouter) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// Reset clears all logged entries.
func (t *TestRouter) Reset() {
	t.observed.TakeAll()
}

// AssertLogged verifies a log at level containing message was logged.
func (t *TestRouter) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", LevelName(level), msgContains, t.observed.All())
}

// AssertNotLogged verifies no log at level containing message was logged.
func (t *TestRouter) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			tb.Errorf("unexpected log at %v containing %q", LevelName(level), msgContains)
		}
	}
}

// AssertField verifies a field with key and value exists in a message
// containing msg.
func (t *TestRouter) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessageSnippet(msg).All() {
		if v, ok := entry.ContextMap()[key]; ok && reflect.DeepEqual(v, expected) {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertScenario verifies a message containing msg was routed to key.
func (t *TestRouter) AssertScenario(tb testing.TB, msg, key string) {
	tb.Helper()
	t.AssertField(tb, msg, FieldScenario, key)
}
