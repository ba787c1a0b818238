package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from ctx: the OpenTelemetry span
// and the running test, when present.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if name := TestNameFromContext(ctx); name != "" {
		fields = append(fields, zap.String("test", name))
	}

	return fields
}

type testNameCtxKey struct{}

// WithTestName records the running test in ctx. BeginTest sets it.
func WithTestName(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, testNameCtxKey{}, name)
}

// TestNameFromContext returns the test recorded by WithTestName.
func TestNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(testNameCtxKey{}).(string); ok {
		return s
	}
	return ""
}
