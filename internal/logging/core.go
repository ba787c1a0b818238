package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger returns a zap logger that routes through r. Records resolve their
// scenario from ctx at write time, or from "scenario" and "test_path"
// string fields added with With. Only ERROR and above records carrying a
// zap.Error field keep their stack trace.
func (r *Router) Logger(ctx context.Context) *zap.Logger {
	return zap.New(&routerCore{router: r, ctx: ctx},
		zap.AddCaller(),
		zap.AddCallerSkip(r.skip),
		zap.AddStacktrace(ErrorLevel),
	)
}

// routerCore adapts a Router to zapcore.Core.
type routerCore struct {
	router *Router
	ctx    context.Context
	fields []zapcore.Field
}

var _ zapcore.Core = (*routerCore)(nil)

func (c *routerCore) Enabled(lvl zapcore.Level) bool {
	return c.router.Enabled(lvl)
}

func (c *routerCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &routerCore{router: c.router, ctx: c.ctx, fields: merged}
}

func (c *routerCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *routerCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	r := c.router
	defer r.recoverPanic()

	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)

	name, testPath := routingHints(all)
	key := r.resolveKey(c.ctx, name, testPath)
	if !r.admit(ent.Level, ent.Message) {
		return nil
	}

	ent.LoggerName = r.worker
	if ent.Level < ErrorLevel || !hasError(all) {
		ent.Stack = ""
	}

	zfs := make([]zapcore.Field, 0, len(all)+4)
	zfs = append(zfs, zap.String(FieldScenario, key.String()))
	zfs = append(zfs, ContextFields(c.ctx)...)
	for _, f := range withoutKey(all, FieldScenario) {
		zfs = append(zfs, r.redact.field(f))
	}

	r.dispatch(key, ent, zfs)
	return nil
}

func hasError(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Type == zapcore.ErrorType {
			return true
		}
	}
	return false
}

func (c *routerCore) Sync() error {
	return c.router.Sync()
}
