package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/scenariolog/internal/config"
	"github.com/fyrsmithlabs/scenariolog/internal/dedup"
	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
	"github.com/fyrsmithlabs/scenariolog/internal/sink"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Router routes each record to the console, the sinks of its scenario and
// the Global sinks. It owns the dedup filter and the sink registry. A Router
// is safe for concurrent use; Emit never fails and never panics.
type Router struct {
	level    zap.AtomicLevel
	resolver *scenario.Resolver
	dedup    *dedup.Filter  // nil when disabled
	sinks    *sink.Registry // nil when file output is off or unusable
	console  zapcore.Core   // nil when disabled
	extra    []zapcore.Core
	redact   *redactor
	metrics  *Metrics
	worker   string
	now      func() time.Time
	diag     zapcore.WriteSyncer

	// skip is added to the caller depth of every record.
	skip int

	panicked *atomic.Bool
	closed   *atomic.Bool
}

type options struct {
	console  io.Writer
	registry prometheus.Registerer
	now      func() time.Time
	open     sink.Opener
	cores    []zapcore.Core
}

// Option configures a Router.
type Option func(*options)

// WithConsoleWriter sends console records and diagnostics to w instead of
// os.Stdout.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithRegisterer registers the router metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithClock replaces time.Now for record timestamps and the dedup window.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSinkOpener replaces the file opener of the sink registry.
func WithSinkOpener(open sink.Opener) Option {
	return func(o *options) { o.open = open }
}

// WithCore adds a core that receives every record the console would, gated
// by its own level.
func WithCore(c zapcore.Core) Option {
	return func(o *options) { o.cores = append(o.cores, c) }
}

// NewRouter creates a Router from cfg. A nil cfg uses NewDefaultConfig.
// An unknown level falls back to INFO and a log root that cannot be written
// falls back to console-only output; both print a diagnostic instead of
// failing.
func NewRouter(cfg *Config, opts ...Option) (*Router, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{console: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	red, err := newRedactor(cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redactor: %w", err)
	}

	out := zapcore.Lock(zapcore.AddSync(o.console))
	r := &Router{
		resolver: scenario.NewResolver(cfg.Scenario.Marker),
		extra:    o.cores,
		redact:   red,
		metrics:  NewMetrics(o.registry),
		worker:   fmt.Sprintf("%d:%s", os.Getpid(), uuid.NewString()[:8]),
		now:      o.now,
		diag:     out,
		panicked: new(atomic.Bool),
		closed:   new(atomic.Bool),
	}

	lvl, ok := ParseLevel(cfg.Level)
	if !ok && strings.TrimSpace(cfg.Level) != "" {
		r.diagf("WARNING invalid level %q, using INFO", cfg.Level)
	}
	r.level = zap.NewAtomicLevelAt(lvl)

	if cfg.Console.Enabled {
		r.console = zapcore.NewCore(newConsoleEncoder(newPalette(o.console, cfg.Console.Color)), out, r.level)
	}

	if cfg.Dedup.Enabled {
		r.dedup = dedup.New(dedup.Options{
			Window:     cfg.Dedup.Window.Duration(),
			Limit:      cfg.Dedup.Limit,
			SweepEvery: cfg.Dedup.SweepEvery,
			Now:        o.now,
		})
	}

	if cfg.File.Enabled {
		r.sinks = r.openSinks(cfg, o.open)
	}

	return r, nil
}

func (r *Router) openSinks(cfg *Config, open sink.Opener) *sink.Registry {
	reg := sink.NewRegistry(sink.Options{
		Root:          cfg.Root,
		Policy:        cfg.Rotation.Policy(),
		Encoder:       newFileEncoder(),
		Level:         r.level,
		FlushInterval: cfg.File.FlushInterval.Duration(),
		BufferSize:    cfg.File.BufferSize,
		Open:          open,
		Diagnostics:   r.diag,
		OnCreate: func(p *sink.Pair) {
			r.metrics.SinksOpen.Add(float64(len(p.Paths())))
		},
		OnDegraded: func(k scenario.Key, _ error) {
			r.metrics.SinkFailures.WithLabelValues(k.String()).Inc()
		},
	})
	if reg.Global().Degraded() {
		_ = reg.Close()
		return nil
	}
	return reg
}

// WithCallerSkip returns a Router sharing all state with r whose records
// report a caller n frames further up. Wrappers around the Router use it.
func (r *Router) WithCallerSkip(n int) *Router {
	c := *r
	c.skip += n
	return &c
}

// Emit routes one record. The scenario comes from ctx, then from the
// "scenario" field, then from the "test_path" or "nodeid" field, else
// Global. Duplicates within the dedup window are dropped.
func (r *Router) Emit(ctx context.Context, lvl zapcore.Level, msg string, fields Fields) {
	r.output(ctx, 2, lvl, msg, nil, fields)
}

// EmitError is Emit with err attached as the "error" field. At ERROR and
// above the file record is followed by the stack of the caller.
func (r *Router) EmitError(ctx context.Context, lvl zapcore.Level, msg string, err error, fields Fields) {
	r.output(ctx, 2, lvl, msg, err, fields)
}

// Output is EmitError with an explicit call depth; calldepth 1 reports the
// caller of Output.
func (r *Router) Output(ctx context.Context, calldepth int, lvl zapcore.Level, msg string, err error, fields Fields) {
	r.output(ctx, calldepth+1, lvl, msg, err, fields)
}

// output counts calldepth from itself: 1 is its direct caller.
func (r *Router) output(ctx context.Context, calldepth int, lvl zapcore.Level, msg string, err error, fields Fields) {
	if r == nil {
		return
	}
	defer r.recoverPanic()

	if !r.Enabled(lvl) {
		return
	}
	key := r.resolveKey(ctx, keyValue(fields[FieldScenario]), pathValue(fields))
	if !r.admit(lvl, msg) {
		return
	}

	depth := calldepth + r.skip
	ent := zapcore.Entry{
		Level:      lvl,
		Time:       r.now(),
		LoggerName: r.worker,
		Message:    msg,
		Caller:     callerAt(depth),
	}
	if err != nil && lvl >= ErrorLevel {
		ent.Stack = stackAt(depth)
	}

	zfs := make([]zap.Field, 0, len(fields)+5)
	zfs = append(zfs, zap.String(FieldScenario, key.String()))
	zfs = append(zfs, ContextFields(ctx)...)
	if err != nil {
		zfs = append(zfs, zap.String(FieldError, r.redact.value(FieldError, renderValue(err))))
	}
	zfs = r.redact.toZapFields(fields, zfs)

	r.dispatch(key, ent, zfs)
}

// Enabled reports whether a record at lvl can reach any sink. ERROR and
// above always reach the error sinks.
func (r *Router) Enabled(lvl zapcore.Level) bool {
	return r.level.Enabled(lvl) || lvl >= ErrorLevel
}

// resolveKey picks the scenario of a record.
func (r *Router) resolveKey(ctx context.Context, name, testPath string) scenario.Key {
	if k, ok := scenario.CurrentScenario(ctx); ok {
		return k
	}
	if name = strings.TrimSpace(name); name != "" {
		return scenario.Key(name)
	}
	if testPath != "" {
		if k, ok := r.resolver.ResolveFromPath(testPath); ok {
			return k
		}
	}
	return scenario.Global
}

// admit applies the dedup filter and counts the outcome.
func (r *Router) admit(lvl zapcore.Level, msg string) bool {
	name := LevelName(lvl)
	if r.dedup != nil && !r.dedup.ShouldEmit(name, msg) {
		r.metrics.SuppressedTotal.WithLabelValues(name).Inc()
		return false
	}
	r.metrics.RecordsTotal.WithLabelValues(name).Inc()
	return true
}

// dispatch writes ent to every destination. Destinations fail
// independently.
func (r *Router) dispatch(key scenario.Key, ent zapcore.Entry, fields []zapcore.Field) {
	r.write(r.console, ent, fields)
	for _, c := range r.extra {
		r.write(c, ent, fields)
	}

	if r.sinks == nil || r.closed.Load() {
		return
	}
	if !key.IsGlobal() {
		p := r.sinks.GetOrCreateSinks(key)
		r.write(p.General, ent, fields)
		r.write(p.Error, ent, fields)
	}
	g := r.sinks.Global()
	r.write(g.General, ent, fields)
	r.write(g.Error, ent, fields)
}

func (r *Router) write(c zapcore.Core, ent zapcore.Entry, fields []zapcore.Field) {
	if c == nil || !c.Enabled(ent.Level) {
		return
	}
	defer r.recoverPanic()
	if err := c.Write(ent, fields); err != nil {
		r.diagf("WARNING write failed: %v", err)
	}
}

// SetLevel changes the minimum level of the console and general sinks.
func (r *Router) SetLevel(lvl zapcore.Level) { r.level.SetLevel(lvl) }

// Level returns the current minimum level.
func (r *Router) Level() zapcore.Level { return r.level.Level() }

// Resolver returns the scenario resolver of the router.
func (r *Router) Resolver() *scenario.Resolver { return r.resolver }

// Sinks returns the sink registry, or nil when records go to the console
// only.
func (r *Router) Sinks() *sink.Registry { return r.sinks }

// Metrics returns the router metrics.
func (r *Router) Metrics() *Metrics { return r.metrics }

// Worker returns the process identifier written to file records.
func (r *Router) Worker() string { return r.worker }

// WatchConfig reloads the level from the config file at path whenever the
// file changes. Stop the returned watcher when done.
func (r *Router) WatchConfig(ctx context.Context, path string) (*config.Watcher, error) {
	return config.Watch(ctx, path, func() {
		cfg, err := LoadConfig(path)
		if err != nil {
			r.diagf("WARNING config reload failed: %v", err)
			return
		}
		lvl, _ := ParseLevel(cfg.Level)
		r.SetLevel(lvl)
	}, func(err error) {
		r.diagf("WARNING config watch: %v", err)
	})
}

// Sync flushes buffered records.
func (r *Router) Sync() error {
	err := r.syncConsole()
	if r.sinks != nil && !r.closed.Load() {
		err = multierr.Append(err, r.sinks.Sync())
	}
	return err
}

// Close flushes and closes every file sink. Records emitted afterwards go
// to the console only. Close is idempotent.
func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := r.syncConsole()
	if r.sinks != nil {
		err = multierr.Append(err, r.sinks.Close())
		r.metrics.SinksOpen.Set(0)
	}
	return err
}

func (r *Router) syncConsole() error {
	if r.console == nil {
		return nil
	}
	// Ignore sync errors on stdout/stderr (common on Linux)
	if err := r.console.Sync(); err != nil && !isStdoutSyncError(err) {
		return err
	}
	return nil
}

// diagf writes an internal diagnostic to the console writer, never to
// file sinks.
func (r *Router) diagf(format string, args ...any) {
	fmt.Fprintf(r.diag, "scenariolog: "+format+"\n", args...)
}

// recoverPanic reports the first panic raised while logging. It must be
// deferred directly.
func (r *Router) recoverPanic() {
	if p := recover(); p != nil && r.panicked.CompareAndSwap(false, true) {
		r.diagf("WARNING recovered panic while logging: %v", p)
	}
}

// isStdoutSyncError checks if error is harmless stdout/stderr sync error.
// On Linux, syncing stdout/stderr returns EINVAL or ENOTTY which are safe to ignore.
func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}

// callerAt returns the frame skip levels above its caller.
func callerAt(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return zapcore.EntryCaller{}
	}
	var fn string
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line, Function: fn}
}

// stackAt returns the stack starting skip levels above its caller.
func stackAt(skip int) string {
	return zap.StackSkip("", skip+1).String
}

func keyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	return ""
}

func pathValue(fields Fields) string {
	if p, ok := fields[FieldTestPath].(string); ok && p != "" {
		return p
	}
	if p, ok := fields[FieldNodeID].(string); ok {
		return p
	}
	return ""
}
