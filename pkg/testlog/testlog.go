// Package testlog is the process-wide entry point to scenario-scoped test
// logging.
//
// A harness calls SetupLogger once at start-up; later calls return the same
// router. Code that logs before setup gets a router built from the
// environment (see logging.LoadConfig) on first use.
//
//	func TestMain(m *testing.M) {
//	    if _, err := testlog.SetupLogger(nil); err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = testlog.Close()
//	    os.Exit(code)
//	}
//
//	func TestCheckout(t *testing.T) {
//	    ctx := testlog.Start(t, "")
//	    testlog.Emit(ctx, testlog.InfoLevel, "cart ready", testlog.Fields{"items": 2})
//	}
//
// A harness that builds its own config starts from NewDefaultConfig or
// LoadConfig:
//
//	cfg := testlog.NewDefaultConfig()
//	cfg.Root = "build/logs"
//	cfg.File.FlushInterval = testlog.Duration(0)
//	router, err := testlog.SetupLogger(cfg, testlog.WithConsoleWriter(os.Stderr))
package testlog

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/scenariolog/internal/config"
	"github.com/fyrsmithlabs/scenariolog/internal/logging"
	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
)

// ConfigEnv names an optional YAML config file read by SetupLogger(nil)
// and Default.
const ConfigEnv = "SCENARIOLOG_CONFIG"

type (
	// Config is the router configuration. See logging.Config.
	Config = logging.Config
	// Duration is a config duration that unmarshals from "1s" style text.
	Duration = config.Duration
	// Fields are the structured fields of a record.
	Fields = logging.Fields
	// Level is a record level.
	Level = zapcore.Level
	// Result is the outcome of a test.
	Result = logging.Result
	// Router routes records to the console and the scenario files.
	Router = logging.Router
	// Option configures a Router.
	Option = logging.Option
)

// Record levels.
const (
	DebugLevel    = logging.DebugLevel
	InfoLevel     = logging.InfoLevel
	WarningLevel  = logging.WarningLevel
	ErrorLevel    = logging.ErrorLevel
	CriticalLevel = logging.CriticalLevel
)

// Test results.
const (
	ResultPassed  = logging.ResultPassed
	ResultFailed  = logging.ResultFailed
	ResultSkipped = logging.ResultSkipped
)

var (
	// NewDefaultConfig returns the built-in defaults.
	NewDefaultConfig = logging.NewDefaultConfig
	// LoadConfig reads defaults, then the YAML file at path, then
	// SCENARIOLOG_* variables and LOG_LEVEL.
	LoadConfig = logging.LoadConfig
	// ParseLevel parses DEBUG, INFO, WARNING, ERROR or CRITICAL.
	ParseLevel = logging.ParseLevel

	WithConsoleWriter = logging.WithConsoleWriter
	WithRegisterer    = logging.WithRegisterer
	WithClock         = logging.WithClock
	WithCore          = logging.WithCore
)

// installed pairs the router handed to callers with a copy whose caller
// frames skip this package.
type installed struct {
	router  *logging.Router
	wrapped *logging.Router
}

var (
	mu      sync.Mutex
	current atomic.Pointer[installed]
)

// SetupLogger installs the process router. A nil cfg is loaded like
// LoadConfig(os.Getenv(ConfigEnv)), so LOG_LEVEL and SCENARIOLOG_*
// apply. The first successful call wins: later calls return the installed
// router and ignore their arguments.
func SetupLogger(cfg *Config, opts ...Option) (*Router, error) {
	if in := current.Load(); in != nil {
		return in.router, nil
	}

	mu.Lock()
	defer mu.Unlock()
	if in := current.Load(); in != nil {
		return in.router, nil
	}

	if cfg == nil {
		loaded, err := LoadConfig(os.Getenv(ConfigEnv))
		if err != nil {
			return nil, fmt.Errorf("setting up logger: %w", err)
		}
		cfg = loaded
	}
	r, err := logging.NewRouter(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}
	current.Store(&installed{router: r, wrapped: r.WithCallerSkip(1)})
	return r, nil
}

// Default returns the installed router, setting one up from the
// environment when none exists. A config that fails to load is reported on
// stderr and replaced by the defaults.
func Default() *Router {
	return load().router
}

func load() *installed {
	if in := current.Load(); in != nil {
		return in
	}

	cfg, err := logging.LoadConfig(os.Getenv(ConfigEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scenariolog: WARNING %v, using defaults\n", err)
		cfg = logging.NewDefaultConfig()
	}
	if _, err := SetupLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "scenariolog: WARNING %v, using defaults\n", err)
		if _, err := SetupLogger(NewDefaultConfig()); err != nil {
			panic(err)
		}
	}
	return current.Load()
}

// Close flushes and closes the installed router and uninstalls it, so the
// next SetupLogger starts fresh. It is a no-op when nothing is installed.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	in := current.Swap(nil)
	if in == nil {
		return nil
	}
	return in.router.Close()
}

// SetScenario binds key to ctx. Use the returned context for every call
// that should be routed to key.
func SetScenario(ctx context.Context, key string) context.Context {
	return scenario.SetScenario(ctx, scenario.Key(key))
}

// ClearScenario removes the binding held by ctx.
func ClearScenario(ctx context.Context) {
	scenario.ClearScenario(ctx)
}

// CurrentScenario returns the key bound to ctx.
func CurrentScenario(ctx context.Context) (string, bool) {
	k, ok := scenario.CurrentScenario(ctx)
	return k.String(), ok
}

// Emit logs msg through the installed router.
func Emit(ctx context.Context, lvl Level, msg string, fields Fields) {
	load().router.Output(ctx, 2, lvl, msg, nil, fields)
}

// EmitError logs msg with err attached. At ERROR and above the file record
// carries the caller's stack trace.
func EmitError(ctx context.Context, lvl Level, msg string, err error, fields Fields) {
	load().router.Output(ctx, 2, lvl, msg, err, fields)
}

// Debug logs msg at DEBUG.
func Debug(ctx context.Context, msg string, fields Fields) {
	load().router.Output(ctx, 2, DebugLevel, msg, nil, fields)
}

// Info logs msg at INFO.
func Info(ctx context.Context, msg string, fields Fields) {
	load().router.Output(ctx, 2, InfoLevel, msg, nil, fields)
}

// Warning logs msg at WARNING.
func Warning(ctx context.Context, msg string, fields Fields) {
	load().router.Output(ctx, 2, WarningLevel, msg, nil, fields)
}

// Error logs msg at ERROR. A nil err logs a single-line record.
func Error(ctx context.Context, msg string, err error, fields Fields) {
	load().router.Output(ctx, 2, ErrorLevel, msg, err, fields)
}

// Critical logs msg at CRITICAL. It never panics or exits.
func Critical(ctx context.Context, msg string, err error, fields Fields) {
	load().router.Output(ctx, 2, CriticalLevel, msg, err, fields)
}

// LogTestStart records the start of a test.
func LogTestStart(ctx context.Context, name string, data Fields) {
	load().wrapped.LogTestStart(ctx, name, data)
}

// LogTestEnd records the result of a test. Pass 0 to omit the duration.
func LogTestEnd(ctx context.Context, name string, result Result, d time.Duration) {
	load().wrapped.LogTestEnd(ctx, name, result, d)
}
