package testlog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/scenariolog/internal/logging"
)

// install sets up an observed router for one test and uninstalls it
// afterwards.
func install(t *testing.T, mutate func(*logging.Config)) (*logging.Router, *observer.ObservedLogs) {
	t.Helper()
	require.NoError(t, Close())

	cfg := logging.NewDefaultConfig()
	cfg.Level = "DEBUG"
	cfg.Root = t.TempDir()
	cfg.Console.Enabled = false
	cfg.File.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	r, err := SetupLogger(cfg,
		logging.WithCore(core),
		logging.WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, Close()) })
	return r, logs
}

func entry(t *testing.T, logs *observer.ObservedLogs, msg string) observer.LoggedEntry {
	t.Helper()
	found := logs.FilterMessageSnippet(msg).All()
	require.Len(t, found, 1, "entries matching %q", msg)
	return found[0]
}

func TestSetupLogger_Idempotent(t *testing.T) {
	first, _ := install(t, nil)

	other := logging.NewDefaultConfig()
	other.Level = "ERROR"
	second, err := SetupLogger(other)

	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, Default())
	assert.Equal(t, logging.DebugLevel, second.Level(), "second config ignored")
}

func TestSetupLogger_ConcurrentCallsShareRouter(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	cfg := logging.NewDefaultConfig()
	cfg.Console.Enabled = false
	cfg.File.Enabled = false

	var wg sync.WaitGroup
	routers := make([]*logging.Router, 16)
	for i := range routers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := SetupLogger(cfg, logging.WithRegisterer(prometheus.NewRegistry()))
			assert.NoError(t, err)
			routers[i] = r
		}()
	}
	wg.Wait()

	for _, r := range routers {
		assert.Same(t, routers[0], r)
	}
}

func TestSetupLogger_InvalidConfig(t *testing.T) {
	require.NoError(t, Close())

	cfg := logging.NewDefaultConfig()
	cfg.Dedup.Window = 0
	r, err := SetupLogger(cfg)

	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "setting up logger")
}

func TestSetupLogger_NilConfigReadsEnvironment(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	t.Setenv(ConfigEnv, "")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SCENARIOLOG_CONSOLE_ENABLED", "false")
	t.Setenv("SCENARIOLOG_FILE_ENABLED", "false")

	r, err := SetupLogger(nil, WithRegisterer(prometheus.NewRegistry()))

	require.NoError(t, err)
	assert.Equal(t, DebugLevel, r.Level())
	assert.Nil(t, r.Sinks())
}

func TestSetupLogger_NilConfigBadFile(t *testing.T) {
	require.NoError(t, Close())

	path := filepath.Join(t.TempDir(), "scenariolog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: [unclosed\n"), 0o600))
	t.Setenv(ConfigEnv, path)

	r, err := SetupLogger(nil)

	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "setting up logger")
}

func TestDefault_LoadsFromEnvironment(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "scenariolog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: WARNING\nconsole:\n  enabled: false\nfile:\n  enabled: false\n"), 0o600))
	t.Setenv(ConfigEnv, path)
	t.Setenv("LOG_LEVEL", "")

	r := Default()

	require.NotNil(t, r)
	assert.Equal(t, logging.WarningLevel, r.Level())
	assert.Nil(t, r.Sinks())
}

func TestClose_AllowsReinstall(t *testing.T) {
	first, _ := install(t, nil)
	require.NoError(t, Close())
	require.NoError(t, Close(), "second close is a no-op")

	second, _ := install(t, nil)
	assert.NotSame(t, first, second)
}

func TestScenarioBinding(t *testing.T) {
	_, logs := install(t, nil)
	ctx := SetScenario(context.Background(), "library")

	key, ok := CurrentScenario(ctx)
	require.True(t, ok)
	assert.Equal(t, "library", key)

	Emit(ctx, logging.InfoLevel, "bound", nil)
	ClearScenario(ctx)
	Emit(ctx, logging.InfoLevel, "cleared", nil)

	_, ok = CurrentScenario(ctx)
	assert.False(t, ok)
	assert.Equal(t, "library", entry(t, logs, "bound").ContextMap()["scenario"])
	assert.Equal(t, "Global", entry(t, logs, "cleared").ContextMap()["scenario"])
}

func TestEmit_CallerIsUserCode(t *testing.T) {
	_, logs := install(t, nil)
	ctx := context.Background()

	Emit(ctx, logging.InfoLevel, "via emit", nil)
	EmitError(ctx, logging.ErrorLevel, "via emit error", errors.New("boom"), nil)
	Debug(ctx, "via debug", nil)
	Info(ctx, "via info", nil)
	Warning(ctx, "via warning", nil)
	Error(ctx, "via error", nil, nil)
	Critical(ctx, "via critical", nil, nil)
	LogTestStart(ctx, "test_x", nil)
	LogTestEnd(ctx, "test_x", logging.ResultPassed, time.Second)

	all := logs.All()
	require.Len(t, all, 9)
	for _, e := range all {
		assert.Equal(t, "testlog_test.go", filepath.Base(e.Caller.File), "caller of %q", e.Message)
	}
	assert.Equal(t, "boom", entry(t, logs, "via emit error").ContextMap()["error"])
	assert.Equal(t, logging.CriticalLevel, entry(t, logs, "via critical").Level)
	assert.Equal(t, "Test finished: test_x - PASSED (1.00s)", entry(t, logs, "Test finished").Message)
}

func TestEmit_WritesScenarioAndGlobalFiles(t *testing.T) {
	var root string
	install(t, func(c *logging.Config) {
		c.File.Enabled = true
		c.File.FlushInterval = 0
		root = c.Root
	})
	ctx := SetScenario(context.Background(), "checkout/cart")

	Emit(ctx, logging.ErrorLevel, "payment failed", logging.Fields{"order": 7})
	require.NoError(t, Default().Sync())

	for _, name := range []string{
		"checkout_cart/checkout_cart.log",
		"checkout_cart/checkout_cart_error.log",
		"global.log",
		"global_error.log",
	} {
		data, err := os.ReadFile(filepath.Join(root, name))
		require.NoError(t, err, name)
		assert.Contains(t, string(data), "payment failed", name)
		assert.Contains(t, string(data), "testlog_test.go:TestEmit_WritesScenarioAndGlobalFiles:", name)
	}
}

func TestStart_LogsLifecycle(t *testing.T) {
	_, logs := install(t, nil)
	var inner context.Context

	t.Run("add", func(t *testing.T) {
		inner = Start(t, "tests/checkout/test_cart.py::test_add")
		key, ok := CurrentScenario(inner)
		require.True(t, ok)
		assert.Equal(t, "checkout", key)
		Info(inner, "adding item", nil)
	})

	start := entry(t, logs, "Starting test: tests/checkout/test_cart.py::test_add")
	assert.Equal(t, "checkout", start.ContextMap()["scenario"])
	assert.Equal(t, "testlog_test.go", filepath.Base(start.Caller.File))

	assert.Equal(t, "checkout", entry(t, logs, "adding item").ContextMap()["scenario"])

	end := entry(t, logs, "Test finished")
	assert.True(t, strings.HasPrefix(end.Message, "Test finished: tests/checkout/test_cart.py::test_add - PASSED"), end.Message)
	assert.Equal(t, "checkout", end.ContextMap()["scenario"])

	_, ok := CurrentScenario(inner)
	assert.False(t, ok, "binding released at cleanup")
}

func TestStart_SkippedResult(t *testing.T) {
	_, logs := install(t, nil)

	t.Run("skipped", func(t *testing.T) {
		Start(t, "tests/search/test_query.py::test_slow")
		t.Skip("slow")
	})

	end := entry(t, logs, "Test finished")
	assert.Contains(t, end.Message, "test_slow - SKIPPED")
}

func TestStart_DerivesNodeID(t *testing.T) {
	_, logs := install(t, nil)

	t.Run("derived", func(t *testing.T) {
		Start(t, "")
	})

	start := entry(t, logs, "Starting test:")
	assert.True(t, strings.HasSuffix(start.Message, "testlog_test.go::TestStart_DerivesNodeID/derived"), start.Message)
	name, _ := start.ContextMap()["test"].(string)
	assert.True(t, strings.HasSuffix(name, "::TestStart_DerivesNodeID/derived"), name)
}

func TestStart_ConsoleOutput(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	var buf bytes.Buffer
	cfg := logging.NewDefaultConfig()
	cfg.Console.Color = false
	cfg.File.Enabled = false
	_, err := SetupLogger(cfg,
		logging.WithConsoleWriter(&buf),
		logging.WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)

	t.Run("console", func(t *testing.T) {
		Start(t, "tests/auth/test_login.py::test_ok")
	})

	out := buf.String()
	assert.Contains(t, out, "| INFO     | testlog_test.go:")
	assert.Contains(t, out, "Starting test: tests/auth/test_login.py::test_ok")
	assert.Contains(t, out, "Test finished: tests/auth/test_login.py::test_ok - PASSED")
}
