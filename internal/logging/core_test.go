package logging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogger_RoutesThroughRouter(t *testing.T) {
	tr := NewTestRouter()
	ctx := scenario.SetScenario(context.Background(), "library")

	tr.Logger(ctx).Info("from zap", zap.Int("attempt", 2))

	e := onlyEntry(t, tr, "from zap")
	assert.Equal(t, "library", e.ContextMap()["scenario"])
	assert.Equal(t, int64(2), e.ContextMap()["attempt"])
	assert.Equal(t, tr.Worker(), e.LoggerName)
	assert.Equal(t, "core_test.go", filepath.Base(e.Caller.File))
}

func TestLogger_ScenarioFromFields(t *testing.T) {
	tr := NewTestRouter()
	logger := tr.Logger(context.Background())

	logger.With(zap.String("test_path", "tests/search/test_query.py")).Info("by path")
	logger.With(zap.String("scenario", "named")).Info("by name")
	logger.Info("by nothing")

	tr.AssertScenario(t, "by path", "search")
	tr.AssertScenario(t, "by name", "named")
	tr.AssertScenario(t, "by nothing", "Global")

	byName := onlyEntry(t, tr, "by name")
	var count int
	for _, f := range byName.Context {
		if f.Key == "scenario" {
			count++
		}
	}
	assert.Equal(t, 1, count, "scenario field not duplicated")
}

func TestLogger_ContextBindingIsReadAtWriteTime(t *testing.T) {
	tr := NewTestRouter()
	ctx, slot := scenario.WithSlot(context.Background())
	logger := tr.Logger(ctx)

	slot.Set("first")
	logger.Info("one")
	slot.Clear()
	logger.Info("two")

	tr.AssertScenario(t, "one", "first")
	tr.AssertScenario(t, "two", "Global")
}

func TestLogger_RedactsFields(t *testing.T) {
	tr := NewTestRouter()

	tr.Logger(context.Background()).Info("auth",
		zap.String("token", "abc123"),
		zap.String("header", "Bearer xyz"),
		zap.String("user", "bob"),
	)

	tr.AssertField(t, "auth", "token", redacted)
	tr.AssertField(t, "auth", "header", redactedPattern)
	tr.AssertField(t, "auth", "user", "bob")
}

func TestLogger_DedupAndStack(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = "DEBUG"
	cfg.Console.Enabled = false
	cfg.File.Enabled = false
	tr := NewTestRouterWithConfig(cfg)
	logger := tr.Logger(context.Background())

	for i := 0; i < 3; i++ {
		logger.Error("repeated failure", zap.Error(errors.New("timeout")))
	}
	logger.Error("plain failure")
	logger.Warn("a warning", zap.Error(errors.New("retrying")))

	e := onlyEntry(t, tr, "repeated failure")
	assert.NotEmpty(t, e.Stack)
	assert.Empty(t, onlyEntry(t, tr, "plain failure").Stack)
	assert.Empty(t, onlyEntry(t, tr, "a warning").Stack)
}

func TestLogger_WritesFiles(t *testing.T) {
	f := newFileRouter(t, nil)
	ctx := scenario.SetScenario(context.Background(), "zapped")

	f.router.Logger(ctx).Error("zap error", zap.Error(errors.New("closed pipe")))
	require.NoError(t, f.router.Sync())

	lines := records(t, f.path("zapped", "zapped_error.log"))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "core_test.go:TestLogger_WritesFiles:")

	data, err := os.ReadFile(f.path("zapped", "zapped_error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "logging.TestLogger_WritesFiles\n\t")
}

func TestLogger_Enabled(t *testing.T) {
	tr := NewTestRouter()
	tr.SetLevel(WarningLevel)
	logger := tr.Logger(context.Background())

	assert.Nil(t, logger.Check(InfoLevel, "skip"))
	assert.NotNil(t, logger.Check(WarningLevel, "keep"))
	assert.NoError(t, logger.Sync())
}
