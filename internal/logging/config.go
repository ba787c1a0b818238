package logging

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/scenariolog/internal/config"
	"github.com/fyrsmithlabs/scenariolog/internal/dedup"
	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
	"github.com/fyrsmithlabs/scenariolog/internal/sink"
)

// EnvPrefix prefixes environment overrides, e.g. SCENARIOLOG_ROTATION_MAX_SIZE_MB.
const EnvPrefix = "SCENARIOLOG_"

// Config holds router configuration.
type Config struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR, CRITICAL. Anything else
	// is treated as INFO.
	Level     string          `koanf:"level"`
	Root      string          `koanf:"root"`
	Console   ConsoleConfig   `koanf:"console"`
	File      FileConfig      `koanf:"file"`
	Rotation  RotationConfig  `koanf:"rotation"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Scenario  ScenarioConfig  `koanf:"scenario"`
	Redaction RedactionConfig `koanf:"redaction"`
}

// ConsoleConfig controls the console sink.
type ConsoleConfig struct {
	Enabled bool `koanf:"enabled"`
	Color   bool `koanf:"color"`
}

// FileConfig controls the per-scenario file sinks.
type FileConfig struct {
	Enabled       bool            `koanf:"enabled"`
	BufferSize    int             `koanf:"buffer_size"`
	FlushInterval config.Duration `koanf:"flush_interval"`
}

// RotationConfig controls rotation of every log file.
type RotationConfig struct {
	MaxSizeMB  int             `koanf:"max_size_mb"`
	MaxAge     config.Duration `koanf:"max_age"`
	MaxBackups int             `koanf:"max_backups"`
	Compress   bool            `koanf:"compress"`
	// Exclusive declares this process the only writer of the log root,
	// which allows the lumberjack writer. Leave it off when parallel
	// workers share the root.
	Exclusive bool `koanf:"exclusive"`
}

// Policy converts the rotation settings for the sink registry.
func (c RotationConfig) Policy() sink.Policy {
	return sink.Policy{
		MaxSizeMB:  c.MaxSizeMB,
		MaxAge:     c.MaxAge.Duration(),
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
		Exclusive:  c.Exclusive,
	}
}

// DedupConfig controls duplicate suppression.
type DedupConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Window     config.Duration `koanf:"window"`
	Limit      int             `koanf:"limit"`
	SweepEvery int             `koanf:"sweep_every"`
}

// ScenarioConfig controls scenario resolution.
type ScenarioConfig struct {
	Marker string `koanf:"marker"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns config with the defaults used by test harnesses.
func NewDefaultConfig() *Config {
	return &Config{
		Level: "INFO",
		Root:  "logs",
		Console: ConsoleConfig{
			Enabled: true,
			Color:   true,
		},
		File: FileConfig{
			Enabled:       true,
			BufferSize:    sink.DefaultBufferSize,
			FlushInterval: config.Duration(sink.DefaultFlushInterval),
		},
		Rotation: RotationConfig{
			MaxSizeMB: 10,
			MaxAge:    config.Duration(30 * 24 * time.Hour),
			Compress:  true,
		},
		Dedup: DedupConfig{
			Enabled:    true,
			Window:     config.Duration(dedup.DefaultWindow),
			Limit:      dedup.DefaultLimit,
			SweepEvery: dedup.DefaultSweepEvery,
		},
		Scenario: ScenarioConfig{
			Marker: scenario.DefaultMarker,
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "bearer", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// LoadConfig reads config from defaults, then the YAML file at path (if it
// exists), then SCENARIOLOG_* environment variables and LOG_LEVEL.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	err := config.Load(config.Options{
		Path:       path,
		EnvPrefix:  EnvPrefix,
		EnvAliases: map[string]string{"LOG_LEVEL": "level"},
	}, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks config for errors. An unknown Level is not an error.
func (c *Config) Validate() error {
	if c.File.Enabled && strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("root must be set when file logging is enabled")
	}
	if c.File.BufferSize < 0 {
		return fmt.Errorf("file buffer_size must be >= 0, got %d", c.File.BufferSize)
	}
	if c.Rotation.MaxSizeMB < 0 {
		return fmt.Errorf("rotation max_size_mb must be >= 0, got %d", c.Rotation.MaxSizeMB)
	}
	if c.Rotation.MaxBackups < 0 {
		return fmt.Errorf("rotation max_backups must be >= 0, got %d", c.Rotation.MaxBackups)
	}
	if c.Dedup.Enabled {
		if c.Dedup.Window.Duration() <= 0 {
			return fmt.Errorf("dedup window must be > 0 when dedup enabled")
		}
		if c.Dedup.Limit < 0 || c.Dedup.SweepEvery < 0 {
			return fmt.Errorf("dedup limit and sweep_every must be >= 0")
		}
	}

	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > maxPatternLen {
				return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}

	return nil
}
