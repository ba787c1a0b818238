// Package config loads layered configuration for scenariolog.
//
// Values are applied in order, later layers winning:
//  1. Defaults already present in the target struct
//  2. YAML file (optional)
//  3. Environment variables
//
// Targets are plain structs with `koanf` tags; see logging.Config.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ErrConfigTooLarge is returned for config files above 1MB.
var ErrConfigTooLarge = errors.New("config file too large")

// Options controls where Load looks for values.
type Options struct {
	// Path of the YAML file. Empty or missing files are skipped.
	Path string

	// EnvPrefix selects environment variables, e.g. "SCENARIOLOG_".
	// The prefix is stripped and the first underscore becomes the section
	// separator: SCENARIOLOG_ROTATION_MAX_SIZE_MB -> rotation.max_size_mb.
	// Variables without an underscore after the prefix map to top-level keys.
	EnvPrefix string

	// EnvAliases maps exact variable names to keys, e.g. LOG_LEVEL -> level.
	// Aliases are applied last.
	EnvAliases map[string]string
}

// Load overlays the YAML file and environment onto target, which must be a
// pointer to a struct. Fields absent from every layer keep their value, so
// callers pre-fill target with defaults.
//
// # Example
//
//	cfg := logging.NewDefaultConfig()
//	err := config.Load(config.Options{Path: "scenariolog.yaml", EnvPrefix: "SCENARIOLOG_"}, cfg)
func Load(opts Options, target any) error {
	k := koanf.New(".")

	if opts.Path != "" {
		content, err := readConfigFile(opts.Path)
		if err != nil {
			return err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return fmt.Errorf("failed to load config file %s: %w", opts.Path, err)
			}
		}
	}

	if opts.EnvPrefix != "" {
		prefix := opts.EnvPrefix
		if err := k.Load(env.Provider(prefix, ".", func(s string) string {
			// Strategy: split on first underscore only (section.field_name pattern)
			lower := strings.ToLower(strings.TrimPrefix(s, prefix))
			parts := strings.SplitN(lower, "_", 2)
			if len(parts) == 1 {
				return lower
			}
			return parts[0] + "." + parts[1]
		}), nil); err != nil {
			return fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	for name, key := range opts.EnvAliases {
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			continue
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	// Open file once and validate using file descriptor to avoid TOCTOU race
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
