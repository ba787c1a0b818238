package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxPatternLen bounds redaction patterns as a basic ReDoS guard.
const maxPatternLen = 200

const (
	redacted        = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

// redactor masks sensitive field names and value patterns. A nil redactor
// passes everything through.
type redactor struct {
	fields   map[string]bool
	patterns []*regexp.Regexp
}

// newRedactor compiles cfg. It returns nil when redaction is disabled.
func newRedactor(cfg RedactionConfig) (*redactor, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	fields := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields[strings.ToLower(f)] = true
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &redactor{fields: fields, patterns: patterns}, nil
}

func (r *redactor) sensitiveKey(key string) bool {
	return r != nil && r.fields[strings.ToLower(key)]
}

// value redacts val when key is sensitive or val matches a pattern.
func (r *redactor) value(key, val string) string {
	if r == nil {
		return val
	}
	if r.sensitiveKey(key) {
		return redacted
	}
	for _, re := range r.patterns {
		if re.MatchString(val) {
			return redactedPattern
		}
	}
	return val
}

// field redacts a zap field produced outside the router, e.g. through
// Router.Logger. String fields are checked against both rules; any other
// type is masked only by key.
func (r *redactor) field(f zapcore.Field) zapcore.Field {
	if r == nil {
		return f
	}
	switch {
	case f.Type == zapcore.StringType:
		if v := r.value(f.Key, f.String); v != f.String {
			return zap.String(f.Key, v)
		}
	case r.sensitiveKey(f.Key):
		return zap.String(f.Key, redacted)
	}
	return f
}
