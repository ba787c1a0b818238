package logging

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields are the caller-bound key/value pairs of a record.
//
// Two keys steer scenario resolution when no scenario is bound to the
// context: "scenario" names it directly and "test_path" (or "nodeid") is
// resolved from a test path.
type Fields map[string]any

// Keys used by the router.
const (
	FieldScenario = "scenario"
	FieldTestPath = "test_path"
	FieldNodeID   = "nodeid"
	FieldError    = "error"
)

// toZapFields converts fields, sorted by key, skipping "scenario" which the
// router always adds itself. Values that cannot be encoded are rendered as
// strings; rendering never panics.
func (r *redactor) toZapFields(fields Fields, dst []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return dst
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != FieldScenario {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		dst = append(dst, r.toZapField(k, fields[k]))
	}
	return dst
}

func (r *redactor) toZapField(key string, v any) zap.Field {
	if r.sensitiveKey(key) {
		return zap.String(key, redacted)
	}
	switch val := v.(type) {
	case nil:
		return zap.String(key, "<nil>")
	case string:
		return zap.String(key, r.value(key, val))
	case bool:
		return zap.Bool(key, val)
	case int:
		return zap.Int(key, val)
	case int64:
		return zap.Int64(key, val)
	case int32:
		return zap.Int32(key, val)
	case uint:
		return zap.Uint(key, val)
	case uint64:
		return zap.Uint64(key, val)
	case float64:
		return zap.Float64(key, val)
	case float32:
		return zap.Float32(key, val)
	case time.Duration:
		return zap.Duration(key, val)
	case time.Time:
		return zap.Time(key, val)
	}
	return zap.String(key, r.value(key, renderValue(v)))
}

// renderValue converts v to a string: errors and Stringers by their own
// methods, everything else as JSON, falling back to %+v. A panicking
// method yields a placeholder.
func renderValue(v any) (s string) {
	defer func() {
		if p := recover(); p != nil {
			s = fmt.Sprintf("<unrenderable %T: %v>", v, p)
		}
	}()

	switch val := v.(type) {
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%+v", v)
}

// routingHints extracts the scenario and test path carried by zap fields.
func routingHints(fields []zapcore.Field) (scenarioName, testPath string) {
	for _, f := range fields {
		if f.Type != zapcore.StringType {
			continue
		}
		switch f.Key {
		case FieldScenario:
			scenarioName = f.String
		case FieldTestPath, FieldNodeID:
			testPath = f.String
		}
	}
	return scenarioName, testPath
}

// withoutKey drops fields named key.
func withoutKey(fields []zapcore.Field, key string) []zapcore.Field {
	out := fields[:0:0]
	for _, f := range fields {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}
