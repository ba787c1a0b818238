package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testRedactor(t *testing.T) *redactor {
	t.Helper()
	r, err := newRedactor(NewDefaultConfig().Redaction)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

func TestNewRedactor_Disabled(t *testing.T) {
	r, err := newRedactor(RedactionConfig{Enabled: false, Patterns: []string{"[bad"}})
	require.NoError(t, err)
	assert.Nil(t, r)

	// A nil redactor passes everything through.
	assert.Equal(t, "hunter2", r.value("password", "hunter2"))
	f := zap.String("token", "abc")
	assert.Equal(t, f, r.field(f))
}

func TestNewRedactor_InvalidPattern(t *testing.T) {
	_, err := newRedactor(RedactionConfig{Enabled: true, Patterns: []string{"(unclosed"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redaction pattern")
}

func TestRedactor_Value(t *testing.T) {
	r := testRedactor(t)

	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"sensitive key", "password", "hunter2", redacted},
		{"key case insensitive", "Authorization", "Basic xyz", redacted},
		{"bearer pattern", "header", "Bearer eyJhbGciOi", redactedPattern},
		{"api key pattern", "query", "api_key=abc123", redactedPattern},
		{"plain", "user", "alice", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.value(tt.key, tt.val))
		})
	}
}

func TestRedactor_Field(t *testing.T) {
	r := testRedactor(t)

	assert.Equal(t, redacted, r.field(zap.String("secret", "s3cr3t")).String)
	assert.Equal(t, redactedPattern, r.field(zap.String("note", "bearer abc")).String)

	masked := r.field(zap.Int("token", 42))
	assert.Equal(t, zapcore.StringType, masked.Type)
	assert.Equal(t, redacted, masked.String)

	plain := zap.Int("count", 3)
	assert.Equal(t, plain, r.field(plain))
}

func TestRedactor_ToZapFields(t *testing.T) {
	r := testRedactor(t)

	fields := r.toZapFields(Fields{
		"zeta":     "last",
		"alpha":    1,
		"password": "hunter2",
		"scenario": "ignored",
		"err":      errors.New("bearer leaked"),
	}, nil)

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"alpha", "err", "password", "zeta"}, keys, "sorted, scenario skipped")

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	assert.Equal(t, int64(1), enc.Fields["alpha"])
	assert.Equal(t, redactedPattern, enc.Fields["err"])
	assert.Equal(t, redacted, enc.Fields["password"])
	assert.Equal(t, "last", enc.Fields["zeta"])
}
