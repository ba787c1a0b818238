package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Record levels. CRITICAL sits above ERROR and maps to zap's DPanic level;
// the router never panics on it.
const (
	DebugLevel    = zapcore.DebugLevel
	InfoLevel     = zapcore.InfoLevel
	WarningLevel  = zapcore.WarnLevel
	ErrorLevel    = zapcore.ErrorLevel
	CriticalLevel = zapcore.DPanicLevel
)

// ParseLevel parses DEBUG, INFO, WARNING (or WARN), ERROR or CRITICAL,
// ignoring case and surrounding space. Anything else returns InfoLevel and
// false.
func ParseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel, true
	case "INFO":
		return InfoLevel, true
	case "WARNING", "WARN":
		return WarningLevel, true
	case "ERROR":
		return ErrorLevel, true
	case "CRITICAL":
		return CriticalLevel, true
	}
	return InfoLevel, false
}

// LevelName returns the record name of l: DEBUG, INFO, WARNING, ERROR or
// CRITICAL. Levels outside that set use zap's capital name.
func LevelName(l zapcore.Level) string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	case CriticalLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return "CRITICAL"
	}
	return l.CapitalString()
}

// levelWidth is the column width of the level in both record formats.
const levelWidth = 8

func paddedLevelName(l zapcore.Level) string {
	name := LevelName(l)
	if len(name) >= levelWidth {
		return name
	}
	return name + strings.Repeat(" ", levelWidth-len(name))
}
