package logging

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"
)

// timeLayout is shared by the console and file formats.
const timeLayout = "2006-01-02 15:04:05.000"

const fieldSeparator = " | "

// palette colours console records. A zero palette prints plain text.
type palette struct {
	enabled  bool
	time     lipgloss.Style
	caller   lipgloss.Style
	debug    lipgloss.Style
	info     lipgloss.Style
	warning  lipgloss.Style
	err      lipgloss.Style
	critical lipgloss.Style
}

// newPalette builds styles for out. Colour is dropped by lipgloss when out
// is not a terminal.
func newPalette(out io.Writer, color bool) palette {
	if !color {
		return palette{}
	}
	r := lipgloss.NewRenderer(out)
	return palette{
		enabled:  true,
		time:     r.NewStyle().Foreground(lipgloss.Color("2")),
		caller:   r.NewStyle().Foreground(lipgloss.Color("6")),
		debug:    r.NewStyle().Foreground(lipgloss.Color("4")),
		info:     r.NewStyle().Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		err:      r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		critical: r.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Bold(true),
	}
}

func (p palette) paint(s lipgloss.Style, text string) string {
	if !p.enabled {
		return text
	}
	return s.Render(text)
}

func (p palette) level(l zapcore.Level) lipgloss.Style {
	switch {
	case l >= CriticalLevel:
		return p.critical
	case l >= ErrorLevel:
		return p.err
	case l >= WarningLevel:
		return p.warning
	case l >= InfoLevel:
		return p.info
	}
	return p.debug
}

// newConsoleEncoder returns the concise console format:
//
//	2025-01-02 15:04:05.000 | INFO     | login_test.go:TestLogin:42 | message | {"scenario":"auth"}
func newConsoleEncoder(p palette) zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:    "ts",
		LevelKey:   "level",
		CallerKey:  "caller",
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(p.paint(p.time, t.Format(timeLayout)))
		},
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(p.paint(p.level(l), paddedLevelName(l)))
		},
		EncodeCaller: func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(p.paint(p.caller, formatCaller(c)))
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: fieldSeparator,
	})
}

// newFileEncoder returns the verbose file format. The logger name slot
// carries the worker id, and ERROR+ records with an error end with their
// stack trace:
//
//	2025-01-02 15:04:05.000 | ERROR    | 4242:1a2b3c4d | login_test.go:TestLogin:42 | boom | {"scenario":"auth","error":"..."}
//	main.TestLogin
//		/src/login_test.go:42
func newFileEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "worker",
		CallerKey:        "caller",
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeLevel:      func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(paddedLevelName(l)) },
		EncodeName:       zapcore.FullNameEncoder,
		EncodeCaller:     func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(formatCaller(c)) },
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: fieldSeparator,
	})
}

// formatCaller renders file.go:Function:line.
func formatCaller(c zapcore.EntryCaller) string {
	if !c.Defined {
		return "undefined"
	}
	var b strings.Builder
	b.WriteString(filepath.Base(c.File))
	b.WriteByte(':')
	if fn := shortFunction(c.Function); fn != "" {
		b.WriteString(fn)
		b.WriteByte(':')
	}
	b.WriteString(strconv.Itoa(c.Line))
	return b.String()
}

// shortFunction strips the import path and package from a runtime function
// name: "github.com/x/y.(*T).M" becomes "(*T).M".
func shortFunction(fn string) string {
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.IndexByte(fn, '.'); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}
