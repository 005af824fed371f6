// Logging for rxcore
// 基于zerolog的结构化日志
package rxcore

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	// LogFormatConsole 控制台格式
	LogFormatConsole = "console"
	// LogFormatJSON JSON格式
	LogFormatJSON = "json"
)

var packageLogger atomic.Pointer[zerolog.Logger]

func init() {
	l := NewLogger(LogConfig{Level: "warn", Format: LogFormatJSON}, os.Stderr)
	packageLogger.Store(&l)
}

// Logger 返回包级日志器
func Logger() *zerolog.Logger {
	return packageLogger.Load()
}

// SetLogger 替换包级日志器
func SetLogger(l zerolog.Logger) {
	packageLogger.Store(&l)
}

// NewLogger 按配置创建日志器，w为nil时输出到stderr
func NewLogger(cfg LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}

	if strings.ToLower(cfg.Format) == LogFormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", "rxcore").
		Logger()
}
