package config

import (
	"strings"

	"github.com/pion/logging"
)

// LoggerFactory builds the process-wide leveled logger factory. Unknown
// levels fall back to info.
func LoggerFactory(level string) *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = parseLevel(level)
	return f
}

func parseLevel(level string) logging.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "disabled", "off":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "warn", "warning":
		return logging.LogLevelWarn
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelInfo
	}
}
