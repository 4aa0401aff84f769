package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartpassport/passport-node/issuer/config"
)

// Init builds the process logger from the node configuration and writes to stdout.
func Init(cfg config.Config) zerolog.Logger {
	return New(os.Stdout, cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)
}

// New creates a zerolog logger writing to w.
// Supports console/json format, level filtering, and optional sampling.
func New(w io.Writer, logLevel int, logFormat string, logSampler bool) zerolog.Logger {
	writer := w
	if logFormat != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    w != os.Stdout,
		}
	}

	logger := zerolog.New(writer).
		Level(zerolog.Level(logLevel)).
		With().
		Timestamp().
		Str("service", "passportd").
		Logger()

	if logSampler {
		logger = logger.Sample(&zerolog.BasicSampler{N: 5})
	}
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
