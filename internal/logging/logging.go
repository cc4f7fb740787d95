package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger for a binary. In dev it writes human-readable
// console output, everywhere else JSON to stdout.
func New(env, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if env == "dev" {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}
