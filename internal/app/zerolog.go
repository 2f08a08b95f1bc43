package app

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// MigrationLogger builds the zerolog logger the migrator and the CLI write to.
func MigrationLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Str("component", "migrate").Logger()
}
