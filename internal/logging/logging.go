// Package logging configures the zerolog logger handed to the API client and
// the refresher. The level is decided once at startup; components receive an
// explicit logger instead of reaching for a process-wide one.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// Verbose lowers the level to debug.
	Verbose bool
	// Debug additionally enables request/response dumps in the API client.
	Debug bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Verbose || cfg.Debug {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
