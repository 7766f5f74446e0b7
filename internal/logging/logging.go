package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/Domenick1991/travelquotes/config"
	"github.com/rs/zerolog"
)

// New creates a zerolog logger from config.
// Supports "trace" | "debug" | "info" | "warn" | "error" levels and "json" | "console" formats.
func New(cfg config.LogConfig) *zerolog.Logger {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg config.LogConfig, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = w
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	base := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &base
}

// Component returns a child logger tagged with the component name.
func Component(base *zerolog.Logger, name string) *zerolog.Logger {
	l := base.With().Str("component", name).Logger()
	return &l
}

// Nop is a disabled logger for tests and optional collaborators.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
