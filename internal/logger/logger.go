package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string
	Format string // "json", "console"
	Output io.Writer
}

var (
	once sync.Once
	lg   zerolog.Logger
)

func Init(cfg Config) {
	once.Do(func() {
		lg = New(cfg)
	})
}

// New builds a logger without touching the process-wide one.
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	var w io.Writer = cfg.Output
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: time.TimeOnly,
			NoColor:    cfg.Output != os.Stdout,
		}
	}
	return zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

// L returns the process logger, falling back to a debug console logger when
// Init was never called.
func L() *zerolog.Logger {
	Init(Config{Level: "debug", Format: "console"})
	return &lg
}

// Component returns a child logger tagged with the subsystem name.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

func parseLevel(levelStr string) zerolog.Level {
	switch levelStr {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
