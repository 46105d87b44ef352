package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/pterm/pterm"
)

// Config controls the logger built by New.
type Config struct {
	Debug  bool
	Writer io.Writer
}

// New returns a slog.Logger rendered by pterm. Logs go to stderr unless
// cfg.Writer is set, so they never mix with poems on stdout.
func New(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	level := pterm.LogLevelInfo
	if cfg.Debug {
		level = pterm.LogLevelDebug
	}

	pl := pterm.DefaultLogger.
		WithLevel(level).
		WithWriter(w)

	return slog.New(pterm.NewSlogHandler(pl))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
