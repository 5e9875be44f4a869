// Package logging builds the daemon's slog handlers.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// Config is the [logging] configuration section.
type Config struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Journal forwards records to the systemd journal when it is reachable.
	Journal bool `toml:"journal"`
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

// ParseLevel parses a level name. An empty name is Info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level %q", level)
	}
}

// New creates a logger writing to w in the configured format, and to the
// journal when enabled and available. Unknown levels fall back to Info.
func New(cfg Config, w io.Writer) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)
	return slog.New(NewHandler(cfg, w, level))
}

// NewHandler creates the handler chain for cfg at the given level.
func NewHandler(cfg Config, w io.Writer, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Journal && JournalAvailable() {
		handler = NewMultiHandler(handler, NewJournalHandler(level))
	}

	return handler
}

// Module returns a child logger tagged with the module name.
func Module(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("module", name)
}
