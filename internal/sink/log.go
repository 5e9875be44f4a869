package sink

import (
	"log/slog"
	"strings"

	"libdb.so/metarglow/internal/led"
)

// Log is a sink that logs every frame that differs from the previous one. It
// is useful when running without hardware.
type Log struct {
	logger     *slog.Logger
	last       led.LEDs
	brightness float64
}

var _ Sink = (*Log)(nil)

// NewLog creates a new logging sink.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Configure(numLEDs int, brightness float64) error {
	l.brightness = brightness
	l.last = nil
	l.logger.Info(
		"log sink configured",
		"leds", numLEDs,
		"brightness", brightness)
	return nil
}

func (l *Log) CommitFrame(leds led.LEDs) error {
	if l.last != nil && l.last.Equal(leds) {
		return nil
	}
	l.last = leds.Clone()

	colors := make([]string, len(leds))
	for i, c := range leds {
		colors[i] = c.String()
	}

	l.logger.Debug(
		"frame changed",
		"brightness", l.brightness,
		"colors", strings.Join(colors, " "))
	return nil
}
