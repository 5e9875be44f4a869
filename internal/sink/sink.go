// Package sink implements the outputs that LED frames are committed to.
package sink

import (
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"libdb.so/metarglow/internal/led"
)

// Sink is the physical output for LED frames. Only one goroutine writes to a
// Sink at a time.
type Sink interface {
	// Configure is called once before the first frame. Brightness is in
	// [0, 1] and is interpreted by the sink.
	Configure(numLEDs int, brightness float64) error
	// CommitFrame shows the given colors. The sink must not retain leds
	// after returning.
	CommitFrame(leds led.LEDs) error
}

// Kind names a sink implementation.
type Kind string

const (
	SerialKind Kind = "serial"
	LogKind    Kind = "log"
	NoneKind   Kind = "none"
)

// Kinds lists every known sink kind.
var Kinds = []Kind{SerialKind, LogKind, NoneKind}

// KindNames returns the known kinds as a comma-separated list.
func KindNames() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Options describes how to open a sink.
type Options struct {
	Kind Kind
	// Device and Baud are used by the serial sink.
	Device string
	Baud   int
}

// Open opens the sink described by opts. Sinks that hold resources also
// implement io.Closer.
func Open(opts Options, logger *slog.Logger) (Sink, error) {
	switch opts.Kind {
	case SerialKind:
		s, err := OpenSerial(opts.Device, opts.Baud, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case LogKind:
		return NewLog(logger), nil
	case NoneKind, "":
		return Discard{}, nil
	default:
		return nil, errors.Errorf("unknown sink kind %q (known: %s)", opts.Kind, KindNames())
	}
}

// Discard is a sink that drops every frame.
type Discard struct{}

var _ Sink = Discard{}

func (Discard) Configure(int, float64) error { return nil }
func (Discard) CommitFrame(led.LEDs) error   { return nil }
