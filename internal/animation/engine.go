// Package animation implements the LED animation engine. The engine owns one
// channel per LED, advances every channel on a fixed tick in its own
// goroutine and commits the resulting frame to a sink, while other goroutines
// replace channel pattern sequences at any time.
package animation

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"libdb.so/metarglow/internal/led"
	"libdb.so/metarglow/internal/metrics"
	"libdb.so/metarglow/internal/pattern"
	"libdb.so/metarglow/internal/sink"
)

// DefaultPeriod is the default tick period.
const DefaultPeriod = 50 * time.Millisecond

var (
	// ErrInvalidChannel is returned when assigning to a channel outside the
	// strip.
	ErrInvalidChannel = errors.New("channel index out of range")
	// ErrEmptyPatterns is returned when assigning an empty pattern sequence.
	ErrEmptyPatterns = errors.New("pattern sequence is empty")
	// ErrStopped is returned once the engine has been stopped or its tick
	// loop has failed.
	ErrStopped = errors.New("animation engine stopped")
	// ErrInvalidBrightness is returned for a brightness outside [0, 1].
	ErrInvalidBrightness = errors.New("brightness must be within [0, 1]")
)

// Option configures an Engine.
type Option func(*Engine)

// WithPeriod sets the tick period. Non-positive periods are ignored.
func WithPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.period = d
		}
	}
}

// WithClock replaces time.Now as the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine renders pattern sequences onto a strip of LEDs.
type Engine struct {
	sink   sink.Sink
	period time.Duration
	now    func() time.Time
	logger *slog.Logger

	stop chan struct{}
	done chan struct{}

	// mu guards everything below. The tick loop holds it for a whole sweep.
	mu       sync.Mutex
	channels []channel
	frame    led.LEDs
	stopped  bool
	fault    error
}

// New creates an engine with numChannels channels and starts its tick loop.
// Brightness is passed to the sink unchanged. Zero channels is allowed and
// renders empty frames.
func New(numChannels int, brightness float64, s sink.Sink, opts ...Option) (*Engine, error) {
	e, err := newEngine(numChannels, brightness, s, opts...)
	if err != nil {
		return nil, err
	}
	go e.run()
	return e, nil
}

// newEngine creates an engine without starting its tick loop.
func newEngine(numChannels int, brightness float64, s sink.Sink, opts ...Option) (*Engine, error) {
	if numChannels < 0 {
		return nil, errors.Wrapf(ErrInvalidChannel, "negative channel count %d", numChannels)
	}
	if brightness < 0 || brightness > 1 {
		return nil, errors.Wrapf(ErrInvalidBrightness, "got %v", brightness)
	}

	e := &Engine{
		sink:     s,
		period:   DefaultPeriod,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		channels: make([]channel, numChannels),
		frame:    led.NewLEDs(numChannels),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := s.Configure(numChannels, brightness); err != nil {
		return nil, errors.Wrap(err, "failed to configure sink")
	}

	return e, nil
}

// NumChannels returns the number of channels.
func (e *Engine) NumChannels() int {
	return len(e.channels)
}

// Assign replaces the pattern sequence of the given channel. The channel
// restarts from the first pattern on the next tick. Invalid assignments leave
// the channel untouched.
func (e *Engine) Assign(channel int, patterns []pattern.Pattern) error {
	if channel < 0 || channel >= len(e.channels) {
		metrics.IncAssignment(metrics.AssignRejected)
		return errors.Wrapf(ErrInvalidChannel, "channel %d of %d", channel, len(e.channels))
	}
	if len(patterns) == 0 {
		metrics.IncAssignment(metrics.AssignRejected)
		return errors.Wrapf(ErrEmptyPatterns, "channel %d", channel)
	}

	patterns = append([]pattern.Pattern(nil), patterns...)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		metrics.IncAssignment(metrics.AssignStopped)
		return ErrStopped
	}

	e.channels[channel].assign(patterns)
	metrics.IncAssignment(metrics.AssignAccepted)
	return nil
}

// Stop stops the tick loop, waits for it to exit and turns every LED off. It
// returns the fault that stopped the loop early, if any. Calling Stop more
// than once returns ErrStopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	select {
	case <-e.stop:
		e.mu.Unlock()
		return ErrStopped
	default:
	}
	close(e.stop)
	e.stopped = true
	e.mu.Unlock()

	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.channels {
		e.channels[i] = channel{}
	}
	e.frame.Clear()

	if err := e.sink.CommitFrame(e.frame); err != nil && e.fault == nil {
		return errors.Wrap(err, "failed to clear LEDs")
	}

	return e.fault
}

// Done returns a channel that is closed once the tick loop has exited, either
// because Stop was called or because of a fault.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err returns the fault that terminated the tick loop, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fault
}

// ChannelStatus describes the current state of one channel.
type ChannelStatus struct {
	Index        int          `json:"index"`
	Assigned     bool         `json:"assigned"`
	PatternIndex int          `json:"pattern_index"`
	PatternCount int          `json:"pattern_count"`
	Color        led.RGBColor `json:"color"`
}

// Snapshot returns the status of every channel as of the last tick.
func (e *Engine) Snapshot() []ChannelStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	statuses := make([]ChannelStatus, len(e.channels))
	for i, c := range e.channels {
		statuses[i] = ChannelStatus{
			Index:        i,
			Assigned:     len(c.patterns) > 0,
			PatternCount: len(c.patterns),
			Color:        c.color,
		}
		if c.state != nil {
			statuses[i].PatternIndex = c.state.index
		}
	}
	return statuses
}

func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		if err := e.tick(e.now()); err != nil {
			metrics.IncFault()
			e.logger.Error(
				"tick loop stopped",
				"error", err)
			return
		}

		select {
		case <-e.stop:
			e.logger.Debug("tick loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// tick renders every channel at now and commits the frame. A sink failure
// marks the engine as stopped.
func (e *Engine) tick(now time.Time) error {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.channels {
		e.frame[i] = e.channels[i].render(now)
	}

	if err := e.sink.CommitFrame(e.frame); err != nil {
		e.fault = errors.Wrap(err, "failed to commit frame")
		e.stopped = true
		return e.fault
	}

	metrics.ObserveTick(time.Since(start))
	return nil
}
