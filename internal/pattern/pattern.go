// Package pattern describes LED animation segments and resolves weather
// conditions into ordered sequences of them.
package pattern

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"libdb.so/metarglow/internal/led"
)

const (
	// DefaultDuration is the duration of a pattern that does not set one.
	DefaultDuration = 10 * time.Second
	// DefaultBlinkInterval is the blink interval of a pattern that does not
	// set one.
	DefaultBlinkInterval = 500 * time.Millisecond
)

var (
	// ErrNonPositiveDuration is returned when a pattern's duration is not
	// positive.
	ErrNonPositiveDuration = errors.New("pattern duration must be positive")
	// ErrNonPositiveBlinkInterval is returned when a blinking pattern's blink
	// interval is not positive.
	ErrNonPositiveBlinkInterval = errors.New("pattern blink interval must be positive")
)

// Pattern is one segment of a channel's animation. It is immutable once
// constructed.
type Pattern struct {
	color         led.RGBColor
	duration      time.Duration
	blink         bool
	blinkInterval time.Duration
}

// New creates a new pattern. The blink interval is ignored unless blink is
// true.
func New(color led.RGBColor, duration time.Duration, blink bool, blinkInterval time.Duration) (Pattern, error) {
	if duration <= 0 {
		return Pattern{}, ErrNonPositiveDuration
	}
	if blink && blinkInterval <= 0 {
		return Pattern{}, ErrNonPositiveBlinkInterval
	}
	if !blink {
		blinkInterval = 0
	}
	return Pattern{
		color:         color,
		duration:      duration,
		blink:         blink,
		blinkInterval: blinkInterval,
	}, nil
}

// Solid creates a non-blinking pattern. It panics if duration is not
// positive.
func Solid(color led.RGBColor, duration time.Duration) Pattern {
	p, err := New(color, duration, false, 0)
	if err != nil {
		panic(err)
	}
	return p
}

// Blinking creates a blinking pattern. It panics if either duration is not
// positive.
func Blinking(color led.RGBColor, duration, interval time.Duration) Pattern {
	p, err := New(color, duration, true, interval)
	if err != nil {
		panic(err)
	}
	return p
}

// Color returns the color shown while the LED is on.
func (p Pattern) Color() led.RGBColor { return p.color }

// Duration returns how long the pattern plays before the next one.
func (p Pattern) Duration() time.Duration { return p.duration }

// Blink returns true if the pattern blinks.
func (p Pattern) Blink() bool { return p.blink }

// BlinkInterval returns the time between blink toggles. It is zero for
// patterns that do not blink.
func (p Pattern) BlinkInterval() time.Duration { return p.blinkInterval }

// String implements fmt.Stringer.
func (p Pattern) String() string {
	if p.blink {
		return fmt.Sprintf("%s for %s, blinking every %s", p.color, p.duration, p.blinkInterval)
	}
	return fmt.Sprintf("%s for %s", p.color, p.duration)
}
