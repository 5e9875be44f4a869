package animation

import (
	"time"

	"libdb.so/metarglow/internal/led"
	"libdb.so/metarglow/internal/pattern"
)

// channelState is the playback position of one channel within its pattern
// sequence. It is only valid for the sequence it was created for; the engine
// discards it whenever the sequence is replaced.
type channelState struct {
	index     int
	deadline  time.Time
	on        bool
	blinking  bool
	nextBlink time.Time
}

func newChannelState(patterns []pattern.Pattern, now time.Time) *channelState {
	s := &channelState{}
	s.enter(patterns, 0, now)
	return s
}

// enter starts playing patterns[index] at now.
func (s *channelState) enter(patterns []pattern.Pattern, index int, now time.Time) {
	p := patterns[index]

	s.index = index
	s.deadline = now.Add(p.Duration())
	s.on = true
	s.blinking = p.Blink()
	if s.blinking {
		s.nextBlink = now.Add(p.BlinkInterval())
	} else {
		s.nextBlink = time.Time{}
	}
}

// step advances the state to now and returns the color to render. The color
// is computed before the pattern deadline is checked, so every pattern is
// rendered for at least one tick.
func (s *channelState) step(patterns []pattern.Pattern, now time.Time) led.RGBColor {
	p := patterns[s.index]

	if s.blinking && !now.Before(s.nextBlink) {
		s.on = !s.on
		s.nextBlink = now.Add(p.BlinkInterval())
	}

	color := led.Off
	if s.on {
		color = p.Color()
	}

	if !now.Before(s.deadline) {
		s.enter(patterns, (s.index+1)%len(patterns), now)
	}

	return color
}

// channel is one LED slot owned by the engine.
type channel struct {
	patterns []pattern.Pattern
	state    *channelState
	color    led.RGBColor
}

// render evaluates the channel at now, creating its state if it was just
// assigned.
func (c *channel) render(now time.Time) led.RGBColor {
	if len(c.patterns) == 0 {
		c.color = led.Off
		return c.color
	}
	if c.state == nil {
		c.state = newChannelState(c.patterns, now)
	}
	c.color = c.state.step(c.patterns, now)
	return c.color
}

// assign replaces the channel's patterns and drops its playback state.
func (c *channel) assign(patterns []pattern.Pattern) {
	c.patterns = patterns
	c.state = nil
}
