// Package led describes LED colors and strips of LEDs.
package led

import "unsafe"

// LEDs describes a strip of LEDs. It is a preallocated slice of RGBColor.
type LEDs []RGBColor

// NewLEDs creates a new strip of LEDs. Colors are initialized to black
// (off).
func NewLEDs(numLEDs int) LEDs {
	return make(LEDs, numLEDs)
}

// AsPixels returns the LED strip as a slice of uint8 values. Each LED is
// represented by three values, one for each color channel. The returned slice
// aliases the strip.
func (l LEDs) AsPixels() []uint8 {
	if len(l) == 0 {
		return nil
	}
	return unsafe.Slice((*uint8)(unsafe.Pointer(&l[0])), 3*len(l))
}

// Clear turns every LED off.
func (l LEDs) Clear() {
	for i := range l {
		l[i] = Off
	}
}

// Equal returns true if both strips have the same length and colors.
func (l LEDs) Equal(other LEDs) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the strip that does not alias l.
func (l LEDs) Clone() LEDs {
	c := make(LEDs, len(l))
	copy(c, l)
	return c
}
