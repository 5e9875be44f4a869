package led

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// RGBColor is a 24-bit color in R, G, B order, which is also the order the
// bytes are sent over the wire.
type RGBColor [3]uint8

// Off is the color of an LED that is turned off.
var Off = RGBColor{0, 0, 0}

// RGB creates a new RGBColor.
func RGB(r, g, b uint8) RGBColor {
	return RGBColor{r, g, b}
}

// String returns the color in #rrggbb notation.
func (c RGBColor) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// MarshalText implements encoding.TextMarshaler.
func (c RGBColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseHex parses a color in #rrggbb or #rgb notation.
func ParseHex(s string) (RGBColor, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return Off, errors.Wrapf(err, "invalid hex color %q", s)
	}
	r, g, b := c.RGB255()
	return RGBColor{r, g, b}, nil
}

// Palette maps color names to colors. Names are upper case.
type Palette map[string]RGBColor

// DefaultPalette returns the built-in named colors.
func DefaultPalette() Palette {
	return Palette{
		"GREEN":       {0, 255, 0},
		"BLUE":        {0, 0, 255},
		"RED":         {255, 0, 0},
		"PINK":        {255, 105, 180},
		"YELLOW":      {255, 255, 0},
		"WHITE":       {255, 255, 255},
		"BRIGHT_BLUE": {0, 191, 255},
		"OFF":         Off,
	}
}

// Lookup resolves a color by name. Names are case-insensitive. Values
// starting with '#' are parsed as hex colors.
func (p Palette) Lookup(name string) (RGBColor, error) {
	if strings.HasPrefix(name, "#") {
		return ParseHex(name)
	}
	if c, ok := p[strings.ToUpper(name)]; ok {
		return c, nil
	}
	return Off, errors.Errorf("unknown color %q (known: %s)", name, strings.Join(p.Names(), ", "))
}

// Extend adds the given name -> hex color entries to a copy of the palette.
func (p Palette) Extend(hexColors map[string]string) (Palette, error) {
	extended := make(Palette, len(p)+len(hexColors))
	for name, c := range p {
		extended[name] = c
	}
	for name, hex := range hexColors {
		c, err := ParseHex(hex)
		if err != nil {
			return nil, errors.Wrapf(err, "color %s", name)
		}
		extended[strings.ToUpper(name)] = c
	}
	return extended, nil
}

// Names returns the sorted color names in the palette.
func (p Palette) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
