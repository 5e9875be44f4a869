package led

import (
	"bytes"
	"strings"
	"testing"
)

func TestLEDsAsPixels(t *testing.T) {
	leds := NewLEDs(2)
	leds[0] = RGB(1, 2, 3)
	leds[1] = RGB(4, 5, 6)

	pix := leds.AsPixels()
	want := []uint8{1, 2, 3, 4, 5, 6}
	if !bytes.Equal(pix, want) {
		t.Errorf("AsPixels() = %v, want %v", pix, want)
	}

	if pix := NewLEDs(0).AsPixels(); pix != nil {
		t.Errorf("AsPixels() on empty strip = %v, want nil", pix)
	}
}

func TestLEDsCloneAndClear(t *testing.T) {
	leds := LEDs{RGB(1, 1, 1), RGB(2, 2, 2)}
	clone := leds.Clone()
	leds.Clear()

	if !leds.Equal(LEDs{Off, Off}) {
		t.Errorf("Clear() left %v", leds)
	}
	if clone.Equal(leds) {
		t.Error("Clone() aliases the original strip")
	}
}

func TestPaletteLookup(t *testing.T) {
	palette := DefaultPalette()

	tests := []struct {
		name    string
		input   string
		want    RGBColor
		wantErr bool
	}{
		{"upper case", "GREEN", RGB(0, 255, 0), false},
		{"lower case", "red", RGB(255, 0, 0), false},
		{"hex", "#0a96cc", RGB(10, 150, 204), false},
		{"unknown", "MAUVE", Off, true},
		{"bad hex", "#zz", Off, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := palette.Lookup(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Lookup(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPaletteLookupUnknownListsNames(t *testing.T) {
	_, err := Palette{"RED": RGB(255, 0, 0), "BLUE": RGB(0, 0, 255)}.Lookup("MAUVE")
	if err == nil || !strings.Contains(err.Error(), "BLUE, RED") {
		t.Errorf("Lookup() error = %v, want the known names listed", err)
	}
}

func TestPaletteExtend(t *testing.T) {
	base := DefaultPalette()
	extended, err := base.Extend(map[string]string{"orange": "#ff8800"})
	if err != nil {
		t.Fatalf("Extend() error: %v", err)
	}

	if c, err := extended.Lookup("ORANGE"); err != nil || c != RGB(255, 136, 0) {
		t.Errorf("Lookup(ORANGE) = %v, %v", c, err)
	}
	if _, err := base.Lookup("ORANGE"); err == nil {
		t.Error("Extend() modified the base palette")
	}

	if _, err := base.Extend(map[string]string{"bad": "nope"}); err == nil {
		t.Error("Extend() accepted an invalid hex color")
	}
}
