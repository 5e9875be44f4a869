package metarglow

import (
	"encoding"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/metarglow/internal/animation"
	"libdb.so/metarglow/internal/led"
	"libdb.so/metarglow/internal/logging"
	"libdb.so/metarglow/internal/metar"
	"libdb.so/metarglow/internal/pattern"
	"libdb.so/metarglow/internal/sink"
)

const (
	// DefaultBrightness is the LED brightness used when none is configured.
	DefaultBrightness = 0.25
	// DefaultPollInterval is how often weather is fetched.
	DefaultPollInterval = 10 * time.Minute
	// DefaultBaud is the serial baud rate used when none is configured.
	DefaultBaud = 115200
)

// lightningAlias is an older spelling of the LIGHTNING pattern key that is
// still accepted.
const lightningAlias = "LIGHTING"

// Config is the configuration for the metarglow daemon.
type Config struct {
	// Stations lists the ICAO id shown on each LED, in strip order. An empty
	// string leaves that LED unused.
	Stations []string `toml:"stations"`
	// LEDs is the length of the strip. It defaults to the number of stations
	// and may be larger.
	LEDs int `toml:"num_leds"`
	// Brightness is the strip brightness within [0, 1].
	Brightness *float64 `toml:"brightness"`
	// Tick is the animation tick period.
	Tick TOMLDuration `toml:"tick"`
	// PollInterval is how often weather is fetched.
	PollInterval TOMLDuration `toml:"poll_interval"`

	Weather WeatherConfig  `toml:"weather"`
	Output  OutputConfig   `toml:"output"`
	Status  StatusConfig   `toml:"status"`
	Logging logging.Config `toml:"logging"`

	// Colors adds named colors in #rrggbb notation to the built-in palette.
	Colors map[string]string `toml:"colors"`
	// Patterns maps flight categories and overlay conditions to patterns.
	Patterns map[string]PatternConfig `toml:"patterns"`
}

// WeatherConfig is the configuration for the METAR client.
type WeatherConfig struct {
	BaseURL       string       `toml:"base_url"`
	Endpoint      string       `toml:"metar_endpoint"`
	Timeout       TOMLDuration `toml:"timeout"`
	// GustThreshold is the gust speed in knots at which the GUSTS pattern is
	// shown. Zero shows it for any reported gust.
	GustThreshold float64 `toml:"gust_threshold"`
}

// OutputConfig describes where frames are sent.
type OutputConfig struct {
	Kind sink.Kind `toml:"kind"`
	// Device is the path to the serial device, usually /dev/ttyUSB0 or
	// /dev/ttyACM0.
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

// StatusConfig is the configuration for the HTTP status server.
type StatusConfig struct {
	// Listen is the address to listen on. The server is disabled if empty.
	Listen string `toml:"listen"`
}

// PatternConfig is the configuration for one pattern.
type PatternConfig struct {
	// Color is a palette name or a #rrggbb color.
	Color      string       `toml:"color"`
	Duration   TOMLDuration `toml:"duration"`
	Blink      bool         `toml:"blink"`
	BlinkSpeed TOMLDuration `toml:"blink_speed"`
}

// Pattern builds the pattern, filling in the default duration and blink
// speed for unset values.
func (c PatternConfig) Pattern(palette led.Palette) (pattern.Pattern, error) {
	if c.Color == "" {
		return pattern.Pattern{}, errors.New("missing color")
	}

	if c.Duration < 0 {
		return pattern.Pattern{}, errors.Errorf("negative duration %v", c.Duration)
	}
	if c.BlinkSpeed < 0 {
		return pattern.Pattern{}, errors.Errorf("negative blink_speed %v", c.BlinkSpeed)
	}

	color, err := palette.Lookup(c.Color)
	if err != nil {
		return pattern.Pattern{}, err
	}

	duration := time.Duration(c.Duration)
	if duration == 0 {
		duration = pattern.DefaultDuration
	}

	interval := time.Duration(c.BlinkSpeed)
	if interval == 0 {
		interval = pattern.DefaultBlinkInterval
	}

	return pattern.New(color, duration, c.Blink, interval)
}

// ParseConfig parses a configuration from a reader and fills in defaults. It
// does not validate the configuration.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode TOML")
	}
	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Brightness == nil {
		b := DefaultBrightness
		c.Brightness = &b
	}
	if c.Tick == 0 {
		c.Tick = TOMLDuration(animation.DefaultPeriod)
	}
	if c.PollInterval == 0 {
		c.PollInterval = TOMLDuration(DefaultPollInterval)
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = metar.DefaultBaseURL
	}
	if c.Weather.Endpoint == "" {
		c.Weather.Endpoint = metar.DefaultEndpoint
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = TOMLDuration(metar.DefaultTimeout)
	}
	if c.Output.Kind == "" {
		c.Output.Kind = sink.LogKind
	}
	if c.Output.Baud == 0 {
		c.Output.Baud = DefaultBaud
	}
	for i, station := range c.Stations {
		c.Stations[i] = strings.ToUpper(strings.TrimSpace(station))
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.StationIDs()) == 0 {
		return errors.New("no stations configured")
	}
	if c.LEDs != 0 && c.LEDs < len(c.Stations) {
		return errors.Errorf("num_leds %d is less than the %d configured stations", c.LEDs, len(c.Stations))
	}
	if c.LEDs < 0 {
		return errors.Errorf("negative num_leds %d", c.LEDs)
	}

	if c.Brightness != nil && (*c.Brightness < 0 || *c.Brightness > 1) {
		return errors.Errorf("brightness %v is not within [0, 1]", *c.Brightness)
	}
	if c.Tick <= 0 {
		return errors.Errorf("tick %v is not positive", c.Tick)
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll_interval %v is not positive", c.PollInterval)
	}
	if c.Weather.Timeout < 0 {
		return errors.Errorf("negative weather timeout %v", c.Weather.Timeout)
	}
	if c.Weather.GustThreshold < 0 {
		return errors.Errorf("negative gust_threshold %v", c.Weather.GustThreshold)
	}

	if err := c.Output.Validate(); err != nil {
		return errors.Wrap(err, "output")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}

	if _, err := c.Resolver(); err != nil {
		return err
	}

	return nil
}

// Validate validates the output configuration.
func (c OutputConfig) Validate() error {
	switch c.Kind {
	case sink.SerialKind:
		if c.Device == "" {
			return errors.New("serial output needs a device")
		}
		if c.Baud < 0 {
			return errors.Errorf("negative baud rate %d", c.Baud)
		}
	case sink.LogKind, sink.NoneKind, "":
	default:
		return errors.Errorf("unknown output kind %q (known: %s)", c.Kind, sink.KindNames())
	}
	return nil
}

// NumLEDs returns the length of the LED strip.
func (c *Config) NumLEDs() int {
	if c.LEDs > len(c.Stations) {
		return c.LEDs
	}
	return len(c.Stations)
}

// StationIDs returns the distinct stations to fetch weather for, in the
// order they first appear on the strip.
func (c *Config) StationIDs() []string {
	seen := make(map[string]bool, len(c.Stations))
	ids := make([]string, 0, len(c.Stations))
	for _, station := range c.Stations {
		if station == "" || seen[station] {
			continue
		}
		seen[station] = true
		ids = append(ids, station)
	}
	return ids
}

// BrightnessValue returns the configured brightness or the default.
func (c *Config) BrightnessValue() float64 {
	if c.Brightness == nil {
		return DefaultBrightness
	}
	return *c.Brightness
}

// Palette returns the built-in palette extended with the configured colors.
func (c *Config) Palette() (led.Palette, error) {
	palette, err := led.DefaultPalette().Extend(c.Colors)
	if err != nil {
		return nil, errors.Wrap(err, "invalid colors")
	}
	return palette, nil
}

// Resolver builds the pattern resolver from the configured patterns. Keys
// naming an overlay condition become overlays; every other key is a flight
// category.
func (c *Config) Resolver() (*pattern.Resolver, error) {
	palette, err := c.Palette()
	if err != nil {
		return nil, err
	}

	categories := make(map[string]pattern.Pattern)
	overlays := make(map[pattern.Condition]pattern.Pattern)
	seen := make(map[string]string, len(c.Patterns))

	for key, pc := range c.Patterns {
		name := strings.ToUpper(key)
		if name == lightningAlias {
			name = string(pattern.Lightning)
		}
		if prev, dup := seen[name]; dup {
			return nil, errors.Errorf("patterns %s and %s both set %s", prev, key, name)
		}
		seen[name] = key

		p, err := pc.Pattern(palette)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %s", key)
		}

		if pattern.IsCondition(name) {
			overlays[pattern.Condition(name)] = p
		} else {
			categories[name] = p
		}
	}

	return pattern.NewResolver(categories, overlays), nil
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d TOMLDuration) String() string {
	return time.Duration(d).String()
}
