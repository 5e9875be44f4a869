// Package metarglow drives an LED map of airports from live METAR weather.
package metarglow

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/metarglow/internal/animation"
	"libdb.so/metarglow/internal/logging"
	"libdb.so/metarglow/internal/metar"
	"libdb.so/metarglow/internal/metrics"
	"libdb.so/metarglow/internal/pattern"
	"libdb.so/metarglow/internal/sink"
	"libdb.so/metarglow/internal/status"
)

// Assigner is the interface for types that take pattern sequences for
// channels. It is satisfied by *animation.Engine.
type Assigner interface {
	Assign(channel int, patterns []pattern.Pattern) error
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithFetcher replaces the METAR client built from the configuration.
func WithFetcher(f metar.Fetcher) DaemonOption {
	return func(d *Daemon) { d.fetcher = f }
}

// WithSink replaces the output sink built from the configuration. The daemon
// does not close a sink given this way.
func WithSink(s sink.Sink) DaemonOption {
	return func(d *Daemon) { d.sink = s }
}

// WithReady sets a function called once the animation engine is running.
func WithReady(f func()) DaemonOption {
	return func(d *Daemon) { d.ready = f }
}

// Daemon is the main metarglow daemon.
type Daemon struct {
	cfg      *Config
	logger   *slog.Logger
	resolver *pattern.Resolver
	fetcher  metar.Fetcher
	sink     sink.Sink
	ready    func()
}

// NewDaemon creates a new metarglow daemon.
func NewDaemon(cfg *Config, logger *slog.Logger, opts ...DaemonOption) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.fetcher == nil {
		d.fetcher = metar.NewClient(
			cfg.Weather.BaseURL,
			cfg.Weather.Endpoint,
			time.Duration(cfg.Weather.Timeout))
	}

	return d, nil
}

// Run starts the daemon. It blocks until the given context is canceled or
// the LED output fails, and turns every LED off before returning.
func (d *Daemon) Run(ctx context.Context) error {
	s := d.sink
	if s == nil {
		opened, err := sink.Open(sink.Options{
			Kind:   d.cfg.Output.Kind,
			Device: d.cfg.Output.Device,
			Baud:   d.cfg.Output.Baud,
		}, logging.Module(d.logger, "sink"))
		if err != nil {
			return errors.Wrap(err, "failed to open output")
		}
		if closer, ok := opened.(io.Closer); ok {
			defer closer.Close()
		}
		s = opened
	}

	engine, err := animation.New(
		d.cfg.NumLEDs(), d.cfg.BrightnessValue(), s,
		animation.WithPeriod(time.Duration(d.cfg.Tick)),
		animation.WithLogger(logging.Module(d.logger, "animation")))
	if err != nil {
		return errors.Wrap(err, "failed to start animation engine")
	}

	d.logger.Info(
		"animation engine started",
		"leds", d.cfg.NumLEDs(),
		"stations", len(d.cfg.StationIDs()))

	if d.ready != nil {
		d.ready()
	}

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-engine.Done():
			return errors.Wrap(engine.Err(), "animation engine failed")
		}
	})
	errg.Go(func() error {
		return d.pollLoop(ctx, engine)
	})
	if d.cfg.Status.Listen != "" {
		srv := status.NewServer(engine, d.cfg.Stations, logging.Module(d.logger, "status"))
		errg.Go(func() error {
			return srv.Run(ctx, d.cfg.Status.Listen)
		})
	}

	err = errg.Wait()

	d.logger.Debug("turning LEDs off")
	if stopErr := engine.Stop(); stopErr != nil && err == nil {
		err = errors.Wrap(stopErr, "failed to stop animation engine")
	}

	return err
}

func (d *Daemon) pollLoop(ctx context.Context, a Assigner) error {
	ticker := time.NewTicker(time.Duration(d.cfg.PollInterval))
	defer ticker.Stop()

	for {
		if err := d.Update(ctx, a); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// StationPatterns is the resolved weather of one LED.
type StationPatterns struct {
	Channel int
	Station string
	// Observation is nil if no observation was reported for the station.
	Observation *metar.Observation
	Patterns    []pattern.Pattern
}

// Resolve fetches the latest weather and resolves the patterns of every LED
// that shows a station. A failed fetch is returned along with results that
// have no observations.
func (d *Daemon) Resolve(ctx context.Context) ([]StationPatterns, error) {
	observations, fetchErr := d.fetcher.Fetch(ctx, d.cfg.StationIDs())
	if fetchErr != nil {
		metrics.IncFetch(metrics.FetchError)
		fetchErr = errors.Wrap(fetchErr, "failed to fetch weather")
	} else {
		metrics.IncFetch(metrics.FetchOK)
	}
	metrics.SetObservations(len(observations))

	byStation := metar.ByStation(observations)

	results := make([]StationPatterns, 0, len(d.cfg.Stations))
	for i, station := range d.cfg.Stations {
		if station == "" {
			continue
		}

		result := StationPatterns{
			Channel: i,
			Station: station,
		}

		if o, ok := byStation[strings.ToUpper(station)]; ok {
			result.Observation = &o
			result.Patterns = d.resolver.Resolve(
				strings.ToUpper(o.FlightCategory),
				o.Lightning(),
				o.Snowing(),
				o.Gusting(d.cfg.Weather.GustThreshold))
		}

		results = append(results, result)
	}

	return results, fetchErr
}

// Update runs one poll cycle: it fetches the weather and assigns the
// resolved patterns. LEDs whose station has no observation or no matching
// pattern keep their current animation. Only a stopped engine is an error.
func (d *Daemon) Update(ctx context.Context, a Assigner) error {
	results, err := d.Resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.Warn(
			"weather update failed, keeping current patterns",
			"error", err)
	}

	var assigned, skipped int
	for _, result := range results {
		if len(result.Patterns) == 0 {
			skipped++
			if result.Observation != nil {
				d.logger.Debug(
					"no pattern for station",
					"station", result.Station,
					"flight_category", result.Observation.FlightCategory)
			}
			continue
		}

		if err := a.Assign(result.Channel, result.Patterns); err != nil {
			if errors.Is(err, animation.ErrStopped) {
				return err
			}
			d.logger.Warn(
				"failed to assign patterns",
				"station", result.Station,
				"channel", result.Channel,
				"error", err)
			skipped++
			continue
		}
		assigned++
	}

	metrics.SetStationsSkipped(skipped)

	d.logger.Info(
		"weather updated",
		"assigned", assigned,
		"skipped", skipped)

	return nil
}
