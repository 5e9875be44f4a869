package metarglow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"libdb.so/metarglow/internal/animation"
	"libdb.so/metarglow/internal/led"
	"libdb.so/metarglow/internal/metar"
	"libdb.so/metarglow/internal/pattern"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	mu           sync.Mutex
	observations []metar.Observation
	err          error
	calls        int
	ids          []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, ids []string) ([]metar.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.ids = append([]string(nil), ids...)
	if f.err != nil {
		return []metar.Observation{}, f.err
	}
	return f.observations, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type assignment struct {
	channel  int
	patterns []pattern.Pattern
}

type recordingAssigner struct {
	assignments []assignment
	err         error
}

func (a *recordingAssigner) Assign(channel int, patterns []pattern.Pattern) error {
	if a.err != nil {
		return a.err
	}
	a.assignments = append(a.assignments, assignment{channel, patterns})
	return nil
}

type frameSink struct {
	mu     sync.Mutex
	frames []led.LEDs
}

func (s *frameSink) Configure(int, float64) error { return nil }

func (s *frameSink) CommitFrame(leds led.LEDs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, leds.Clone())
	return nil
}

func (s *frameSink) last() led.LEDs {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func gust(v float64) *float64 { return &v }

var testObservations = []metar.Observation{
	{ICAO: "KDEN", FlightCategory: "MVFR", Raw: "KDEN 121853Z 34018G28KT LTG DSNT W", WindGust: gust(28)},
	{ICAO: "PANC", FlightCategory: "UNKNOWN"},
	{ICAO: "KSFO", FlightCategory: "vfr"},
}

func newTestDaemon(t *testing.T, f metar.Fetcher, opts ...DaemonOption) *Daemon {
	t.Helper()
	opts = append([]DaemonOption{WithFetcher(f)}, opts...)
	d, err := NewDaemon(mustParse(t, testConfig), discardLogger(), opts...)
	if err != nil {
		t.Fatalf("NewDaemon() error: %v", err)
	}
	return d
}

func TestDaemonUpdate(t *testing.T) {
	f := &fakeFetcher{observations: testObservations}
	d := newTestDaemon(t, f)

	a := &recordingAssigner{}
	if err := d.Update(context.Background(), a); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	if want := "KDEN,KSFO,PANC"; joinIDs(f.ids) != want {
		t.Errorf("fetched %q, want %q", f.ids, want)
	}

	// KDEN appears twice on the strip. PANC has no pattern for its category.
	got := make(map[int]int)
	for _, as := range a.assignments {
		got[as.channel] = len(as.patterns)
	}
	want := map[int]int{
		0: 3, // MVFR, lightning, gusts
		1: 1, // VFR
		3: 3,
	}
	if len(got) != len(want) {
		t.Fatalf("assigned channels %v, want %v", got, want)
	}
	for channel, n := range want {
		if got[channel] != n {
			t.Errorf("channel %d got %d patterns, want %d", channel, got[channel], n)
		}
	}
}

func joinIDs(ids []string) string {
	var s string
	for i, id := range ids {
		if i > 0 {
			s += ","
		}
		s += id
	}
	return s
}

func TestDaemonUpdateFetchFailure(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	d := newTestDaemon(t, f)

	a := &recordingAssigner{}
	if err := d.Update(context.Background(), a); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if len(a.assignments) != 0 {
		t.Errorf("assigned %d channels without weather", len(a.assignments))
	}
}

func TestDaemonUpdateStoppedEngine(t *testing.T) {
	d := newTestDaemon(t, &fakeFetcher{observations: testObservations})

	a := &recordingAssigner{err: animation.ErrStopped}
	if err := d.Update(context.Background(), a); !errors.Is(err, animation.ErrStopped) {
		t.Errorf("Update() error = %v, want %v", err, animation.ErrStopped)
	}
}

func TestDaemonResolve(t *testing.T) {
	d := newTestDaemon(t, &fakeFetcher{observations: testObservations[:1]})

	results, err := d.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// One result per LED showing a station.
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for _, r := range results {
		switch r.Station {
		case "KDEN":
			if r.Observation == nil || len(r.Patterns) != 3 {
				t.Errorf("KDEN result = %+v", r)
			}
		default:
			if r.Observation != nil || len(r.Patterns) != 0 {
				t.Errorf("%s has weather it was not given: %+v", r.Station, r)
			}
		}
	}
}

func TestDaemonRun(t *testing.T) {
	f := &fakeFetcher{observations: testObservations}
	s := &frameSink{}

	ready := make(chan struct{})
	d := newTestDaemon(t, f, WithSink(s), WithReady(func() { close(ready) }))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon never became ready")
	}

	blue := led.RGB(0, 0, 255)
	green := led.RGB(0, 255, 0)
	deadline := time.Now().Add(2 * time.Second)
	for {
		frame := s.last()
		if frame != nil && frame[0] == blue && frame[1] == green {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("weather never reached the LEDs, last frame %v", frame)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if f.callCount() != 1 {
		t.Errorf("fetched %d times, want one immediate fetch", f.callCount())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if frame := s.last(); !frame.Equal(led.NewLEDs(8)) {
		t.Errorf("final frame = %v, want all off", frame)
	}
}

type failingSink struct{ frameSink }

func (s *failingSink) CommitFrame(led.LEDs) error {
	return errors.New("controller unplugged")
}

func TestDaemonRunSinkFailure(t *testing.T) {
	d := newTestDaemon(t, &fakeFetcher{}, WithSink(&failingSink{}))

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want the sink failure", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() kept going after the sink failed")
	}
}

func TestNewDaemonInvalidConfig(t *testing.T) {
	if _, err := NewDaemon(mustParse(t, `stations = []`), discardLogger()); err == nil {
		t.Error("NewDaemon() accepted an invalid configuration")
	}
}
