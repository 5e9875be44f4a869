package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Level: "debug", Format: "json"}).Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if err := (Config{Format: "xml"}).Validate(); err == nil {
		t.Error("Validate() accepted an unknown format")
	}
	if err := (Config{Level: "chatty"}).Validate(); err == nil {
		t.Error("Validate() accepted an unknown level")
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := Module(New(Config{Level: "warn"}, &buf), "engine")

	logger.Info("hidden")
	logger.Warn("shown", "channel", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record logged at warn level: %q", out)
	}
	for _, want := range []string{"msg=shown", "module=engine", "channel=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "debug", Format: "json"}, &buf).Debug("frame", "leds", 12)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if record["msg"] != "frame" || record["leds"] != float64(12) {
		t.Errorf("record = %v", record)
	}
}

func TestMultiHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false with a debug handler present")
	}

	logger := slog.New(h).With("module", "sink")
	logger.Debug("quiet")
	logger.Warn("loud")

	if !strings.Contains(debug.String(), "quiet") || !strings.Contains(debug.String(), "loud") {
		t.Errorf("debug handler output = %q", debug.String())
	}
	if strings.Contains(warn.String(), "quiet") || !strings.Contains(warn.String(), "module=sink") {
		t.Errorf("warn handler output = %q", warn.String())
	}
}

func TestJournalFields(t *testing.T) {
	fields := make(map[string]string)
	addField(fields, slog.String("station-id", "KDEN"), nil)
	addField(fields, slog.Group("fetch", slog.Int("count", 3), slog.Float64("took", 0.25)), []string{"weather"})
	addField(fields, slog.Attr{}, nil)

	want := map[string]string{
		"STATION_ID":          "KDEN",
		"WEATHER_FETCH_COUNT": "3",
		"WEATHER_FETCH_TOOK":  "0.25",
	}
	if len(fields) != len(want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestJournalPriority(t *testing.T) {
	if journalPriority(slog.LevelError) >= journalPriority(slog.LevelWarn) {
		t.Error("error priority is not more urgent than warn")
	}
	if journalPriority(slog.LevelDebug) <= journalPriority(slog.LevelInfo) {
		t.Error("debug priority is not less urgent than info")
	}
}
