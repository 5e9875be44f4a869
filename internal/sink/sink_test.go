package sink

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"libdb.so/metarglow/internal/led"
	"libdb.so/metarglow/ledserial"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen(t *testing.T) {
	logger := discardLogger()

	s, err := Open(Options{Kind: LogKind}, logger)
	if err != nil {
		t.Fatalf("Open(log) error: %v", err)
	}
	if _, ok := s.(*Log); !ok {
		t.Errorf("Open(log) = %T, want *Log", s)
	}

	s, err = Open(Options{Kind: NoneKind}, logger)
	if err != nil {
		t.Fatalf("Open(none) error: %v", err)
	}
	if _, ok := s.(Discard); !ok {
		t.Errorf("Open(none) = %T, want Discard", s)
	}

	_, err = Open(Options{Kind: "fadecandy"}, logger)
	if err == nil {
		t.Fatal("Open() accepted an unknown kind")
	}
	if !strings.Contains(err.Error(), "serial, log, none") {
		t.Errorf("Open() error = %v, want the known kinds listed", err)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if err := l.Configure(2, 0.5); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}

	frame := led.LEDs{led.RGB(1, 2, 3), led.Off}
	if err := l.CommitFrame(frame); err != nil {
		t.Fatalf("CommitFrame() error: %v", err)
	}

	frame[0] = led.Off
	if !l.last.Equal(led.LEDs{led.RGB(1, 2, 3), led.Off}) {
		t.Error("log sink retained the caller's frame")
	}

	out := buf.String()
	for _, want := range []string{"brightness=0.5", "#010203 #000000"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestSerialSink(t *testing.T) {
	host, device := net.Pipe()
	defer device.Close()

	s := newSerial(host, discardLogger())
	defer s.Close()

	incoming := make(chan ledserial.IncomingPacket)
	readErrs := make(chan error, 1)
	go func() {
		ctx := ledserial.ReadContext{}
		for {
			p, err := ledserial.ReadIncomingPacket(device, ctx)
			if err != nil {
				readErrs <- err
				return
			}
			if init, ok := p.(ledserial.InitializePacket); ok {
				ctx.NumLEDs = init.NumLEDs
			}
			incoming <- p
		}
	}()

	go func() {
		if err := s.Configure(2, 0.5); err != nil {
			t.Errorf("Configure() error: %v", err)
		}
		if err := s.CommitFrame(led.LEDs{led.RGB(1, 2, 3), led.RGB(4, 5, 6)}); err != nil {
			t.Errorf("CommitFrame() error: %v", err)
		}
	}()

	want := []ledserial.IncomingPacket{
		ledserial.InitializePacket{NumLEDs: 2, Brightness: 128},
		ledserial.SetPacket{Pix: []uint8{1, 2, 3, 4, 5, 6}},
	}
	for _, w := range want {
		select {
		case p := <-incoming:
			switch p := p.(type) {
			case ledserial.InitializePacket:
				if p != w {
					t.Errorf("got %#v, want %#v", p, w)
				}
			case ledserial.SetPacket:
				if string(p.Pix) != string(w.(ledserial.SetPacket).Pix) {
					t.Errorf("got pixels %v, want %v", p.Pix, w.(ledserial.SetPacket).Pix)
				}
			default:
				t.Errorf("unexpected packet %#v", p)
			}
		case err := <-readErrs:
			t.Fatalf("device failed to read packet: %v", err)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for packet")
		}
	}

	// The controller reports an error; the next frame must fail.
	if err := ledserial.WriteOutgoingPacket(device, ledserial.ErrorPacket{Message: "bad frame"}); err != nil {
		t.Fatalf("failed to write error packet: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for s.err() == nil {
		if time.Now().After(deadline) {
			t.Fatal("serial sink did not record the controller error")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.CommitFrame(led.LEDs{led.Off, led.Off}); !errors.Is(err, ErrControllerFailed) {
		t.Errorf("CommitFrame() after controller error = %v, want %v", err, ErrControllerFailed)
	}
}
