package sink

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"libdb.so/metarglow/internal/led"
	"libdb.so/metarglow/ledserial"
)

// ErrControllerFailed is returned by CommitFrame once the controller has
// reported an error or panicked.
var ErrControllerFailed = errors.New("LED controller failed")

// Serial is a sink that drives a microcontroller speaking the ledserial
// protocol over a serial port.
type Serial struct {
	port   io.ReadWriteCloser
	logger *slog.Logger
	done   chan struct{}

	mu     sync.Mutex
	fault  error
	closed bool
}

var _ Sink = (*Serial)(nil)

// OpenSerial opens the serial device and starts reading controller packets.
func OpenSerial(device string, baud int, logger *slog.Logger) (*Serial, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to reset read timeout")
	}

	return newSerial(port, logger), nil
}

func newSerial(port io.ReadWriteCloser, logger *slog.Logger) *Serial {
	s := &Serial{
		port:   port,
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.readPackets()
	return s
}

// Configure sends the initialize packet.
func (s *Serial) Configure(numLEDs int, brightness float64) error {
	if numLEDs > math.MaxUint16 {
		return errors.Errorf("too many LEDs for the serial protocol: %d", numLEDs)
	}
	return s.writePacket(ledserial.InitializePacket{
		NumLEDs:    uint16(numLEDs),
		Brightness: ledserial.BrightnessByte(brightness),
	})
}

// CommitFrame sends the frame to the controller.
func (s *Serial) CommitFrame(leds led.LEDs) error {
	return s.writePacket(ledserial.SetPacket{
		Pix: leds.AsPixels(),
	})
}

// Close closes the serial port and waits for the reader to stop.
func (s *Serial) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("closing serial port")
	err := s.port.Close()
	<-s.done

	return errors.Wrap(err, "failed to close serial port")
}

func (s *Serial) writePacket(p ledserial.IncomingPacket) error {
	if err := s.err(); err != nil {
		return err
	}

	s.logger.Debug(
		"writing packet",
		"type", p.Type())

	if err := ledserial.WriteIncomingPacket(s.port, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	return nil
}

func (s *Serial) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("serial port closed")
	}
	return s.fault
}

func (s *Serial) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Serial) setFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fault == nil {
		s.fault = err
	}
}

func (s *Serial) readPackets() {
	defer close(s.done)

	for {
		p, err := ledserial.ReadOutgoingPacket(s.port)
		if err != nil {
			if s.isClosed() {
				return
			}
			// The port has no read timeout, so any error here means the
			// controller is gone.
			s.setFault(errors.Wrap(err, "failed to read packet"))
			return
		}

		switch p := p.(type) {
		case ledserial.AckPacket:
			s.logger.Debug(
				"received ack packet from controller",
				"acked_for", p.IncomingPacketType)

		case ledserial.LogPacket:
			s.logger.Info(
				"received log packet from controller",
				"message", p.Message)

		case ledserial.ErrorPacket:
			s.logger.Warn(
				"received error packet from controller",
				"message", p.Message)
			s.setFault(errors.Wrap(ErrControllerFailed, p.Message))

		case ledserial.PanicPacket:
			s.logger.Error(
				"controller unrecoverably panicked",
				"message", p.Message)
			s.setFault(errors.Wrap(ErrControllerFailed, "controller panicked: "+p.Message))
		}
	}
}
