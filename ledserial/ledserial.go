// Package ledserial implements the LED serial protocol spoken between the
// daemon and the microcontroller driving the strip.
//
// Every packet starts with a one-byte type, followed by the packet body and a
// little-endian CRC32 (IEEE) of the type and body.
package ledserial

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Endianness defines the endianness of the protocol.
var Endianness = binary.LittleEndian

// ErrChecksum is returned when a packet's checksum does not match its
// contents.
var ErrChecksum = errors.New("packet checksum mismatch")

// IncomingPacketType is the type of a packet sent to the controller.
type IncomingPacketType uint8

const (
	TypeInitializePacket IncomingPacketType = iota
	TypeClearPacket
	TypeSetPacket
)

// String returns a string representation of the packet type.
func (t IncomingPacketType) String() string {
	switch t {
	case TypeInitializePacket:
		return "initialize"
	case TypeClearPacket:
		return "clear"
	case TypeSetPacket:
		return "set"
	default:
		return fmt.Sprintf("IncomingPacketType(%d)", t)
	}
}

// IncomingPacket is a packet sent to the controller.
type IncomingPacket interface {
	// Type returns the type of packet.
	Type() IncomingPacketType
}

// InitializePacket tells the controller how many LEDs the strip has and how
// bright they should be.
type InitializePacket struct {
	NumLEDs    uint16
	Brightness uint8
}

// ClearPacket turns every LED off.
type ClearPacket struct{}

// SetPacket sets the strip to the given colors, three bytes per LED.
type SetPacket struct {
	Pix []uint8
}

func (p InitializePacket) Type() IncomingPacketType { return TypeInitializePacket }
func (p ClearPacket) Type() IncomingPacketType      { return TypeClearPacket }
func (p SetPacket) Type() IncomingPacketType        { return TypeSetPacket }

// OutgoingPacketType is the type of a packet sent by the controller.
type OutgoingPacketType uint8

const (
	TypeAckPacket OutgoingPacketType = iota
	TypeErrorPacket
	TypePanicPacket
	TypeLogPacket
)

// String returns a string representation of the packet type.
func (t OutgoingPacketType) String() string {
	switch t {
	case TypeAckPacket:
		return "ack"
	case TypeErrorPacket:
		return "error"
	case TypePanicPacket:
		return "panic"
	case TypeLogPacket:
		return "log"
	default:
		return fmt.Sprintf("OutgoingPacketType(%d)", t)
	}
}

// OutgoingPacket is a packet sent by the controller.
type OutgoingPacket interface {
	// Type returns the type of packet.
	Type() OutgoingPacketType
}

// AckPacket acknowledges an incoming packet.
type AckPacket struct {
	IncomingPacketType IncomingPacketType
}

// ErrorPacket is a packet that indicates an error occurred.
type ErrorPacket struct {
	Message string
}

// PanicPacket is a packet that indicates the controller cannot recover.
type PanicPacket struct {
	Message string
}

// LogPacket is a packet that contains a log message.
type LogPacket struct {
	Message string
}

func (p AckPacket) Type() OutgoingPacketType   { return TypeAckPacket }
func (p ErrorPacket) Type() OutgoingPacketType { return TypeErrorPacket }
func (p PanicPacket) Type() OutgoingPacketType { return TypePanicPacket }
func (p LogPacket) Type() OutgoingPacketType   { return TypeLogPacket }

// ReadContext is the state of the LED strip. Data in this structure are
// required for the device to read incoming packets.
type ReadContext struct {
	// NumLEDs is the number of LEDs in the strip.
	NumLEDs uint16
}

// BrightnessByte converts a brightness in [0, 1] to its wire value.
func BrightnessByte(brightness float64) uint8 {
	switch {
	case brightness <= 0:
		return 0
	case brightness >= 1:
		return math.MaxUint8
	default:
		return uint8(math.Round(brightness * math.MaxUint8))
	}
}

// ReadIncomingPacket reads an incoming packet from the given reader.
func ReadIncomingPacket(r io.Reader, context ReadContext) (IncomingPacket, error) {
	hash := crc32.NewIEEE()
	body := io.TeeReader(r, hash)

	var ptypeBuf [1]byte
	if _, err := io.ReadFull(body, ptypeBuf[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read incoming packet type")
	}

	var packet IncomingPacket

	switch ptype := IncomingPacketType(ptypeBuf[0]); ptype {
	case TypeInitializePacket:
		var p InitializePacket
		if err := binary.Read(body, Endianness, &p); err != nil {
			return nil, errors.Wrap(err, "failed to read initialize packet")
		}
		packet = p

	case TypeClearPacket:
		packet = ClearPacket{}

	case TypeSetPacket:
		p := SetPacket{Pix: make([]uint8, 3*int(context.NumLEDs))}
		if _, err := io.ReadFull(body, p.Pix); err != nil {
			return nil, errors.Wrap(err, "failed to read pixel data")
		}
		packet = p

	default:
		return nil, errors.Errorf("unknown packet type: %s", ptype)
	}

	if err := readChecksum(r, hash); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteIncomingPacket writes an incoming packet to the given writer.
func WriteIncomingPacket(w io.Writer, p IncomingPacket) error {
	hash := crc32.NewIEEE()
	body := io.MultiWriter(w, hash)

	if err := binary.Write(body, Endianness, p.Type()); err != nil {
		return errors.Wrap(err, "failed to write packet type")
	}

	switch p := p.(type) {
	case InitializePacket:
		if err := binary.Write(body, Endianness, p); err != nil {
			return errors.Wrap(err, "failed to write initialize packet")
		}
	case ClearPacket:
	case SetPacket:
		if _, err := body.Write(p.Pix); err != nil {
			return errors.Wrap(err, "failed to write pixel data")
		}
	default:
		return errors.Errorf("unknown packet type: %T", p)
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return errors.Wrap(err, "failed to write packet checksum")
	}

	return nil
}

// ReadOutgoingPacket reads an outgoing packet from the given reader.
func ReadOutgoingPacket(r io.Reader) (OutgoingPacket, error) {
	hash := crc32.NewIEEE()
	body := io.TeeReader(r, hash)

	var ptypeBuf [1]byte
	if _, err := io.ReadFull(body, ptypeBuf[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read outgoing packet type")
	}

	var packet OutgoingPacket

	switch ptype := OutgoingPacketType(ptypeBuf[0]); ptype {
	case TypeAckPacket:
		var p AckPacket
		if err := binary.Read(body, Endianness, &p.IncomingPacketType); err != nil {
			return nil, errors.Wrap(err, "failed to read acked packet type")
		}
		packet = p

	case TypeErrorPacket:
		msg, err := readMessage(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read error message")
		}
		packet = ErrorPacket{Message: msg}

	case TypePanicPacket:
		msg, err := readMessage(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read panic message")
		}
		packet = PanicPacket{Message: msg}

	case TypeLogPacket:
		msg, err := readMessage(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read log message")
		}
		packet = LogPacket{Message: msg}

	default:
		return nil, errors.Errorf("unknown packet type: %s", ptype)
	}

	if err := readChecksum(r, hash); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteOutgoingPacket writes an outgoing packet to the given writer.
func WriteOutgoingPacket(w io.Writer, p OutgoingPacket) error {
	hash := crc32.NewIEEE()
	body := io.MultiWriter(w, hash)

	if err := binary.Write(body, Endianness, p.Type()); err != nil {
		return errors.Wrap(err, "failed to write packet type")
	}

	var err error
	switch p := p.(type) {
	case AckPacket:
		err = binary.Write(body, Endianness, p.IncomingPacketType)
	case ErrorPacket:
		err = writeMessage(body, p.Message)
	case PanicPacket:
		err = writeMessage(body, p.Message)
	case LogPacket:
		err = writeMessage(body, p.Message)
	default:
		return errors.Errorf("unknown packet type: %T", p)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return errors.Wrap(err, "failed to write packet checksum")
	}

	return nil
}

// readChecksum reads the trailing checksum from r, bypassing the hash.
func readChecksum(r io.Reader, hash hash.Hash32) error {
	var checksum uint32
	if err := binary.Read(r, Endianness, &checksum); err != nil {
		return errors.Wrap(err, "failed to read packet checksum")
	}
	if checksum != hash.Sum32() {
		return ErrChecksum
	}
	return nil
}

func readMessage(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, Endianness, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeMessage(w io.Writer, msg string) error {
	if len(msg) > math.MaxUint16 {
		msg = msg[:math.MaxUint16]
	}
	if err := binary.Write(w, Endianness, uint16(len(msg))); err != nil {
		return err
	}
	_, err := io.WriteString(w, msg)
	return err
}
