package protocol

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/Haenisch/MIDI-over-LAN/errs"
)

// Decode parses a received UDP datagram into a Packet.
//
// Any buffer shorter than the 6-byte header, or not starting with the
// "MIDI" mark, is treated as raw MIDI data from an unknown source rather
// than rejected — this lets the same multicast group carry plain MIDI
// bytes from senders that don't speak the Hello/Hello-Reply side of the
// protocol.
func Decode(data []byte) (Packet, error) {
	if len(data) < headerLength || string(data[:4]) != string(headerMark[:]) {
		return Packet{Type: PacketTypeMidiMessage, Midi: &MidiMessage{DeviceName: "unknown", MidiData: append([]byte(nil), data...)}}, nil
	}

	if data[versionIndex] != Version {
		return Packet{}, fmt.Errorf("%w: version %d", errs.ErrInvalidPacket, data[versionIndex])
	}

	p := &parser{data: data, pos: headerLength}
	switch PacketType(data[packetTypeIdx]) {
	case PacketTypeMidiMessage:
		return decodeMidiMessage(data)
	case PacketTypeHello:
		return decodeHello(p)
	case PacketTypeHelloReply:
		return decodeHelloReply(p)
	default:
		return Packet{}, fmt.Errorf("%w: unknown packet type %d", errs.ErrInvalidPacket, data[packetTypeIdx])
	}
}

// decodeMidiMessage handles the MIDI Message variant directly, since unlike
// Hello/HelloReply its trailing MIDI data is not itself length-prefixed —
// it simply runs to the end of the datagram.
func decodeMidiMessage(data []byte) (Packet, error) {
	if len(data) < headerLength+1 {
		return Packet{}, fmt.Errorf("%w: truncated MIDI message packet", errs.ErrInvalidPacket)
	}
	nameLen := int(data[headerLength])
	start := headerLength + 1
	end := start + nameLen
	if end > len(data) {
		return Packet{}, fmt.Errorf("%w: device name exceeds packet length", errs.ErrInvalidPacket)
	}
	name := decodeString(data[start:end])
	midiData := append([]byte(nil), data[end:]...)
	return Packet{Type: PacketTypeMidiMessage, Midi: &MidiMessage{DeviceName: name, MidiData: midiData}}, nil
}

func decodeHello(p *parser) (Packet, error) {
	id, err := p.readUint32()
	if err != nil {
		return Packet{}, err
	}
	hostname, err := p.readString()
	if err != nil {
		return Packet{}, err
	}
	names, err := p.readStringList()
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: PacketTypeHello, Hello: &Hello{ID: id, Hostname: hostname, DeviceNames: names}}, nil
}

func decodeHelloReply(p *parser) (Packet, error) {
	id, err := p.readUint32()
	if err != nil {
		return Packet{}, err
	}
	ip, err := p.readIPv4()
	if err != nil {
		return Packet{}, err
	}
	hostname, err := p.readString()
	if err != nil {
		return Packet{}, err
	}
	names, err := p.readStringList()
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: PacketTypeHelloReply, HelloReply: &HelloReply{ID: id, RemoteIP: ip, Hostname: hostname, DeviceNames: names}}, nil
}

// parser walks a validated MIDI over LAN payload field by field, tracking
// the current read position. It mirrors the Python reference's Parser
// class: callers must invoke the read* methods in wire order.
type parser struct {
	data []byte
	pos  int
}

func (p *parser) read(n int) ([]byte, error) {
	if p.pos+n > len(p.data) {
		return nil, fmt.Errorf("%w: not enough data to read %d bytes", errs.ErrInvalidPacket, n)
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *parser) readUint32() (uint32, error) {
	b, err := p.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (p *parser) readIPv4() (net.IP, error) {
	b, err := p.read(4)
	if err != nil {
		return nil, err
	}
	return net.IPv4(b[0], b[1], b[2], b[3]), nil
}

func (p *parser) readString() (string, error) {
	lenByte, err := p.read(1)
	if err != nil {
		return "", err
	}
	b, err := p.read(int(lenByte[0]))
	if err != nil {
		return "", err
	}
	return decodeString(b), nil
}

func (p *parser) readStringList() ([]string, error) {
	countByte, err := p.read(1)
	if err != nil {
		return nil, err
	}
	count := int(countByte[0])
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		s, err := p.readString()
		if err != nil {
			return nil, err
		}
		names = append(names, s)
	}
	return names, nil
}

// decodeString converts a raw field to UTF-8, stripping trailing NUL
// padding and dropping an invalid trailing byte sequence rather than
// failing the whole packet, matching the reference decoder's leniency.
func decodeString(b []byte) string {
	trimmed := strings.TrimRight(string(b), "\x00")
	if utf8.ValidString(trimmed) {
		return trimmed
	}
	v := make([]rune, 0, len(trimmed))
	for _, r := range trimmed {
		if r != utf8.RuneError {
			v = append(v, r)
		}
	}
	return string(v)
}
