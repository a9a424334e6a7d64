// Package protocol implements the MIDI over LAN wire format: encoding and
// decoding of the three packet variants multicast between peers.
//
// Packet layout:
//
//	+------------------+---------------------------+
//	| Header (6 bytes) | Payload (variable length) |
//	+------------------+---------------------------+
//
//	+-----------------------+------------------+----------------------+
//	| Header mark (4 bytes) | Version (1 byte) | Packet type (1 byte) |
//	+-----------------------+------------------+----------------------+
//
// The header mark is the ASCII string "MIDI". The current version is 1.
// Packet type 0 is a MIDI message, 1 is a Hello, 2 is a Hello Reply.
//
// See https://github.com/Haenisch/MIDI-over-LAN for the reference
// implementation this wire format is shared with.
package protocol

import "net"

// Version is the only protocol version this package understands. Any other
// version byte in a received header is rejected as ErrInvalidPacket.
const Version = 1

// MulticastGroup and MulticastPort are the well-known multicast rendezvous
// point all MIDI over LAN peers send to and listen on.
const (
	MulticastGroup = "239.0.3.250"
	MulticastPort  = 56129
)

// PacketType identifies which of the three packet variants a buffer holds.
type PacketType byte

const (
	PacketTypeMidiMessage PacketType = 0
	PacketTypeHello       PacketType = 1
	PacketTypeHelloReply  PacketType = 2
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeMidiMessage:
		return "MIDI Message"
	case PacketTypeHello:
		return "Hello"
	case PacketTypeHelloReply:
		return "Hello Reply"
	default:
		return "Unknown"
	}
}

const (
	headerLength  = 6
	maxStringLen  = 64
	versionIndex  = 4
	packetTypeIdx = 5
)

var headerMark = [4]byte{'M', 'I', 'D', 'I'}

// MidiMessage carries a single MIDI event originating from a named device.
type MidiMessage struct {
	DeviceName string
	MidiData   []byte
}

// Hello announces a host's presence and the devices it publishes.
type Hello struct {
	ID          uint32
	Hostname    string
	DeviceNames []string
}

// HelloReply answers a Hello, echoing its ID and the original sender's IP so
// the sender can compute round-trip time even though both packets were
// multicast.
type HelloReply struct {
	ID          uint32
	RemoteIP    net.IP
	Hostname    string
	DeviceNames []string
}

// Packet is the tagged union of the three wire variants. Exactly one of the
// pointer fields is non-nil.
type Packet struct {
	Type       PacketType
	Midi       *MidiMessage
	Hello      *Hello
	HelloReply *HelloReply
}
