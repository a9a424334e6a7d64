package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"github.com/Haenisch/MIDI-over-LAN/errs"
)

var (
	midiMessageHeader = []byte{'M', 'I', 'D', 'I', Version, byte(PacketTypeMidiMessage)}
	helloHeader       = []byte{'M', 'I', 'D', 'I', Version, byte(PacketTypeHello)}
	helloReplyHeader  = []byte{'M', 'I', 'D', 'I', Version, byte(PacketTypeHelloReply)}
)

// helloCounter is the process-wide, ever-increasing Hello packet ID
// counter. It is shared across all callers within the process, matching
// the per-host monotonic ID scheme the wire format relies on for
// matching Hello/Hello-Reply pairs.
var helloCounter uint32

// NextHelloID returns the next value of the process-global Hello ID
// counter, starting at 0.
func NextHelloID() uint32 {
	return atomic.AddUint32(&helloCounter, 1) - 1
}

// EncodeMidi serializes a MIDI Message packet.
func EncodeMidi(m MidiMessage) []byte {
	var buf bytes.Buffer
	buf.Write(midiMessageHeader)
	name := truncateString(m.DeviceName, maxStringLen)
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.Write(m.MidiData)
	return buf.Bytes()
}

// EncodeHello serializes a Hello packet.
func EncodeHello(h Hello) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(helloHeader)
	writeUint32(&buf, h.ID)
	writePascalString(&buf, h.Hostname)
	if err := writeStringList(&buf, h.DeviceNames); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeHelloReply serializes a Hello Reply packet.
//
// It requires a non-nil RemoteIP carrying the original Hello sender's
// address; the ID must be the ID taken from that Hello packet.
func EncodeHelloReply(r HelloReply) ([]byte, error) {
	if r.RemoteIP == nil || r.RemoteIP.To4() == nil {
		return nil, fmt.Errorf("%w: hello reply requires an IPv4 remote address", errs.ErrInvalidPacket)
	}
	var buf bytes.Buffer
	buf.Write(helloReplyHeader)
	writeUint32(&buf, r.ID)
	buf.Write(r.RemoteIP.To4())
	writePascalString(&buf, r.Hostname)
	if err := writeStringList(&buf, r.DeviceNames); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writePascalString(buf *bytes.Buffer, s string) {
	t := truncateString(s, maxStringLen)
	buf.WriteByte(byte(len(t)))
	buf.WriteString(t)
}

func writeStringList(buf *bytes.Buffer, names []string) error {
	if len(names) > 255 {
		return fmt.Errorf("%w: too many device names (%d)", errs.ErrInvalidPacket, len(names))
	}
	buf.WriteByte(byte(len(names)))
	for _, n := range names {
		writePascalString(buf, n)
	}
	return nil
}

// truncateString trims s to at most maxLen bytes of UTF-8, backing off to
// the previous code point boundary rather than splitting one, matching
// the reference encoder's behavior.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	b := s[:maxLen]
	for len(b) > 0 && !utf8.ValidString(b) {
		b = b[:len(b)-1]
	}
	return b
}
