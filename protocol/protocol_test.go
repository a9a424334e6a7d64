package protocol

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMidiMessageRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringN(0, 64, 64).Draw(t, "name")
		data := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "midiData")

		encoded := EncodeMidi(MidiMessage{DeviceName: name, MidiData: data})
		packet, err := Decode(encoded)

		require.NoError(t, err)
		require.Equal(t, PacketTypeMidiMessage, packet.Type)
		assert.Equal(t, name, packet.Midi.DeviceName)
		assert.Equal(t, data, packet.Midi.MidiData)
	})
}

func TestHelloRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.Uint32().Draw(t, "id")
		hostname := rapid.StringN(0, 64, 64).Draw(t, "hostname")
		n := rapid.IntRange(0, 5).Draw(t, "n")
		names := make([]string, n)
		for i := range names {
			names[i] = rapid.StringN(0, 64, 64).Draw(t, "device")
		}

		encoded, err := EncodeHello(Hello{ID: id, Hostname: hostname, DeviceNames: names})
		require.NoError(t, err)

		packet, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, PacketTypeHello, packet.Type)
		assert.Equal(t, id, packet.Hello.ID)
		assert.Equal(t, hostname, packet.Hello.Hostname)
		assert.Equal(t, names, packet.Hello.DeviceNames)
	})
}

func TestHelloReplyRoundTrip(t *testing.T) {
	encoded, err := EncodeHelloReply(HelloReply{
		ID:          42,
		RemoteIP:    net.IPv4(192, 168, 0, 71),
		Hostname:    "studio-mac",
		DeviceNames: []string{"MIDI Keyboard", "MIDI Drum Kit"},
	})
	require.NoError(t, err)

	packet, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, PacketTypeHelloReply, packet.Type)
	assert.EqualValues(t, 42, packet.HelloReply.ID)
	assert.True(t, packet.HelloReply.RemoteIP.Equal(net.IPv4(192, 168, 0, 71)))
	assert.Equal(t, "studio-mac", packet.HelloReply.Hostname)
	assert.Equal(t, []string{"MIDI Keyboard", "MIDI Drum Kit"}, packet.HelloReply.DeviceNames)
}

func TestHelloReplyRequiresRemoteIP(t *testing.T) {
	_, err := EncodeHelloReply(HelloReply{ID: 1, Hostname: "host"})
	assert.Error(t, err)
}

func TestDecodeShortBufferFallsBackToRawMidi(t *testing.T) {
	packet, err := Decode([]byte{0x90, 0x3c, 0x40})
	require.NoError(t, err)
	require.Equal(t, PacketTypeMidiMessage, packet.Type)
	assert.Equal(t, "unknown", packet.Midi.DeviceName)
	assert.Equal(t, []byte{0x90, 0x3c, 0x40}, packet.Midi.MidiData)
}

func TestDecodeNonMidiPrefixFallsBackToRawMidi(t *testing.T) {
	packet, err := Decode([]byte("NOTAMIDIPACKET"))
	require.NoError(t, err)
	require.Equal(t, PacketTypeMidiMessage, packet.Type)
	assert.Equal(t, "unknown", packet.Midi.DeviceName)
}

func TestDecodeWrongVersionIsRejected(t *testing.T) {
	data := []byte{'M', 'I', 'D', 'I', 2, 0, 0}
	_, err := Decode(data)
	assert.Error(t, err)
}

func TestDecodeUnknownTypeIsRejected(t *testing.T) {
	data := []byte{'M', 'I', 'D', 'I', Version, 9}
	_, err := Decode(data)
	assert.Error(t, err)
}

func TestDecodeTruncatedMidiMessageIsRejected(t *testing.T) {
	data := append(append([]byte{}, midiMessageHeader...), 10) // claims 10-byte name, nothing follows
	_, err := Decode(data)
	assert.Error(t, err)
}

func TestNextHelloIDIsMonotonic(t *testing.T) {
	first := NextHelloID()
	second := NextHelloID()
	assert.Equal(t, first+1, second)
}

func TestTruncateStringStopsOnRuneBoundary(t *testing.T) {
	// "é" is 2 bytes in UTF-8; force a cut that would split it.
	s := "aé"
	got := truncateString(s, 2)
	assert.True(t, len(got) <= 2)
	for _, r := range got {
		assert.NotEqual(t, rune(0xFFFD), r)
	}
}

func TestEncodeMidiTruncatesLongDeviceName(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	encoded := EncodeMidi(MidiMessage{DeviceName: string(long), MidiData: []byte{0x90}})
	packet, err := Decode(encoded)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(packet.Midi.DeviceName), 64)
}
