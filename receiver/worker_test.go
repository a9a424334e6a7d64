package receiver

import (
	"net"
	"testing"
	"time"

	"github.com/Haenisch/MIDI-over-LAN/control"
	"github.com/Haenisch/MIDI-over-LAN/internal/logging"
	"github.com/Haenisch/MIDI-over-LAN/protocol"
	"github.com/stretchr/testify/require"
)

// fakeOutputPort is a test double for outputPort, recording every Send.
type fakeOutputPort struct {
	sent   [][]byte
	closed bool
}

func (f *fakeOutputPort) Send(data []byte) error {
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeOutputPort) Close() error {
	f.closed = true
	return nil
}

func newTestWorker() (*Worker, *control.InfoQueue, *control.InfoQueue, *control.InfoQueue) {
	toSender := control.NewInfoQueue()
	fromSender := control.NewInfoQueue()
	ui := control.NewInfoQueue()
	w := New(control.NewCommandQueue(), toSender, fromSender, ui, logging.New("receiver-test"))
	return w, toSender, fromSender, ui
}

func TestProcessHelloForwardsAndSubstitutesUnknownHostname(t *testing.T) {
	w, toSender, _, _ := newTestWorker()

	w.processHello(&protocol.Hello{ID: 5, Hostname: "unknown", DeviceNames: []string{"Keyboard"}}, "192.168.1.30")

	msg, ok := toSender.TryReceive()
	require.True(t, ok)
	require.Equal(t, control.ReceivedHelloPacket, msg.Info)
	data := msg.Data.(control.ReceivedHelloPacketData)
	require.Equal(t, uint32(5), data.ID)
	require.Equal(t, "192.168.1.30", data.RemoteIP)

	require.Equal(t, []string{"Keyboard"}, w.devices.snapshot()["192.168.1.30"])
}

func TestProcessHelloKeepsKnownHostname(t *testing.T) {
	w, _, _, _ := newTestWorker()
	w.processHello(&protocol.Hello{ID: 1, Hostname: "studio-mac", DeviceNames: []string{"Pads"}}, "192.168.1.30")
	require.Equal(t, []string{"Pads"}, w.devices.snapshot()["studio-mac"])
}

func TestProcessHelloReplyDropsOnInterfaceMismatch(t *testing.T) {
	w, _, _, _ := newTestWorker()
	w.iface = "192.168.1.20"
	w.ledger.store(9, time.Now())

	w.processHelloReply(&protocol.HelloReply{ID: 9, RemoteIP: net.ParseIP("10.0.0.1"), Hostname: "other"}, "10.0.0.5")

	// Still present: mismatched reply must not consume the ledger entry.
	_, ok := w.ledger.take(9)
	require.True(t, ok)
}

func TestProcessHelloReplyRecordsRTTOnMatch(t *testing.T) {
	w, _, _, ui := newTestWorker()
	w.iface = "192.168.1.20"
	sentAt := time.Now().Add(-10 * time.Millisecond)
	w.ledger.store(9, sentAt)

	w.processHelloReply(&protocol.HelloReply{
		ID:          9,
		RemoteIP:    net.ParseIP("192.168.1.20"),
		Hostname:    "other-host",
		DeviceNames: []string{"Synth"},
	}, "192.168.1.30")

	// RTT is keyed by the replying peer's own address (the datagram's
	// source), not by RemoteIP, which echoes back this host's address.
	samples := w.rtts.snapshot()["192.168.1.30"]
	require.Len(t, samples, 1)
	require.Greater(t, samples[0], 0.0)
	require.Empty(t, w.rtts.snapshot()["192.168.1.20"])

	msg, ok := ui.TryReceive()
	require.True(t, ok)
	require.Equal(t, control.RoundTripTimes, msg.Info)

	require.Equal(t, []string{"Synth"}, w.devices.snapshot()["other-host"])
}

func TestProcessHelloReplyWithNoLedgerEntryDoesNotPublishRTT(t *testing.T) {
	w, _, _, ui := newTestWorker()
	w.iface = "192.168.1.20"

	w.processHelloReply(&protocol.HelloReply{ID: 42, RemoteIP: net.ParseIP("192.168.1.20"), Hostname: "x"}, "192.168.1.30")

	_, ok := ui.TryReceive()
	require.False(t, ok)
}

func TestProcessMidiDispatchesToRoutedOutputsOnly(t *testing.T) {
	w, _, _, _ := newTestWorker()
	keyboard := &fakeOutputPort{}
	unrouted := &fakeOutputPort{}
	w.outputs = map[string]outputPort{"IAC Bus 1": keyboard, "IAC Bus 2": unrouted}
	w.routing.replace(map[string][]string{"Keyboard": {"IAC Bus 1"}})

	w.processMidi(&protocol.MidiMessage{DeviceName: "Keyboard", MidiData: []byte{0x90, 60, 100}})

	require.Len(t, keyboard.sent, 1)
	require.Equal(t, []byte{0x90, 60, 100}, keyboard.sent[0])
	require.Empty(t, unrouted.sent)
}

func TestProcessMidiWithUnknownOutputIsIgnored(t *testing.T) {
	w, _, _, _ := newTestWorker()
	w.routing.replace(map[string][]string{"Keyboard": {"Nonexistent Port"}})

	require.NotPanics(t, func() {
		w.processMidi(&protocol.MidiMessage{DeviceName: "Keyboard", MidiData: []byte{0x90, 60, 100}})
	})
}

func TestDrainHelloBookkeepingStoresLedgerAndTracksSenderInterface(t *testing.T) {
	w, _, fromSender, _ := newTestWorker()
	sentAt := time.Now()
	require.NoError(t, fromSender.Send(control.InfoMessage{
		Info: control.HelloPacketInfo,
		Data: control.HelloPacketInfoData{ID: 3, Sent: sentAt},
	}))
	require.NoError(t, fromSender.Send(control.InfoMessage{
		Info: control.NetworkInterfaceOfSendingWorker,
		Data: "192.168.1.20",
	}))

	w.drainHelloBookkeeping()

	got, ok := w.ledger.take(3)
	require.True(t, ok)
	require.Equal(t, sentAt, got)
	require.Equal(t, "192.168.1.20", w.iface)
}

func TestClassifyAndProcessDispatchesByPacketType(t *testing.T) {
	w, toSender, _, _ := newTestWorker()

	data, err := protocol.EncodeHello(protocol.Hello{ID: 1, Hostname: "studio-mac", DeviceNames: nil})
	require.NoError(t, err)

	w.classifyAndProcess(data, "192.168.1.30")

	_, ok := toSender.TryReceive()
	require.True(t, ok)
}

func TestHandleCommandSetMidiOutputPortsReplacesRouting(t *testing.T) {
	w, _, _, ui := newTestWorker()

	restart, stop := w.handleCommand(control.CommandMessage{
		Command: control.SetMidiOutputPorts,
		Data:    []control.OutputPortMapping{{NetworkName: "Keyboard", OutputPortName: "IAC Bus 1"}},
	})
	require.False(t, restart)
	require.False(t, stop)

	require.Equal(t, []string{"IAC Bus 1"}, w.routing.outputsFor("Keyboard"))
	msg, ok := ui.TryReceive()
	require.True(t, ok)
	require.Equal(t, control.RoutingInformation, msg.Info)
}

func TestHandleCommandClearStoredRemoteMidiDevices(t *testing.T) {
	w, _, _, ui := newTestWorker()
	w.devices.merge("studio-mac", []string{"Keyboard"})

	restart, stop := w.handleCommand(control.CommandMessage{Command: control.ClearStoredRemoteMidiDevices})
	require.False(t, restart)
	require.False(t, stop)
	require.Empty(t, w.devices.snapshot())

	msg, ok := ui.TryReceive()
	require.True(t, ok)
	require.Equal(t, control.RemoteMidiDevices, msg.Info)
}

func TestHandleCommandRestartAndStop(t *testing.T) {
	w, _, _, _ := newTestWorker()

	restart, stop := w.handleCommand(control.CommandMessage{Command: control.Restart})
	require.True(t, restart)
	require.False(t, stop)

	restart, stop = w.handleCommand(control.CommandMessage{Command: control.Stop})
	require.False(t, restart)
	require.True(t, stop)
}
