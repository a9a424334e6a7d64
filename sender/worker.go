// Package sender implements the sender worker: a cooperative loop that
// polls open MIDI input ports, multicasts MIDI and HELLO packets, and
// answers discovery requests from peers with HELLO-REPLY.
package sender

import (
	"net"
	"sync"
	"time"

	"github.com/Haenisch/MIDI-over-LAN/control"
	"github.com/Haenisch/MIDI-over-LAN/internal/logging"
	"github.com/Haenisch/MIDI-over-LAN/midi"
	"github.com/Haenisch/MIDI-over-LAN/midiport"
	"github.com/Haenisch/MIDI-over-LAN/protocol"
	"github.com/Haenisch/MIDI-over-LAN/transport"
)

// State is the worker's lifecycle state, matching the state machine
// shared by sender and receiver.
type State int

const (
	Running State = iota
	Paused
	Restarting
	Stopped
)

const helloInterval = 10 * time.Second
const pausedSleep = 100 * time.Millisecond
const saveCPUSleep = 1 * time.Millisecond

// senderConn is the subset of transport.SenderConn the loop needs.
// Accepting the interface rather than the concrete type lets tests
// exercise the loop without a real multicast socket.
type senderConn interface {
	Send(data []byte) error
	Close() error
}

// inputPort is the subset of midiport.InPort the loop needs.
type inputPort interface {
	Pending() []midiport.Event
	Close() error
}

// openInput pairs an opened input port with the network name it
// publishes events under.
type openInput struct {
	port        inputPort
	networkName string
}

// Worker is the sender worker. All fields it mutates across iterations
// are owned exclusively by the loop goroutine; the only cross-goroutine
// communication is through the command/info queues.
type Worker struct {
	Hostname string

	commandQueue *control.CommandQueue
	toReceiver   *control.InfoQueue // delivers HELLO_PACKET_INFO to the receiver
	fromReceiver *control.InfoQueue // delivers RECEIVED_HELLO_PACKET from the receiver
	logger       *logging.Logger

	iface       string
	loopback    bool
	ignoreClock bool
	saveCPU     bool

	state  State
	conn   senderConn
	inputs []openInput

	lastHello time.Time

	mu sync.Mutex // guards State() reads from outside the loop goroutine
}

// New constructs a sender worker. toReceiver is where HELLO_PACKET_INFO is
// pushed so the receiver can bookkeep outstanding HELLOs; fromReceiver is
// where the receiver forwards RECEIVED_HELLO_PACKET notices so this
// worker can answer with a HELLO-REPLY.
func New(hostname string, commandQueue *control.CommandQueue, toReceiver, fromReceiver *control.InfoQueue, logger *logging.Logger) *Worker {
	return &Worker{
		Hostname:     hostname,
		commandQueue: commandQueue,
		toReceiver:   toReceiver,
		fromReceiver: fromReceiver,
		logger:       logger,
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run executes the worker's outer/inner loop until a STOP command is
// processed or stopCh is closed. It blocks the calling goroutine; callers
// should invoke it via `go worker.Run(stopCh)`.
func (w *Worker) Run(stopCh <-chan struct{}) {
	for {
		restart := w.runInner(stopCh)
		if !restart {
			w.setState(Stopped)
			return
		}
		w.setState(Restarting)
	}
}

// runInner constructs a socket and runs the cooperative loop until a
// restart or stop is requested. It returns true if the outer loop should
// re-enter (RESTART), false if the worker should terminate (STOP).
func (w *Worker) runInner(stopCh <-chan struct{}) bool {
	conn, warning, err := transport.DialSender(w.iface, w.loopback)
	if err != nil {
		w.logger.Errorf("failed to construct sender socket: %v", err)
		return false
	}
	if warning != "" {
		w.logger.Warnf("%s", warning)
	}
	w.conn = conn
	w.setState(Running)

	defer w.twoPhaseClose()

	for {
		select {
		case <-stopCh:
			return false
		default:
		}

		if cmd, ok := w.commandQueue.TryReceive(); ok {
			if restart, stop := w.handleCommand(cmd); stop {
				return false
			} else if restart {
				return true
			}
		}

		w.drainInfoReplies()

		w.maybeSendHello()

		if w.State() == Paused {
			time.Sleep(pausedSleep)
			continue
		}

		w.sendPendingMidi()

		if w.saveCPU {
			time.Sleep(saveCPUSleep)
		}
	}
}

// twoPhaseClose stops sends, closes the socket, then closes MIDI ports —
// ordering matters so a last-second MIDI event cannot be sent to an
// already-closed socket.
func (w *Worker) twoPhaseClose() {
	if w.conn != nil {
		w.conn.Close()
	}
	for _, in := range w.inputs {
		in.port.Close()
	}
}

// handleCommand executes at most one command and reports whether the
// worker should restart or stop.
func (w *Worker) handleCommand(cmd control.CommandMessage) (restart, stop bool) {
	switch cmd.Command {
	case control.Restart:
		return true, false
	case control.Stop:
		return false, true
	case control.Pause:
		w.setState(Paused)
	case control.Resume:
		w.resume()
	case control.SetMidiInputPorts:
		w.setInputPorts(cmd.Data.([]control.InputPortMapping))
	case control.SetNetworkInterface:
		if s, ok := cmd.Data.(string); ok {
			w.iface = s
		} else {
			w.iface = ""
		}
		if err := w.toReceiver.Send(control.InfoMessage{
			Info: control.NetworkInterfaceOfSendingWorker,
			Data: w.iface,
		}); err != nil {
			w.logger.Warnf("receiver queue full, dropping network interface notice")
		}
		return true, false
	case control.SetEnableLoopbackInterface:
		w.loopback, _ = cmd.Data.(bool)
		return true, false
	case control.SetIgnoreMidiClock:
		w.ignoreClock, _ = cmd.Data.(bool)
	case control.SetSaveCPUTime:
		w.saveCPU, _ = cmd.Data.(bool)
	}
	return false, false
}

// resume un-pauses the worker. Events accumulated on open ports while
// paused are dropped, not flushed: draining Pending() here discards
// whatever the MIDI driver buffered during the pause.
func (w *Worker) resume() {
	for _, in := range w.inputs {
		in.port.Pending()
	}
	w.setState(Running)
}

func (w *Worker) setInputPorts(mappings []control.InputPortMapping) {
	for _, in := range w.inputs {
		in.port.Close()
	}
	w.inputs = w.inputs[:0]
	for _, m := range mappings {
		port, err := midiport.OpenInput(m.DeviceName)
		if err != nil {
			w.logger.Warnf("failed to open input %q: %v", m.DeviceName, err)
			continue
		}
		w.inputs = append(w.inputs, openInput{port: port, networkName: m.NetworkName})
	}
}

// maybeSendHello emits a HELLO if at least helloInterval has elapsed
// since the last one, then immediately informs the receiver worker of
// the (id, timestamp) pair so it can bookkeep the outstanding beacon.
func (w *Worker) maybeSendHello() {
	now := time.Now()
	if !w.lastHello.IsZero() && now.Sub(w.lastHello) < helloInterval {
		return
	}
	w.lastHello = now

	names := make([]string, len(w.inputs))
	for i, in := range w.inputs {
		names[i] = in.networkName
	}

	id := protocol.NextHelloID()
	data, err := protocol.EncodeHello(protocol.Hello{ID: id, Hostname: w.Hostname, DeviceNames: names})
	if err != nil {
		w.logger.Errorf("failed to encode hello: %v", err)
		return
	}
	if err := w.conn.Send(data); err != nil {
		w.logger.Errorf("failed to send hello: %v", err)
		return
	}

	if err := w.toReceiver.Send(control.InfoMessage{
		Info: control.HelloPacketInfo,
		Data: control.HelloPacketInfoData{ID: id, Sent: now},
	}); err != nil {
		w.logger.Warnf("receiver queue full, dropping hello bookkeeping for id %d", id)
	}
}

// drainInfoReplies answers any ReceivedHelloPacket notices the receiver
// has forwarded since the last iteration with a HELLO-REPLY.
func (w *Worker) drainInfoReplies() {
	for {
		msg, ok := w.fromReceiver.TryReceive()
		if !ok {
			return
		}
		if msg.Info != control.ReceivedHelloPacket {
			continue
		}
		data, ok := msg.Data.(control.ReceivedHelloPacketData)
		if !ok {
			continue
		}
		w.sendHelloReply(data)
	}
}

func (w *Worker) sendHelloReply(data control.ReceivedHelloPacketData) {
	names := make([]string, len(w.inputs))
	for i, in := range w.inputs {
		names[i] = in.networkName
	}
	ip := net.ParseIP(data.RemoteIP)
	if ip == nil || ip.To4() == nil {
		w.logger.Warnf("cannot reply to hello: invalid remote ip %q", data.RemoteIP)
		return
	}
	reply := protocol.HelloReply{ID: data.ID, RemoteIP: ip, Hostname: w.Hostname, DeviceNames: names}
	encoded, err := protocol.EncodeHelloReply(reply)
	if err != nil {
		w.logger.Errorf("failed to encode hello reply: %v", err)
		return
	}
	if err := w.conn.Send(encoded); err != nil {
		w.logger.Errorf("failed to send hello reply: %v", err)
	}
}

// sendPendingMidi drains every opened input port's pending events and
// multicasts them, tagged with the port's network name.
func (w *Worker) sendPendingMidi() {
	for _, in := range w.inputs {
		for _, ev := range in.port.Pending() {
			if w.ignoreClock && midi.IsClock(ev.Status()) {
				continue
			}
			encoded := protocol.EncodeMidi(protocol.MidiMessage{DeviceName: in.networkName, MidiData: ev.Raw})
			if err := w.conn.Send(encoded); err != nil {
				w.logger.Errorf("failed to send midi message from %q: %v", in.networkName, err)
			}
		}
	}
}
