// Package receiver implements the receiver worker: a non-blocking
// multicast consumer that classifies incoming packets, matches
// HELLO-REPLYs to outstanding beacons for round-trip time, maintains the
// remote-device registry, and dispatches MIDI to routed output ports.
package receiver

import (
	"fmt"
	"sync"
	"time"

	"github.com/Haenisch/MIDI-over-LAN/control"
	"github.com/Haenisch/MIDI-over-LAN/errs"
	"github.com/Haenisch/MIDI-over-LAN/internal/logging"
	"github.com/Haenisch/MIDI-over-LAN/midiport"
	"github.com/Haenisch/MIDI-over-LAN/protocol"
	"github.com/Haenisch/MIDI-over-LAN/transport"
)

// State mirrors the sender worker's lifecycle state machine.
type State int

const (
	Running State = iota
	Paused
	Restarting
	Stopped
)

const pausedSleep = 100 * time.Millisecond
const saveCPUSleep = 1 * time.Millisecond

// outputPort is the subset of midiport.OutPort the dispatch loop needs.
// Accepting the interface rather than the concrete type lets tests
// exercise routing dispatch without a real MIDI backend.
type outputPort interface {
	Send(data []byte) error
	Close() error
}

// Worker is the receiver worker.
type Worker struct {
	commandQueue *control.CommandQueue
	toSender     *control.InfoQueue // delivers RECEIVED_HELLO_PACKET to the sender
	fromSender   *control.InfoQueue // delivers HELLO_PACKET_INFO from the sender
	uiQueue      *control.InfoQueue
	logger       *logging.Logger

	iface   string
	saveCPU bool

	state State
	conn  *transport.ReceiverConn

	outputs map[string]outputPort // local output port name -> port

	devices *deviceRegistry
	rtts    *rttRegistry
	ledger  *pendingHelloLedger
	routing *routingTable

	mu sync.Mutex
}

// New constructs a receiver worker. toSender is where RECEIVED_HELLO_PACKET
// is forwarded so the sender can answer with a HELLO-REPLY; fromSender is
// where the sender's HELLO_PACKET_INFO notices arrive so this worker can
// bookkeep outstanding beacons; uiQueue receives registry/RTT/routing
// snapshots.
func New(commandQueue *control.CommandQueue, toSender, fromSender, uiQueue *control.InfoQueue, logger *logging.Logger) *Worker {
	return &Worker{
		commandQueue: commandQueue,
		toSender:     toSender,
		fromSender:   fromSender,
		uiQueue:      uiQueue,
		logger:       logger,
		outputs:      make(map[string]outputPort),
		devices:      newDeviceRegistry(),
		rtts:         newRTTRegistry(),
		ledger:       newPendingHelloLedger(),
		routing:      newRoutingTable(),
	}
}

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

// Run executes the worker's outer/inner loop until STOP is processed or
// stopCh closes.
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

func (w *Worker) runInner(stopCh <-chan struct{}) bool {
	conn, err := transport.ListenReceiver(w.iface)
	if err != nil {
		w.logger.Errorf("failed to construct receiver socket: %v", err)
		return false
	}
	w.conn = conn
	w.openAllOutputs()
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

		w.drainHelloBookkeeping()

		if data, addr, ok := w.conn.TryReceive(); ok {
			sourceIP := ""
			if addr != nil {
				sourceIP = addr.IP.String()
			}
			w.classifyAndProcess(data, sourceIP)
		}

		w.ledger.evictOlderThan(time.Now(), pendingHelloTTL)

		if w.State() == Paused {
			time.Sleep(pausedSleep)
			continue
		}

		if w.saveCPU {
			time.Sleep(saveCPUSleep)
		}
	}
}

func (w *Worker) twoPhaseClose() {
	if w.conn != nil {
		w.conn.Close()
	}
	for _, out := range w.outputs {
		out.Close()
	}
}

func (w *Worker) handleCommand(cmd control.CommandMessage) (restart, stop bool) {
	switch cmd.Command {
	case control.Restart:
		return true, false
	case control.Stop:
		return false, true
	case control.Pause:
		w.setState(Paused)
	case control.Resume:
		w.setState(Running)
	case control.SetMidiOutputPorts:
		w.setRouting(cmd.Data)
	case control.SetNetworkInterface:
		if s, ok := cmd.Data.(string); ok {
			w.iface = s
		} else {
			w.iface = ""
		}
		return true, false
	case control.SetSaveCPUTime:
		w.saveCPU, _ = cmd.Data.(bool)
	case control.ClearStoredRemoteMidiDevices:
		w.devices.clear()
		w.publishDevices()
	}
	return false, false
}

// setRouting installs a ROUTING_INFORMATION-shaped replacement and
// publishes it, mirroring SET_MIDI_OUTPUT_PORTS: the UI supplies
// (network_name, output_port_name) pairs which this worker folds into
// the network-name -> {output port names} routing table.
func (w *Worker) setRouting(data any) {
	mappings, ok := data.([]control.OutputPortMapping)
	if !ok {
		return
	}
	routes := make(map[string][]string)
	for _, m := range mappings {
		routes[m.NetworkName] = append(routes[m.NetworkName], m.OutputPortName)
	}
	w.routing.replace(routes)
	w.publishRouting()
}

func (w *Worker) openAllOutputs() {
	for _, out := range w.outputs {
		out.Close()
	}
	w.outputs = make(map[string]outputPort)

	names, err := midiport.ListOutputNames()
	if err != nil {
		w.logger.Warnf("failed to list midi outputs: %v", err)
		return
	}
	for _, name := range names {
		port, err := midiport.OpenOutput(name)
		if err != nil {
			w.logger.Warnf("failed to open output %q: %v", name, err)
			continue
		}
		w.outputs[name] = port
	}
}

func (w *Worker) classifyAndProcess(data []byte, sourceIP string) {
	packet, err := protocol.Decode(data)
	if err != nil {
		w.logger.Warnf("dropping invalid packet: %v", err)
		return
	}
	switch packet.Type {
	case protocol.PacketTypeHello:
		w.processHello(packet.Hello, sourceIP)
	case protocol.PacketTypeHelloReply:
		w.processHelloReply(packet.HelloReply, sourceIP)
	case protocol.PacketTypeMidiMessage:
		w.processMidi(packet.Midi)
	}
}

// processHello forwards the HELLO to the sender so it can answer with a
// HELLO-REPLY, substitutes the source IP for an "unknown" hostname, and
// merges advertised device names into the registry.
func (w *Worker) processHello(h *protocol.Hello, sourceIP string) {
	hostname := h.Hostname
	if hostname == "unknown" && sourceIP != "" {
		hostname = sourceIP
	}

	if err := w.toSender.Send(control.InfoMessage{
		Info: control.ReceivedHelloPacket,
		Data: control.ReceivedHelloPacketData{RemoteIP: sourceIP, ID: h.ID, Received: time.Now()},
	}); err != nil {
		w.logger.Warnf("sender queue full, dropping hello forward for id %d", h.ID)
	}

	if w.devices.merge(hostname, h.DeviceNames) {
		w.publishDevices()
	}
}

// processHelloReply drops replies not addressed to this receiver's bound
// interface (r.RemoteIP echoes back the original HELLO sender's address,
// i.e. this host), matches the id against the pending-hello ledger, and
// records an RTT sample under sourceIP — the replying peer's own
// address, taken from the datagram itself rather than r.RemoteIP.
func (w *Worker) processHelloReply(r *protocol.HelloReply, sourceIP string) {
	if r == nil {
		return
	}
	if w.iface == "" || r.RemoteIP == nil || r.RemoteIP.String() != w.iface {
		err := fmt.Errorf("%w: hello reply id %d addressed to %v, not %q", errs.ErrProtocolMismatch, r.ID, r.RemoteIP, w.iface)
		w.logger.Debugf("%v", err)
		return
	}
	sentAt, ok := w.ledger.take(r.ID)
	if !ok {
		err := fmt.Errorf("%w: hello reply id %d has no matching ledger entry", errs.ErrProtocolMismatch, r.ID)
		w.logger.Warnf("%v", err)
		return
	}
	rtt := time.Since(sentAt)
	w.rtts.record(sourceIP, rtt)
	w.publishRTTs()

	if w.devices.merge(r.Hostname, r.DeviceNames) {
		w.publishDevices()
	}
}

// processMidi dispatches a decoded MIDI message to every local output
// port the routing table maps its device name to.
func (w *Worker) processMidi(m *protocol.MidiMessage) {
	if m == nil {
		return
	}
	for _, outName := range w.routing.outputsFor(m.DeviceName) {
		port, ok := w.outputs[outName]
		if !ok {
			continue
		}
		if err := port.Send(m.MidiData); err != nil {
			w.logger.Errorf("failed to send to output %q: %v", outName, err)
		}
	}
}

// drainHelloBookkeeping records every HELLO_PACKET_INFO the sender has
// posted since the last iteration, so a later HELLO-REPLY can be matched
// against the ledger for RTT. It also tracks the sender's bound network
// interface, needed to filter HELLO-REPLYs addressed to it.
func (w *Worker) drainHelloBookkeeping() {
	for {
		msg, ok := w.fromSender.TryReceive()
		if !ok {
			return
		}
		switch msg.Info {
		case control.HelloPacketInfo:
			data, ok := msg.Data.(control.HelloPacketInfoData)
			if !ok {
				continue
			}
			w.ledger.store(data.ID, data.Sent)
		case control.NetworkInterfaceOfSendingWorker:
			if iface, ok := msg.Data.(string); ok {
				w.iface = iface
			}
		}
	}
}

func (w *Worker) publishDevices() {
	w.publish(control.InfoMessage{Info: control.RemoteMidiDevices, Data: w.devices.snapshot()})
}

func (w *Worker) publishRTTs() {
	w.publish(control.InfoMessage{Info: control.RoundTripTimes, Data: w.rtts.snapshot()})
}

func (w *Worker) publishRouting() {
	w.publish(control.InfoMessage{Info: control.RoutingInformation, Data: w.routing.routes})
}

func (w *Worker) publish(msg control.InfoMessage) {
	if w.uiQueue == nil {
		return
	}
	if err := w.uiQueue.Send(msg); err != nil {
		w.logger.Warnf("ui queue full, dropping %s update", msg.Info)
	}
}
