// Package midiport adapts gitlab.com/gomidi/midi/v2's callback-driven
// driver API to the pull-based polling shape the sender worker's
// cooperative loop expects: open once, then repeatedly drain whatever
// arrived since the last poll without blocking.
package midiport

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/Haenisch/MIDI-over-LAN/errs"
)

// Event is a single received MIDI message with its raw status+data bytes.
type Event struct {
	Raw []byte
}

// Status returns the event's MIDI status byte, or 0 for an empty event.
func (e Event) Status() byte {
	if len(e.Raw) == 0 {
		return 0
	}
	return e.Raw[0]
}

// ListInputNames returns the names of all currently available MIDI input
// ports, as reported by the platform driver.
func ListInputNames() ([]string, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: listing MIDI inputs: %v", errs.ErrDeviceUnavailable, err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// ListOutputNames returns the names of all currently available MIDI
// output ports.
func ListOutputNames() ([]string, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: listing MIDI outputs: %v", errs.ErrDeviceUnavailable, err)
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names, nil
}

// InPort is an opened MIDI input port. Pending drains whatever events the
// driver has delivered since the previous call without blocking, which is
// what lets the sender's single cooperative loop poll it on every
// iteration.
type InPort struct {
	name   string
	port   drivers.In
	stopFn func()

	mu      sync.Mutex
	pending []Event
}

// OpenInput opens the named MIDI input port and begins buffering events in
// the background via the driver's Listen callback.
func OpenInput(name string) (*InPort, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: listing MIDI inputs: %v", errs.ErrDeviceUnavailable, err)
	}
	var port drivers.In
	for _, in := range ins {
		if in.String() == name {
			port = in
			break
		}
	}
	if port == nil {
		return nil, fmt.Errorf("%w: input port %q not found", errs.ErrDeviceUnavailable, name)
	}
	if err := port.Open(); err != nil {
		return nil, fmt.Errorf("%w: opening input %q: %v", errs.ErrDeviceUnavailable, name, err)
	}

	in := &InPort{name: name, port: port}
	stopFn, err := port.Listen(func(msg []byte, _ int32) {
		in.mu.Lock()
		in.pending = append(in.pending, Event{Raw: append([]byte(nil), msg...)})
		in.mu.Unlock()
	}, drivers.ListenConfig{})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: listening on input %q: %v", errs.ErrDeviceUnavailable, name, err)
	}
	in.stopFn = stopFn
	return in, nil
}

// Pending drains and returns all events buffered since the last call.
// It never blocks.
func (in *InPort) Pending() []Event {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pending) == 0 {
		return nil
	}
	events := in.pending
	in.pending = nil
	return events
}

// Name returns the port name this InPort was opened with.
func (in *InPort) Name() string { return in.name }

// Close stops listening and releases the underlying port.
func (in *InPort) Close() error {
	if in.stopFn != nil {
		in.stopFn()
	}
	return in.port.Close()
}

// OutPort is an opened MIDI output port.
type OutPort struct {
	name string
	port drivers.Out
}

// OpenOutput opens the named MIDI output port.
func OpenOutput(name string) (*OutPort, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: listing MIDI outputs: %v", errs.ErrDeviceUnavailable, err)
	}
	var port drivers.Out
	for _, out := range outs {
		if out.String() == name {
			port = out
			break
		}
	}
	if port == nil {
		return nil, fmt.Errorf("%w: output port %q not found", errs.ErrDeviceUnavailable, name)
	}
	if err := port.Open(); err != nil {
		return nil, fmt.Errorf("%w: opening output %q: %v", errs.ErrDeviceUnavailable, name, err)
	}
	return &OutPort{name: name, port: port}, nil
}

// Name returns the port name this OutPort was opened with.
func (o *OutPort) Name() string { return o.name }

// Send writes raw MIDI data to the port.
func (o *OutPort) Send(data []byte) error {
	if err := o.port.Send(data); err != nil {
		return fmt.Errorf("%w: sending to output %q: %v", errs.ErrDeviceUnavailable, o.name, err)
	}
	return nil
}

// Close releases the underlying port.
func (o *OutPort) Close() error {
	return o.port.Close()
}
