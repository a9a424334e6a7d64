// Package errs defines the sentinel error categories shared across the
// codec, transport, and worker packages so callers can use errors.Is/As
// instead of matching on message text.
package errs

import "errors"

// ErrInvalidPacket is returned by the codec when a buffer claims to be a
// MIDI over LAN packet (starts with the "MIDI" header mark) but fails
// structural validation: wrong version, unknown type, or truncated fields.
// Ill-formed UTF-8 in a string field is dropped, not rejected.
var ErrInvalidPacket = errors.New("midi-over-lan: invalid packet")

// ErrTransport covers socket-level failures surfaced by the transport
// package: open, bind, socket-option, join-group, or send errors.
var ErrTransport = errors.New("midi-over-lan: transport error")

// ErrDeviceUnavailable is returned when a named local MIDI input or output
// port cannot be opened.
var ErrDeviceUnavailable = errors.New("midi-over-lan: device unavailable")

// ErrQueueFull is returned by a non-blocking enqueue onto one of the
// bounded command/info queues when the queue is at capacity.
var ErrQueueFull = errors.New("midi-over-lan: queue full")

// ErrProtocolMismatch marks a HELLO-REPLY that doesn't match an
// outstanding beacon: its remote_ip doesn't echo this host's own bound
// interface, or no pending-hello ledger entry exists for its id. The
// receiver wraps it into the log message and drops the reply.
var ErrProtocolMismatch = errors.New("midi-over-lan: protocol mismatch")
