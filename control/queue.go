package control

import "github.com/Haenisch/MIDI-over-LAN/errs"

// Control queue capacities stay small: the owning process and the workers
// exchange only lifecycle and reconfiguration commands, never a sustained
// stream, so back-pressure is used instead of growing unbounded.
const queueCapacity = 128

// LogQueueCapacity bounds the shared log record channel. Producers block
// rather than drop once full; SPEC_FULL.md treats this as acceptable
// back-pressure since log bursts are rare and the volume per record is
// small.
const LogQueueCapacity = 10000

// CommandQueue is a bounded, non-blocking-on-send channel of
// CommandMessage values from the owning process into a worker.
type CommandQueue struct {
	ch chan CommandMessage
}

// NewCommandQueue allocates a command queue at the standard control-plane
// capacity.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{ch: make(chan CommandMessage, queueCapacity)}
}

// Send enqueues a command without blocking, returning errs.ErrQueueFull if
// the queue is at capacity.
func (q *CommandQueue) Send(msg CommandMessage) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return errs.ErrQueueFull
	}
}

// TryReceive drains at most one pending command without blocking. ok is
// false if the queue was empty — this is the worker loop's suspension
// point (a), the non-blocking queue poll.
func (q *CommandQueue) TryReceive() (msg CommandMessage, ok bool) {
	select {
	case msg = <-q.ch:
		return msg, true
	default:
		return CommandMessage{}, false
	}
}

// Depth reports the number of commands currently queued, for the metrics
// collector's queue-depth gauge.
func (q *CommandQueue) Depth() int {
	return len(q.ch)
}

// InfoQueue is the InfoMessage analogue of CommandQueue, used for the
// receiver↔sender and receiver→UI info flows.
type InfoQueue struct {
	ch chan InfoMessage
}

// NewInfoQueue allocates an info queue at the standard control-plane
// capacity.
func NewInfoQueue() *InfoQueue {
	return &InfoQueue{ch: make(chan InfoMessage, queueCapacity)}
}

// Send enqueues an info message without blocking, returning
// errs.ErrQueueFull if the queue is at capacity. A full info queue means
// the consumer is falling behind; the producer drops rather than stalls
// its own cooperative loop.
func (q *InfoQueue) Send(msg InfoMessage) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return errs.ErrQueueFull
	}
}

// TryReceive drains at most one pending info message without blocking.
func (q *InfoQueue) TryReceive() (msg InfoMessage, ok bool) {
	select {
	case msg = <-q.ch:
		return msg, true
	default:
		return InfoMessage{}, false
	}
}

// Depth reports the number of info messages currently queued, for the
// metrics collector's queue-depth gauge.
func (q *InfoQueue) Depth() int {
	return len(q.ch)
}

// LogRecord is one entry on the shared log queue, carrying enough context
// for the owning process's single drain goroutine to format and print it.
type LogRecord struct {
	Component string
	Level     string
	Message   string
}

// LogQueue is the bounded, blocking-on-send log channel shared by all
// workers. Unlike the command/info queues, producers block when full
// rather than drop — SPEC_FULL.md treats a full log queue as acceptable
// back-pressure, never data loss.
type LogQueue struct {
	ch chan LogRecord
}

// NewLogQueue allocates a log queue at LogQueueCapacity.
func NewLogQueue() *LogQueue {
	return &LogQueue{ch: make(chan LogRecord, LogQueueCapacity)}
}

// Send enqueues a log record, blocking if the queue is full.
func (q *LogQueue) Send(rec LogRecord) {
	q.ch <- rec
}

// Receive blocks until a log record is available. The owning process
// runs this in a single drain goroutine.
func (q *LogQueue) Receive() LogRecord {
	return <-q.ch
}

// Records exposes the underlying channel for range-based draining.
func (q *LogQueue) Records() <-chan LogRecord {
	return q.ch
}
