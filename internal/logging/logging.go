// Package logging provides the small per-component logging shim used
// throughout this module. It keeps call sites as terse as plain
// log.Printf/fmt.Println calls while letting a worker's messages be
// routed onto the control plane's bounded log queue instead of directly
// to stderr.
package logging

import (
	"fmt"
	"log"
	"os"

	"github.com/Haenisch/MIDI-over-LAN/control"
)

// Logger tags every record with a level and a component name and sends it
// either onto a control.LogQueue or to a standard library *log.Logger,
// never both.
type Logger struct {
	component string
	std       *log.Logger
	queue     *control.LogQueue
}

// New returns a Logger that writes directly to stderr, for the smaller
// CLI tools that have no control-plane log queue.
func New(component string) *Logger {
	return &Logger{component: component, std: log.New(os.Stderr, "", log.LstdFlags)}
}

// NewQueued returns a Logger that pushes records onto the given queue,
// for use inside sender/receiver workers running under midi-lan-node.
func NewQueued(component string, queue *control.LogQueue) *Logger {
	return &Logger{component: component, queue: queue}
}

func (l *Logger) emit(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.queue != nil {
		l.queue.Send(control.LogRecord{Component: l.component, Level: level, Message: msg})
		return
	}
	l.std.Printf("[%s] %s: %s", level, l.component, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.emit("DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.emit("INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.emit("WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.emit("ERROR", format, args...) }
