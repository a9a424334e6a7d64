package midiport

import "testing"

func TestEventStatusReturnsFirstByte(t *testing.T) {
	e := Event{Raw: []byte{0x90, 60, 100}}
	if got := e.Status(); got != 0x90 {
		t.Errorf("Status() = %#x, want 0x90", got)
	}
}

func TestEventStatusOfEmptyEventIsZero(t *testing.T) {
	e := Event{}
	if got := e.Status(); got != 0 {
		t.Errorf("Status() = %#x, want 0", got)
	}
}
