package pairing

import (
	"time"

	"github.com/ps2ble/bondmgr/api/companion"
)

// State describes the lifecycle state of a pairing session.
type State int

// The different session states.
const (
	Idle State = iota
	Scanning
	Found
	TimedOut
	Cancelled
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Scanning:
		return "Scanning"
	case Found:
		return "Found"
	case TimedOut:
		return "TimedOut"
	case Cancelled:
		return "Cancelled"
	}

	return "Unknown"
}

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == Found || s == TimedOut || s == Cancelled
}

// SessionID identifies a pairing session.
type SessionID string

// Outcome is delivered once a session reaches a terminal state.
// Device is only set if State is Found.
type Outcome struct {
	Session SessionID
	State   State
	Device  companion.Device
}

// OutcomeFunc receives the outcome of a session.
type OutcomeFunc func(Outcome)

// Snapshot describes the current session.
type Snapshot struct {
	ID       SessionID
	State    State
	Progress float64
	Elapsed  time.Duration
	Device   companion.Device
	Ticks    int
}

// HasDevice reports whether the snapshot carries a found device.
func (s Snapshot) HasDevice() bool {
	return s.State == Found
}

// Percent returns the progress as an integer percentage.
func (s Snapshot) Percent() int {
	return int(s.Progress*100 + 0.5)
}
