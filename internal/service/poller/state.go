// Package poller waits for asynchronous transcription results by polling the
// status endpoint with a growing interval and an overall timeout.
package poller

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of one transcription as seen by a client.
type State int

const (
	// StateUploading - media is being submitted.
	StateUploading State = iota
	// StateProcessing - the server returned a result id; polling.
	StateProcessing
	// StateCompleted - a transcript was received.
	StateCompleted
	// StateFailed - a hard error or the timeout ended the wait.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUploading:
		return "uploading"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal returns true for completed and failed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Errors for invalid state transitions.
var (
	ErrFinished      = errors.New("transcription already finished")
	ErrNotUploading  = errors.New("transcription is not uploading")
	ErrNotProcessing = errors.New("transcription is not processing")
	ErrEmptyResultID = errors.New("empty result id")
)

// Lifecycle manages the state machine for a single transcription.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	uploading → processing → completed
//	    │            │
//	    │            └──→ error
//	    ├──→ completed (immediate result)
//	    └──→ error
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	resultID string
	err      error
}

// NewLifecycle creates a lifecycle in the uploading state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateUploading}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// ResultID returns the id being polled, if any.
func (l *Lifecycle) ResultID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resultID
}

// Err returns the failure cause once in the error state.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Accept moves uploading → processing with the id returned by the server.
func (l *Lifecycle) Accept(resultID string) error {
	if resultID == "" {
		return ErrEmptyResultID
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.state.IsTerminal():
		return ErrFinished
	case l.state != StateUploading:
		return ErrNotUploading
	}
	l.state = StateProcessing
	l.resultID = resultID
	return nil
}

// Complete moves to completed. It succeeds exactly once.
func (l *Lifecycle) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return ErrFinished
	}
	l.state = StateCompleted
	return nil
}

// Fail moves to error. Returns false if already terminal.
func (l *Lifecycle) Fail(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateFailed
	l.err = err
	return true
}
