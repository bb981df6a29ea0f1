package core

import "errors"

// Frame is a raw signaling payload already encoded for the wire.
type Frame []byte

var ErrBackpressure = errors.New("backpressure")

// SignalConnection abstracts one live signaling transport session.
// Owned by the adapter; the adapter must Close() it. Exactly one
// SignalConnection exists per physical connection.
type SignalConnection interface {
	// ID is a process-unique handle identifier, assigned at accept time.
	ID() string
	TrySend(Frame) error
	Close()
}
