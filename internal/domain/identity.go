// Package domain contains entity types without logic, just meta-data.
package domain

// Identity is an opaque, externally-issued participant identifier.
// Authorization is the surrounding application's responsibility; the
// signaling core trusts it as-is.
type Identity string

// RoomID identifies a call room. Caller-supplied, typically derived from
// a chat-group identifier, opaque to the signaling core.
type RoomID string
