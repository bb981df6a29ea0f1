package domain

import "encoding/json"

// Kind names one signaling event. The set is closed; handlers switch
// over it exhaustively.
type Kind string

const (
	KindRegister Kind = "register"

	KindCallInitiate  Kind = "call-initiate"
	KindCallAnswer    Kind = "call-answer"
	KindCallCandidate Kind = "call-candidate"
	KindCallEnd       Kind = "call-end"

	KindRoomJoin  Kind = "room-join"
	KindRoomLeave Kind = "room-leave"

	KindRoomMembers      Kind = "room-members"
	KindRoomMemberJoined Kind = "room-member-joined"
	KindRoomMemberLeft   Kind = "room-member-left"

	KindRoomCallOffer     Kind = "room-call-offer"
	KindRoomCallAnswer    Kind = "room-call-answer"
	KindRoomCallCandidate Kind = "room-call-candidate"

	KindPing Kind = "ping"
	KindPong Kind = "pong"
)

// Relayed reports whether the kind is an addressed pass-through: the
// server forwards it verbatim to To without parsing Payload.
func (k Kind) Relayed() bool {
	switch k {
	case KindCallInitiate, KindCallAnswer, KindCallCandidate, KindCallEnd,
		KindRoomCallOffer, KindRoomCallAnswer, KindRoomCallCandidate:
		return true
	}
	return false
}

// Envelope is the wire format for every signaling message. Payload is
// opaque to the server: session descriptions and connectivity candidates
// are only ever interpreted by the endpoints.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	From    Identity        `json:"from,omitempty"`
	To      Identity        `json:"to,omitempty"`
	Room    RoomID          `json:"room,omitempty"`
	Members []Identity      `json:"members,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
