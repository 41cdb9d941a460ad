package app

import "memoria/internal/domain"

// EventKind identifies events the session emits toward the UI layer.
type EventKind string

const (
	EventOpponentJoined EventKind = "opponent_joined"
	EventOpponentLeft   EventKind = "opponent_left"
	EventGameStarted    EventKind = "game_started"
	EventTurnChanged    EventKind = "turn_changed"
	EventPairMatched    EventKind = "pair_matched"
	EventPairMissed     EventKind = "pair_missed"
	EventGameEnded      EventKind = "game_ended"
	EventSessionClosed  EventKind = "session_closed"
)

// Event is a derived session event with a typed payload.
type Event struct {
	Kind    EventKind
	Payload any
}

type OpponentJoinedPayload struct {
	OpponentID string
}

type OpponentLeftPayload struct {
	OpponentID string
}

type GameStartedPayload struct {
	FirstTurnPlayerID string
}

type TurnChangedPayload struct {
	TurnHolderID string
	Mine         bool
}

type PairMatchedPayload struct {
	TileIDs    []int
	ByPlayerID string
	HostScore  int
	GuestScore int
}

type PairMissedPayload struct {
	TileIDs []int
}

type GameEndedPayload struct {
	Outcome domain.Outcome
	// IWin is the outcome from this session's point of view.
	IWin bool
	Draw bool
}

// SessionClosedPayload is emitted when the subscription terminates without
// the match finishing: the host deleted the room, or the store became
// unreachable for good.
type SessionClosedPayload struct {
	Reason string
}
