package ports

import (
	"context"
	"errors"

	"memoria/internal/domain"
)

// Store-level errors shared by every adapter.
var (
	// ErrRoomNotFound is returned when the room document is absent.
	ErrRoomNotFound = errors.New("room not found")
	// ErrStoreUnavailable wraps network/timeout failures talking to the store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotAuthenticated is returned when no player identity is available.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// RoomSnapshot is one delivery on a room subscription. Room is nil when the
// document does not exist (never created, or deleted by the host).
type RoomSnapshot struct {
	Room *domain.Room
}

// RoomStore is the realtime document store the session protocol runs on.
// Implementations must provide: last-write-wins plain writes, a
// conditional-retry transaction on a single room document, and per-document
// subscriptions with at-least-once delivery of a sequence of snapshots
// consistent with some serialization of committed writes (rapid updates may
// be coalesced).
type RoomStore interface {
	// CreateRoom allocates a fresh document id, writes the room under it and
	// returns the id.
	CreateRoom(ctx context.Context, room domain.Room) (string, error)

	// GetRoom reads the current room document. ErrRoomNotFound if absent.
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)

	// SetRoom overwrites the room document. Plain last-write-wins; only safe
	// for writes serialized by a document flag (started, resolving, guestId).
	SetRoom(ctx context.Context, room domain.Room) error

	// TransactRoom re-runs mutate against the freshest document value until a
	// commit succeeds with no interleaved write, or mutate returns an error,
	// which aborts the transaction and is returned unwrapped.
	TransactRoom(ctx context.Context, roomID string, mutate func(domain.Room) (domain.Room, error)) (domain.Room, error)

	// DeleteRoom removes the room document, ending the match for any
	// subscriber. Deleting an absent room is not an error.
	DeleteRoom(ctx context.Context, roomID string) error

	// ListJoinableRooms returns up to limit rooms with no guest and the match
	// not started. Best-effort and eventually consistent; discovery only.
	ListJoinableRooms(ctx context.Context, limit int) ([]domain.Room, error)

	// SubscribeRoom returns a channel of snapshots for the room, starting
	// with its current state. The channel closes when the subscription dies;
	// cancel releases it.
	SubscribeRoom(ctx context.Context, roomID string) (<-chan RoomSnapshot, func(), error)
}

// IdentityProvider issues the stable anonymous player id for this client.
type IdentityProvider interface {
	PlayerID(ctx context.Context) (string, error)
}
