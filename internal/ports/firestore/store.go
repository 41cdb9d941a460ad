// Package firestore adapts ports.RoomStore to Cloud Firestore, the managed
// realtime document store the mobile clients share. RunTransaction supplies
// the conditional-retry primitive and Snapshots the per-document push stream.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"memoria/internal/domain"
	"memoria/internal/ports"
)

const roomsCollection = "rooms"

// Store implements ports.RoomStore on a Firestore client.
type Store struct {
	client *firestore.Client
	rooms  *firestore.CollectionRef
}

var _ ports.RoomStore = (*Store)(nil)

// New wraps an authenticated Firestore client.
func New(client *firestore.Client) *Store {
	return &Store{
		client: client,
		rooms:  client.Collection(roomsCollection),
	}
}

// CreateRoom allocates a document id and writes the initial room.
func (s *Store) CreateRoom(ctx context.Context, room domain.Room) (string, error) {
	doc := s.rooms.NewDoc()
	room.RoomID = doc.ID
	if _, err := doc.Set(ctx, toDoc(room)); err != nil {
		return "", storeErr("create room", err)
	}
	return doc.ID, nil
}

// GetRoom reads the current room document.
func (s *Store) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	snap, err := s.rooms.Doc(roomID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Room{}, ports.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, storeErr("get room", err)
	}
	var d roomDoc
	if err := snap.DataTo(&d); err != nil {
		return domain.Room{}, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return d.toDomain(roomID), nil
}

// SetRoom overwrites the room document, last write wins.
func (s *Store) SetRoom(ctx context.Context, room domain.Room) error {
	if _, err := s.rooms.Doc(room.RoomID).Set(ctx, toDoc(room)); err != nil {
		return storeErr("set room", err)
	}
	return nil
}

// TransactRoom runs mutate inside a Firestore transaction: the read is
// re-executed and mutate re-applied until the commit succeeds without an
// interleaved write. Mutate errors abort the transaction and come back
// unwrapped.
func (s *Store) TransactRoom(ctx context.Context, roomID string, mutate func(domain.Room) (domain.Room, error)) (domain.Room, error) {
	var result domain.Room
	var abortErr error

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		abortErr = nil
		doc := s.rooms.Doc(roomID)
		snap, err := tx.Get(doc)
		if status.Code(err) == codes.NotFound {
			abortErr = ports.ErrRoomNotFound
			return abortErr
		}
		if err != nil {
			return err
		}
		var d roomDoc
		if err := snap.DataTo(&d); err != nil {
			return fmt.Errorf("decode room %s: %w", roomID, err)
		}
		next, err := mutate(d.toDomain(roomID))
		if err != nil {
			abortErr = err
			return err
		}
		result = next
		return tx.Set(doc, toDoc(next))
	})
	if err != nil {
		if abortErr != nil && errors.Is(err, abortErr) {
			return domain.Room{}, abortErr
		}
		return domain.Room{}, storeErr("transact room", err)
	}
	return result, nil
}

// DeleteRoom removes the room document. Firestore deletes are idempotent.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if _, err := s.rooms.Doc(roomID).Delete(ctx); err != nil {
		return storeErr("delete room", err)
	}
	return nil
}

// ListJoinableRooms queries open rooms by flat-field equality. Best-effort:
// results lag committed writes, which discovery tolerates.
func (s *Store) ListJoinableRooms(ctx context.Context, limit int) ([]domain.Room, error) {
	iter := s.rooms.
		Where("guestId", "==", "").
		Where("started", "==", false).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var out []domain.Room
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, storeErr("list rooms", err)
		}
		var d roomDoc
		if err := snap.DataTo(&d); err != nil {
			continue // skip malformed documents rather than fail discovery
		}
		out = append(out, d.toDomain(snap.Ref.ID))
	}
}

// SubscribeRoom streams document snapshots. The iterator pushes every
// committed change, including this client's own writes; rapid updates may be
// coalesced to the latest value, matching the port contract.
func (s *Store) SubscribeRoom(ctx context.Context, roomID string) (<-chan ports.RoomSnapshot, func(), error) {
	sctx, cancel := context.WithCancel(ctx)
	snaps := s.rooms.Doc(roomID).Snapshots(sctx)
	out := make(chan ports.RoomSnapshot, 1)

	go func() {
		defer close(out)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				return
			}
			var ps ports.RoomSnapshot
			if snap.Exists() {
				var d roomDoc
				if err := snap.DataTo(&d); err != nil {
					continue
				}
				room := d.toDomain(roomID)
				ps.Room = &room
			}
			deliver(out, ps)
		}
	}()
	return out, cancel, nil
}

// deliver sends with coalescing: a slow consumer sees the newest snapshot.
func deliver(ch chan ports.RoomSnapshot, ps ports.RoomSnapshot) {
	select {
	case ch <- ps:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ps:
		default:
		}
	}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ports.ErrStoreUnavailable, op, err)
}
