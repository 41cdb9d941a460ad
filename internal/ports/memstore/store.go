// Package memstore is an in-memory ports.RoomStore with the same semantics
// the protocol assumes of the real backend: versioned documents, a
// conditional-retry transaction, and coalescing per-document subscriptions.
// It backs the deterministic concurrency tests and local play.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"memoria/internal/domain"
	"memoria/internal/ports"
)

type entry struct {
	room    domain.Room
	version uint64
}

// Store is safe for concurrent use by any number of clients.
type Store struct {
	mu     sync.Mutex
	rooms  map[string]*entry
	subs   map[string]map[int]chan ports.RoomSnapshot
	nextID int
}

var _ ports.RoomStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms: make(map[string]*entry),
		subs:  make(map[string]map[int]chan ports.RoomSnapshot),
	}
}

// CreateRoom allocates a fresh id and writes the room under it.
func (s *Store) CreateRoom(ctx context.Context, room domain.Room) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	roomID := uuid.NewString()
	room.RoomID = roomID

	s.mu.Lock()
	s.rooms[roomID] = &entry{room: room.Clone(), version: 1}
	s.notifyLocked(roomID)
	s.mu.Unlock()
	return roomID, nil
}

// GetRoom reads the current document value.
func (s *Store) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return domain.Room{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, ports.ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

// SetRoom overwrites the document, last write wins.
func (s *Store) SetRoom(ctx context.Context, room domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[room.RoomID]
	if !ok {
		return ports.ErrRoomNotFound
	}
	e.room = room.Clone()
	e.version++
	s.notifyLocked(room.RoomID)
	return nil
}

// TransactRoom re-applies mutate to the latest value until the compare-and-swap
// commit succeeds or mutate aborts. Mutate runs outside the store lock, so
// concurrent transactions genuinely interleave and retry.
func (s *Store) TransactRoom(ctx context.Context, roomID string, mutate func(domain.Room) (domain.Room, error)) (domain.Room, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Room{}, err
		}

		s.mu.Lock()
		e, ok := s.rooms[roomID]
		if !ok {
			s.mu.Unlock()
			return domain.Room{}, ports.ErrRoomNotFound
		}
		base := e.room.Clone()
		baseVersion := e.version
		s.mu.Unlock()

		next, err := mutate(base)
		if err != nil {
			return domain.Room{}, err
		}

		s.mu.Lock()
		e, ok = s.rooms[roomID]
		if !ok {
			s.mu.Unlock()
			return domain.Room{}, ports.ErrRoomNotFound
		}
		if e.version != baseVersion {
			s.mu.Unlock()
			continue // interleaved commit, retry against the fresh value
		}
		next.RoomID = roomID
		e.room = next.Clone()
		e.version++
		s.notifyLocked(roomID)
		s.mu.Unlock()
		return next, nil
	}
}

// DeleteRoom removes the document and pushes an absent snapshot to
// subscribers. Deleting a missing room is a no-op.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil
	}
	delete(s.rooms, roomID)
	s.notifyLocked(roomID)
	return nil
}

// ListJoinableRooms returns open rooms, newest first.
func (s *Store) ListJoinableRooms(ctx context.Context, limit int) ([]domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Room
	for _, e := range s.rooms {
		if e.room.Joinable() {
			out = append(out, e.room.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SubscribeRoom registers a subscriber and immediately delivers the current
// state. Deliveries coalesce: a slow consumer sees the latest committed
// value, not every intermediate one, matching the backend's contract.
func (s *Store) SubscribeRoom(ctx context.Context, roomID string) (<-chan ports.RoomSnapshot, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ch := make(chan ports.RoomSnapshot, 1)

	s.mu.Lock()
	if s.subs[roomID] == nil {
		s.subs[roomID] = make(map[int]chan ports.RoomSnapshot)
	}
	id := s.nextID
	s.nextID++
	s.subs[roomID][id] = ch
	ch <- s.snapshotLocked(roomID)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.subs[roomID]; ok {
			if c, ok := set[id]; ok {
				delete(set, id)
				close(c)
			}
		}
	}
	return ch, cancel, nil
}

func (s *Store) snapshotLocked(roomID string) ports.RoomSnapshot {
	if e, ok := s.rooms[roomID]; ok {
		room := e.room.Clone()
		return ports.RoomSnapshot{Room: &room}
	}
	return ports.RoomSnapshot{}
}

// notifyLocked fans the current state out to every subscriber, replacing any
// undelivered older snapshot so a subscriber always drains to the latest.
func (s *Store) notifyLocked(roomID string) {
	snap := s.snapshotLocked(roomID)
	for _, ch := range s.subs[roomID] {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
