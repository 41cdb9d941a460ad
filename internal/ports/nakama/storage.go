// Package nakama adapts the room store and its RPC surface to the Nakama
// runtime, for deployments that host matches on a Nakama server instead of a
// managed document store. The storage engine's version-conditional writes
// supply the conditional-retry primitive.
package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"

	"memoria/internal/domain"
	"memoria/internal/ports"
)

const (
	roomsCollection = "memoria_rooms"

	// transactAttempts caps version-conflict retries before the failure is
	// treated as an outage rather than contention.
	transactAttempts = 16
)

// errVersionConflict marks a conditional write rejected by the storage
// engine's version check. Only this error is worth re-reading for; anything
// else from the engine is an outage and retrying would just repeat it.
var errVersionConflict = errors.New("version conflict")

func isVersionConflict(err error) bool {
	return strings.Contains(err.Error(), "version check failed")
}

// StorageStore implements ports.RoomStore on the Nakama storage engine.
// Subscriptions are served by a process-local hub fed by this store's own
// commits; all room writes on a node flow through the module, so every
// subscriber on that node observes every committed change.
type StorageStore struct {
	nk  runtime.NakamaModule
	hub *hub
}

var _ ports.RoomStore = (*StorageStore)(nil)

// NewStorageStore wraps the Nakama module.
func NewStorageStore(nk runtime.NakamaModule) *StorageStore {
	return &StorageStore{nk: nk, hub: newHub()}
}

// CreateRoom writes the room under a fresh key with a must-not-exist guard.
func (s *StorageStore) CreateRoom(ctx context.Context, room domain.Room) (string, error) {
	roomID := uuid.NewString()
	room.RoomID = roomID
	if err := s.write(ctx, room, "*"); err != nil {
		return "", err
	}
	s.hub.publish(roomID, snapshotOf(room))
	return roomID, nil
}

// GetRoom reads the current room value.
func (s *StorageStore) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	room, _, err := s.read(ctx, roomID)
	return room, err
}

// SetRoom overwrites the room unconditionally, last write wins.
func (s *StorageStore) SetRoom(ctx context.Context, room domain.Room) error {
	if err := s.write(ctx, room, ""); err != nil {
		return err
	}
	s.hub.publish(room.RoomID, snapshotOf(room))
	return nil
}

// TransactRoom re-runs mutate against a fresh read and commits with the read
// version until the conditional write lands or mutate aborts.
func (s *StorageStore) TransactRoom(ctx context.Context, roomID string, mutate func(domain.Room) (domain.Room, error)) (domain.Room, error) {
	for attempt := 0; attempt < transactAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Room{}, err
		}
		base, version, err := s.read(ctx, roomID)
		if err != nil {
			return domain.Room{}, err
		}
		next, err := mutate(base)
		if err != nil {
			return domain.Room{}, err
		}
		next.RoomID = roomID
		if err := s.write(ctx, next, version); err != nil {
			if errors.Is(err, errVersionConflict) {
				continue // interleaved commit, re-read
			}
			return domain.Room{}, err
		}
		s.hub.publish(roomID, snapshotOf(next))
		return next, nil
	}
	return domain.Room{}, fmt.Errorf("%w: transact room %s: retries exhausted", ports.ErrStoreUnavailable, roomID)
}

// DeleteRoom removes the room object and tells subscribers it is gone.
func (s *StorageStore) DeleteRoom(ctx context.Context, roomID string) error {
	err := s.nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: roomsCollection,
		Key:        roomID,
	}})
	if err != nil {
		return fmt.Errorf("%w: delete room: %v", ports.ErrStoreUnavailable, err)
	}
	s.hub.publish(roomID, ports.RoomSnapshot{})
	return nil
}

// ListJoinableRooms scans the rooms collection and filters open rooms.
func (s *StorageStore) ListJoinableRooms(ctx context.Context, limit int) ([]domain.Room, error) {
	objects, _, err := s.nk.StorageList(ctx, "", "", roomsCollection, limit, "")
	if err != nil {
		return nil, fmt.Errorf("%w: list rooms: %v", ports.ErrStoreUnavailable, err)
	}
	var out []domain.Room
	for _, obj := range objects {
		var room domain.Room
		if err := json.Unmarshal([]byte(obj.GetValue()), &room); err != nil {
			continue
		}
		if room.Joinable() {
			out = append(out, room)
		}
	}
	return out, nil
}

// SubscribeRoom subscribes through the local hub, primed with the current
// stored value.
func (s *StorageStore) SubscribeRoom(ctx context.Context, roomID string) (<-chan ports.RoomSnapshot, func(), error) {
	ch, cancel := s.hub.subscribe(roomID)
	room, _, err := s.read(ctx, roomID)
	switch err {
	case nil:
		s.hub.publish(roomID, snapshotOf(room))
	case ports.ErrRoomNotFound:
		s.hub.publish(roomID, ports.RoomSnapshot{})
	default:
		cancel()
		return nil, nil, err
	}
	return ch, cancel, nil
}

func (s *StorageStore) read(ctx context.Context, roomID string) (domain.Room, string, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: roomsCollection,
		Key:        roomID,
	}})
	if err != nil {
		return domain.Room{}, "", fmt.Errorf("%w: read room: %v", ports.ErrStoreUnavailable, err)
	}
	if len(objects) == 0 {
		return domain.Room{}, "", ports.ErrRoomNotFound
	}
	var room domain.Room
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &room); err != nil {
		return domain.Room{}, "", fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return room, objects[0].GetVersion(), nil
}

// write persists the room. version "" is unconditional, "*" requires the key
// not to exist, anything else is a compare-and-swap on the stored version.
func (s *StorageStore) write(ctx context.Context, room domain.Room, version string) error {
	value, err := json.Marshal(room)
	if err != nil {
		return err
	}
	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      roomsCollection,
		Key:             room.RoomID,
		Value:           string(value),
		Version:         version,
		PermissionRead:  2,
		PermissionWrite: 0, // only the module writes rooms
	}})
	if err != nil {
		if isVersionConflict(err) {
			return fmt.Errorf("%w: write room %s", errVersionConflict, room.RoomID)
		}
		return fmt.Errorf("%w: write room: %v", ports.ErrStoreUnavailable, err)
	}
	return nil
}

func snapshotOf(room domain.Room) ports.RoomSnapshot {
	r := room.Clone()
	return ports.RoomSnapshot{Room: &r}
}
