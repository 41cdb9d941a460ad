package app

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"memoria/internal/config"
	"memoria/internal/domain"
	"memoria/internal/ports"
)

// Service contains the networked-match use-cases. All state lives in the
// shared room document behind the store port; the service itself only holds
// its dependencies, so one instance per client is the norm.
type Service struct {
	store ports.RoomStore
	ids   ports.IdentityProvider
	rng   *rand.Rand
	cfg   *config.GameConfig
}

// NewService constructs a Service with the provided rng or a time-seeded
// default.
func NewService(store ports.RoomStore, ids ports.IdentityProvider, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{store: store, ids: ids, rng: rng, cfg: config.GetGameConfig()}
}

// PlayerID resolves this client's stable anonymous identity.
func (s *Service) PlayerID(ctx context.Context) (string, error) {
	id, err := s.ids.PlayerID(ctx)
	if err != nil || id == "" {
		return "", ports.ErrNotAuthenticated
	}
	return id, nil
}

// CreateRoom allocates a new room document with a freshly shuffled board and
// the caller as host and first turn holder. The store round trip is bounded
// by the configured creation timeout.
func (s *Service) CreateRoom(ctx context.Context, difficulty domain.Difficulty, timer domain.TimerPolicy) (domain.Room, error) {
	playerID, err := s.PlayerID(ctx)
	if err != nil {
		return domain.Room{}, err
	}
	pairs, err := domain.PairCount(difficulty)
	if err != nil {
		return domain.Room{}, err
	}
	board, err := domain.NewBoard(pairs, s.rng)
	if err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{
		HostID:     playerID,
		Difficulty: difficulty,
		Timer:      timer,
		Board:      board,
		TurnHolder: playerID,
		CreatedAt:  time.Now().UnixMilli(),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.CreateTimeoutSeconds)*time.Second)
	defer cancel()

	roomID, err := s.store.CreateRoom(ctx, room)
	if err != nil {
		return domain.Room{}, err
	}
	room.RoomID = roomID
	return room, nil
}

// GetRoom reads the current room document.
func (s *Service) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	return s.store.GetRoom(ctx, roomID)
}

// JoinRoom admits the caller as guest. Runs as a conditional-retry
// transaction: two simultaneous joiners both reading an empty guest seat
// cannot both commit, so at most one is ever admitted.
func (s *Service) JoinRoom(ctx context.Context, roomID string) (domain.Room, error) {
	playerID, err := s.PlayerID(ctx)
	if err != nil {
		return domain.Room{}, err
	}
	return s.store.TransactRoom(ctx, roomID, func(r domain.Room) (domain.Room, error) {
		return domain.Join(r, playerID)
	})
}

// StartGame flips the one-shot started flag. A plain guarded write suffices:
// only the host may perform it and it is monotonic.
func (s *Service) StartGame(ctx context.Context, roomID string) (domain.Room, error) {
	playerID, err := s.PlayerID(ctx)
	if err != nil {
		return domain.Room{}, err
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	next, err := domain.Start(room, playerID, time.Now().UnixMilli())
	if err != nil {
		return domain.Room{}, err
	}
	if err := s.store.SetRoom(ctx, next); err != nil {
		return domain.Room{}, err
	}
	return next, nil
}

// RevealTile advances one tile reveal inside the caller's turn. The reducer
// runs inside the store's conditional-retry transaction so every precondition
// is enforced against the freshest committed value. A rejection is terminal
// for the tap; the caller rolls back any optimistic UI state and must not
// retry.
func (s *Service) RevealTile(ctx context.Context, roomID string, tileID int) (domain.Room, error) {
	playerID, err := s.PlayerID(ctx)
	if err != nil {
		return domain.Room{}, err
	}
	room, err := s.store.TransactRoom(ctx, roomID, func(r domain.Room) (domain.Room, error) {
		return domain.Reveal(r, playerID, tileID)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// ResolvePending settles the current two-reveal turn. Only the author of the
// second reveal may call this, which the Resolving/LastRevealBy gate written
// by the reveal transaction guarantees. It still runs as a transaction: the
// opponent can leave between the reveal and the resolve, and a full-document
// write from a read taken before that departure would resurrect the guest
// and un-finish the match.
func (s *Service) ResolvePending(ctx context.Context, roomID string) (domain.Room, error) {
	playerID, err := s.PlayerID(ctx)
	if err != nil {
		return domain.Room{}, err
	}
	return s.store.TransactRoom(ctx, roomID, func(r domain.Room) (domain.Room, error) {
		if r.Finished {
			return r, domain.ErrFinished
		}
		if !r.Resolving || r.LastRevealBy != playerID {
			return r, domain.ErrInvariant
		}
		return domain.Resolve(r)
	})
}

// LeaveRoom departs the match. The host deletes the document outright, which
// ends the match for both sides; a guest clears the seat, finishing an
// in-progress match since it cannot continue one-sided.
func (s *Service) LeaveRoom(ctx context.Context, roomID string) error {
	playerID, err := s.PlayerID(ctx)
	if err != nil {
		return err
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ports.ErrRoomNotFound) {
			return nil
		}
		return err
	}
	switch playerID {
	case room.HostID:
		return s.store.DeleteRoom(ctx, roomID)
	case room.GuestID:
		return s.store.SetRoom(ctx, domain.GuestLeave(room))
	}
	return nil
}

// errNoop tells TransactRoom the mutation has nothing to write. Timer
// callbacks fire on both clients and the loser of the race must not commit.
var errNoop = errors.New("no change")

// ForcePassTurn hands the turn to the waiting player after the per-turn
// countdown expires. Both clients may run it redundantly, so it goes through
// the transaction: a stale full-document write here would roll back whatever
// the players committed since the timer's read.
func (s *Service) ForcePassTurn(ctx context.Context, roomID string) error {
	_, err := s.store.TransactRoom(ctx, roomID, func(r domain.Room) (domain.Room, error) {
		next, changed := domain.ForcePass(r)
		if !changed {
			return r, errNoop
		}
		return next, nil
	})
	if errors.Is(err, errNoop) {
		return nil
	}
	return err
}

// FinishByTimeout ends a timed match whose global countdown has elapsed.
func (s *Service) FinishByTimeout(ctx context.Context, roomID string) error {
	_, err := s.store.TransactRoom(ctx, roomID, func(r domain.Room) (domain.Room, error) {
		next, changed := domain.FinishByTimeout(r)
		if !changed {
			return r, errNoop
		}
		return next, nil
	})
	if errors.Is(err, errNoop) {
		return nil
	}
	return err
}

// FindJoinableRooms lists open rooms for the lobby. Best-effort discovery.
func (s *Service) FindJoinableRooms(ctx context.Context) ([]domain.Room, error) {
	return s.store.ListJoinableRooms(ctx, s.cfg.RoomListLimit)
}
