package app

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"memoria/internal/domain"
	"memoria/internal/ports"
	"memoria/internal/ports/memstore"
)

// newTestClient returns a service bound to its own anonymous identity over
// the shared store, simulating one device.
func newTestClient(store *memstore.Store, seed int64) *Service {
	return NewService(store, memstore.NewIdentity(), rand.New(rand.NewSource(seed)))
}

func TestCreateRoomBoardShape(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	ctx := context.Background()

	room, err := host.CreateRoom(ctx, domain.DifficultyEasy, domain.TimerPolicy{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.RoomID == "" {
		t.Fatal("room id not allocated")
	}
	if len(room.Board) != 8 {
		t.Fatalf("board size = %d, want 8", len(room.Board))
	}
	counts := make(map[int]int)
	for _, tile := range room.Board {
		counts[tile.PairKey]++
	}
	if len(counts) != 4 {
		t.Fatalf("distinct pairKeys = %d, want 4", len(counts))
	}
	for pairKey, n := range counts {
		if n != 2 {
			t.Errorf("pairKey %d appears %d times, want 2", pairKey, n)
		}
	}
	hostID, _ := host.PlayerID(ctx)
	if room.HostID != hostID || room.TurnHolder != hostID {
		t.Error("host is not seated as first turn holder")
	}
}

func TestCreateRoomRejectsUnknownDifficulty(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)

	if _, err := host.CreateRoom(context.Background(), domain.Difficulty(42), domain.TimerPolicy{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("error = %v, want %v", err, domain.ErrInvalidArgument)
	}
}

func TestJoinAndStartFlow(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx := context.Background()

	room, err := host.CreateRoom(ctx, domain.DifficultyEasy, domain.TimerPolicy{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Guest cannot start before joining; only the host may start at all.
	if _, err := guest.StartGame(ctx, room.RoomID); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("guest start error = %v, want %v", err, domain.ErrNotHost)
	}
	if _, err := host.StartGame(ctx, room.RoomID); !errors.Is(err, domain.ErrGuestMissing) {
		t.Fatalf("early start error = %v, want %v", err, domain.ErrGuestMissing)
	}

	joined, err := guest.JoinRoom(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	guestID, _ := guest.PlayerID(ctx)
	if joined.GuestID != guestID {
		t.Errorf("guestID = %q, want %q", joined.GuestID, guestID)
	}

	started, err := host.StartGame(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.Started || started.StartedAt == 0 {
		t.Error("match not marked started")
	}

	if _, err := host.StartGame(ctx, room.RoomID); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("restart error = %v, want %v", err, domain.ErrAlreadyStarted)
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	store := memstore.New()
	guest := newTestClient(store, 2)

	if _, err := guest.JoinRoom(context.Background(), "missing"); !errors.Is(err, ports.ErrRoomNotFound) {
		t.Fatalf("error = %v, want %v", err, ports.ErrRoomNotFound)
	}
}

func TestRevealRejectsOutOfTurn(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx := context.Background()

	room := startedMatch(t, ctx, host, guest)

	before, _ := store.GetRoom(ctx, room.RoomID)
	if _, err := guest.RevealTile(ctx, room.RoomID, before.Board[0].ID); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("error = %v, want %v", err, domain.ErrNotYourTurn)
	}
	after, _ := store.GetRoom(ctx, room.RoomID)
	for i := range before.Board {
		if before.Board[i] != after.Board[i] {
			t.Fatal("board changed by a rejected reveal")
		}
	}
	if len(after.PendingReveals) != 0 {
		t.Fatal("pending reveals recorded for a rejected reveal")
	}
}

func TestResolvePendingOnlyForSecondRevealAuthor(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx := context.Background()

	room := startedMatch(t, ctx, host, guest)

	// Not resolving yet.
	if _, err := host.ResolvePending(ctx, room.RoomID); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("premature resolve error = %v, want %v", err, domain.ErrInvariant)
	}

	a, b := pairOnBoard(room.Board, true)
	if _, err := host.RevealTile(ctx, room.RoomID, a); err != nil {
		t.Fatalf("reveal a: %v", err)
	}
	if _, err := host.RevealTile(ctx, room.RoomID, b); err != nil {
		t.Fatalf("reveal b: %v", err)
	}

	// The guest did not author the second reveal and must not resolve.
	if _, err := guest.ResolvePending(ctx, room.RoomID); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("wrong resolver error = %v, want %v", err, domain.ErrInvariant)
	}

	resolved, err := host.ResolvePending(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.HostScore != 1 {
		t.Errorf("hostScore = %d, want 1", resolved.HostScore)
	}
	hostID, _ := host.PlayerID(ctx)
	if resolved.TurnHolder != hostID {
		t.Error("turn passed on a match")
	}

	// The gate is cleared; a second resolution attempt has nothing to do.
	if _, err := host.ResolvePending(ctx, room.RoomID); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("duplicate resolve error = %v, want %v", err, domain.ErrInvariant)
	}
}

func TestGuestLeaveFinishesStartedMatch(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx := context.Background()

	room := startedMatch(t, ctx, host, guest)

	if err := guest.LeaveRoom(ctx, room.RoomID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	after, err := store.GetRoom(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.GuestID != "" {
		t.Error("guest seat not cleared")
	}
	if !after.Finished {
		t.Error("match not finished after guest left")
	}
}

func TestHostLeaveDeletesRoom(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx := context.Background()

	room := startedMatch(t, ctx, host, guest)

	if err := host.LeaveRoom(ctx, room.RoomID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := store.GetRoom(ctx, room.RoomID); !errors.Is(err, ports.ErrRoomNotFound) {
		t.Fatalf("room still present: %v", err)
	}

	// Leaving an already-deleted room is not an error.
	if err := guest.LeaveRoom(ctx, room.RoomID); err != nil {
		t.Fatalf("leave after delete: %v", err)
	}
}

func TestFindJoinableRooms(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	other := newTestClient(store, 2)
	ctx := context.Background()

	open, err := host.CreateRoom(ctx, domain.DifficultyEasy, domain.TimerPolicy{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	taken := startedMatch(t, ctx, other, newTestClient(store, 3))

	rooms, err := host.FindJoinableRooms(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != open.RoomID {
		t.Fatalf("rooms = %v, want only %s (not %s)", roomIDs(rooms), open.RoomID, taken.RoomID)
	}
}

// startedMatch drives host-create, guest-join, host-start and returns the
// started room.
func startedMatch(t *testing.T, ctx context.Context, host, guest *Service) domain.Room {
	t.Helper()
	room, err := host.CreateRoom(ctx, domain.DifficultyEasy, domain.TimerPolicy{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := guest.JoinRoom(ctx, room.RoomID); err != nil {
		t.Fatalf("join room: %v", err)
	}
	started, err := host.StartGame(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	return started
}

// pairOnBoard returns two tile ids that match (or mismatch) on the board.
func pairOnBoard(board []domain.Tile, matching bool) (int, int) {
	for i := range board {
		for j := i + 1; j < len(board); j++ {
			if (board[i].PairKey == board[j].PairKey) == matching {
				return board[i].ID, board[j].ID
			}
		}
	}
	return -1, -1
}

func roomIDs(rooms []domain.Room) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.RoomID
	}
	return out
}
