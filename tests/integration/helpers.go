package integration

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"memoria/internal/app"
	"memoria/internal/domain"
	"memoria/internal/ports/memstore"
)

// TestClient bundles one simulated player: an anonymous identity, a service
// bound to the shared store, and (once opened) a running session.
type TestClient struct {
	Svc     *app.Service
	Session *app.Session
	UserID  string

	cancel context.CancelFunc
	done   chan error
}

func NewTestClient(t *testing.T, store *memstore.Store, seed int64) *TestClient {
	t.Helper()

	svc := app.NewService(store, memstore.NewIdentity(), rand.New(rand.NewSource(seed)))
	id, err := svc.PlayerID(context.Background())
	if err != nil {
		t.Fatalf("player id: %v", err)
	}
	return &TestClient{Svc: svc, UserID: id}
}

// OpenSession starts the session loop for the given room. Timer tunables are
// shortened so a full match plays out in milliseconds.
func (tc *TestClient) OpenSession(t *testing.T, roomID string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tc.cancel = cancel

	sess, err := app.NewSession(ctx, tc.Svc, roomID,
		app.WithResolveDelay(20*time.Millisecond),
		app.WithTurnLimit(time.Minute),
	)
	if err != nil {
		cancel()
		t.Fatalf("new session: %v", err)
	}
	tc.Session = sess
	tc.done = make(chan error, 1)
	go func() { tc.done <- sess.Run(ctx) }()
}

func (tc *TestClient) Close() {
	if tc.cancel != nil {
		tc.cancel()
	}
}

// WaitDone blocks until the session loop returns.
func (tc *TestClient) WaitDone(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-tc.done:
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for session of %s to finish", tc.UserID)
	}
}

// WaitForEvent drains the session stream until an event of the given kind
// arrives. Other events are discarded.
func (tc *TestClient) WaitForEvent(t *testing.T, kind app.EventKind, timeout time.Duration) app.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-tc.Session.Events():
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}

// WaitForState polls the view until it reaches the given state, so a caller
// can make sure the session consumed its first snapshot before mutating the
// room out from under it.
func (tc *TestClient) WaitForState(t *testing.T, state app.SessionState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if tc.Session.View().State == state {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for state %s of %s (state now %s)",
		state, tc.UserID, tc.Session.View().State)
}

// WaitForMyTurn polls the view until it is this player's turn and the board
// shows the expected number of matched tiles, i.e. the previous turn has
// fully settled.
func (tc *TestClient) WaitForMyTurn(t *testing.T, matchedTiles int, timeout time.Duration) app.View {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		v := tc.Session.View()
		if v.State == app.StateMyTurn && countMatched(v.Tiles) == matchedTiles {
			return v
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for turn of %s with %d matched tiles (state now %s)",
		tc.UserID, matchedTiles, tc.Session.View().State)
	return app.View{}
}

func countMatched(tiles []domain.Tile) int {
	n := 0
	for _, tile := range tiles {
		if tile.Matched {
			n++
		}
	}
	return n
}

// matchingPair returns two unmatched tile ids sharing a pair key.
func matchingPair(t *testing.T, tiles []domain.Tile) (int, int) {
	t.Helper()
	seen := map[int]int{}
	for _, tile := range tiles {
		if tile.Matched {
			continue
		}
		if first, ok := seen[tile.PairKey]; ok {
			return first, tile.ID
		}
		seen[tile.PairKey] = tile.ID
	}
	t.Fatal("no unmatched pair left on the board")
	return 0, 0
}

// mismatchedPair returns two unmatched tile ids with different pair keys.
func mismatchedPair(t *testing.T, tiles []domain.Tile) (int, int) {
	t.Helper()
	for i, a := range tiles {
		if a.Matched {
			continue
		}
		for _, b := range tiles[i+1:] {
			if !b.Matched && b.PairKey != a.PairKey {
				return a.ID, b.ID
			}
		}
	}
	t.Fatal("no mismatched pair left on the board")
	return 0, 0
}
