package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoria/internal/domain"
	"memoria/internal/ports/memstore"
)

func newTestSession(t *testing.T, ctx context.Context, svc *Service, roomID string) *Session {
	t.Helper()
	sess, err := NewSession(ctx, svc, roomID,
		WithResolveDelay(10*time.Millisecond),
		WithTurnLimit(time.Minute))
	require.NoError(t, err)
	return sess
}

// waitEvent drains the stream until the wanted kind arrives.
func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed before %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func waitState(t *testing.T, sess *Session, state SessionState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if sess.View().State == state {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("view never reached %s (at %s)", state, sess.View().State)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSessionObservesJoinAndStart(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room, err := host.CreateRoom(ctx, domain.DifficultyEasy, domain.TimerPolicy{})
	require.NoError(t, err)

	sess := newTestSession(t, ctx, host, room.RoomID)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	waitState(t, sess, StateAwaitingOpponent)

	_, err = guest.JoinRoom(ctx, room.RoomID)
	require.NoError(t, err)
	ev := waitEvent(t, sess.Events(), EventOpponentJoined)
	guestID, _ := guest.PlayerID(ctx)
	assert.Equal(t, guestID, ev.Payload.(OpponentJoinedPayload).OpponentID)
	waitState(t, sess, StateReady)

	_, err = host.StartGame(ctx, room.RoomID)
	require.NoError(t, err)
	hostID, _ := host.PlayerID(ctx)
	started := waitEvent(t, sess.Events(), EventGameStarted)
	assert.Equal(t, hostID, started.Payload.(GameStartedPayload).FirstTurnPlayerID)
	waitState(t, sess, StateMyTurn)
	assert.True(t, sess.View().MyTurn)

	cancel()
	<-done
}

func TestSessionResolvesOwnSecondRevealOnce(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room := startedMatch(t, ctx, host, guest)

	// A wide resolve delay leaves room to replay the armed state below
	// before the resolution write happens.
	sess, err := NewSession(ctx, host, room.RoomID,
		WithResolveDelay(200*time.Millisecond),
		WithTurnLimit(time.Minute))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	waitState(t, sess, StateMyTurn)

	a, b := pairOnBoard(room.Board, true)
	require.NoError(t, sess.Reveal(ctx, a))
	require.NoError(t, sess.Reveal(ctx, b))

	// Simulate the store redelivering the armed state before the resolver
	// fires; the local gate must not schedule a second resolution.
	armed, err := store.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	require.True(t, armed.Resolving)
	require.NoError(t, store.SetRoom(ctx, armed))

	matched := waitEvent(t, sess.Events(), EventPairMatched)
	payload := matched.Payload.(PairMatchedPayload)
	assert.ElementsMatch(t, []int{a, b}, payload.TileIDs)
	assert.Equal(t, 1, payload.HostScore)

	// Give a hypothetical duplicate resolution time to land, then check the
	// score advanced exactly once.
	time.Sleep(300 * time.Millisecond)
	final, err := store.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, 1, final.HostScore)
	assert.False(t, final.Resolving)
	assert.Empty(t, final.PendingReveals)

	cancel()
	<-done
}

func TestSessionMismatchPassesTurn(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room := startedMatch(t, ctx, host, guest)

	sess := newTestSession(t, ctx, host, room.RoomID)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	waitState(t, sess, StateMyTurn)

	a, b := pairOnBoard(room.Board, false)
	require.NoError(t, sess.Reveal(ctx, a))
	require.NoError(t, sess.Reveal(ctx, b))

	// The resolution snapshot emits the turn change ahead of the miss.
	turn := waitEvent(t, sess.Events(), EventTurnChanged)
	payload := turn.Payload.(TurnChangedPayload)
	guestID, _ := guest.PlayerID(ctx)
	assert.Equal(t, guestID, payload.TurnHolderID)
	assert.False(t, payload.Mine)

	missed := waitEvent(t, sess.Events(), EventPairMissed)
	assert.ElementsMatch(t, []int{a, b}, missed.Payload.(PairMissedPayload).TileIDs)
	waitState(t, sess, StateOpponentTurn)

	final, err := store.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Zero(t, final.HostScore)
	assert.Zero(t, final.GuestScore)

	cancel()
	<-done
}

func TestSessionEndsWhenOpponentLeaves(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room := startedMatch(t, ctx, host, guest)

	sess := newTestSession(t, ctx, host, room.RoomID)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	waitState(t, sess, StateMyTurn)

	require.NoError(t, guest.LeaveRoom(ctx, room.RoomID))

	waitEvent(t, sess.Events(), EventOpponentLeft)
	ended := waitEvent(t, sess.Events(), EventGameEnded)
	payload := ended.Payload.(GameEndedPayload)
	hostID, _ := host.PlayerID(ctx)
	assert.Equal(t, hostID, payload.Outcome.WinnerID, "remaining player wins an abandoned match")
	assert.True(t, payload.IWin)

	require.NoError(t, <-done)
	assert.Equal(t, StateFinished, sess.View().State)
}

func TestSessionAbortsWhenHostDeletesRoom(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room := startedMatch(t, ctx, host, guest)

	sess := newTestSession(t, ctx, guest, room.RoomID)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	waitState(t, sess, StateOpponentTurn)

	require.NoError(t, host.LeaveRoom(ctx, room.RoomID))

	closed := waitEvent(t, sess.Events(), EventSessionClosed)
	assert.NotEmpty(t, closed.Payload.(SessionClosedPayload).Reason)

	require.NoError(t, <-done)
	assert.Equal(t, StateAborted, sess.View().State)
}

func TestSessionTurnTimerForcesPass(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room := startedMatch(t, ctx, host, guest)

	sess, err := NewSession(ctx, host, room.RoomID,
		WithResolveDelay(10*time.Millisecond),
		WithTurnLimit(50*time.Millisecond))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	turn := waitEvent(t, sess.Events(), EventTurnChanged)
	guestID, _ := guest.PlayerID(ctx)
	assert.Equal(t, guestID, turn.Payload.(TurnChangedPayload).TurnHolderID)

	cancel()
	<-done
}

func TestSessionMatchCountdownFinishesTimedMatch(t *testing.T) {
	store := memstore.New()
	host := newTestClient(store, 1)
	guest := newTestClient(store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room, err := host.CreateRoom(ctx, domain.DifficultyEasy, domain.TimerPolicy{Timed: true, LimitSeconds: 1})
	require.NoError(t, err)
	_, err = guest.JoinRoom(ctx, room.RoomID)
	require.NoError(t, err)

	// Backdate the start so the countdown is already expired when the
	// session computes the deadline.
	current, err := store.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	started, err := domain.Start(current, current.HostID, time.Now().Add(-2*time.Second).UnixMilli())
	require.NoError(t, err)
	require.NoError(t, store.SetRoom(ctx, started))

	sess := newTestSession(t, ctx, host, room.RoomID)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	waitEvent(t, sess.Events(), EventGameEnded)
	require.NoError(t, <-done)

	final, err := store.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.True(t, final.Finished)
}
