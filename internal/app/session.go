package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"memoria/internal/config"
	"memoria/internal/domain"
	"memoria/internal/ports"
)

// SessionState is this client's local view of where the match stands.
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateAwaitingOpponent SessionState = "awaiting_opponent"
	StateReady            SessionState = "ready"
	StateMyTurn           SessionState = "my_turn"
	StateOpponentTurn     SessionState = "opponent_turn"
	StateResolving        SessionState = "resolving"
	StateFinished         SessionState = "finished"
	StateAborted          SessionState = "aborted"
)

// View is the render-ready projection of the latest room snapshot.
type View struct {
	State         SessionState
	Tiles         []domain.Tile
	TurnHolder    string
	MyTurn        bool
	MyScore       int
	OpponentScore int
	Outcome       *domain.Outcome
	AbortReason   string
}

const (
	resubscribeBackoffMin = 500 * time.Millisecond
	resubscribeBackoffMax = 8 * time.Second
)

// Session is the client-side observer/reconciler for one room. It consumes
// the room subscription, reduces every snapshot to a View, emits transition
// events for the UI, runs the per-turn and per-match countdowns, and triggers
// the match resolver when this client authored the second reveal of a turn.
//
// Snapshot handling is idempotent: the store may redeliver or coalesce, so
// all events are derived from differences against the previously seen value,
// never from delivery counts.
type Session struct {
	svc      *Service
	store    ports.RoomStore
	roomID   string
	playerID string

	resolveDelay time.Duration
	turnLimit    time.Duration

	events chan Event

	mu   sync.Mutex
	view View

	// Consumed only by the Run goroutine.
	prev           *domain.Room
	localResolving bool
	endedEmitted   bool
	matchTimerSet  bool
	turnTimer      *time.Timer
	matchTimer     *time.Timer

	revealInFlight atomic.Bool
}

// SessionOption overrides a session tunable.
type SessionOption func(*Session)

// WithResolveDelay overrides the configured pre-resolution display delay.
func WithResolveDelay(d time.Duration) SessionOption {
	return func(s *Session) { s.resolveDelay = d }
}

// WithTurnLimit overrides the configured per-turn countdown.
func WithTurnLimit(d time.Duration) SessionOption {
	return func(s *Session) { s.turnLimit = d }
}

// NewSession binds a session to a room for the calling client.
func NewSession(ctx context.Context, svc *Service, roomID string, opts ...SessionOption) (*Session, error) {
	playerID, err := svc.PlayerID(ctx)
	if err != nil {
		return nil, err
	}
	cfg := config.GetGameConfig()
	s := &Session{
		svc:          svc,
		store:        svc.store,
		roomID:       roomID,
		playerID:     playerID,
		resolveDelay: time.Duration(cfg.ResolveDelayMillis) * time.Millisecond,
		turnLimit:    time.Duration(cfg.TurnDurationSeconds) * time.Second,
		events:       make(chan Event, 64),
		view:         View{State: StateIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Events is the stream of derived session events. Closed when Run returns.
func (s *Session) Events() <-chan Event { return s.events }

// View returns the latest derived view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// PlayerID returns this session's identity.
func (s *Session) PlayerID() string { return s.playerID }

// Reveal attempts one tile reveal. A client never runs two reveal
// transactions concurrently: a second tap while one is outstanding is
// rejected immediately without touching the store.
func (s *Session) Reveal(ctx context.Context, tileID int) error {
	if !s.revealInFlight.CompareAndSwap(false, true) {
		return domain.ErrTurnBusy
	}
	defer s.revealInFlight.Store(false)
	_, err := s.svc.RevealTile(ctx, s.roomID, tileID)
	return err
}

// Leave departs the room best-effort without blocking the caller. Cancel the
// Run context alongside to drop the subscription.
func (s *Session) Leave() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.svc.LeaveRoom(ctx, s.roomID)
	}()
}

// Run drives the subscription until the match reaches a terminal state or
// ctx is cancelled. A dropped subscription self-heals with capped exponential
// backoff; the match state is whatever the next snapshot says it is.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.events)

	s.turnTimer = newStoppedTimer()
	defer s.turnTimer.Stop()
	s.matchTimer = newStoppedTimer()
	defer s.matchTimer.Stop()

	backoff := resubscribeBackoffMin
	for {
		ch, cancel, err := s.store.SubscribeRoom(ctx, s.roomID)
		if err != nil {
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = resubscribeBackoffMin

		terminal, consumeErr := s.consume(ctx, ch)
		cancel()
		if terminal || consumeErr != nil {
			return consumeErr
		}
		// Stream ended without a terminal state; resubscribe.
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Session) consume(ctx context.Context, ch <-chan ports.RoomSnapshot) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return false, nil
			}
			if s.apply(ctx, snap) {
				return true, nil
			}
		case <-s.turnTimer.C:
			// Soft mechanism: both clients may fire this redundantly.
			go func() {
				tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				_ = s.svc.ForcePassTurn(tctx, s.roomID)
			}()
		case <-s.matchTimer.C:
			go func() {
				tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				_ = s.svc.FinishByTimeout(tctx, s.roomID)
			}()
		}
	}
}

// apply reduces one snapshot. Returns true when the session reached a
// terminal state (Finished or Aborted).
func (s *Session) apply(ctx context.Context, snap ports.RoomSnapshot) bool {
	if snap.Room == nil {
		if s.prev == nil {
			// Never saw the room at all.
			s.setView(View{State: StateAborted, AbortReason: "room not found"})
			s.emit(Event{Kind: EventSessionClosed, Payload: SessionClosedPayload{Reason: "room not found"}})
			return true
		}
		if s.endedEmitted {
			return true
		}
		s.setView(View{State: StateAborted, AbortReason: "room closed by host"})
		s.emit(Event{Kind: EventSessionClosed, Payload: SessionClosedPayload{Reason: "room closed by host"}})
		return true
	}

	r := snap.Room.Clone()
	prev := s.prev
	s.prev = &r

	s.emitTransitions(prev, r)
	s.setView(s.deriveView(r))
	s.gateResolver(ctx, r)
	s.manageTimers(prev, r)

	if r.Finished {
		if !s.endedEmitted {
			s.endedEmitted = true
			out := endOutcome(r)
			s.emit(Event{Kind: EventGameEnded, Payload: GameEndedPayload{
				Outcome: out,
				IWin:    out.WinnerID == s.playerID,
				Draw:    out.Draw,
			}})
		}
		return true
	}
	return false
}

func (s *Session) emitTransitions(prev *domain.Room, r domain.Room) {
	if prev == nil {
		// Initial snapshot is state, not a transition.
		return
	}
	if prev.GuestID == "" && r.GuestID != "" && r.GuestID != s.playerID {
		s.emit(Event{Kind: EventOpponentJoined, Payload: OpponentJoinedPayload{OpponentID: r.GuestID}})
	}
	if prev.GuestID != "" && r.GuestID == "" && prev.GuestID != s.playerID {
		s.emit(Event{Kind: EventOpponentLeft, Payload: OpponentLeftPayload{OpponentID: prev.GuestID}})
	}
	if !prev.Started && r.Started {
		s.emit(Event{Kind: EventGameStarted, Payload: GameStartedPayload{FirstTurnPlayerID: r.TurnHolder}})
	}
	if prev.Started && prev.TurnHolder != r.TurnHolder {
		s.emit(Event{Kind: EventTurnChanged, Payload: TurnChangedPayload{
			TurnHolderID: r.TurnHolder,
			Mine:         r.TurnHolder == s.playerID,
		}})
	}

	newlyMatched := matchedSince(prev, r)
	if len(newlyMatched) > 0 {
		byID := ""
		if i := r.TileByID(newlyMatched[0]); i >= 0 {
			byID = r.Board[i].MatchedBy
		}
		s.emit(Event{Kind: EventPairMatched, Payload: PairMatchedPayload{
			TileIDs:    newlyMatched,
			ByPlayerID: byID,
			HostScore:  r.HostScore,
			GuestScore: r.GuestScore,
		}})
	} else if prev.Resolving && !r.Resolving && !r.Finished {
		s.emit(Event{Kind: EventPairMissed, Payload: PairMissedPayload{TileIDs: prev.PendingReveals}})
	}
}

// gateResolver hands exactly one resolution per turn to the author of the
// second reveal. The local flag suppresses duplicate triggers from rapid
// snapshot redelivery; it rearms only after Resolving flips back off.
func (s *Session) gateResolver(ctx context.Context, r domain.Room) {
	if !r.Resolving {
		s.localResolving = false
		return
	}
	if r.LastRevealBy != s.playerID || s.localResolving {
		return
	}
	s.localResolving = true
	go func() {
		// Let both players see the second tile before it settles.
		if !sleepCtx(ctx, s.resolveDelay) {
			return
		}
		tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		// An error here means the state moved on (opponent left, room
		// deleted); the next snapshot carries whatever happened.
		_, _ = s.svc.ResolvePending(tctx, s.roomID)
	}()
}

func (s *Session) manageTimers(prev *domain.Room, r domain.Room) {
	active := r.Started && !r.Finished

	if !active || r.Resolving {
		stopTimer(s.turnTimer)
	} else if prev == nil || !prev.Started || prev.TurnHolder != r.TurnHolder || prev.Resolving {
		stopTimer(s.turnTimer)
		s.turnTimer.Reset(s.turnLimit)
	}

	if active && r.Timer.Timed && !s.matchTimerSet {
		s.matchTimerSet = true
		deadline := time.UnixMilli(r.StartedAt).Add(time.Duration(r.Timer.LimitSeconds) * time.Second)
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		s.matchTimer.Reset(remaining)
	}
	if !active {
		stopTimer(s.matchTimer)
	}
}

func (s *Session) deriveView(r domain.Room) View {
	v := View{
		Tiles:         r.Board,
		TurnHolder:    r.TurnHolder,
		MyTurn:        r.TurnHolder == s.playerID,
		MyScore:       r.ScoreOf(s.playerID),
		OpponentScore: r.ScoreOf(r.Opponent(s.playerID)),
	}
	switch {
	case r.Finished:
		v.State = StateFinished
		out := endOutcome(r)
		v.Outcome = &out
	case r.Resolving:
		v.State = StateResolving
	case !r.Started && r.GuestID == "":
		v.State = StateAwaitingOpponent
	case !r.Started:
		v.State = StateReady
	case v.MyTurn:
		v.State = StateMyTurn
	default:
		v.State = StateOpponentTurn
	}
	return v
}

func (s *Session) setView(v View) {
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

// emit never blocks the reconciler; a UI that stops draining loses events,
// not the session.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// endOutcome computes the result of a finished match. A match finished with
// the guest seat empty before the board completed was abandoned; the
// remaining player wins.
func endOutcome(r domain.Room) domain.Outcome {
	if r.GuestID == "" && !r.AllMatched() {
		return domain.Outcome{WinnerID: r.HostID}
	}
	return r.Outcome()
}

// matchedSince returns ids of tiles matched in r but not in prev.
func matchedSince(prev *domain.Room, r domain.Room) []int {
	var out []int
	for _, t := range r.Board {
		if !t.Matched {
			continue
		}
		if i := prev.TileByID(t.ID); i >= 0 && !prev.Board[i].Matched {
			out = append(out, t.ID)
		}
	}
	return out
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopTimer(t)
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > resubscribeBackoffMax {
		d = resubscribeBackoffMax
	}
	return d
}
