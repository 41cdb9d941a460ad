package bot

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"memoria/internal/app"
	"memoria/internal/bot/brain"
	"memoria/internal/ports"
)

const defaultThinkDelay = 700 * time.Millisecond

// Agent is an autonomous opponent. It joins a room through the same service
// and session machinery as a human client and flips tiles on its turns until
// the match ends.
type Agent struct {
	Identity BotIdentity

	svc        *app.Service
	brain      Brain
	mem        *brain.TileMemory
	thinkDelay time.Duration
	sessOpts   []app.SessionOption
}

// AgentOption overrides an agent tunable.
type AgentOption func(*Agent)

// WithThinkDelay sets the pause between board polls, which doubles as the
// bot's reaction time.
func WithThinkDelay(d time.Duration) AgentOption {
	return func(a *Agent) { a.thinkDelay = d }
}

// WithSessionOptions forwards options to the agent's session.
func WithSessionOptions(opts ...app.SessionOption) AgentOption {
	return func(a *Agent) { a.sessOpts = opts }
}

// NewAgent builds an agent playing through the given store.
func NewAgent(store ports.RoomStore, identity BotIdentity, rng *rand.Rand, opts ...AgentOption) (*Agent, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	b, err := NewBrain(identity.Level, rng)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		Identity:   identity,
		svc:        app.NewService(store, identity, rng),
		brain:      b,
		mem:        brain.NewTileMemory(),
		thinkDelay: defaultThinkDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run joins the room and plays until the match reaches a terminal state or
// ctx is cancelled. The host still starts the game; the agent just takes the
// guest seat and waits for its turns.
func (a *Agent) Run(ctx context.Context, roomID string) error {
	if _, err := a.svc.JoinRoom(ctx, roomID); err != nil {
		return fmt.Errorf("bot join: %w", err)
	}
	sess, err := app.NewSession(ctx, a.svc, roomID, a.sessOpts...)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	tick := time.NewTicker(a.thinkDelay)
	defer tick.Stop()

	// The agent acts at most once per distinct board state, so a tick that
	// lands before its previous flip shows up in a snapshot does nothing.
	var actedOn string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case <-tick.C:
			v := sess.View()
			a.mem.Observe(v.Tiles)
			if v.State != app.StateMyTurn {
				continue
			}
			sig := boardSig(v)
			if sig == actedOn {
				continue
			}
			id, err := a.brain.PickTile(v.Tiles, a.mem)
			if err != nil {
				continue
			}
			if err := sess.Reveal(ctx, id); err == nil {
				actedOn = sig
			}
		}
	}
}

func boardSig(v app.View) string {
	faceUp, matched := 0, 0
	pending := -1
	for _, t := range v.Tiles {
		if t.Matched {
			matched++
			continue
		}
		if t.FaceUp {
			faceUp++
			pending = t.ID
		}
	}
	return fmt.Sprintf("%s/%d/%d/%d", v.TurnHolder, matched, faceUp, pending)
}
