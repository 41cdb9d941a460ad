package domain

// Pure reducers from (room, event) to a new room value. The store's
// conditional-retry transaction re-runs these against the freshest read, so
// they must be side-effect free and must validate every precondition
// themselves rather than trust what the caller last saw.

// Join admits guestID into the room. Called inside a transaction so two
// simultaneous joiners can never both be admitted.
func Join(r Room, guestID string) (Room, error) {
	if guestID == "" || guestID == r.HostID {
		return r, ErrInvalidArgument
	}
	if r.Finished {
		return r, ErrFinished
	}
	if r.GuestID != "" {
		return r, ErrRoomFull
	}
	out := r.Clone()
	out.GuestID = guestID
	return out, nil
}

// Start begins the match. Host-only, requires a guest, one-shot.
func Start(r Room, requesterID string, now int64) (Room, error) {
	if requesterID != r.HostID {
		return r, ErrNotHost
	}
	if r.GuestID == "" {
		return r, ErrGuestMissing
	}
	if r.Started {
		return r, ErrAlreadyStarted
	}
	out := r.Clone()
	out.Started = true
	out.StartedAt = now
	if out.TurnHolder == "" {
		out.TurnHolder = out.HostID
	}
	return out, nil
}

// Reveal flips one tile face-up within the actor's turn. Runs inside a
// conditional-retry transaction; every precondition is checked against the
// value the transaction read, never a stale client copy. The second reveal of
// a turn also sets Resolving and LastRevealBy in the same commit, which is
// what designates exactly one client to run Resolve.
func Reveal(r Room, actorID string, tileID int) (Room, error) {
	if !r.Started {
		return r, ErrNotStarted
	}
	if r.Finished {
		return r, ErrFinished
	}
	if actorID != r.TurnHolder {
		return r, ErrNotYourTurn
	}
	if r.Resolving {
		return r, ErrTurnBusy
	}
	if len(r.PendingReveals) >= 2 {
		return r, ErrTurnBusy
	}
	i := r.TileByID(tileID)
	if i < 0 || r.Board[i].Matched || r.Board[i].FaceUp || r.isPending(tileID) {
		return r, ErrInvalidTile
	}

	out := r.Clone()
	out.Board[i].FaceUp = true
	out.PendingReveals = append(out.PendingReveals, tileID)
	if len(out.PendingReveals) == 2 {
		out.Resolving = true
		out.LastRevealBy = actorID
	}
	return out, nil
}

// Resolve settles a two-reveal turn: match keeps the turn and scores a pair,
// mismatch hides both tiles and passes the turn. Clears the pending slots and
// the Resolving gate in the same write, and finishes the match once every
// tile is matched. The Resolving flag serializes resolvers against each
// other; a departure can still interleave, so callers commit conditionally.
func Resolve(r Room) (Room, error) {
	if !r.Resolving || len(r.PendingReveals) != 2 {
		return r, ErrInvariant
	}
	i := r.TileByID(r.PendingReveals[0])
	j := r.TileByID(r.PendingReveals[1])
	if i < 0 || j < 0 {
		return r, ErrInvariant
	}

	out := r.Clone()
	actor := out.TurnHolder

	if out.Board[i].PairKey == out.Board[j].PairKey {
		out.Board[i].Matched = true
		out.Board[i].MatchedBy = actor
		out.Board[j].Matched = true
		out.Board[j].MatchedBy = actor
		switch actor {
		case out.HostID:
			out.HostScore++
		case out.GuestID:
			out.GuestScore++
		}
		// Turn does not pass on a match.
	} else {
		out.Board[i].FaceUp = false
		out.Board[j].FaceUp = false
		if next := out.Opponent(actor); next != "" {
			out.TurnHolder = next
		}
	}

	out.PendingReveals = nil
	out.Resolving = false
	out.LastRevealBy = ""

	if out.AllMatched() {
		out.Finished = true
	}
	return out, nil
}

// GuestLeave clears the guest seat. A started match cannot continue one-sided
// so it is finished on the spot; there is no reconnect-and-resume.
func GuestLeave(r Room) Room {
	out := r.Clone()
	out.GuestID = ""
	if out.Started {
		out.Finished = true
	}
	return out
}

// ForcePass hands the turn to the opponent of the current holder. Used by the
// per-turn countdown, which both clients may fire redundantly: passing to the
// player who already holds the turn is impossible here because the target is
// always derived from the current holder, so a duplicate write merely
// reaffirms the holder.
func ForcePass(r Room) (Room, bool) {
	if !r.Started || r.Finished || r.Resolving {
		return r, false
	}
	next := r.Opponent(r.TurnHolder)
	if next == "" {
		return r, false
	}
	out := r.Clone()
	// Any half-finished reveal is abandoned with the turn.
	for _, id := range out.PendingReveals {
		if i := out.TileByID(id); i >= 0 {
			out.Board[i].FaceUp = false
		}
	}
	out.PendingReveals = nil
	out.TurnHolder = next
	return out, true
}

// FinishByTimeout ends a timed match. Finished is monotonic, so both clients
// running their countdowns independently may write this without coordination.
func FinishByTimeout(r Room) (Room, bool) {
	if !r.Started || r.Finished {
		return r, false
	}
	out := r.Clone()
	out.Finished = true
	return out, true
}
