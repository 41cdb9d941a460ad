package domain

import "errors"

// Protocol rule errors. A reducer returning one of these aborts the enclosing
// store transaction; callers must not retry (the rejection is not transient).
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRoomFull        = errors.New("room already has a guest")
	ErrNotHost         = errors.New("actor is not the room host")
	ErrGuestMissing    = errors.New("no guest has joined")
	ErrNotStarted      = errors.New("match not started")
	ErrAlreadyStarted  = errors.New("match already started")
	ErrFinished        = errors.New("match already finished")
	ErrNotYourTurn     = errors.New("not actor's turn")
	ErrTurnBusy        = errors.New("resolution in flight")
	ErrInvalidTile     = errors.New("tile unknown, matched, or already revealed")
	ErrInvariant       = errors.New("room state violates an invariant")
)
