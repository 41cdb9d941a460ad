package firestore

import "memoria/internal/domain"

// roomDoc is the Firestore shape of a room. Kept separate from the domain
// type so field names in the store stay stable independently of Go renames,
// and so discovery can filter on flat fields.
type roomDoc struct {
	HostID         string    `firestore:"hostId"`
	GuestID        string    `firestore:"guestId"`
	Difficulty     int       `firestore:"difficulty"`
	Timed          bool      `firestore:"timed"`
	LimitSeconds   int       `firestore:"limitSeconds"`
	Board          []tileDoc `firestore:"board"`
	TurnHolder     string    `firestore:"turnHolder"`
	PendingReveals []int     `firestore:"pendingReveals"`
	Resolving      bool      `firestore:"resolving"`
	LastRevealBy   string    `firestore:"lastRevealBy"`
	HostScore      int       `firestore:"hostScore"`
	GuestScore     int       `firestore:"guestScore"`
	Started        bool      `firestore:"started"`
	Finished       bool      `firestore:"finished"`
	CreatedAt      int64     `firestore:"createdAt"`
	StartedAt      int64     `firestore:"startedAt"`
}

type tileDoc struct {
	ID        int    `firestore:"id"`
	PairKey   int    `firestore:"pairKey"`
	FaceUp    bool   `firestore:"faceUp"`
	Matched   bool   `firestore:"matched"`
	MatchedBy string `firestore:"matchedBy"`
}

func toDoc(r domain.Room) roomDoc {
	d := roomDoc{
		HostID:         r.HostID,
		GuestID:        r.GuestID,
		Difficulty:     int(r.Difficulty),
		Timed:          r.Timer.Timed,
		LimitSeconds:   r.Timer.LimitSeconds,
		TurnHolder:     r.TurnHolder,
		PendingReveals: r.PendingReveals,
		Resolving:      r.Resolving,
		LastRevealBy:   r.LastRevealBy,
		HostScore:      r.HostScore,
		GuestScore:     r.GuestScore,
		Started:        r.Started,
		Finished:       r.Finished,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
	}
	d.Board = make([]tileDoc, len(r.Board))
	for i, t := range r.Board {
		d.Board[i] = tileDoc{ID: t.ID, PairKey: t.PairKey, FaceUp: t.FaceUp, Matched: t.Matched, MatchedBy: t.MatchedBy}
	}
	return d
}

func (d roomDoc) toDomain(roomID string) domain.Room {
	r := domain.Room{
		RoomID:         roomID,
		HostID:         d.HostID,
		GuestID:        d.GuestID,
		Difficulty:     domain.Difficulty(d.Difficulty),
		Timer:          domain.TimerPolicy{Timed: d.Timed, LimitSeconds: d.LimitSeconds},
		TurnHolder:     d.TurnHolder,
		PendingReveals: d.PendingReveals,
		Resolving:      d.Resolving,
		LastRevealBy:   d.LastRevealBy,
		HostScore:      d.HostScore,
		GuestScore:     d.GuestScore,
		Started:        d.Started,
		Finished:       d.Finished,
		CreatedAt:      d.CreatedAt,
		StartedAt:      d.StartedAt,
	}
	r.Board = make([]domain.Tile, len(d.Board))
	for i, t := range d.Board {
		r.Board[i] = domain.Tile{ID: t.ID, PairKey: t.PairKey, FaceUp: t.FaceUp, Matched: t.Matched, MatchedBy: t.MatchedBy}
	}
	return r
}
