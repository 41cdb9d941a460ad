package domain

// Difficulty selects the board size for a match.
type Difficulty int

const (
	// DifficultyEasy is a 4-pair (8 tile) board.
	DifficultyEasy Difficulty = 1
	// DifficultyMedium is a 6-pair (12 tile) board.
	DifficultyMedium Difficulty = 2
	// DifficultyHard is a 9-pair (18 tile) board.
	DifficultyHard Difficulty = 3
)

// TimerPolicy fixes whether a match has a global time limit. Set at room
// creation and never changed afterwards.
type TimerPolicy struct {
	Timed        bool `json:"timed"`
	LimitSeconds int  `json:"limitSeconds,omitempty"`
}

// Tile is one card on the board. Exactly one other tile in the room shares
// its PairKey. FaceUp, Matched and MatchedBy are the only fields that change
// after room creation.
type Tile struct {
	ID        int    `json:"id"`
	PairKey   int    `json:"pairKey"`
	FaceUp    bool   `json:"faceUp"`
	Matched   bool   `json:"matched"`
	MatchedBy string `json:"matchedBy,omitempty"`
}

// Room is the single shared document representing one networked match. It is
// replicated through the realtime store; both participants mutate it, subject
// to the reducer preconditions in this package.
type Room struct {
	RoomID     string      `json:"roomId"`
	HostID     string      `json:"hostId"`
	GuestID    string      `json:"guestId,omitempty"` // empty until a guest joins
	Difficulty Difficulty  `json:"difficulty"`
	Timer      TimerPolicy `json:"timer"`
	Board      []Tile      `json:"board"`

	TurnHolder     string `json:"turnHolder"`
	PendingReveals []int  `json:"pendingReveals,omitempty"` // tile ids face-up this turn, len <= 2
	Resolving      bool   `json:"resolving"`
	LastRevealBy   string `json:"lastRevealBy,omitempty"`

	HostScore  int `json:"hostScore"`
	GuestScore int `json:"guestScore"`

	Started  bool `json:"started"`
	Finished bool `json:"finished"`

	CreatedAt int64 `json:"createdAt"`
	StartedAt int64 `json:"startedAt,omitempty"`
}

// Outcome describes how a finished match ended.
type Outcome struct {
	WinnerID string // empty on a draw
	Draw     bool
}

// Clone returns a deep copy. Reducers operate on copies so a retried
// transaction always starts from the freshly read value.
func (r Room) Clone() Room {
	out := r
	out.Board = make([]Tile, len(r.Board))
	copy(out.Board, r.Board)
	if r.PendingReveals != nil {
		out.PendingReveals = make([]int, len(r.PendingReveals))
		copy(out.PendingReveals, r.PendingReveals)
	}
	return out
}

// IsParticipant reports whether playerID is the host or the current guest.
func (r Room) IsParticipant(playerID string) bool {
	return playerID != "" && (playerID == r.HostID || playerID == r.GuestID)
}

// Opponent returns the other participant's id, or "" if playerID is not a
// participant or there is no guest yet.
func (r Room) Opponent(playerID string) string {
	switch playerID {
	case r.HostID:
		return r.GuestID
	case r.GuestID:
		return r.HostID
	}
	return ""
}

// TileByID returns the index of the tile with the given id, or -1.
func (r Room) TileByID(tileID int) int {
	for i, t := range r.Board {
		if t.ID == tileID {
			return i
		}
	}
	return -1
}

// ScoreOf returns the pair count credited to playerID.
func (r Room) ScoreOf(playerID string) int {
	switch playerID {
	case r.HostID:
		return r.HostScore
	case r.GuestID:
		return r.GuestScore
	}
	return 0
}

// AllMatched reports whether every tile on the board has been matched.
func (r Room) AllMatched() bool {
	for _, t := range r.Board {
		if !t.Matched {
			return false
		}
	}
	return len(r.Board) > 0
}

// Joinable reports whether the room is open for a guest.
func (r Room) Joinable() bool {
	return r.GuestID == "" && !r.Started && !r.Finished
}

// Outcome computes the result of the match from the scores. Only meaningful
// once Finished is true.
func (r Room) Outcome() Outcome {
	switch {
	case r.HostScore > r.GuestScore:
		return Outcome{WinnerID: r.HostID}
	case r.GuestScore > r.HostScore:
		return Outcome{WinnerID: r.GuestID}
	default:
		return Outcome{Draw: true}
	}
}

// isPending reports whether tileID is already face-up within the active turn.
func (r Room) isPending(tileID int) bool {
	for _, id := range r.PendingReveals {
		if id == tileID {
			return true
		}
	}
	return false
}
