package bot

import (
	"strings"

	"memoria/internal/bot/brain"
	"memoria/internal/domain"
)

// BotLevel selects how strong an opponent the agent plays.
type BotLevel int

const (
	BotLevelEasy BotLevel = iota + 1
	BotLevelSmart
	BotLevelPerfect
)

func (l BotLevel) String() string {
	switch l {
	case BotLevelEasy:
		return "easy"
	case BotLevelSmart:
		return "smart"
	case BotLevelPerfect:
		return "perfect"
	default:
		return "unknown"
	}
}

// ParseLevel maps a payload string to a level. Unknown values fall back to
// easy so a stale client still gets an opponent.
func ParseLevel(s string) BotLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smart":
		return BotLevelSmart
	case "perfect":
		return BotLevelPerfect
	default:
		return BotLevelEasy
	}
}

// Brain chooses the next tile to flip from the visible board and the bot's
// private memory. Called once per flip; the second call of a turn sees the
// first tile face up.
type Brain interface {
	PickTile(tiles []domain.Tile, mem *brain.TileMemory) (int, error)
}
