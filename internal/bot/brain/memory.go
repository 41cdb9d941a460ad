// Package brain holds the bot's private recollection of the board. The
// shared room document shows every tile, but an honest bot only "knows" what
// has been face up while it was looking.
package brain

import (
	"math/rand"
	"sort"

	"memoria/internal/domain"
)

// TileMemory maps tile ids to the pair keys the bot has seen on them.
type TileMemory struct {
	pairKeys map[int]int
}

// NewTileMemory returns an empty memory.
func NewTileMemory() *TileMemory {
	return &TileMemory{pairKeys: make(map[int]int)}
}

// Observe records every tile currently visible face up. Matched tiles are
// forgotten; those positions are dead for the rest of the game.
func (m *TileMemory) Observe(tiles []domain.Tile) {
	for _, t := range tiles {
		if t.Matched {
			delete(m.pairKeys, t.ID)
			continue
		}
		if t.FaceUp {
			m.pairKeys[t.ID] = t.PairKey
		}
	}
}

// PartnerOf returns a remembered tile carrying the given pair key, other than
// excludeID.
func (m *TileMemory) PartnerOf(pairKey, excludeID int) (int, bool) {
	for _, id := range m.sortedIDs() {
		if id != excludeID && m.pairKeys[id] == pairKey {
			return id, true
		}
	}
	return 0, false
}

// KnownPair returns two remembered tiles sharing a pair key.
func (m *TileMemory) KnownPair() (first, second int, ok bool) {
	byKey := make(map[int]int)
	for _, id := range m.sortedIDs() {
		key := m.pairKeys[id]
		if prev, seen := byKey[key]; seen {
			return prev, id, true
		}
		byKey[key] = id
	}
	return 0, 0, false
}

// Seen reports whether the tile has ever been observed face up.
func (m *TileMemory) Seen(id int) bool {
	_, ok := m.pairKeys[id]
	return ok
}

// Forget drops each remembered tile independently with probability rate.
// Models an imperfect player between turns.
func (m *TileMemory) Forget(rate float64, rng *rand.Rand) {
	for _, id := range m.sortedIDs() {
		if rng.Float64() < rate {
			delete(m.pairKeys, id)
		}
	}
}

// Len reports how many tiles the bot currently remembers.
func (m *TileMemory) Len() int { return len(m.pairKeys) }

func (m *TileMemory) sortedIDs() []int {
	ids := make([]int, 0, len(m.pairKeys))
	for id := range m.pairKeys {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
