package bot

import (
	"errors"
	"math/rand"

	"memoria/internal/bot/brain"
	"memoria/internal/domain"
)

var errNoConcealedTile = errors.New("no concealed tile to flip")

const (
	// Easy opponents consult their memory rarely and lose most of it
	// between looks.
	easyRecall     = 0.35
	easyForgetRate = 0.4
)

// SmartBot never forgets a tile it has seen and always cashes in a known
// pair, but it learns only from flips, like a careful human player.
type SmartBot struct {
	rng *rand.Rand
}

func (b *SmartBot) PickTile(tiles []domain.Tile, mem *brain.TileMemory) (int, error) {
	return pickWithMemory(tiles, mem, b.rng)
}

// EasyBot plays the same way with a leaky memory: before each flip it forgets
// part of what it saw, and sometimes ignores the rest entirely.
type EasyBot struct {
	rng    *rand.Rand
	recall float64
	forget float64
}

func (b *EasyBot) PickTile(tiles []domain.Tile, mem *brain.TileMemory) (int, error) {
	mem.Forget(b.forget, b.rng)
	if b.rng.Float64() > b.recall {
		return randomConcealed(tiles, b.rng, pendingID(tiles))
	}
	return pickWithMemory(tiles, mem, b.rng)
}

// PerfectBot reads pair keys straight off the shared document instead of
// waiting to see tiles face up. The client has the whole board anyway;
// cheating is one struct field away, which is why rankings stay out of scope.
type PerfectBot struct {
	rng *rand.Rand
}

func (b *PerfectBot) PickTile(tiles []domain.Tile, mem *brain.TileMemory) (int, error) {
	if pending := pendingTile(tiles); pending != nil {
		for _, t := range tiles {
			if concealed(t) && t.PairKey == pending.PairKey {
				return t.ID, nil
			}
		}
		return randomConcealed(tiles, b.rng, pending.ID)
	}
	for _, t := range tiles {
		if concealed(t) {
			return t.ID, nil
		}
	}
	return 0, errNoConcealedTile
}

// pickWithMemory is the shared honest policy: complete the pending flip from
// memory if possible, otherwise cash a fully remembered pair, otherwise
// explore a tile not seen before.
func pickWithMemory(tiles []domain.Tile, mem *brain.TileMemory, rng *rand.Rand) (int, error) {
	if pending := pendingTile(tiles); pending != nil {
		if id, ok := mem.PartnerOf(pending.PairKey, pending.ID); ok && concealedID(tiles, id) {
			return id, nil
		}
		if id, ok := unseenConcealed(tiles, mem, rng); ok {
			return id, nil
		}
		return randomConcealed(tiles, rng, pending.ID)
	}

	if first, second, ok := mem.KnownPair(); ok {
		if concealedID(tiles, first) && concealedID(tiles, second) {
			return first, nil
		}
	}
	if id, ok := unseenConcealed(tiles, mem, rng); ok {
		return id, nil
	}
	return randomConcealed(tiles, rng, -1)
}

func concealed(t domain.Tile) bool {
	return !t.FaceUp && !t.Matched
}

func concealedID(tiles []domain.Tile, id int) bool {
	for _, t := range tiles {
		if t.ID == id {
			return concealed(t)
		}
	}
	return false
}

// pendingTile returns the single face-up unmatched tile of an in-progress
// turn, or nil before the first flip.
func pendingTile(tiles []domain.Tile) *domain.Tile {
	for i, t := range tiles {
		if t.FaceUp && !t.Matched {
			return &tiles[i]
		}
	}
	return nil
}

func pendingID(tiles []domain.Tile) int {
	if p := pendingTile(tiles); p != nil {
		return p.ID
	}
	return -1
}

func unseenConcealed(tiles []domain.Tile, mem *brain.TileMemory, rng *rand.Rand) (int, bool) {
	var candidates []int
	for _, t := range tiles {
		if concealed(t) && !mem.Seen(t.ID) {
			candidates = append(candidates, t.ID)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[rng.Intn(len(candidates))], true
}

func randomConcealed(tiles []domain.Tile, rng *rand.Rand, excludeID int) (int, error) {
	var candidates []int
	for _, t := range tiles {
		if concealed(t) && t.ID != excludeID {
			candidates = append(candidates, t.ID)
		}
	}
	if len(candidates) == 0 {
		return 0, errNoConcealedTile
	}
	return candidates[rng.Intn(len(candidates))], nil
}
