package domain

import (
	"fmt"
	"math/rand"
)

// PairCount maps a difficulty to its board pair count.
func PairCount(d Difficulty) (int, error) {
	switch d {
	case DifficultyEasy:
		return 4, nil
	case DifficultyMedium:
		return 6, nil
	case DifficultyHard:
		return 9, nil
	}
	return 0, fmt.Errorf("%w: unknown difficulty %d", ErrInvalidArgument, d)
}

// NewBoard returns a freshly shuffled board of 2*pairs tiles. Every pairKey
// in [0, pairs) appears on exactly two tiles. Pure aside from draws on rng,
// so it can be re-invoked for a rematch.
func NewBoard(pairs int, rng *rand.Rand) ([]Tile, error) {
	if pairs <= 0 {
		return nil, fmt.Errorf("%w: pair count %d", ErrInvalidArgument, pairs)
	}

	tiles := make([]Tile, 0, 2*pairs)
	for pairKey := 0; pairKey < pairs; pairKey++ {
		tiles = append(tiles, Tile{ID: len(tiles), PairKey: pairKey})
		tiles = append(tiles, Tile{ID: len(tiles), PairKey: pairKey})
	}

	rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })
	return tiles, nil
}
