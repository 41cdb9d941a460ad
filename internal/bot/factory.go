package bot

import (
	"fmt"
	"math/rand"
)

// NewBrain creates a brain for the requested level.
func NewBrain(level BotLevel, rng *rand.Rand) (Brain, error) {
	switch level {
	case BotLevelEasy:
		return &EasyBot{rng: rng, recall: easyRecall, forget: easyForgetRate}, nil
	case BotLevelSmart:
		return &SmartBot{rng: rng}, nil
	case BotLevelPerfect:
		return &PerfectBot{rng: rng}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}
