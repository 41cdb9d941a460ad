package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// GameConfig holds tunables for the networked match protocol.
type GameConfig struct {
	// TurnDurationSeconds is the per-turn countdown; expiry force-passes the turn.
	TurnDurationSeconds int `json:"turn_duration_seconds"`
	// ResolveDelayMillis is how long the resolving client waits before settling
	// a two-reveal turn, so both players see the tiles. Not a correctness knob.
	ResolveDelayMillis int `json:"resolve_delay_millis"`
	// CreateTimeoutSeconds bounds the room-creation store round trip.
	CreateTimeoutSeconds int `json:"create_timeout_seconds"`
	// RoomListLimit caps room discovery queries.
	RoomListLimit int `json:"room_list_limit"`
	// InviteSecret signs private-room invite tokens. Overridable via the
	// MEMORIA_INVITE_SECRET environment variable.
	InviteSecret string `json:"invite_secret"`
	// InviteTTLMinutes is the invite token lifetime.
	InviteTTLMinutes int `json:"invite_ttl_minutes"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path, applying
// environment overrides from a .env file if one is present.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		_ = godotenv.Load() // optional; real env vars win

		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		var c GameConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		if secret := os.Getenv("MEMORIA_INVITE_SECRET"); secret != "" {
			c.InviteSecret = secret
		}
		applyDefaults(&c)
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or safe defaults if it
// was never loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		c := GameConfig{}
		applyDefaults(&c)
		return &c
	}
	return cfg
}

func applyDefaults(c *GameConfig) {
	if c.TurnDurationSeconds <= 0 {
		c.TurnDurationSeconds = 15
	}
	if c.ResolveDelayMillis <= 0 {
		c.ResolveDelayMillis = 1000
	}
	if c.CreateTimeoutSeconds <= 0 {
		c.CreateTimeoutSeconds = 10
	}
	if c.RoomListLimit <= 0 {
		c.RoomListLimit = 50
	}
	if c.InviteTTLMinutes <= 0 {
		c.InviteTTLMinutes = 60
	}
}
