package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"memoria/internal/ports"
)

const botIDPrefix = "bot-"

var botNames = []string{
	"Remy", "Piper", "Otto", "Luna", "Milo", "Hazel", "Theo", "Wren",
}

// BotIdentity is a display profile for one agent. It doubles as the agent's
// identity provider so the service sees the bot like any other client.
type BotIdentity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Level       BotLevel
}

var _ ports.IdentityProvider = BotIdentity{}

// NewBotIdentity mints a fresh bot identity, drawing a display name from the
// pool by index.
func NewBotIdentity(index int, level BotLevel) BotIdentity {
	return BotIdentity{
		UserID:      botIDPrefix + uuid.NewString(),
		DisplayName: botNames[((index%len(botNames))+len(botNames))%len(botNames)],
		Level:       level,
	}
}

// PlayerID returns the bot's stable id.
func (b BotIdentity) PlayerID(context.Context) (string, error) {
	return b.UserID, nil
}

// IsBot reports whether a player id belongs to an agent.
func IsBot(userID string) bool {
	return strings.HasPrefix(userID, botIDPrefix)
}
