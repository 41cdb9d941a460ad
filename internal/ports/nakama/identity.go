package nakama

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"

	"memoria/internal/ports"
)

// ContextIdentity resolves the player id from the Nakama request context.
type ContextIdentity struct{}

var _ ports.IdentityProvider = ContextIdentity{}

// PlayerID returns the authenticated user id for the current RPC.
func (ContextIdentity) PlayerID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", ports.ErrNotAuthenticated
	}
	return userID, nil
}
