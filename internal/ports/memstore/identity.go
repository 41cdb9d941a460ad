package memstore

import (
	"context"

	"github.com/google/uuid"

	"memoria/internal/ports"
)

// Identity issues one stable anonymous id per instance, standing in for the
// backend's anonymous auth. Each simulated client gets its own Identity.
type Identity struct {
	id string
}

var _ ports.IdentityProvider = (*Identity)(nil)

// NewIdentity mints a fresh anonymous identity.
func NewIdentity() *Identity {
	return &Identity{id: uuid.NewString()}
}

// PlayerID returns the stable id.
func (i *Identity) PlayerID(context.Context) (string, error) {
	return i.id, nil
}
