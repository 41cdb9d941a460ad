package nakama

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"

	"memoria/internal/app"
	"memoria/internal/config"
)

// InitModule wires the room store and RPCs into the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}

	store := NewStorageStore(nk)
	deps := rpcDeps{
		store:   store,
		svc:     app.NewService(store, ContextIdentity{}, nil),
		invites: app.NewInviteServiceFromConfig(),
	}

	if err := registerRPCs(initializer, deps); err != nil {
		return err
	}

	logger.Info("Memoria Go module loaded.")
	return nil
}
