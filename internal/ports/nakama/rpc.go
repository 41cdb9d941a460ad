package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand"

	"github.com/heroiclabs/nakama-common/runtime"

	"memoria/internal/app"
	"memoria/internal/bot"
	"memoria/internal/domain"
	"memoria/internal/ports"
)

// RPC ids clients call.
const (
	RpcCreateRoom   = "memoria_create_room"
	RpcJoinRoom     = "memoria_join_room"
	RpcStartGame    = "memoria_start_game"
	RpcRevealTile   = "memoria_reveal_tile"
	RpcLeaveRoom    = "memoria_leave_room"
	RpcListRooms    = "memoria_list_rooms"
	RpcCreateInvite = "memoria_create_invite"
	RpcJoinInvite   = "memoria_join_by_invite"
	RpcAddBot       = "memoria_add_bot"
)

type createRoomRequest struct {
	Difficulty   int  `json:"difficulty"`
	Timed        bool `json:"timed"`
	LimitSeconds int  `json:"limit_seconds"`
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type revealRequest struct {
	RoomID string `json:"room_id"`
	TileID int    `json:"tile_id"`
}

type inviteRequest struct {
	Token string `json:"token"`
}

type inviteResponse struct {
	Token string `json:"token"`
}

type addBotRequest struct {
	RoomID string `json:"room_id"`
	Level  string `json:"level"`
}

type addBotResponse struct {
	BotID       string `json:"bot_id"`
	DisplayName string `json:"display_name"`
}

type listRoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

type rpcDeps struct {
	store   ports.RoomStore
	svc     *app.Service
	invites *app.InviteService
}

type rpcHandler func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// registerRPCs wires every room RPC to the shared service.
func registerRPCs(initializer runtime.Initializer, deps rpcDeps) error {
	handlers := map[string]rpcHandler{
		RpcCreateRoom:   deps.rpcCreateRoom,
		RpcJoinRoom:     deps.rpcJoinRoom,
		RpcStartGame:    deps.rpcStartGame,
		RpcRevealTile:   deps.rpcRevealTile,
		RpcLeaveRoom:    deps.rpcLeaveRoom,
		RpcListRooms:    deps.rpcListRooms,
		RpcCreateInvite: deps.rpcCreateInvite,
		RpcJoinInvite:   deps.rpcJoinByInvite,
		RpcAddBot:       deps.rpcAddBot,
	}
	for id, handler := range handlers {
		if err := initializer.RegisterRpc(id, handler); err != nil {
			return err
		}
	}
	return nil
}

func (d rpcDeps) rpcCreateRoom(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req createRoomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	room, err := d.svc.CreateRoom(ctx, domain.Difficulty(req.Difficulty), domain.TimerPolicy{
		Timed:        req.Timed,
		LimitSeconds: req.LimitSeconds,
	})
	if err != nil {
		logger.Error("create_room failed: %v", err)
		return "", rpcError(err)
	}
	return marshalRoom(room)
}

func (d rpcDeps) rpcJoinRoom(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req roomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	room, err := d.svc.JoinRoom(ctx, req.RoomID)
	if err != nil {
		return "", rpcError(err)
	}
	return marshalRoom(room)
}

func (d rpcDeps) rpcStartGame(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req roomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	room, err := d.svc.StartGame(ctx, req.RoomID)
	if err != nil {
		return "", rpcError(err)
	}
	return marshalRoom(room)
}

func (d rpcDeps) rpcRevealTile(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req revealRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	room, err := d.svc.RevealTile(ctx, req.RoomID, req.TileID)
	if err != nil {
		return "", rpcError(err)
	}
	return marshalRoom(room)
}

func (d rpcDeps) rpcLeaveRoom(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req roomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	if err := d.svc.LeaveRoom(ctx, req.RoomID); err != nil {
		return "", rpcError(err)
	}
	return "{}", nil
}

func (d rpcDeps) rpcListRooms(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, _ string) (string, error) {
	rooms, err := d.svc.FindJoinableRooms(ctx)
	if err != nil {
		return "", rpcError(err)
	}
	b, err := json.Marshal(listRoomsResponse{Rooms: rooms})
	if err != nil {
		return "", runtime.NewError("marshal failed", 13)
	}
	return string(b), nil
}

func (d rpcDeps) rpcCreateInvite(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req roomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	playerID, err := d.svc.PlayerID(ctx)
	if err != nil {
		return "", rpcError(err)
	}
	room, err := d.svc.GetRoom(ctx, req.RoomID)
	if err != nil {
		return "", rpcError(err)
	}
	if room.HostID != playerID {
		return "", rpcError(domain.ErrNotHost)
	}
	token, err := d.invites.CreateInvite(room.RoomID, playerID)
	if err != nil {
		logger.Error("create_invite failed: %v", err)
		return "", runtime.NewError("invite creation failed", 13)
	}
	b, _ := json.Marshal(inviteResponse{Token: token})
	return string(b), nil
}

func (d rpcDeps) rpcJoinByInvite(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req inviteRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	room, err := d.svc.JoinByInvite(ctx, d.invites, req.Token)
	if err != nil {
		return "", rpcError(err)
	}
	return marshalRoom(room)
}

// rpcAddBot seats an autonomous opponent in the caller's room. The agent
// plays in a background goroutine until the match ends or the room goes away.
func (d rpcDeps) rpcAddBot(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	var req addBotRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3)
	}
	playerID, err := d.svc.PlayerID(ctx)
	if err != nil {
		return "", rpcError(err)
	}
	room, err := d.svc.GetRoom(ctx, req.RoomID)
	if err != nil {
		return "", rpcError(err)
	}
	if room.HostID != playerID {
		return "", rpcError(domain.ErrNotHost)
	}
	if !room.Joinable() {
		return "", rpcError(domain.ErrRoomFull)
	}

	identity := bot.NewBotIdentity(rand.Intn(1<<16), bot.ParseLevel(req.Level))
	agent, err := bot.NewAgent(d.store, identity, nil)
	if err != nil {
		return "", rpcError(err)
	}
	go func() {
		if err := agent.Run(context.Background(), req.RoomID); err != nil {
			logger.Warn("bot %s left room %s: %v", identity.UserID, req.RoomID, err)
		}
	}()

	b, _ := json.Marshal(addBotResponse{BotID: identity.UserID, DisplayName: identity.DisplayName})
	return string(b), nil
}

func marshalRoom(room domain.Room) (string, error) {
	b, err := json.Marshal(room)
	if err != nil {
		return "", runtime.NewError("marshal failed", 13)
	}
	return string(b), nil
}

// rpcError maps the protocol taxonomy onto gRPC-style RPC codes.
func rpcError(err error) error {
	switch {
	case errors.Is(err, ports.ErrNotAuthenticated):
		return runtime.NewError(err.Error(), 16) // unauthenticated
	case errors.Is(err, ports.ErrRoomNotFound):
		return runtime.NewError(err.Error(), 5) // not found
	case errors.Is(err, domain.ErrRoomFull):
		return runtime.NewError(err.Error(), 8) // resource exhausted
	case errors.Is(err, domain.ErrNotHost), errors.Is(err, domain.ErrNotYourTurn):
		return runtime.NewError(err.Error(), 7) // permission denied
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidTile):
		return runtime.NewError(err.Error(), 3) // invalid argument
	case errors.Is(err, domain.ErrTurnBusy),
		errors.Is(err, domain.ErrNotStarted),
		errors.Is(err, domain.ErrAlreadyStarted),
		errors.Is(err, domain.ErrGuestMissing),
		errors.Is(err, domain.ErrFinished),
		errors.Is(err, domain.ErrInvariant):
		return runtime.NewError(err.Error(), 9) // failed precondition
	case errors.Is(err, ports.ErrStoreUnavailable):
		return runtime.NewError(err.Error(), 14) // unavailable
	}
	return runtime.NewError(err.Error(), 13) // internal
}
