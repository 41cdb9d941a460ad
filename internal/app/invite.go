package app

import (
	"context"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"

	"memoria/internal/config"
	"memoria/internal/domain"
)

// InviteService issues and redeems signed invite tokens for private rooms.
// A host shares the token out of band; the guest joins without the room ever
// appearing in discovery.
type InviteService struct {
	secret string
	ttl    time.Duration
}

// NewInviteService constructs an InviteService with the given signing secret
// and token lifetime.
func NewInviteService(secret string, ttl time.Duration) *InviteService {
	return &InviteService{secret: secret, ttl: ttl}
}

// NewInviteServiceFromConfig builds the service from the loaded game config.
func NewInviteServiceFromConfig() *InviteService {
	cfg := config.GetGameConfig()
	return NewInviteService(cfg.InviteSecret, time.Duration(cfg.InviteTTLMinutes)*time.Minute)
}

// CreateInvite signs a token admitting one guest to the given room.
func (s *InviteService) CreateInvite(roomID, hostID string) (string, error) {
	if s.secret == "" {
		return "", fmt.Errorf("invite secret is not configured")
	}
	if roomID == "" || hostID == "" {
		return "", fmt.Errorf("room id and host id are required")
	}

	claims := jwt.MapClaims{
		"sub":  hostID,
		"room": roomID,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Redeem validates an invite token and returns the room id it admits to.
func (s *InviteService) Redeem(tokenString string) (string, error) {
	if s.secret == "" {
		return "", fmt.Errorf("invite secret is not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid invite token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid invite token")
	}
	roomID, _ := claims["room"].(string)
	if roomID == "" {
		return "", fmt.Errorf("invite token has no room claim")
	}
	return roomID, nil
}

// JoinByInvite redeems a token and joins the room it names.
func (s *Service) JoinByInvite(ctx context.Context, invites *InviteService, token string) (domain.Room, error) {
	roomID, err := invites.Redeem(token)
	if err != nil {
		return domain.Room{}, err
	}
	return s.JoinRoom(ctx, roomID)
}
