package player

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/api"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
	"github.com/Devdrwt/mdsc-live-client/internal/store"
)

// expiryMargin keeps a cached credential out of play once it is close to
// expiring: the room would accept the hello and then kick the user
// mid-session.
const expiryMargin = 2 * time.Minute

// credentialSource issues room credentials, caching them per host, room,
// and role. A miss or a near-expired entry triggers a fresh fetch.
type credentialSource struct {
	api   *api.Client
	store store.SessionStore
	log   *zap.Logger
}

func (s *credentialSource) roomCredential(ctx context.Context, sessionID, host, room string, user *model.UserProfile, role model.Role) (string, error) {
	if token, exp, ok := s.store.RoomToken(host, room, role); ok && time.Until(exp) > expiryMargin {
		s.log.Debug("reusing cached room credential",
			zap.String("host", host),
			zap.String("room", room),
			zap.Time("expires_at", exp))
		return token, nil
	}

	resp, err := s.api.RoomToken(ctx, sessionID, user.ID, role)
	if err != nil {
		return "", err
	}
	exp := resp.ExpiresAt
	if exp.IsZero() {
		exp = tokenExpiry(resp.Token)
	}
	if err := s.store.SetRoomToken(host, room, role, resp.Token, exp); err != nil {
		s.log.Warn("failed to cache room credential", zap.Error(err))
	}
	return resp.Token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client only needs the deadline, the room verifies authenticity.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
