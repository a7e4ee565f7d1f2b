package store

import (
	"context"
	"time"

	"github.com/Devdrwt/mdsc-live-client/internal/model"
)

// Snapshot is the client-wide auth/session state at one point in time.
type Snapshot struct {
	AuthToken string
	User      *model.UserProfile
}

// Attendance is one local journal entry for a session the user joined.
// Informational only; the backend stays authoritative for participation.
type Attendance struct {
	SessionID string
	JoinedAt  time.Time
	LeftAt    time.Time
	Duration  time.Duration
}

// SessionStore is the injectable auth/session state holder. It hydrates
// from persistent storage before use: Set is rejected until Hydrate has
// completed, and every subscriber observes exactly one snapshot when
// hydration finishes.
type SessionStore interface {
	Hydrate(ctx context.Context) error
	Ready() bool
	Get() Snapshot
	Set(snap Snapshot) error
	Subscribe(fn func(Snapshot)) (cancel func())

	// Room-credential cache. Tokens are scoped to one room on one host
	// for one role; a participant token never stands in for a moderator
	// one, and rooms on the same host never share.
	RoomToken(host, room string, role model.Role) (token string, expiresAt time.Time, ok bool)
	SetRoomToken(host, room string, role model.Role, token string, expiresAt time.Time) error

	RecordAttendance(rec Attendance) error
	Close() error
}
