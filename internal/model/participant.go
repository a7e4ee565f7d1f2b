package model

import "time"

// Role is a user's role inside a session room.
type Role string

const (
	RoleInstructor  Role = "instructor"
	RoleParticipant Role = "participant"
	RoleModerator   Role = "moderator"
)

// EffectiveRole maps the platform role onto the room role. The owning
// instructor is always promoted to moderator for the room.
func EffectiveRole(role Role, isOwner bool) Role {
	if isOwner || role == RoleInstructor {
		return RoleModerator
	}
	return RoleParticipant
}

// Participant is one user's membership in a session. The backend is
// authoritative; the client's view may be stale and tolerates a missing
// record without failing the user-visible action.
type Participant struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Role        Role       `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	Duration    int        `json:"attendance_duration"` // seconds, cumulative
	Present     bool       `json:"is_present"`
}
