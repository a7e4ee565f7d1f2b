package model

import (
	"time"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
)

// SessionStatus represents the lifecycle state of a live session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// transitions holds the allowed status moves. Status never reverses:
// scheduled→live→ended, or scheduled/live→cancelled.
var transitions = map[SessionStatus][]SessionStatus{
	SessionStatusScheduled: {SessionStatusLive, SessionStatusCancelled},
	SessionStatusLive:      {SessionStatusEnded, SessionStatusCancelled},
	SessionStatusEnded:     {},
	SessionStatusCancelled: {},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Session is the backend's view of a scheduled video meeting. Read-only to
// the client core; start/end/cancel are backend operations.
type Session struct {
	ID               string        `json:"id"`
	CourseID         string        `json:"course_id,omitempty"`
	Title            string        `json:"title"`
	Status           SessionStatus `json:"status"`
	ScheduledStartAt time.Time     `json:"scheduled_start_at"`
	ScheduledEndAt   time.Time     `json:"scheduled_end_at"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
	RoomName         string        `json:"jitsi_room_name"`
	ServerURL        string        `json:"jitsi_server_url"`
	RoomPassword     string        `json:"jitsi_room_password,omitempty"`
	MaxParticipants  int           `json:"max_participants"`
	RecordingEnabled bool          `json:"recording_enabled"`
	InstructorID     string        `json:"instructor_id"`
}

// Transition advances the session status, stamping the actual start/end
// time. It is the client-side guard mirroring the backend rule; callers use
// it to fail fast before issuing a start/end call.
func (s *Session) Transition(next SessionStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return errs.ErrInvalidTransition
	}
	switch next {
	case SessionStatusLive:
		t := now
		s.StartedAt = &t
	case SessionStatusEnded, SessionStatusCancelled:
		t := now
		s.EndedAt = &t
	}
	s.Status = next
	return nil
}

// IsOwner reports whether the given user owns (and therefore moderates)
// the session.
func (s *Session) IsOwner(userID string) bool {
	return userID != "" && s.InstructorID == userID
}
