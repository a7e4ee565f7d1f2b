package model

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
)

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to SessionStatus
		want     bool
	}{
		{SessionStatusScheduled, SessionStatusLive, true},
		{SessionStatusScheduled, SessionStatusCancelled, true},
		{SessionStatusScheduled, SessionStatusEnded, false},
		{SessionStatusLive, SessionStatusEnded, true},
		{SessionStatusLive, SessionStatusCancelled, true},
		{SessionStatusLive, SessionStatusScheduled, false},
		{SessionStatusEnded, SessionStatusLive, false},
		{SessionStatusEnded, SessionStatusScheduled, false},
		{SessionStatusCancelled, SessionStatusLive, false},
		{SessionStatusCancelled, SessionStatusEnded, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestSessionStatus_Terminal(t *testing.T) {
	if SessionStatusScheduled.Terminal() || SessionStatusLive.Terminal() {
		t.Error("scheduled and live must not be terminal")
	}
	if !SessionStatusEnded.Terminal() || !SessionStatusCancelled.Terminal() {
		t.Error("ended and cancelled must be terminal")
	}
}

// Whatever order transitions are attempted in, the status never reverses
// and a terminal status never changes again.
func TestSession_Transition_NeverReverses(t *testing.T) {
	statuses := []SessionStatus{
		SessionStatusScheduled, SessionStatusLive, SessionStatusEnded, SessionStatusCancelled,
	}
	rank := map[SessionStatus]int{
		SessionStatusScheduled: 0,
		SessionStatusLive:      1,
		SessionStatusEnded:     2,
		SessionStatusCancelled: 2,
	}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		s := &Session{ID: "s1", Status: SessionStatusScheduled}
		for step := 0; step < 10; step++ {
			next := statuses[rng.Intn(len(statuses))]
			before := s.Status
			err := s.Transition(next, time.Now())
			if err != nil {
				if s.Status != before {
					t.Fatalf("rejected transition mutated status: %s -> %s", before, s.Status)
				}
				if !errors.Is(err, errs.ErrInvalidTransition) {
					t.Fatalf("unexpected error: %v", err)
				}
				continue
			}
			if rank[s.Status] < rank[before] {
				t.Fatalf("status reversed: %s -> %s", before, s.Status)
			}
			if before == SessionStatusEnded || before == SessionStatusCancelled {
				t.Fatalf("terminal status %s accepted transition to %s", before, s.Status)
			}
		}
	}
}

func TestSession_Transition_StampsTimes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &Session{Status: SessionStatusScheduled}

	if err := s.Transition(SessionStatusLive, now); err != nil {
		t.Fatal(err)
	}
	if s.StartedAt == nil || !s.StartedAt.Equal(now) {
		t.Errorf("StartedAt not stamped: %v", s.StartedAt)
	}

	end := now.Add(time.Hour)
	if err := s.Transition(SessionStatusEnded, end); err != nil {
		t.Fatal(err)
	}
	if s.EndedAt == nil || !s.EndedAt.Equal(end) {
		t.Errorf("EndedAt not stamped: %v", s.EndedAt)
	}
}

func TestEffectiveRole(t *testing.T) {
	cases := []struct {
		role    Role
		isOwner bool
		want    Role
	}{
		{RoleParticipant, false, RoleParticipant},
		{RoleParticipant, true, RoleModerator},
		{RoleInstructor, false, RoleModerator},
		{RoleInstructor, true, RoleModerator},
	}
	for _, c := range cases {
		if got := EffectiveRole(c.role, c.isOwner); got != c.want {
			t.Errorf("EffectiveRole(%s, %v) = %s, want %s", c.role, c.isOwner, got, c.want)
		}
	}
}

func TestSession_IsOwner(t *testing.T) {
	s := &Session{InstructorID: "u1"}
	if !s.IsOwner("u1") {
		t.Error("instructor must own the session")
	}
	if s.IsOwner("u2") || s.IsOwner("") {
		t.Error("non-instructor or empty id must not own the session")
	}
}
