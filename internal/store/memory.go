package store

import (
	"context"
	"sync"
	"time"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
)

// MemoryStore is an in-memory SessionStore, used as a test double and for
// ephemeral runs where nothing should touch disk.
type MemoryStore struct {
	mu      sync.Mutex
	ready   bool
	snap    Snapshot
	tokens  map[string]roomTokenRow
	journal []Attendance
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewMemoryStore creates an empty, not-yet-hydrated store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]roomTokenRow),
		subs:   make(map[int]func(Snapshot)),
	}
}

// Hydrate flips the store to ready and notifies subscribers once.
func (s *MemoryStore) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	s.ready = true
	snap := s.snap
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (s *MemoryStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *MemoryStore) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *MemoryStore) Set(snap Snapshot) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return errs.ErrStoreNotReady
	}
	s.snap = snap
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (s *MemoryStore) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	ready := s.ready
	snap := s.snap
	s.mu.Unlock()

	if ready {
		fn(snap)
	}
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *MemoryStore) RoomToken(host, room string, role model.Role) (string, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[tokenKey(host, room, role)]
	if !ok {
		return "", time.Time{}, false
	}
	return row.Token, row.ExpiresAt, true
}

func (s *MemoryStore) SetRoomToken(host, room string, role model.Role, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenKey(host, room, role)] = roomTokenRow{
		Host:      host,
		Room:      room,
		Role:      string(role),
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return nil
}

func tokenKey(host, room string, role model.Role) string {
	return host + "\x00" + room + "\x00" + string(role)
}

func (s *MemoryStore) RecordAttendance(rec Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, rec)
	return nil
}

// Journal returns the recorded attendance entries (tests).
func (s *MemoryStore) Journal() []Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Attendance, len(s.journal))
	copy(out, s.journal)
	return out
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) subscribers() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
