package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
)

// authStateRow is the single persisted auth snapshot.
type authStateRow struct {
	ID        uint `gorm:"primaryKey"`
	AuthToken string
	UserJSON  string
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (authStateRow) TableName() string { return "auth_state" }

// roomTokenRow caches one room credential per host, room, and role.
type roomTokenRow struct {
	Host      string `gorm:"primaryKey;size:255"`
	Room      string `gorm:"primaryKey;size:255"`
	Role      string `gorm:"primaryKey;size:32"`
	Token     string
	ExpiresAt time.Time
}

func (roomTokenRow) TableName() string { return "room_tokens" }

// attendanceRow is one local attendance journal entry.
type attendanceRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	SessionID   string `gorm:"size:64;index"`
	JoinedAt    time.Time
	LeftAt      time.Time
	DurationSec int
}

func (attendanceRow) TableName() string { return "attendance" }

// SQLiteStore persists the session store to a local SQLite file.
type SQLiteStore struct {
	db  *gorm.DB
	log *zap.Logger

	mu      sync.Mutex
	ready   bool
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// Open opens (creating if needed) the store at path and migrates its schema.
func Open(path string, log *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.AutoMigrate(&authStateRow{}, &roomTokenRow{}, &attendanceRow{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &SQLiteStore{
		db:   db,
		log:  log,
		subs: make(map[int]func(Snapshot)),
	}, nil
}

// Hydrate loads the persisted snapshot and flips the store to ready,
// notifying every registered subscriber exactly once.
func (s *SQLiteStore) Hydrate(ctx context.Context) error {
	var row authStateRow
	err := s.db.WithContext(ctx).First(&row, 1).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("hydrate: %w", err)
	}

	snap := Snapshot{AuthToken: row.AuthToken}
	if row.UserJSON != "" {
		var user model.UserProfile
		if jsonErr := json.Unmarshal([]byte(row.UserJSON), &user); jsonErr == nil {
			snap.User = &user
		} else {
			s.log.Warn("discarding corrupt stored profile", zap.Error(jsonErr))
		}
	}

	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	s.snap = snap
	s.ready = true
	subs := s.currentSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

// Ready reports whether hydration has completed.
func (s *SQLiteStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Get returns the current snapshot.
func (s *SQLiteStore) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Set persists and publishes a new snapshot. Rejected before hydration.
func (s *SQLiteStore) Set(snap Snapshot) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return errs.ErrStoreNotReady
	}
	s.mu.Unlock()

	row := authStateRow{ID: 1, AuthToken: snap.AuthToken}
	if snap.User != nil {
		raw, err := json.Marshal(snap.User)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		row.UserJSON = string(raw)
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	s.mu.Lock()
	s.snap = snap
	subs := s.currentSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

// Subscribe registers fn for snapshot updates. A subscriber joining after
// hydration immediately observes the current snapshot.
func (s *SQLiteStore) Subscribe(fn func(Snapshot)) func() {
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

// RoomToken returns the cached credential for a host, room, and role, if any.
func (s *SQLiteStore) RoomToken(host, room string, role model.Role) (string, time.Time, bool) {
	var row roomTokenRow
	err := s.db.First(&row, "host = ? AND room = ? AND role = ?", host, room, string(role)).Error
	if err != nil {
		return "", time.Time{}, false
	}
	return row.Token, row.ExpiresAt, true
}

// SetRoomToken caches a credential for a host, room, and role.
func (s *SQLiteStore) SetRoomToken(host, room string, role model.Role, token string, expiresAt time.Time) error {
	row := roomTokenRow{Host: host, Room: room, Role: string(role), Token: token, ExpiresAt: expiresAt}
	return s.db.Save(&row).Error
}

// RecordAttendance appends one journal entry.
func (s *SQLiteStore) RecordAttendance(rec Attendance) error {
	row := attendanceRow{
		ID:          uuid.New().String(),
		SessionID:   rec.SessionID,
		JoinedAt:    rec.JoinedAt,
		LeftAt:      rec.LeftAt,
		DurationSec: int(rec.Duration.Seconds()),
	}
	return s.db.Create(&row).Error
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) currentSubs() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
