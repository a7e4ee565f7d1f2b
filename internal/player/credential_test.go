package player

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/api"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
	"github.com/Devdrwt/mdsc-live-client/internal/store"
)

func newCredentialFixture(t *testing.T, handler http.HandlerFunc) (*credentialSource, *store.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st := store.NewMemoryStore()
	if err := st.Hydrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	client := api.NewClient(srv.URL, nil, zap.NewNop())
	return &credentialSource{api: client, store: st, log: zap.NewNop()}, st
}

func TestCredentialSource_CachesPerRoom(t *testing.T) {
	var calls atomic.Int32
	src, _ := newCredentialFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(model.RoomTokenResponse{
			Token:     "room-tok",
			ExpiresAt: time.Now().Add(time.Hour),
		})
	})
	user := &model.UserProfile{ID: "u1"}

	for i := 0; i < 3; i++ {
		tok, err := src.roomCredential(context.Background(), "s1", "jitsi.school.example", "course-7", user, model.RoleModerator)
		if err != nil {
			t.Fatal(err)
		}
		if tok != "room-tok" {
			t.Fatalf("token = %q", tok)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("backend called %d times, want 1", calls.Load())
	}
}

// Tokens are minted for one room and one role; a cached entry must not
// leak across either boundary, even on the same host.
func TestCredentialSource_ScopedByRoomAndRole(t *testing.T) {
	var calls atomic.Int32
	src, _ := newCredentialFixture(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		json.NewEncoder(w).Encode(model.RoomTokenResponse{
			Token:     fmt.Sprintf("tok-%d", n),
			ExpiresAt: time.Now().Add(time.Hour),
		})
	})
	user := &model.UserProfile{ID: "u1"}
	host := "jitsi.school.example"

	first, err := src.roomCredential(context.Background(), "s1", host, "course-7", user, model.RoleModerator)
	if err != nil {
		t.Fatal(err)
	}

	// Different room on the same host misses the cache.
	second, err := src.roomCredential(context.Background(), "s2", host, "course-8", user, model.RoleModerator)
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Error("token for a different room must be fetched, not reused")
	}

	// Same room, different role misses the cache too.
	third, err := src.roomCredential(context.Background(), "s1", host, "course-7", user, model.RoleParticipant)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("participant token must not reuse the moderator entry")
	}

	if calls.Load() != 3 {
		t.Errorf("backend called %d times, want 3", calls.Load())
	}

	// The original scope still hits its own cached entry.
	again, err := src.roomCredential(context.Background(), "s1", host, "course-7", user, model.RoleModerator)
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("cached token = %q, want %q", again, first)
	}
	if calls.Load() != 3 {
		t.Errorf("backend called %d times after cache hit, want 3", calls.Load())
	}
}

func TestCredentialSource_NearExpiryRefetches(t *testing.T) {
	var calls atomic.Int32
	src, st := newCredentialFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(model.RoomTokenResponse{
			Token:     "fresh-tok",
			ExpiresAt: time.Now().Add(time.Hour),
		})
	})
	// Cached entry inside the safety margin must not be reused.
	if err := st.SetRoomToken("jitsi.school.example", "course-7", model.RoleModerator, "stale-tok", time.Now().Add(30*time.Second)); err != nil {
		t.Fatal(err)
	}

	tok, err := src.roomCredential(context.Background(), "s1", "jitsi.school.example", "course-7", &model.UserProfile{ID: "u1"}, model.RoleModerator)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "fresh-tok" {
		t.Errorf("token = %q, want refetched credential", tok)
	}
	if calls.Load() != 1 {
		t.Errorf("backend called %d times, want 1", calls.Load())
	}
}

func TestTokenExpiry_ReadsExpClaim(t *testing.T) {
	exp := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":  exp.Unix(),
		"room": "course-7",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	got := tokenExpiry(tok)
	if !got.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got, exp)
	}
	if !tokenExpiry("not-a-jwt").IsZero() {
		t.Error("malformed token must yield zero time")
	}
}
