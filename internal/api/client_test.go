package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, func() string { return "tok-1" }, zap.NewNop())
}

func TestClient_GetSession_AttachesBearer(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		if r.URL.Path != "/api/v1/sessions/s1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(model.Session{ID: "s1", Status: model.SessionStatusLive})
	})

	sess, err := c.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID != "s1" || sess.Status != model.SessionStatusLive {
		t.Errorf("session = %+v", sess)
	}
}

func TestClient_GetSession_NotFound(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(model.APIError{Error: "not_found"})
	})

	_, err := c.GetSession(context.Background(), "missing")
	if !errors.Is(err, errs.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestClient_JoinSession(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sessions/s1/join" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req model.JoinSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.EnrollmentID != "e1" {
			t.Errorf("enrollment = %q", req.EnrollmentID)
		}
		json.NewEncoder(w).Encode(model.JoinSessionResponse{JoinURL: "https://x", RoomPassword: "pw"})
	})

	out, err := c.JoinSession(context.Background(), "s1", "e1")
	if err != nil {
		t.Fatal(err)
	}
	if out.RoomPassword != "pw" {
		t.Errorf("response = %+v", out)
	}
}

func TestClient_LeaveSession_MissingRecordMapped(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.LeaveSession(context.Background(), "s1")
	if !errors.Is(err, errs.ErrParticipationNotFound) {
		t.Fatalf("want ErrParticipationNotFound, got %v", err)
	}
}

func TestClient_ListSessions_CourseScoped(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/courses/c1/sessions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("per_page") != "5" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(model.SessionPage{Page: 2, PerPage: 5, Total: 11})
	})

	page, err := c.ListSessions(context.Background(), ListQuery{CourseID: "c1", Page: 2, PerPage: 5})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 11 {
		t.Errorf("page = %+v", page)
	}
}

func TestClient_SessionParticipants(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sessions/s1/participants" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]model.Participant{
			{UserID: "u1", Present: true},
			{UserID: "u2", Present: false},
		})
	})

	parts, err := c.SessionParticipants(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 || !parts[0].Present {
		t.Errorf("participants = %+v", parts)
	}
}

func TestClient_ErrorEnvelopeSurfaced(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(model.APIError{Error: "forbidden", Message: "instructors only"})
	})

	_, err := c.StartSession(context.Background(), "s1")
	if err == nil {
		t.Fatal("expected error")
	}
	var se *statusError
	if !errors.As(err, &se) {
		t.Fatalf("want *statusError, got %T", err)
	}
	if se.Status != http.StatusForbidden || se.Message != "instructors only" {
		t.Errorf("statusError = %+v", se)
	}
}
