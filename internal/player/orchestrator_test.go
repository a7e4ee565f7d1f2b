package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/api"
	"github.com/Devdrwt/mdsc-live-client/internal/config"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
	"github.com/Devdrwt/mdsc-live-client/internal/recovery"
	"github.com/Devdrwt/mdsc-live-client/internal/signaling"
	"github.com/Devdrwt/mdsc-live-client/internal/store"
)

type fixture struct {
	orch  *Orchestrator
	store *store.MemoryStore
	mux   *http.ServeMux
}

func newFixture(t *testing.T, user *model.UserProfile) *fixture {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	st := store.NewMemoryStore()
	if err := st.Hydrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if user != nil {
		if err := st.Set(store.Snapshot{AuthToken: "tok", User: user}); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{
		APIBaseURL:            srv.URL,
		FrontendURL:           "http://app.school.example",
		PublicHost:            "meet.jit.si",
		PublicConnectTimeout:  time.Second,
		PrivateConnectTimeout: 2 * time.Second,
		MediaAcquireTimeout:   time.Second,
		MaxReceivedStreams:    9,
		ReceiveHeightCeiling:  720,
	}
	client := api.NewClient(srv.URL, func() string { return st.Get().AuthToken }, zap.NewNop())

	return &fixture{
		orch:  NewOrchestrator(cfg, client, st, nil, zap.NewNop()),
		store: st,
		mux:   mux,
	}
}

func instructor() *model.UserProfile {
	return &model.UserProfile{ID: "u-inst", Email: "t@school.example", FirstName: "Ada", Role: model.RoleInstructor}
}

func student() *model.UserProfile {
	return &model.UserProfile{ID: "u-stud", Email: "s@school.example", FirstName: "Sam", Role: model.RoleParticipant}
}

func (f *fixture) serveSession(sess model.Session) {
	f.mux.HandleFunc("/api/v1/sessions/"+sess.ID, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sess)
	})
}

func TestOrchestrator_Prepare_RequiresAuth(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.orch.Prepare(context.Background(), "s1"); err == nil {
		t.Fatal("unauthenticated prepare must fail")
	}
}

func TestOrchestrator_Prepare_NotFound(t *testing.T) {
	f := newFixture(t, student())
	f.mux.HandleFunc("/api/v1/sessions/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	res, err := f.orch.Prepare(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != PhaseNotFound {
		t.Errorf("phase = %s", res.Phase)
	}
	if !strings.Contains(res.NavTarget, "/dashboard/student") {
		t.Errorf("nav = %q", res.NavTarget)
	}
}

func TestOrchestrator_Prepare_Phases(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		sess model.Session
		want Phase
	}{
		{
			name: "cancelled is terminal",
			sess: model.Session{ID: "s1", Status: model.SessionStatusCancelled, CourseID: "c1"},
			want: PhaseCancelled,
		},
		{
			name: "ended is terminal",
			sess: model.Session{ID: "s1", Status: model.SessionStatusEnded, CourseID: "c1"},
			want: PhaseEnded,
		},
		{
			name: "live awaits join",
			sess: model.Session{ID: "s1", Status: model.SessionStatusLive},
			want: PhaseLiveUnjoined,
		},
		{
			name: "scheduled far out goes to the waiting room",
			sess: model.Session{ID: "s1", Status: model.SessionStatusScheduled, ScheduledStartAt: now.Add(2 * time.Hour)},
			want: PhaseScheduledFuture,
		},
		{
			name: "scheduled inside the entry window is eligible",
			sess: model.Session{ID: "s1", Status: model.SessionStatusScheduled, ScheduledStartAt: now.Add(5 * time.Minute)},
			want: PhaseScheduledNow,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, student())
			f.serveSession(c.sess)

			res, err := f.orch.Prepare(context.Background(), c.sess.ID)
			if err != nil {
				t.Fatal(err)
			}
			if res.Phase != c.want {
				t.Errorf("phase = %s, want %s", res.Phase, c.want)
			}
			if c.want == PhaseScheduledFuture && !strings.Contains(res.NavTarget, "/sessions/s1/waiting") {
				t.Errorf("nav = %q", res.NavTarget)
			}
		})
	}
}

func TestOrchestrator_Prepare_OwnerIsModerator(t *testing.T) {
	f := newFixture(t, student())
	f.serveSession(model.Session{ID: "s1", Status: model.SessionStatusLive, InstructorID: "u-stud"})

	res, err := f.orch.Prepare(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Role != model.RoleModerator {
		t.Errorf("session owner must moderate, got %s", res.Role)
	}
}

// Participants never mount the in-process conference: they get a direct
// browser URL, with no credential on the public host.
func TestOrchestrator_JoinLive_ParticipantFastPath(t *testing.T) {
	f := newFixture(t, student())
	sess := &model.Session{
		ID: "s1", Status: model.SessionStatusLive,
		RoomName: "course-7", CourseID: "c1",
	}
	f.mux.HandleFunc("/api/v1/sessions/s1/join", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.JoinSessionResponse{RoomPassword: "pw"})
	})

	res, err := f.orch.JoinLive(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != PhaseLiveJoined {
		t.Fatalf("phase = %s", res.Phase)
	}
	if res.Controller != nil {
		t.Error("participant must not get an in-process conference")
	}
	if !strings.HasPrefix(res.BrowserURL, "https://meet.jit.si/course-7") {
		t.Errorf("browser url = %q", res.BrowserURL)
	}
	if strings.Contains(res.BrowserURL, "jwt=") {
		t.Error("no credential may appear on a public-host URL")
	}
	if !strings.Contains(res.BrowserURL, "pwd=pw") {
		t.Errorf("room password missing from url: %q", res.BrowserURL)
	}
}

func TestOrchestrator_Recover_FallbackAndFatal(t *testing.T) {
	f := newFixture(t, instructor())
	sess := &model.Session{ID: "s1", RoomName: "course-7", CourseID: "c1"}
	att := recovery.Attempt{Host: "jitsi.school.example", Room: "course-7"}

	res, err := f.orch.recover(sess, model.RoleModerator,
		recovery.NewClassifier("meet.jit.si", zap.NewNop()), att,
		&signaling.Failure{Kind: signaling.FailurePasswordRequired, Code: "password-required"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != PhaseLiveJoined || res.BrowserURL == "" {
		t.Errorf("fallback result = %+v", res)
	}

	res, err = f.orch.recover(sess, model.RoleModerator,
		recovery.NewClassifier("meet.jit.si", zap.NewNop()), att,
		&signaling.Failure{Kind: signaling.FailureNetwork, Code: "dial"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != PhaseError || res.Message == "" {
		t.Errorf("fatal result = %+v", res)
	}
}

// A credential fetched for the join counts as used from the first dial,
// so a connect-phase failure with a token in hand classifies as a
// possible token problem, not as a credential-less generic error.
func TestOrchestrator_ConnectAttempt_CredentialCountsFromDial(t *testing.T) {
	sess := &model.Session{ID: "s1", RoomName: "course-7"}
	user := instructor()

	att := connectAttempt(sess, user, "jitsi.school.example", "room-tok", "pw")
	if !att.CredentialUsed {
		t.Fatal("attempt with a credential must be marked as using it")
	}
	dec := recovery.NewClassifier("meet.jit.si", zap.NewNop()).Classify(att,
		&signaling.Failure{Kind: signaling.FailureOther, Code: "connection-dropped"})
	if dec.Diagnostic != "token-maybe-invalid" {
		t.Errorf("diagnostic = %q, want token-maybe-invalid", dec.Diagnostic)
	}

	bare := connectAttempt(sess, user, "jitsi.school.example", "", "pw")
	if bare.CredentialUsed {
		t.Error("attempt without a credential must not claim one was used")
	}
}

// User cancellation surfaces as an error, never as a recovery decision;
// no fallback URL may be produced for a join the user backed out of.
func TestOrchestrator_Recover_PropagatesCancellation(t *testing.T) {
	f := newFixture(t, instructor())
	sess := &model.Session{ID: "s1", RoomName: "course-7", CourseID: "c1"}
	att := recovery.Attempt{Host: "meet.jit.si", Room: "course-7"}

	cases := []error{
		context.Canceled,
		&signaling.Failure{Kind: signaling.FailureNetwork, Code: "dial", Err: fmt.Errorf("dial: %w", context.Canceled)},
	}
	for _, cause := range cases {
		res, err := f.orch.recover(sess, model.RoleModerator,
			recovery.NewClassifier("meet.jit.si", zap.NewNop()), att, cause)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if res != nil {
			t.Errorf("cancelled join produced a result: %+v", res)
		}
	}
}

// Leaving is idempotent, tolerates a missing backend record, and journals
// attendance exactly once.
func TestOrchestrator_Leave_IdempotentAndJournaled(t *testing.T) {
	f := newFixture(t, student())
	sess := &model.Session{ID: "s1", RoomName: "course-7", CourseID: "c1"}
	f.mux.HandleFunc("/api/v1/sessions/s1/join", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.JoinSessionResponse{})
	})
	f.mux.HandleFunc("/api/v1/sessions/s1/leave", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := f.orch.JoinLive(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	nav, err := f.orch.Leave(context.Background(), sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(nav, "/courses/c1/sessions") {
		t.Errorf("nav = %q", nav)
	}
	if len(f.store.Journal()) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(f.store.Journal()))
	}

	if _, err := f.orch.Leave(context.Background(), sess, nil); err != nil {
		t.Fatal(err)
	}
	if len(f.store.Journal()) != 1 {
		t.Error("second leave must not journal again")
	}
}

func TestOrchestrator_SignalingHost(t *testing.T) {
	f := newFixture(t, student())
	cases := []struct {
		serverURL string
		want      string
	}{
		{"", "meet.jit.si"},
		{"https://jitsi.school.example", "jitsi.school.example"},
		{"https://jitsi.school.example:8443/extra", "jitsi.school.example:8443"},
		{"jitsi.school.example", "jitsi.school.example"},
	}
	for _, c := range cases {
		got := f.orch.signalingHost(&model.Session{ServerURL: c.serverURL})
		if got != c.want {
			t.Errorf("signalingHost(%q) = %q, want %q", c.serverURL, got, c.want)
		}
	}
}
