package player

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/api"
	"github.com/Devdrwt/mdsc-live-client/internal/conference"
	"github.com/Devdrwt/mdsc-live-client/internal/config"
	"github.com/Devdrwt/mdsc-live-client/internal/errs"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
	"github.com/Devdrwt/mdsc-live-client/internal/recovery"
	"github.com/Devdrwt/mdsc-live-client/internal/signaling"
	"github.com/Devdrwt/mdsc-live-client/internal/store"
	"github.com/Devdrwt/mdsc-live-client/pkg/constants"
)

// earlyEntryWindow is how long before the scheduled start a session opens
// for entry.
const earlyEntryWindow = 15 * time.Minute

// Phase is where the orchestrator landed after resolving a session.
type Phase string

const (
	PhaseNotFound        Phase = "not-found"
	PhaseError           Phase = "error"
	PhaseScheduledFuture Phase = "scheduled-future"
	PhaseScheduledNow    Phase = "scheduled-now"
	PhaseLiveUnjoined    Phase = "live-unjoined"
	PhaseLiveJoined      Phase = "live-joined"
	PhaseEnded           Phase = "ended"
	PhaseCancelled       Phase = "cancelled"
)

// Result is the outcome of a resolve or join step. Exactly one of
// Controller and BrowserURL is set for a successful join: Controller for
// the in-process path, BrowserURL when the session is handed to the
// system browser.
type Result struct {
	Phase      Phase
	Session    *model.Session
	Role       model.Role
	Controller *conference.Controller
	Warnings   []conference.Warning
	BrowserURL string
	NavTarget  string
	Message    string
}

// Orchestrator drives one session from lookup through join and leave.
type Orchestrator struct {
	cfg     *config.Config
	api     *api.Client
	store   store.SessionStore
	devices conference.Devices
	creds   *credentialSource
	log     *zap.Logger

	mu       sync.Mutex
	joinedAt time.Time
	left     bool
}

func NewOrchestrator(cfg *config.Config, apiClient *api.Client, st store.SessionStore, devices conference.Devices, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		api:     apiClient,
		store:   st,
		devices: devices,
		creds:   &credentialSource{api: apiClient, store: st, log: log},
		log:     log,
	}
}

// Prepare resolves the session and decides which phase the user lands in.
// It never joins; callers follow up with JoinLive when the phase allows.
func (o *Orchestrator) Prepare(ctx context.Context, sessionID string) (*Result, error) {
	user, err := o.currentUser()
	if err != nil {
		return nil, err
	}

	sess, err := o.api.GetSession(ctx, sessionID)
	if errors.Is(err, errs.ErrSessionNotFound) {
		return &Result{Phase: PhaseNotFound, NavTarget: o.dashboard(user.Role)}, nil
	}
	if err != nil {
		return &Result{Phase: PhaseError, Message: "could not load the session", NavTarget: o.dashboard(user.Role)}, nil
	}

	role := model.EffectiveRole(user.Role, sess.IsOwner(user.ID))
	res := &Result{Session: sess, Role: role}

	switch sess.Status {
	case model.SessionStatusCancelled:
		res.Phase = PhaseCancelled
		res.NavTarget = o.courseSessions(sess)
	case model.SessionStatusEnded:
		res.Phase = PhaseEnded
		res.NavTarget = o.courseSessions(sess)
	case model.SessionStatusLive:
		res.Phase = PhaseLiveUnjoined
	case model.SessionStatusScheduled:
		if time.Until(sess.ScheduledStartAt) > earlyEntryWindow {
			res.Phase = PhaseScheduledFuture
			res.NavTarget = o.frontendPath(fmt.Sprintf(constants.PathWaitingRoom, sess.ID))
		} else {
			res.Phase = PhaseScheduledNow
		}
	default:
		res.Phase = PhaseError
		res.Message = fmt.Sprintf("unknown session status %q", sess.Status)
	}
	return res, nil
}

// JoinLive registers participation with the backend and enters the room.
// Participants are handed a direct browser URL; moderators get the
// in-process conference, with the fallback URL as the recovery path.
func (o *Orchestrator) JoinLive(ctx context.Context, sess *model.Session) (*Result, error) {
	user, err := o.currentUser()
	if err != nil {
		return nil, err
	}
	role := model.EffectiveRole(user.Role, sess.IsOwner(user.ID))

	joinResp, err := o.api.JoinSession(ctx, sess.ID, "")
	if err != nil {
		return nil, fmt.Errorf("register participation: %w", err)
	}
	o.mu.Lock()
	o.joinedAt = time.Now()
	o.left = false
	o.mu.Unlock()

	host := o.signalingHost(sess)
	password := sess.RoomPassword
	if password == "" {
		password = joinResp.RoomPassword
	}

	credential := ""
	if !o.cfg.IsPublicHost(host) {
		credential, err = o.creds.roomCredential(ctx, sess.ID, host, sess.RoomName, user, role)
		if err != nil {
			// Credential-less entry often still works; the room decides.
			o.log.Warn("room credential unavailable, joining without", zap.Error(err))
			credential = ""
		}
	}

	if role != model.RoleModerator {
		return &Result{
			Phase:      PhaseLiveJoined,
			Session:    sess,
			Role:       role,
			BrowserURL: recovery.RoomURL(host, sess.RoomName, credential, password, user.DisplayName()),
			NavTarget:  o.courseSessions(sess),
		}, nil
	}

	return o.joinModerated(ctx, sess, user, role, host, credential, password)
}

func (o *Orchestrator) joinModerated(ctx context.Context, sess *model.Session, user *model.UserProfile, role model.Role, host, credential, password string) (*Result, error) {
	attempt := connectAttempt(sess, user, host, credential, password)
	classifier := recovery.NewClassifier(o.cfg.PublicHost, o.log)

	conn, err := signaling.Connect(ctx, signaling.Options{
		Host:        host,
		Credential:  credential,
		PublicHost:  o.cfg.PublicHost,
		Timeout:     o.cfg.ConnectTimeout(host),
		DisplayName: user.DisplayName(),
	}, o.log)
	if err != nil {
		return o.recover(sess, role, classifier, attempt, err)
	}

	ctrl, err := conference.Join(ctx, conn, o.devices, conference.JoinOptions{
		Room:           sess.RoomName,
		Password:       password,
		DisplayName:    user.DisplayName(),
		MaxStreams:     o.cfg.MaxReceivedStreams,
		HeightCeiling:  o.cfg.ReceiveHeightCeiling,
		AcquireTimeout: o.cfg.MediaAcquireTimeout,
	}, o.log)
	if err != nil {
		conn.Disconnect()
		return o.recover(sess, role, classifier, attempt, err)
	}

	return &Result{
		Phase:      PhaseLiveJoined,
		Session:    sess,
		Role:       role,
		Controller: ctrl,
		Warnings:   ctrl.Warnings(),
		NavTarget:  o.courseSessions(sess),
	}, nil
}

// connectAttempt records what the join is about to try. CredentialUsed is
// decided here: a credential is only fetched for private hosts, and the
// adapter never drops it there, so holding one means it will be sent.
func connectAttempt(sess *model.Session, user *model.UserProfile, host, credential, password string) recovery.Attempt {
	return recovery.Attempt{
		Host:           host,
		Room:           sess.RoomName,
		Password:       password,
		Credential:     credential,
		CredentialUsed: credential != "",
		DisplayName:    user.DisplayName(),
	}
}

// recover turns a transport failure into the classified outcome: a
// browser fallback URL or a fatal user-facing message. A cancelled
// context is the user backing out, not a transport failure, so it
// propagates untouched.
func (o *Orchestrator) recover(sess *model.Session, role model.Role, classifier *recovery.Classifier, attempt recovery.Attempt, err error) (*Result, error) {
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	var f *signaling.Failure
	if !errors.As(err, &f) {
		f = &signaling.Failure{Kind: signaling.FailureOther, Code: "unknown", Err: err}
	}
	dec := classifier.Classify(attempt, f)
	switch dec.Outcome {
	case recovery.OutcomeFallback:
		return &Result{
			Phase:      PhaseLiveJoined,
			Session:    sess,
			Role:       role,
			BrowserURL: dec.URL,
			NavTarget:  o.courseSessions(sess),
		}, nil
	default:
		return &Result{
			Phase:     PhaseError,
			Session:   sess,
			Role:      role,
			Message:   dec.Message,
			NavTarget: o.courseSessions(sess),
		}, nil
	}
}

// Leave tears down the room, deregisters with the backend, and journals
// attendance. Safe to call more than once; later calls are no-ops.
func (o *Orchestrator) Leave(ctx context.Context, sess *model.Session, ctrl *conference.Controller) (string, error) {
	o.mu.Lock()
	if o.left {
		o.mu.Unlock()
		return o.courseSessions(sess), nil
	}
	o.left = true
	joinedAt := o.joinedAt
	o.mu.Unlock()

	if ctrl != nil {
		if err := ctrl.Leave(); err != nil {
			o.log.Warn("conference teardown reported error", zap.Error(err))
		}
	}

	if err := o.api.LeaveSession(ctx, sess.ID); err != nil && !errors.Is(err, errs.ErrParticipationNotFound) {
		o.log.Warn("leave not acknowledged by backend", zap.Error(err))
	}

	if !joinedAt.IsZero() {
		now := time.Now()
		rec := store.Attendance{
			SessionID: sess.ID,
			JoinedAt:  joinedAt,
			LeftAt:    now,
			Duration:  now.Sub(joinedAt),
		}
		if err := o.store.RecordAttendance(rec); err != nil {
			o.log.Warn("attendance journal write failed", zap.Error(err))
		}
	}

	return o.courseSessions(sess), nil
}

func (o *Orchestrator) currentUser() (*model.UserProfile, error) {
	snap := o.store.Get()
	if snap.AuthToken == "" || snap.User == nil {
		return nil, errs.ErrNotAuthenticated
	}
	return snap.User, nil
}

// signalingHost extracts the bare host from the session's server URL,
// defaulting to the public deployment.
func (o *Orchestrator) signalingHost(sess *model.Session) string {
	if sess.ServerURL == "" {
		return o.cfg.PublicHost
	}
	u, err := url.Parse(sess.ServerURL)
	if err != nil || u.Host == "" {
		// Bare hostnames parse with an empty Host; treat the raw value
		// as the host itself.
		return sess.ServerURL
	}
	return u.Host
}

func (o *Orchestrator) frontendPath(path string) string {
	return o.cfg.FrontendURL + path
}

func (o *Orchestrator) courseSessions(sess *model.Session) string {
	if sess == nil || sess.CourseID == "" {
		return o.frontendPath(constants.PathStudentDashboard)
	}
	return o.frontendPath(fmt.Sprintf(constants.PathCourseSessions, sess.CourseID))
}

func (o *Orchestrator) dashboard(role model.Role) string {
	if role == model.RoleInstructor {
		return o.frontendPath(constants.PathInstructorDashboard)
	}
	return o.frontendPath(constants.PathStudentDashboard)
}
