package authflow

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
	"github.com/Devdrwt/mdsc-live-client/internal/store"
)

// Flow runs one browser-based login handshake. The browser window plays
// the popup role; this process is the opener. Only the flow mutates the
// session store, and at most once per run, no matter how many duplicate
// callback deliveries arrive.
type Flow struct {
	Store        store.SessionStore
	IdentityURL  string
	CallbackHost string
	CallbackPort int
	Timeout      time.Duration
	PollInterval time.Duration
	OpenBrowser  func(url string) error
	Log          *zap.Logger
}

// Run opens the provider page and blocks until the handshake completes,
// the user abandons the window, or ctx is cancelled.
func (f *Flow) Run(ctx context.Context) (*model.UserProfile, error) {
	if f.IdentityURL == "" {
		return nil, fmt.Errorf("no identity provider configured (IDENTITY_URL)")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	poll := f.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	state := uuid.NewString()
	srv, err := newCallbackServer(f.CallbackHost, f.CallbackPort, state, f.Log)
	if err != nil {
		return nil, err
	}
	defer srv.shutdown()

	authURL, err := buildAuthURL(f.IdentityURL, srv.redirectURL(), state)
	if err != nil {
		return nil, err
	}
	open := f.OpenBrowser
	if open == nil {
		open = OpenBrowser
	}
	if err := open(authURL); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	f.Log.Info("waiting for browser authentication",
		zap.String("callback", srv.redirectURL()))

	// Bounded abandonment detection: a fixed number of polls, then give
	// up. Never an open-ended wait.
	maxPolls := int(timeout / poll)
	if maxPolls < 1 {
		maxPolls = 1
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	// Only the first delivered message counts; returning here is what
	// makes later duplicates no-ops, since the server holds no store
	// reference and its channel is never read again.
	for polls := 0; ; {
		select {
		case msg := <-srv.msgs:
			return f.complete(msg)
		case <-ticker.C:
			polls++
			if polls >= maxPolls {
				f.Log.Warn("login window abandoned, giving up")
				return nil, errs.ErrLoginAbandoned
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// complete acts on the single accepted payload: normalize, then update the
// store exactly once. Error payloads tear down without store mutation.
func (f *Flow) complete(msg Message) (*model.UserProfile, error) {
	if msg.Type == AuthError {
		return nil, fmt.Errorf("authentication failed: %s", msg.Err)
	}
	profile, err := NormalizeUser(msg.User)
	if err != nil {
		return nil, err
	}
	if err := f.Store.Set(store.Snapshot{AuthToken: msg.Token, User: profile}); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	f.Log.Info("authenticated", zap.String("user_id", profile.ID))
	return profile, nil
}

func buildAuthURL(identityURL, redirectURL, state string) (string, error) {
	u, err := url.Parse(identityURL)
	if err != nil {
		return "", fmt.Errorf("identity url: %w", err)
	}
	q := u.Query()
	q.Set("redirect_uri", redirectURL)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
