package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
	"github.com/Devdrwt/mdsc-live-client/pkg/constants"
)

// TokenSource yields the current bearer token, or "" when unauthenticated.
type TokenSource func() string

// Client talks to the platform backend over its REST contract.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	log     *zap.Logger
}

// NewClient creates a backend client. token may be nil for anonymous use.
func NewClient(baseURL string, token TokenSource, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		token:   token,
		log:     log,
	}
}

// GetSession fetches one session by id.
func (c *Client) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	if err := c.do(ctx, http.MethodGet, c.sessionPath(id), nil, &sess); err != nil {
		if isNotFound(err) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// JoinSession records the user's entry into the session.
func (c *Client) JoinSession(ctx context.Context, id, enrollmentID string) (*model.JoinSessionResponse, error) {
	var out model.JoinSessionResponse
	req := model.JoinSessionRequest{EnrollmentID: enrollmentID}
	if err := c.do(ctx, http.MethodPost, c.sessionPath(id)+"/join", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LeaveSession closes the user's participation record. Idempotent: a
// missing record maps to errs.ErrParticipationNotFound, which callers
// treat as non-fatal.
func (c *Client) LeaveSession(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodPost, c.sessionPath(id)+"/leave", nil, nil)
	if err != nil && isNotFound(err) {
		return errs.ErrParticipationNotFound
	}
	return err
}

// StartSession transitions scheduled→live. Instructor only.
func (c *Client) StartSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	if err := c.do(ctx, http.MethodPost, c.sessionPath(id)+"/start", nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// EndSession transitions live→ended. Instructor only.
func (c *Client) EndSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	if err := c.do(ctx, http.MethodPost, c.sessionPath(id)+"/end", nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// RoomToken fetches a signed room credential. Only called for non-default
// signaling hosts; the public deployment rejects tokened connects.
func (c *Client) RoomToken(ctx context.Context, id, userID string, role model.Role) (*model.RoomTokenResponse, error) {
	var out model.RoomTokenResponse
	req := model.RoomTokenRequest{UserID: userID, Role: role}
	if err := c.do(ctx, http.MethodPost, c.sessionPath(id)+"/jitsi-token", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionParticipants returns the session's participation records.
func (c *Client) SessionParticipants(ctx context.Context, id string) ([]model.Participant, error) {
	var out []model.Participant
	if err := c.do(ctx, http.MethodGet, c.sessionPath(id)+"/participants", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListQuery filters a session listing.
type ListQuery struct {
	CourseID string
	Page     int
	PerPage  int
}

// ListSessions returns one page of sessions for a course or the current user.
func (c *Client) ListSessions(ctx context.Context, q ListQuery) (*model.SessionPage, error) {
	path := constants.PathSessions
	if q.CourseID != "" {
		path = constants.PathCourses + "/" + url.PathEscape(q.CourseID) + "/sessions"
	}
	vals := url.Values{}
	if q.Page > 0 {
		vals.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		vals.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if enc := vals.Encode(); enc != "" {
		path += "?" + enc
	}
	var page model.SessionPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Ping checks backend reachability (used by join --check).
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, constants.PathHealth, nil, nil)
}

func (c *Client) sessionPath(id string) string {
	return constants.PathSessions + "/" + url.PathEscape(id)
}

// statusError carries a non-2xx backend response.
type statusError struct {
	Status  int
	Code    string
	Message string
}

func (e *statusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: %d %s", e.Status, e.Code)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.Status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr model.APIError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		c.log.Debug("backend error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Error))
		return &statusError{Status: resp.StatusCode, Code: apiErr.Error, Message: apiErr.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
