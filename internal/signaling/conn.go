package signaling

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/errs"
	"github.com/Devdrwt/mdsc-live-client/pkg/constants"
)

// State is the lifecycle state of one signaling connection attempt.
type State string

const (
	StateNew          State = "new"
	StateConnecting   State = "connecting"
	StateEstablished  State = "established"
	StateFailed       State = "failed"
	StateDisconnected State = "disconnected"
)

// stateTransitions makes the lifecycle explicit: failed and disconnected are
// terminal, a connection is never reused after either.
var stateTransitions = map[State][]State{
	StateNew:          {StateConnecting},
	StateConnecting:   {StateEstablished, StateFailed},
	StateEstablished:  {StateDisconnected, StateFailed},
	StateFailed:       {},
	StateDisconnected: {},
}

// Options configures one connection attempt.
type Options struct {
	Host        string
	Credential  string
	PublicHost  string // well-known public deployment, never sent a credential
	Timeout     time.Duration
	DisplayName string
	Insecure    bool // plain ws://, tests only
}

// Conn is one signaling-transport attempt. One per controller mount; a
// failed Conn must never be redialed, callers create a fresh one.
type Conn struct {
	host           string
	credentialUsed bool

	mu        sync.Mutex
	state     State
	failure   *Failure
	ws        *websocket.Conn
	sessionID string

	msgs chan Message
	send chan Message
	done chan struct{}

	log *zap.Logger
}

// Connect dials the signaling host and runs the hello handshake. It returns
// once the connection is established, or fails with a *Failure tagged for
// the recovery classifier. If host is the well-known public deployment the
// credential is dropped before dialing: attaching one there is known to
// cause spurious rejection.
func Connect(ctx context.Context, opts Options, log *zap.Logger) (*Conn, error) {
	credential := opts.Credential
	if opts.PublicHost != "" && HostsEqual(opts.Host, opts.PublicHost) && credential != "" {
		log.Debug("dropping credential for public signaling host", zap.String("host", opts.Host))
		credential = ""
	}

	c := &Conn{
		host:           opts.Host,
		credentialUsed: credential != "",
		state:          StateNew,
		msgs:           make(chan Message, 64),
		send:           make(chan Message, 16),
		done:           make(chan struct{}),
		log:            log,
	}
	c.mustTransition(StateConnecting)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scheme := "wss"
	if opts.Insecure {
		scheme = "ws"
	}
	u := url.URL{Scheme: scheme, Host: opts.Host, Path: constants.SignalingPath}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		f := &Failure{Kind: FailureNetwork, Code: "dial", Err: err}
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			f = &Failure{Kind: FailureTimeout, Code: "dial-timeout", Err: err}
		}
		c.fail(f)
		return nil, f
	}
	c.ws = ws

	if f := c.handshake(dialCtx, credential); f != nil {
		_ = ws.Close()
		c.fail(f)
		return nil, f
	}

	c.mustTransition(StateEstablished)
	c.log.Info("signaling connection established",
		zap.String("host", c.host),
		zap.String("session_id", c.sessionID),
		zap.Bool("credential_used", c.credentialUsed))

	go c.readPump()
	go c.writePump()
	return c, nil
}

// handshake sends hello and waits for the server acknowledgement, bounded
// by ctx's deadline.
func (c *Conn) handshake(ctx context.Context, credential string) *Failure {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	_ = c.ws.SetWriteDeadline(deadline)
	hello := Message{Type: TypeHello, Hello: &Hello{Version: "1.0", Token: credential}}
	if err := c.ws.WriteJSON(hello); err != nil {
		return &Failure{Kind: FailureNetwork, Code: "hello-write", Err: err}
	}

	// A handful of informational frames may precede the hello ack.
	for i := 0; i < 10; i++ {
		_ = c.ws.SetReadDeadline(deadline)
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if netTimeout(err) {
				return &Failure{Kind: FailureTimeout, Code: "hello-timeout", Err: err}
			}
			return &Failure{Kind: FailureNetwork, Code: "hello-read", Err: err}
		}
		switch msg.Type {
		case TypeError:
			code := ""
			if msg.Error != nil {
				code = msg.Error.Code
			}
			return &Failure{Kind: classifyCode(code), Code: code, Err: fmt.Errorf("server error: %s", code)}
		case TypeBye:
			return &Failure{Kind: FailureOther, Code: "bye", Err: errors.New("server closed during handshake")}
		case TypeHello:
			if msg.Hello != nil {
				c.sessionID = msg.Hello.SessionID
			}
			_ = c.ws.SetReadDeadline(time.Time{})
			_ = c.ws.SetWriteDeadline(time.Time{})
			return nil
		default:
			// welcome and friends, keep waiting
		}
	}
	return &Failure{Kind: FailureOther, Code: "no-hello", Err: errors.New("no hello acknowledgement")}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the server-assigned signaling session id.
func (c *Conn) SessionID() string { return c.sessionID }

// Host returns the signaling host this attempt is bound to.
func (c *Conn) Host() string { return c.host }

// CredentialUsed reports whether a credential was attached to this attempt.
func (c *Conn) CredentialUsed() bool { return c.credentialUsed }

// Failure returns the terminal failure, or nil.
func (c *Conn) Failure() *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Messages yields incoming signaling messages. Closed on disconnect.
func (c *Conn) Messages() <-chan Message { return c.msgs }

// Done is closed once the connection reaches a terminal state.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues a message for the host. A terminal connection rejects sends
// with errs.ErrConnectionConsumed.
func (c *Conn) Send(msg Message) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st != StateEstablished {
		return errs.ErrConnectionConsumed
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errs.ErrConnectionConsumed
	}
}

// Disconnect tears the connection down. Idempotent; a bye is sent
// best-effort before closing the socket.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.state != StateEstablished {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(StateDisconnected)
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = ws.WriteJSON(Message{Type: TypeBye, Bye: &Bye{Reason: "leave"}})
		_ = ws.Close()
	}
	c.closeDone()
	c.log.Info("signaling connection disconnected", zap.String("host", c.host))
}

func (c *Conn) readPump() {
	defer func() {
		c.mu.Lock()
		if c.state == StateEstablished {
			c.transitionLocked(StateDisconnected)
			c.failure = &Failure{Kind: FailureNetwork, Code: "read-closed", Err: errors.New("signaling read closed")}
		}
		c.mu.Unlock()
		c.closeDone()
		close(c.msgs)
	}()
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("signaling read error", zap.Error(err))
			}
			return
		}
		select {
		case c.msgs <- msg:
		default:
			c.log.Warn("signaling message buffer full, dropping", zap.String("type", msg.Type))
		}
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case msg := <-c.send:
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug("signaling write error", zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) fail(f *Failure) {
	c.mu.Lock()
	c.transitionLocked(StateFailed)
	c.failure = f
	c.mu.Unlock()
	c.closeDone()
	c.log.Warn("signaling connection failed",
		zap.String("host", c.host),
		zap.String("kind", string(f.Kind)),
		zap.String("code", f.Code),
		zap.Error(f.Err))
}

func (c *Conn) closeDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Conn) transitionLocked(next State) {
	for _, allowed := range stateTransitions[c.state] {
		if allowed == next {
			c.state = next
			return
		}
	}
	c.log.Warn("illegal signaling state transition ignored",
		zap.String("from", string(c.state)), zap.String("to", string(next)))
}

func (c *Conn) mustTransition(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(next)
}

// HostsEqual compares two signaling hosts, ignoring case and any number
// of trailing slashes. Every host comparison in the client goes through
// this so no two call sites can normalize differently.
func HostsEqual(a, b string) bool {
	return strings.EqualFold(normalizeHost(a), normalizeHost(b))
}

func normalizeHost(h string) string {
	for len(h) > 0 && h[len(h)-1] == '/' {
		h = h[:len(h)-1]
	}
	return h
}

func netTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
