package authflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/pkg/constants"
)

const closedPage = `<!doctype html><html><body>
<p>Authentication complete. You can close this window.</p>
<script>window.close();</script>
</body></html>`

// callbackServer receives the identity provider's redirect on a loopback
// port and converts it into handshake messages. It deliberately holds no
// reference to the session store: only the flow (the "opener" side)
// transitions application state.
type callbackServer struct {
	srv   *http.Server
	ln    net.Listener
	msgs  chan Message
	state string
	log   *zap.Logger
}

func newCallbackServer(host string, port int, state string, log *zap.Logger) (*callbackServer, error) {
	s := &callbackServer{
		msgs:  make(chan Message, 8),
		state: state,
		log:   log,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET(constants.PathAuthCallback, s.handleCallback)

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("callback listener: %w", err)
	}
	s.ln = ln
	s.srv = &http.Server{Handler: engine, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn("callback server stopped", zap.Error(err))
		}
	}()
	return s, nil
}

// redirectURL is the loopback address the provider redirects back to.
func (s *callbackServer) redirectURL() string {
	return "http://" + s.ln.Addr().String() + constants.PathAuthCallback
}

func (s *callbackServer) handleCallback(c *gin.Context) {
	// Same-origin analog: only redirects carrying this flow's nonce are
	// accepted.
	if c.Query("state") != s.state {
		s.log.Warn("rejected auth callback with bad state nonce")
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid state"})
		return
	}

	msg := buildMessage(c.Query("error"), c.Query("token"), c.Query("user"))
	select {
	case s.msgs <- msg:
	default:
		// Duplicate redirect after the buffer filled; the flow has
		// already seen the payload.
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, closedPage)
}

func buildMessage(errParam, token, userRaw string) Message {
	if errParam != "" {
		return Message{Type: AuthError, Err: errParam}
	}
	if token == "" {
		return Message{Type: AuthError, Err: "missing token in callback"}
	}
	msg := Message{Type: AuthSuccess, Token: token}
	if userRaw != "" {
		if raw, err := decodeUserParam(userRaw); err == nil {
			msg.User = raw
		}
	}
	return msg
}

// decodeUserParam accepts both url-safe and standard base64, as successive
// provider versions have emitted either.
func decodeUserParam(s string) (map[string]any, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// shutdown closes the server as a bounded-retry task: a fixed number of
// graceful attempts, then a forced close as the terminal action.
func (s *callbackServer) shutdown() {
	const maxAttempts = 5
	for i := 0; i < maxAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := s.srv.Shutdown(ctx)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	_ = s.srv.Close()
}
