package recovery

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/signaling"
)

// Outcome is the classifier's verdict for a failed transport attempt.
type Outcome string

const (
	// OutcomeFallback switches silently to the embedded provider page.
	OutcomeFallback Outcome = "fallback"
	// OutcomeFatal surfaces an error with explicit retry / embedded-page
	// choices; no automatic recovery.
	OutcomeFatal Outcome = "fatal"
	// OutcomeRetry is reserved; no current rule produces it.
	OutcomeRetry Outcome = "retry"
)

// Attempt describes the failed connection attempt being classified.
type Attempt struct {
	Host           string
	Room           string
	Password       string
	Credential     string
	CredentialUsed bool
	DisplayName    string
}

// Decision is the classifier's output. For a fallback it carries the room
// URL to open; for a fatal it carries the user-facing message.
type Decision struct {
	Outcome    Outcome
	URL        string
	Message    string
	Diagnostic string // raw reasoning for logs, never shown to the user
}

// Classifier turns opaque transport failures into a recovery decision. One
// classifier serves one connection attempt: the decision is made once and
// repeated calls return the same value, so a failed Conn can never trigger
// two recoveries.
type Classifier struct {
	publicHost string
	log        *zap.Logger

	once     sync.Once
	decision Decision
}

// NewClassifier creates a classifier bound to the well-known public host.
func NewClassifier(publicHost string, log *zap.Logger) *Classifier {
	return &Classifier{publicHost: publicHost, log: log}
}

// Classify applies the decision table, first match wins. Idempotent.
func (c *Classifier) Classify(att Attempt, f *signaling.Failure) Decision {
	c.once.Do(func() {
		c.decision = c.decide(att, f)
		c.log.Info("transport failure classified",
			zap.String("host", att.Host),
			zap.String("kind", string(f.Kind)),
			zap.String("code", f.Code),
			zap.String("outcome", string(c.decision.Outcome)),
			zap.String("diagnostic", c.decision.Diagnostic))
	})
	return c.decision
}

func (c *Classifier) decide(att Attempt, f *signaling.Failure) Decision {
	onPublic := signaling.HostsEqual(att.Host, c.publicHost)

	fallback := func(diag string) Decision {
		return Decision{
			Outcome:    OutcomeFallback,
			URL:        RoomURL(att.Host, att.Room, att.Credential, att.Password, att.DisplayName),
			Diagnostic: diag,
		}
	}

	switch {
	// 1. Room wants a password we don't have embedded: the provider page
	// can prompt for it.
	case f.Kind == signaling.FailurePasswordRequired:
		return fallback("password-required")

	// 2. Generic errors on the public host are frequently spurious; the
	// provider page succeeds where the programmatic path doesn't.
	case f.Kind == signaling.FailureOther && onPublic:
		return fallback("public-generic")

	// 3. Generic error without a credential in play.
	case f.Kind == signaling.FailureOther && !att.CredentialUsed:
		return fallback("generic-no-credential")

	// 4. Generic error with a credential: fall back anyway as a last
	// resort. The distinct tag keeps the possible token-validation bug
	// visible in monitoring.
	case f.Kind == signaling.FailureOther && att.CredentialUsed:
		return fallback("token-maybe-invalid")

	// 5. The public host timing out is its common failure mode.
	case f.Kind == signaling.FailureTimeout && onPublic:
		return fallback("public-timeout")

	// 6. Everything else on a private host is fatal and user-actionable.
	default:
		return Decision{
			Outcome:    OutcomeFatal,
			Message:    fatalMessage(f.Kind, att.Host),
			Diagnostic: fmt.Sprintf("kind=%s code=%s", f.Kind, f.Code),
		}
	}
}

// fatalMessage builds the user-facing text: coarse category plus host,
// never the raw library identifier.
func fatalMessage(kind signaling.FailureKind, host string) string {
	var cause string
	switch kind {
	case signaling.FailureTimeout:
		cause = "the connection timed out"
	case signaling.FailureAuth:
		cause = "the session credentials were rejected"
	case signaling.FailureNetwork:
		cause = "the server could not be reached"
	default:
		cause = "the connection failed"
	}
	return fmt.Sprintf("Could not join the video session: %s (%s). You can retry or open the session in your browser.", cause, host)
}
