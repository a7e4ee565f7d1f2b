package signaling

import "fmt"

// FailureKind is the coarse classification of a transport failure. The
// recovery layer branches on it; the raw code stays available for logs.
type FailureKind string

const (
	FailurePasswordRequired FailureKind = "password-required"
	FailureAuth             FailureKind = "auth"
	FailureNetwork          FailureKind = "network"
	FailureTimeout          FailureKind = "timeout"
	FailureOther            FailureKind = "other"
)

// Failure is a terminal transport error, tagged with enough detail for the
// classifier to branch. It is never swallowed by the adapter.
type Failure struct {
	Kind FailureKind
	Code string // raw server code or library identifier, logs only
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("signaling %s (%s): %v", f.Kind, f.Code, f.Err)
	}
	return fmt.Sprintf("signaling %s (%s)", f.Kind, f.Code)
}

func (f *Failure) Unwrap() error { return f.Err }

// classifyCode maps a server error code onto a failure kind.
func classifyCode(code string) FailureKind {
	switch code {
	case CodePasswordRequired:
		return FailurePasswordRequired
	case CodeNotAuthorized:
		return FailureAuth
	default:
		return FailureOther
	}
}
