package authflow

// MessageType discriminates handshake payloads.
type MessageType string

const (
	AuthSuccess MessageType = "AUTH_SUCCESS"
	AuthError   MessageType = "AUTH_ERROR"
)

// Message is one handshake payload delivered by the identity provider's
// redirect. Deliveries may be duplicated; the flow consumes at most one.
type Message struct {
	Type  MessageType
	Token string
	User  map[string]any
	Err   string
}
