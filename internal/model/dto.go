package model

import "time"

// JoinSessionRequest is the body for POST /sessions/:id/join.
type JoinSessionRequest struct {
	EnrollmentID string `json:"enrollment_id,omitempty"`
}

// JoinSessionResponse is the backend's answer to a join call.
type JoinSessionResponse struct {
	JoinURL      string `json:"join_url"`
	RoomPassword string `json:"room_password,omitempty"`
}

// RoomTokenRequest is the body for POST /sessions/:id/jitsi-token. Only
// issued for non-default signaling hosts.
type RoomTokenRequest struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// RoomTokenResponse carries the signed room credential.
type RoomTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionPage is one page of a session listing.
type SessionPage struct {
	Items   []Session `json:"items"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
	Total   int       `json:"total"`
}

// APIError is the backend error envelope.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
