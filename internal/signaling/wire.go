package signaling

import "encoding/json"

// Message is the envelope exchanged with the signaling host. Exactly one of
// the payload fields is set, selected by Type.
type Message struct {
	Type   string       `json:"type"`
	Hello  *Hello       `json:"hello,omitempty"`
	Error  *ErrorInfo   `json:"error,omitempty"`
	Join   *Join        `json:"join,omitempty"`
	Joined *Joined      `json:"joined,omitempty"`
	Event  *RoomEvent   `json:"event,omitempty"`
	Signal *MediaSignal `json:"signal,omitempty"`
	Bye    *Bye         `json:"bye,omitempty"`
}

// Message types.
const (
	TypeHello  = "hello"
	TypeError  = "error"
	TypeJoin   = "join"
	TypeJoined = "joined"
	TypeEvent  = "event"
	TypeSignal = "signal"
	TypeBye    = "bye"
)

// Hello opens the signaling handshake (client→server) and acknowledges it
// (server→client, with session identifiers filled).
type Hello struct {
	Version   string `json:"version,omitempty"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ResumeID  string `json:"resume_id,omitempty"`
}

// ErrorInfo is a server-side failure report.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Server error codes the client branches on.
const (
	CodePasswordRequired = "password-required"
	CodeNotAuthorized    = "not-authorized"
	CodeRoomJoinFailed   = "room-join-failed"
)

// Join asks to enter a room. Receiver constraints cap the number of
// simultaneous remote video streams and the received resolution so
// bandwidth stays bounded regardless of room size.
type Join struct {
	Room          string `json:"room"`
	Password      string `json:"password,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	MaxStreams    int    `json:"max_video_streams,omitempty"`
	HeightCeiling int    `json:"receive_height_ceiling,omitempty"`
}

// Joined confirms room entry and carries the initial roster.
type Joined struct {
	ParticipantID string            `json:"participant_id"`
	Participants  []RoomParticipant `json:"participants,omitempty"`
	IceServers    []IceServer       `json:"ice_servers,omitempty"`
}

// IceServer is a STUN/TURN entry handed out by the room.
type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// RoomParticipant identifies a remote member of the room.
type RoomParticipant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Room event kinds.
const (
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
	EventTrackAdded   = "track-added"
	EventTrackRemoved = "track-removed"
)

// RoomEvent reports a roster or track change. Track events may arrive in
// any order relative to the user events for the same participant.
type RoomEvent struct {
	Kind        string           `json:"kind"`
	Participant *RoomParticipant `json:"participant,omitempty"`
	TrackID     string           `json:"track_id,omitempty"`
	TrackKind   string           `json:"track_kind,omitempty"`
}

// MediaSignal carries SDP/ICE exchange with the media relay.
type MediaSignal struct {
	Kind      string          `json:"kind"` // offer | answer | candidate
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Bye terminates the signaling connection cleanly.
type Bye struct {
	Reason string `json:"reason,omitempty"`
}
