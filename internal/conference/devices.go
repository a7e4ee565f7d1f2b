package conference

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// TrackKind is the kind of a local capture.
type TrackKind string

const (
	TrackAudio  TrackKind = "audio"
	TrackVideo  TrackKind = "video"
	TrackScreen TrackKind = "screen"
)

// LocalTrack is an audio/video capture bound to a local device. Exclusively
// owned by the controller, which must Close it on leave to release the
// hardware.
type LocalTrack interface {
	Kind() TrackKind
	Track() webrtc.TrackLocal
	Close() error
}

// MediaCause is the sub-cause of a local-media acquisition failure. It
// drives the actionable warning text; acquisition failures are never fatal.
type MediaCause string

const (
	CausePermission MediaCause = "permission-denied"
	CauseBusy       MediaCause = "device-busy"
	CauseMissing    MediaCause = "device-missing"
	CauseTimeout    MediaCause = "timeout"
	CauseUnknown    MediaCause = "unknown"
)

// MediaError is a classified local-media acquisition failure.
type MediaError struct {
	Cause MediaCause
	Err   error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media acquisition failed (%s): %v", e.Cause, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

// UserMessage returns the dismissible warning text for the sub-cause.
func (e *MediaError) UserMessage() string {
	switch e.Cause {
	case CausePermission:
		return "Camera/microphone access was denied. You joined without sending audio or video; check your system permissions."
	case CauseBusy:
		return "Your camera or microphone is in use by another application. You joined without sending audio or video."
	case CauseMissing:
		return "No camera or microphone was found. You joined without sending audio or video."
	case CauseTimeout:
		return "Your devices took too long to respond. You joined without sending audio or video."
	default:
		return "Your camera and microphone could not be started. You joined without sending audio or video."
	}
}

// Devices acquires local capture tracks. The controller is the only
// consumer; no other component may hold the devices concurrently.
type Devices interface {
	AcquireUserMedia(ctx context.Context, audio, video bool) ([]LocalTrack, error)
	AcquireScreen(ctx context.Context) (LocalTrack, error)
}
