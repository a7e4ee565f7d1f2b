package conference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers the camera adapter
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers the microphone adapter
	_ "github.com/pion/mediadevices/pkg/driver/screen"     // registers the screen-capture adapter
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// DeviceManager acquires real capture devices through pion/mediadevices.
type DeviceManager struct {
	selector *mediadevices.CodecSelector
	log      *zap.Logger
}

// NewDeviceManager builds the VP8+Opus codec pipeline used for all local
// captures.
func NewDeviceManager(log *zap.Logger) (*DeviceManager, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 500_000
	vpxParams.KeyFrameInterval = 15

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	opusParams.BitRate = 32_000

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)
	return &DeviceManager{selector: selector, log: log}, nil
}

type acquireResult struct {
	stream mediadevices.MediaStream
	err    error
}

// AcquireUserMedia opens the microphone and/or camera. Device negotiation
// can hang on some OS/driver combinations, so the call is bounded by ctx;
// a deadline maps to CauseTimeout.
func (d *DeviceManager) AcquireUserMedia(ctx context.Context, audio, video bool) ([]LocalTrack, error) {
	constraints := mediadevices.MediaStreamConstraints{Codec: d.selector}
	if audio {
		constraints.Audio = func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
			c.Latency = prop.Duration(20 * time.Millisecond)
		}
	}
	if video {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(1280)
			c.Height = prop.Int(720)
			c.FrameRate = prop.Float(30)
		}
	}

	stream, err := d.getMedia(ctx, func() (mediadevices.MediaStream, error) {
		return mediadevices.GetUserMedia(constraints)
	})
	if err != nil {
		return nil, err
	}

	var tracks []LocalTrack
	for _, t := range stream.GetAudioTracks() {
		tracks = append(tracks, &deviceTrack{kind: TrackAudio, track: t})
	}
	for _, t := range stream.GetVideoTracks() {
		tracks = append(tracks, &deviceTrack{kind: TrackVideo, track: t})
	}
	return tracks, nil
}

// AcquireScreen opens a desktop capture track.
func (d *DeviceManager) AcquireScreen(ctx context.Context) (LocalTrack, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Codec: d.selector,
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameRate = prop.Float(15)
		},
	}
	stream, err := d.getMedia(ctx, func() (mediadevices.MediaStream, error) {
		return mediadevices.GetDisplayMedia(constraints)
	})
	if err != nil {
		return nil, err
	}
	videos := stream.GetVideoTracks()
	if len(videos) == 0 {
		return nil, &MediaError{Cause: CauseMissing, Err: fmt.Errorf("no screen track produced")}
	}
	return &deviceTrack{kind: TrackScreen, track: videos[0]}, nil
}

// getMedia runs the blocking acquisition call off the caller's goroutine so
// the ctx deadline stays enforceable.
func (d *DeviceManager) getMedia(ctx context.Context, acquire func() (mediadevices.MediaStream, error)) (mediadevices.MediaStream, error) {
	ch := make(chan acquireResult, 1)
	go func() {
		stream, err := acquire()
		ch <- acquireResult{stream: stream, err: err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			me := &MediaError{Cause: classifyMediaErr(res.err), Err: res.err}
			d.log.Warn("media acquisition failed",
				zap.String("cause", string(me.Cause)), zap.Error(res.err))
			return nil, me
		}
		return res.stream, nil
	case <-ctx.Done():
		// The acquisition goroutine may still complete later; release
		// whatever it produced so the hardware is not held hostage.
		go func() {
			if res := <-ch; res.err == nil && res.stream != nil {
				for _, t := range res.stream.GetTracks() {
					_ = t.Close()
				}
			}
		}()
		return nil, &MediaError{Cause: CauseTimeout, Err: ctx.Err()}
	}
}

// ProbeDevices reports how many cameras and microphones are registered,
// without opening any of them.
func ProbeDevices() (cameras, microphones int) {
	for _, info := range mediadevices.EnumerateDevices() {
		switch info.Kind {
		case mediadevices.VideoInput:
			cameras++
		case mediadevices.AudioInput:
			microphones++
		}
	}
	return cameras, microphones
}

// classifyMediaErr maps driver error text onto the warning sub-causes.
func classifyMediaErr(err error) MediaCause {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") || strings.Contains(msg, "not allowed"):
		return CausePermission
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return CauseBusy
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no device") || strings.Contains(msg, "failed to find"):
		return CauseMissing
	default:
		return CauseUnknown
	}
}

// deviceTrack adapts a mediadevices track to the controller's LocalTrack.
type deviceTrack struct {
	kind  TrackKind
	track mediadevices.Track
}

func (t *deviceTrack) Kind() TrackKind          { return t.kind }
func (t *deviceTrack) Track() webrtc.TrackLocal { return t.track }
func (t *deviceTrack) Close() error             { return t.track.Close() }
