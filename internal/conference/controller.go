package conference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/signaling"
)

// JoinOptions configures one room join.
type JoinOptions struct {
	Room           string
	Password       string
	DisplayName    string
	MaxStreams     int
	HeightCeiling  int
	AcquireTimeout time.Duration
}

// Warning is a dismissible, non-fatal media problem surfaced to the user.
type Warning struct {
	Cause   MediaCause
	Message string
}

// Controller owns one joined room's media state: local tracks, the remote
// roster, mute and screen-share operations. One controller per established
// connection; Leave releases everything.
type Controller struct {
	conn    *signaling.Conn
	devices Devices
	roster  *Roster
	log     *zap.Logger

	pc *webrtc.PeerConnection

	mu            sync.Mutex
	participantID string
	localTracks   map[TrackKind]LocalTrack
	senders       map[TrackKind]*webrtc.RTPSender
	muted         map[TrackKind]bool
	warnings      []Warning
	localAdded    int
	localDisposed int
	screenOn      bool

	left     atomic.Bool
	loopDone chan struct{}
}

// Join enters a room over an established connection. The password is
// attached when the session record carries one. Local media acquisition
// failures are non-fatal: the user proceeds without the device and a
// warning is recorded.
func Join(ctx context.Context, conn *signaling.Conn, devices Devices, opts JoinOptions, log *zap.Logger) (*Controller, error) {
	c := &Controller{
		conn:        conn,
		devices:     devices,
		roster:      NewRoster(log),
		log:         log,
		localTracks: make(map[TrackKind]LocalTrack),
		senders:     make(map[TrackKind]*webrtc.RTPSender),
		muted:       make(map[TrackKind]bool),
		loopDone:    make(chan struct{}),
	}

	join := signaling.Message{Type: signaling.TypeJoin, Join: &signaling.Join{
		Room:          opts.Room,
		Password:      opts.Password,
		DisplayName:   opts.DisplayName,
		MaxStreams:    opts.MaxStreams,
		HeightCeiling: opts.HeightCeiling,
	}}
	if err := conn.Send(join); err != nil {
		return nil, err
	}

	joined, err := c.waitJoined(ctx)
	if err != nil {
		return nil, err
	}
	c.participantID = joined.ParticipantID
	for _, p := range joined.Participants {
		c.roster.AddParticipant(p)
	}

	if err := c.setupPeerConnection(joined.IceServers); err != nil {
		return nil, err
	}

	c.acquireLocalMedia(ctx, opts.AcquireTimeout)

	if err := c.negotiate(); err != nil {
		c.log.Warn("initial negotiation failed", zap.Error(err))
	}

	go c.eventLoop()
	c.log.Info("conference joined",
		zap.String("room", opts.Room),
		zap.String("participant_id", c.participantID),
		zap.Int("roster", len(joined.Participants)))
	return c, nil
}

// waitJoined consumes messages until the room confirms entry. Roster
// events arriving ahead of the confirmation are applied immediately.
func (c *Controller) waitJoined(ctx context.Context) (*signaling.Joined, error) {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			return nil, &signaling.Failure{Kind: signaling.FailureTimeout, Code: "join-timeout", Err: ctx.Err()}
		case msg, ok := <-c.conn.Messages():
			if !ok {
				if f := c.conn.Failure(); f != nil {
					return nil, f
				}
				return nil, &signaling.Failure{Kind: signaling.FailureNetwork, Code: "join-closed", Err: errors.New("connection closed during join")}
			}
			switch msg.Type {
			case signaling.TypeJoined:
				if msg.Joined == nil {
					return nil, &signaling.Failure{Kind: signaling.FailureOther, Code: "empty-joined", Err: errors.New("joined without payload")}
				}
				return msg.Joined, nil
			case signaling.TypeError:
				code := ""
				if msg.Error != nil {
					code = msg.Error.Code
				}
				return nil, &signaling.Failure{Kind: classifyJoinError(code), Code: code, Err: fmt.Errorf("join rejected: %s", code)}
			case signaling.TypeEvent:
				c.handleEvent(msg.Event)
			}
		}
	}
}

func classifyJoinError(code string) signaling.FailureKind {
	switch code {
	case signaling.CodePasswordRequired:
		return signaling.FailurePasswordRequired
	case signaling.CodeNotAuthorized:
		return signaling.FailureAuth
	default:
		return signaling.FailureOther
	}
}

func (c *Controller) setupPeerConnection(servers []signaling.IceServer) error {
	var iceServers []webrtc.ICEServer
	for _, s := range servers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return fmt.Errorf("peer connection: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if c.left.Load() {
			return
		}
		c.handleRemoteTrack(track)
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || c.left.Load() {
			return
		}
		raw, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		_ = c.conn.Send(signaling.Message{Type: signaling.TypeSignal, Signal: &signaling.MediaSignal{
			Kind:      "candidate",
			Candidate: raw,
		}})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.log.Debug("peer connection state", zap.String("state", state.String()))
	})

	c.pc = pc
	return nil
}

// acquireLocalMedia opens mic and camera with a generous timeout (device
// negotiation is slower than the library default on some OS/driver
// combinations) and publishes whatever was obtained.
func (c *Controller) acquireLocalMedia(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracks, err := c.devices.AcquireUserMedia(acqCtx, true, true)
	if err != nil {
		var me *MediaError
		if !errors.As(err, &me) {
			me = &MediaError{Cause: CauseUnknown, Err: err}
		}
		c.mu.Lock()
		c.warnings = append(c.warnings, Warning{Cause: me.Cause, Message: me.UserMessage()})
		c.mu.Unlock()
		c.log.Warn("proceeding without local media",
			zap.String("cause", string(me.Cause)), zap.Error(me.Err))
		return
	}
	for _, t := range tracks {
		if err := c.publishLocal(t); err != nil {
			c.log.Warn("failed to publish local track",
				zap.String("kind", string(t.Kind())), zap.Error(err))
			_ = t.Close()
		}
	}
}

func (c *Controller) publishLocal(t LocalTrack) error {
	sender, err := c.pc.AddTrack(t.Track())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.localTracks[t.Kind()] = t
	c.senders[t.Kind()] = sender
	c.localAdded++
	c.mu.Unlock()
	return nil
}

func (c *Controller) negotiate() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return c.conn.Send(signaling.Message{Type: signaling.TypeSignal, Signal: &signaling.MediaSignal{
		Kind: "offer",
		SDP:  offer.SDP,
	}})
}

func (c *Controller) eventLoop() {
	defer close(c.loopDone)
	for msg := range c.conn.Messages() {
		if c.left.Load() {
			return
		}
		switch msg.Type {
		case signaling.TypeEvent:
			c.handleEvent(msg.Event)
		case signaling.TypeSignal:
			c.handleSignal(msg.Signal)
		case signaling.TypeBye:
			c.log.Info("room closed by server")
			_ = c.Leave()
			return
		}
	}
}

func (c *Controller) handleEvent(ev *signaling.RoomEvent) {
	if ev == nil {
		return
	}
	switch ev.Kind {
	case signaling.EventUserJoined:
		if ev.Participant != nil {
			c.roster.AddParticipant(*ev.Participant)
		}
	case signaling.EventUserLeft:
		if ev.Participant != nil {
			c.roster.RemoveParticipant(ev.Participant.ID)
		}
	case signaling.EventTrackRemoved:
		if ev.Participant != nil && ev.TrackID != "" {
			c.roster.RemoveTrack(ev.Participant.ID, ev.TrackID)
		}
	case signaling.EventTrackAdded:
		// informational: media arrives through the peer connection
	}
}

func (c *Controller) handleSignal(sig *signaling.MediaSignal) {
	if sig == nil || c.pc == nil {
		return
	}
	switch sig.Kind {
	case "answer":
		err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  sig.SDP,
		})
		if err != nil {
			c.log.Warn("set remote answer failed", zap.Error(err))
		}
	case "offer":
		// Relay-initiated renegotiation.
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  sig.SDP,
		}); err != nil {
			c.log.Warn("set remote offer failed", zap.Error(err))
			return
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			c.log.Warn("create answer failed", zap.Error(err))
			return
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			c.log.Warn("set local answer failed", zap.Error(err))
			return
		}
		_ = c.conn.Send(signaling.Message{Type: signaling.TypeSignal, Signal: &signaling.MediaSignal{
			Kind: "answer",
			SDP:  answer.SDP,
		}})
	case "candidate":
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Candidate, &init); err != nil {
			return
		}
		if err := c.pc.AddICECandidate(init); err != nil {
			c.log.Debug("add ice candidate failed", zap.Error(err))
		}
	}
}

func (c *Controller) handleRemoteTrack(track *webrtc.TrackRemote) {
	pid := track.StreamID()
	tid := track.ID()
	kind := TrackVideo
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		kind = TrackAudio
	}

	stop := make(chan struct{})
	var once sync.Once
	dispose := func() { once.Do(func() { close(stop) }) }

	if c.roster.AddTrack(pid, tid, kind, dispose) {
		go c.consumeRemote(track, stop)
	}
}

// consumeRemote drains a remote track until its sink is disposed. This is
// the track's rendering surface; it never outlives the roster entry.
func (c *Controller) consumeRemote(track *webrtc.TrackRemote, stop <-chan struct{}) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-stop:
			return
		default:
		}
		_ = track.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err := track.Read(buf); err != nil {
			if netTimeout(err) {
				continue
			}
			return
		}
	}
}

func netTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// ToggleAudio mutes or unmutes the local audio track in place. Returns the
// new muted state.
func (c *Controller) ToggleAudio() (bool, error) { return c.toggle(TrackAudio) }

// ToggleVideo mutes or unmutes the local video track in place.
func (c *Controller) ToggleVideo() (bool, error) { return c.toggle(TrackVideo) }

// toggle flips sending for a kind without recreating the track: the sender
// is detached (ReplaceTrack nil) and reattached on unmute.
func (c *Controller) toggle(kind TrackKind) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sender, ok := c.senders[kind]
	track := c.localTracks[kind]
	if !ok || track == nil {
		return false, fmt.Errorf("no local %s track", kind)
	}
	if c.muted[kind] {
		if err := sender.ReplaceTrack(track.Track()); err != nil {
			return true, err
		}
		c.muted[kind] = false
	} else {
		if err := sender.ReplaceTrack(nil); err != nil {
			return false, err
		}
		c.muted[kind] = true
	}
	return c.muted[kind], nil
}

// ToggleScreenShare publishes a desktop capture in place of the camera, or
// restores the camera when already sharing.
func (c *Controller) ToggleScreenShare(ctx context.Context) error {
	c.mu.Lock()
	sharing := c.screenOn
	c.mu.Unlock()
	if sharing {
		return c.stopScreenShare(ctx)
	}
	return c.startScreenShare(ctx)
}

func (c *Controller) startScreenShare(ctx context.Context) error {
	screen, err := c.devices.AcquireScreen(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.localAdded++
	if sender, ok := c.senders[TrackVideo]; ok {
		if err := sender.ReplaceTrack(screen.Track()); err != nil {
			c.localDisposed++
			_ = screen.Close()
			return err
		}
		// The camera is released while sharing; it is re-acquired on stop.
		if cam := c.localTracks[TrackVideo]; cam != nil {
			_ = cam.Close()
			c.localDisposed++
			delete(c.localTracks, TrackVideo)
		}
	} else {
		sender, err := c.pc.AddTrack(screen.Track())
		if err != nil {
			c.localDisposed++
			_ = screen.Close()
			return err
		}
		c.senders[TrackVideo] = sender
	}
	c.localTracks[TrackScreen] = screen
	c.screenOn = true
	c.log.Info("screen share started")
	return nil
}

func (c *Controller) stopScreenShare(ctx context.Context) error {
	c.mu.Lock()
	screen := c.localTracks[TrackScreen]
	delete(c.localTracks, TrackScreen)
	c.screenOn = false
	sender := c.senders[TrackVideo]
	c.mu.Unlock()

	if screen != nil {
		_ = screen.Close()
		c.mu.Lock()
		c.localDisposed++
		c.mu.Unlock()
	}

	// Restore the camera so the local preview comes back.
	tracks, err := c.devices.AcquireUserMedia(ctx, false, true)
	if err != nil || len(tracks) == 0 {
		if sender != nil {
			_ = sender.ReplaceTrack(nil)
		}
		c.log.Warn("could not restore camera after screen share", zap.Error(err))
		return nil
	}
	cam := tracks[0]
	c.mu.Lock()
	c.localTracks[TrackVideo] = cam
	c.localAdded++
	c.mu.Unlock()
	if sender != nil {
		return sender.ReplaceTrack(cam.Track())
	}
	return c.publishLocalExisting(cam)
}

func (c *Controller) publishLocalExisting(t LocalTrack) error {
	sender, err := c.pc.AddTrack(t.Track())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.senders[t.Kind()] = sender
	c.mu.Unlock()
	return nil
}

// Leave tears the conference down best-effort: conference leave, then
// connection disconnect, then local-track disposal. Each step is
// independently guarded so the hardware is always released. Idempotent.
func (c *Controller) Leave() error {
	if !c.left.CompareAndSwap(false, true) {
		return nil
	}
	c.guard("conference leave", func() {
		c.roster.Close()
		if c.pc != nil {
			_ = c.pc.Close()
		}
	})
	c.guard("connection disconnect", func() {
		c.conn.Disconnect()
	})
	c.guard("local track disposal", func() {
		c.mu.Lock()
		tracks := make([]LocalTrack, 0, len(c.localTracks))
		for _, t := range c.localTracks {
			if t != nil {
				tracks = append(tracks, t)
			}
		}
		c.localTracks = make(map[TrackKind]LocalTrack)
		c.mu.Unlock()
		for _, t := range tracks {
			_ = t.Close()
			c.mu.Lock()
			c.localDisposed++
			c.mu.Unlock()
		}
	})
	c.log.Info("conference left")
	return nil
}

func (c *Controller) guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("teardown step panicked", zap.String("step", step), zap.Any("panic", r))
		}
	}()
	fn()
}

// Done closes when the event loop exits: server bye, connection loss, or
// Leave.
func (c *Controller) Done() <-chan struct{} { return c.loopDone }

// Warnings returns the non-fatal media warnings collected so far.
func (c *Controller) Warnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Participants returns the current remote roster.
func (c *Controller) Participants() []signaling.RoomParticipant {
	return c.roster.Snapshot()
}

// ParticipantID returns our id in the room.
func (c *Controller) ParticipantID() string { return c.participantID }

// AudioMuted reports the local audio mute state.
func (c *Controller) AudioMuted() bool { return c.mutedState(TrackAudio) }

// VideoMuted reports the local video mute state.
func (c *Controller) VideoMuted() bool { return c.mutedState(TrackVideo) }

// ScreenSharing reports whether a desktop capture is being published.
func (c *Controller) ScreenSharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenOn
}

func (c *Controller) mutedState(kind TrackKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted[kind]
}

// TrackStats returns acquired/disposed counts across local and remote
// tracks. At teardown the two are equal.
func (c *Controller) TrackStats() (acquired, disposed int) {
	remoteAdded, remoteDisposed := c.roster.Stats()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localAdded + remoteAdded, c.localDisposed + remoteDisposed
}
