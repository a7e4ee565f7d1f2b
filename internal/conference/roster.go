package conference

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/signaling"
)

// remoteTrack pairs a published remote track with the teardown of its
// rendering sink. The pairing is a hard invariant: no sink outlives its
// track, no registered track goes undisposed while the roster is open.
type remoteTrack struct {
	id      string
	kind    TrackKind
	dispose func()
}

type rosterEntry struct {
	info   signaling.RoomParticipant
	tracks map[string]*remoteTrack
}

// Roster tracks remote participants and their media for one conference.
// Mutated only by the controller's own event handlers (single writer);
// consumers read snapshots. Handlers are idempotent against already-absent
// entries: track and user events may arrive in any order.
type Roster struct {
	mu      sync.RWMutex
	entries map[string]*rosterEntry
	closed  bool

	tracksAdded    int
	tracksDisposed int

	log *zap.Logger
}

// NewRoster creates an empty roster.
func NewRoster(log *zap.Logger) *Roster {
	return &Roster{
		entries: make(map[string]*rosterEntry),
		log:     log,
	}
}

// AddParticipant registers a remote participant. Re-adding updates the
// stored info and keeps existing tracks.
func (r *Roster) AddParticipant(p signaling.RoomParticipant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if e, ok := r.entries[p.ID]; ok {
		e.info = p
		return
	}
	r.entries[p.ID] = &rosterEntry{info: p, tracks: make(map[string]*remoteTrack)}
	r.log.Debug("participant joined", zap.String("participant_id", p.ID))
}

// RemoveParticipant drops a participant and disposes every track still
// registered under it. No-op for unknown ids.
func (r *Roster) RemoveParticipant(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	for _, t := range e.tracks {
		r.disposeTrack(t)
	}
	r.log.Debug("participant left", zap.String("participant_id", id))
}

// AddTrack registers a remote track under a participant, creating the entry
// if the track event arrived before user-joined. dispose tears the track's
// sink down and releases the track. Returns false for duplicates, whose
// dispose is run immediately so the extra sink never leaks.
func (r *Roster) AddTrack(participantID, trackID string, kind TrackKind, dispose func()) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if dispose != nil {
			dispose()
		}
		return false
	}
	e, ok := r.entries[participantID]
	if !ok {
		e = &rosterEntry{
			info:   signaling.RoomParticipant{ID: participantID},
			tracks: make(map[string]*remoteTrack),
		}
		r.entries[participantID] = e
	}
	if _, dup := e.tracks[trackID]; dup {
		r.mu.Unlock()
		if dispose != nil {
			dispose()
		}
		return false
	}
	e.tracks[trackID] = &remoteTrack{id: trackID, kind: kind, dispose: dispose}
	r.tracksAdded++
	r.mu.Unlock()
	r.log.Debug("remote track added",
		zap.String("participant_id", participantID),
		zap.String("track_id", trackID),
		zap.String("kind", string(kind)))
	return true
}

// RemoveTrack disposes one remote track. Idempotent; the track may already
// be gone because its participant left first.
func (r *Roster) RemoveTrack(participantID, trackID string) bool {
	r.mu.Lock()
	e, ok := r.entries[participantID]
	var t *remoteTrack
	if ok {
		t, ok = e.tracks[trackID]
		if ok {
			delete(e.tracks, trackID)
		}
	}
	r.mu.Unlock()
	if !ok || t == nil {
		return false
	}
	r.disposeTrack(t)
	return true
}

// Snapshot returns the current remote participants.
func (r *Roster) Snapshot() []signaling.RoomParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]signaling.RoomParticipant, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	return out
}

// Close disposes every remaining track and rejects further additions.
func (r *Roster) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*rosterEntry)
	r.mu.Unlock()

	for _, e := range entries {
		for _, t := range e.tracks {
			r.disposeTrack(t)
		}
	}
}

// Stats returns the number of remote tracks registered and disposed. At
// teardown the two are equal.
func (r *Roster) Stats() (added, disposed int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracksAdded, r.tracksDisposed
}

func (r *Roster) disposeTrack(t *remoteTrack) {
	if t.dispose != nil {
		t.dispose()
	}
	r.mu.Lock()
	r.tracksDisposed++
	r.mu.Unlock()
}
