package rtc

import (
	"sync"

	"github.com/dkeye/Spaces/internal/domain"
)

const maxOldStreams = 8

// stateHolder owns the bridge state the engine exposes. Collections are
// rebuilt on every change and never mutated afterwards, so readers can keep
// a snapshot and compare slices by identity.
type stateHolder struct {
	mu        sync.Mutex
	st        domain.MediaBridgeState
	populated bool
	autoWave  bool

	videos map[string]domain.VideoStream // by producer id
	audios map[string]*domain.StreamHandle
	owners map[string]string // track id -> member name
}

func newStateHolder() *stateHolder {
	h := &stateHolder{}
	h.resetLocked()
	return h
}

func (h *stateHolder) resetLocked() {
	h.st = domain.MediaBridgeState{}
	h.populated = false
	h.autoWave = true
	h.videos = make(map[string]domain.VideoStream)
	h.audios = make(map[string]*domain.StreamHandle)
	h.owners = make(map[string]string)
}

func (h *stateHolder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
}

func (h *stateHolder) Snapshot() (domain.MediaBridgeState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.st
	st.UpdateAutoWave = h.setAutoWave
	return st, h.populated
}

func (h *stateHolder) setAutoWave(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.autoWave = on
}

func (h *stateHolder) AutoWave() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.autoWave
}

func (h *stateHolder) update(fn func(st *domain.MediaBridgeState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.st)
	h.populated = true
}

func (h *stateHolder) SetRoom(name string) {
	h.update(func(st *domain.MediaBridgeState) { st.RoomName = name })
}

func (h *stateHolder) SetAlert(msg string) {
	h.update(func(st *domain.MediaBridgeState) { st.AlertMessage = msg })
}

func (h *stateHolder) SetAudioLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.st.AudioLevel == level {
		return
	}
	h.st.AudioLevel = level
	h.populated = true
}

func (h *stateHolder) SetAudioOn(on bool) {
	h.update(func(st *domain.MediaBridgeState) { st.AudioAlreadyOn = on })
}

func (h *stateHolder) SetVideoOn(on bool, local *domain.StreamHandle) {
	h.update(func(st *domain.MediaBridgeState) {
		st.VideoAlreadyOn = on
		st.LocalStreamVideo = local
	})
}

// SetMembers replaces the remote roster, keeping known track assignments.
func (h *stateHolder) SetMembers(members []memberDTO) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps := make([]domain.RemoteParticipant, 0, len(members))
	for _, m := range members {
		ps = append(ps, domain.RemoteParticipant{Name: m.ID, Muted: m.Muted})
	}
	h.st.Participants = ps
	h.rebuildLocked()
}

func (h *stateHolder) UpsertMember(m memberDTO) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps := make([]domain.RemoteParticipant, 0, len(h.st.Participants)+1)
	found := false
	for _, p := range h.st.Participants {
		if p.Name == m.ID {
			p.Muted = m.Muted
			found = true
		}
		ps = append(ps, p)
	}
	if !found {
		ps = append(ps, domain.RemoteParticipant{Name: m.ID, Muted: m.Muted})
	}
	h.st.Participants = ps
	h.rebuildLocked()
}

func (h *stateHolder) RemoveMember(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps := make([]domain.RemoteParticipant, 0, len(h.st.Participants))
	for _, p := range h.st.Participants {
		if p.Name != id {
			ps = append(ps, p)
		}
	}
	h.st.Participants = ps
	for track, owner := range h.owners {
		if owner == id {
			delete(h.videos, track)
			delete(h.audios, track)
			delete(h.owners, track)
		}
	}
	h.rebuildLocked()
}

// AddTrack registers a remote track owned by member.
func (h *stateHolder) AddTrack(member string, handle *domain.StreamHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.owners[handle.ID] = member
	if handle.Kind == domain.MediaVideo {
		vs := domain.VideoStream{ProducerID: handle.ID, Stream: handle}
		h.videos[handle.ID] = vs
		old := make([]domain.VideoStream, 0, maxOldStreams)
		old = append(old, vs)
		for _, o := range h.st.OldAllStreams {
			if len(old) == maxOldStreams {
				break
			}
			if o.ProducerID != vs.ProducerID {
				old = append(old, o)
			}
		}
		h.st.OldAllStreams = old
	} else {
		h.audios[handle.ID] = handle
	}
	h.rebuildLocked()
}

func (h *stateHolder) RemoveTrack(trackID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.owners[trackID]; !ok {
		return
	}
	delete(h.videos, trackID)
	delete(h.audios, trackID)
	delete(h.owners, trackID)
	h.rebuildLocked()
}

// rebuildLocked derives participants' track ids and the stream groupings in
// roster order. The first video goes to the main grid.
func (h *stateHolder) rebuildLocked() {
	videoOf := make(map[string]string)
	audioOf := make(map[string]string)
	for track, owner := range h.owners {
		if _, ok := h.videos[track]; ok {
			videoOf[owner] = track
		} else {
			audioOf[owner] = track
		}
	}

	ps := make([]domain.RemoteParticipant, len(h.st.Participants))
	var all []domain.VideoStream
	var main, others, audioOnly []*domain.StreamHandle
	for i, p := range h.st.Participants {
		p.VideoID = videoOf[p.Name]
		p.AudioID = audioOf[p.Name]
		ps[i] = p
		switch {
		case p.VideoID != "":
			vs := h.videos[p.VideoID]
			all = append(all, vs)
			if main == nil {
				main = []*domain.StreamHandle{vs.Stream}
			} else {
				others = append(others, vs.Stream)
			}
		case p.AudioID != "":
			audioOnly = append(audioOnly, h.audios[p.AudioID])
		}
	}

	h.st.Participants = ps
	if !sameVideos(h.st.AllVideoStreams, all) {
		h.st.AllVideoStreams = all
	}
	if !sameHandles(h.st.MainGridStream, main) {
		h.st.MainGridStream = main
	}
	if !sameHandles(h.st.OtherGridStreams, others) {
		h.st.OtherGridStreams = others
	}
	if !sameHandles(h.st.AudioOnlyStreams, audioOnly) {
		h.st.AudioOnlyStreams = audioOnly
	}
	h.populated = true
}

func sameHandles(a, b []*domain.StreamHandle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameVideos(a, b []domain.VideoStream) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ProducerID != b[i].ProducerID || a[i].Stream != b[i].Stream {
			return false
		}
	}
	return true
}
