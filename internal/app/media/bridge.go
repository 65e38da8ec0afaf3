// Package media turns media engine snapshots into space updates and view
// signals, and binds engine streams to participants.
package media

import (
	"strings"
	"sync"

	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	alertIgnoredMarker = "rotate"
	alertEndedMarker   = "meeting has ended"
)

// View is the adapter's mirrored, render-ready state.
type View struct {
	RoomName   string `json:"roomName"`
	Connected  bool   `json:"connected"`
	Muted      bool   `json:"muted"`
	VideoOn    bool   `json:"videoOn"`
	AudioLevel int    `json:"audioLevel"`

	AudioOnlyStreams []*domain.StreamHandle `json:"audioOnlyStreams"`
	OtherGridStreams []*domain.StreamHandle `json:"otherGridStreams"`
	MainGridStream   []*domain.StreamHandle `json:"mainGridStream"`
	AllVideoStreams  []domain.VideoStream   `json:"allVideoStreams"`
}

// Update lists what changed in one observation and what the caller must do.
type Update struct {
	// PublishRoomName, when set, must be written to the space's remoteName.
	PublishRoomName string
	Established     bool

	StreamsChanged    bool
	AudioLevelChanged bool
	VideoChanged      bool

	// MuteChanged means the local mute flipped to Muted and must be pushed.
	MuteChanged bool
	Muted       bool

	Alert        string
	MeetingEnded bool
}

func (u Update) Any() bool {
	return u.PublishRoomName != "" || u.Established || u.StreamsChanged ||
		u.AudioLevelChanged || u.VideoChanged || u.MuteChanged || u.Alert != ""
}

// BridgeAdapter diffs each engine snapshot against the last one it saw.
// The engine offers no versioning, so value and slice identity are the only
// change signals.
type BridgeAdapter struct {
	Sentinel string

	mu        sync.Mutex
	published string
	// rearm holds a mute value whose write-back failed.
	rearm     *bool

	seen bool
	last domain.MediaBridgeState
	view View
}

func NewBridgeAdapter(sentinel string) *BridgeAdapter {
	return &BridgeAdapter{Sentinel: sentinel, view: View{Muted: true}}
}

func (a *BridgeAdapter) View() View { return a.view }

func (a *BridgeAdapter) Connected() bool { return a.view.Connected }

// Reset forgets everything; call when the room session ends.
func (a *BridgeAdapter) Reset() {
	a.mu.Lock()
	a.published = ""
	a.rearm = nil
	a.mu.Unlock()
	a.seen = false
	a.last = domain.MediaBridgeState{}
	a.view = View{Muted: true}
}

// RetractPublish forgets an in-flight room name write that failed, so the
// next observation writes it again.
func (a *BridgeAdapter) RetractPublish(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.published == name {
		a.published = ""
	}
}

// RetractMute re-arms a mute write-back that failed or found no participant
// to patch. The next observation reports it again unless the mute has flipped
// since.
func (a *BridgeAdapter) RetractMute(muted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rearm = &muted
}

func (a *BridgeAdapter) takeRearm() (bool, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rearm == nil {
		return false, false
	}
	muted := *a.rearm
	a.rearm = nil
	return muted, true
}

func (a *BridgeAdapter) claimPublish(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.published == name {
		return false
	}
	a.published = name
	return true
}

// Observe folds one snapshot into the adapter.
func (a *BridgeAdapter) Observe(space *domain.Space, st domain.MediaBridgeState) Update {
	var up Update
	if space == nil || !st.Populated() {
		return up
	}
	if err := st.Validate(); err != nil {
		log.Warn().Err(err).Str("module", "media.bridge").Int("audio_level", st.AudioLevel).Msg("skipping bridge snapshot")
		return up
	}

	if st.RoomName != "" {
		switch {
		case !space.HasRoom(a.Sentinel):
			if a.claimPublish(st.RoomName) {
				up.PublishRoomName = st.RoomName
			}
			a.establish(st, &up)
		case space.RemoteName == st.RoomName:
			a.establish(st, &up)
		}
	}

	if !a.seen ||
		!sameSlice(a.last.AudioOnlyStreams, st.AudioOnlyStreams) ||
		!sameSlice(a.last.OtherGridStreams, st.OtherGridStreams) ||
		!sameSlice(a.last.MainGridStream, st.MainGridStream) ||
		!sameSlice(a.last.AllVideoStreams, st.AllVideoStreams) {
		a.view.AudioOnlyStreams = st.AudioOnlyStreams
		a.view.OtherGridStreams = st.OtherGridStreams
		a.view.MainGridStream = st.MainGridStream
		a.view.AllVideoStreams = st.AllVideoStreams
		up.StreamsChanged = true
	}

	if !a.seen || a.last.AudioLevel != st.AudioLevel {
		a.view.AudioLevel = st.AudioLevel
		up.AudioLevelChanged = true
	}

	if !a.seen || a.last.VideoAlreadyOn != st.VideoAlreadyOn {
		a.view.VideoOn = st.VideoAlreadyOn
		up.VideoChanged = true
	}

	// Audio on while we think we are muted, or off while we think we are not.
	if st.AudioAlreadyOn == a.view.Muted {
		a.view.Muted = !st.AudioAlreadyOn
		up.MuteChanged = true
		up.Muted = a.view.Muted
	}
	if muted, ok := a.takeRearm(); ok && !up.MuteChanged && muted == a.view.Muted {
		up.MuteChanged = true
		up.Muted = muted
	}

	if st.AlertMessage != "" && (!a.seen || st.AlertMessage != a.last.AlertMessage) {
		lower := strings.ToLower(st.AlertMessage)
		if !strings.Contains(lower, alertIgnoredMarker) {
			up.Alert = st.AlertMessage
			up.MeetingEnded = strings.Contains(lower, alertEndedMarker)
		}
	}

	a.last = st
	a.seen = true
	return up
}

func (a *BridgeAdapter) establish(st domain.MediaBridgeState, up *Update) {
	if a.view.Connected {
		return
	}
	a.view.Connected = true
	a.view.RoomName = st.RoomName
	up.Established = true
	if st.UpdateAutoWave != nil {
		st.UpdateAutoWave(false)
	}
	log.Info().Str("module", "media.bridge").Str("room", st.RoomName).Msg("media connection established")
}

// sameSlice is identity, not content, equality.
func sameSlice[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
