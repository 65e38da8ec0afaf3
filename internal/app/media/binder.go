package media

import (
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

// Tile is one participant with the stream to render for them, if any.
type Tile struct {
	Participant domain.Participant   `json:"participant"`
	Stream      *domain.StreamHandle `json:"stream,omitempty"`
	Self        bool                 `json:"self"`
}

// Resolve picks a display stream for p. It never panics; any failure
// resolves to no stream.
func Resolve(p domain.Participant, host bool, self domain.UserID, st domain.MediaBridgeState) (stream *domain.StreamHandle) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("module", "media.binder").Str("participant", string(p.ID)).Interface("panic", r).Msg("stream lookup failed")
			stream = nil
		}
	}()

	if remote, ok := findRemote(st.Participants, p.ID); ok && remote.VideoID != "" {
		for _, v := range st.AllVideoStreams {
			if v.ProducerID == remote.VideoID {
				stream = v.Stream
				break
			}
		}
	}
	if stream == nil && self != "" && p.ID == self {
		stream = st.LocalStreamVideo
	}
	if stream == nil && host && len(st.OldAllStreams) > 0 {
		stream = st.OldAllStreams[0].Stream
	}
	return stream
}

// Bind resolves a tile for every participant of space, in session order.
func Bind(space *domain.Space, self domain.UserID, st domain.MediaBridgeState) []Tile {
	if space == nil {
		return nil
	}
	tiles := make([]Tile, 0, len(space.Participants))
	for _, p := range space.Participants {
		host := p.Role == domain.RoleHost || space.IsHost(p.ID)
		tiles = append(tiles, Tile{
			Participant: p,
			Stream:      Resolve(p, host, self, st),
			Self:        self != "" && p.ID == self,
		})
	}
	return tiles
}

// RemoteMuted reports the engine's mute flag for a participant.
func RemoteMuted(id domain.UserID, st domain.MediaBridgeState) (muted, known bool) {
	remote, ok := findRemote(st.Participants, id)
	if !ok {
		return false, false
	}
	return remote.Muted, true
}

func findRemote(ps []domain.RemoteParticipant, id domain.UserID) (domain.RemoteParticipant, bool) {
	for _, rp := range ps {
		if rp.Name == string(id) {
			return rp, true
		}
	}
	return domain.RemoteParticipant{}, false
}
