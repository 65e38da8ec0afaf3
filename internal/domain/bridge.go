package domain

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// StreamHandle is an opaque reference to a render-ready stream owned by the
// media engine. Only its identity matters to the engine core.
type StreamHandle struct {
	ID       string    `json:"id"`
	StreamID string    `json:"streamId"`
	Kind     MediaKind `json:"kind"`
}

// VideoStream pairs a producer id with its stream.
type VideoStream struct {
	ProducerID string        `json:"producerId"`
	Stream     *StreamHandle `json:"stream"`
}

// RemoteParticipant is the media engine's view of someone in the room.
// Name carries the participant's user id.
type RemoteParticipant struct {
	Name    string `json:"name"`
	VideoID string `json:"videoId,omitempty"`
	AudioID string `json:"audioId,omitempty"`
	Muted   bool   `json:"muted"`
}

// MediaBridgeState is a snapshot of the media engine's condition. The engine
// writes it on its own schedule; collections are replaced, never mutated in
// place, so slice identity tells whether a collection changed.
type MediaBridgeState struct {
	RoomName string

	AudioOnlyStreams []*StreamHandle
	OtherGridStreams []*StreamHandle
	MainGridStream   []*StreamHandle
	AllVideoStreams  []VideoStream
	Participants     []RemoteParticipant
	LocalStreamVideo *StreamHandle
	// OldAllStreams is most-recent-first.
	OldAllStreams []VideoStream

	AudioLevel     int
	AudioAlreadyOn bool
	VideoAlreadyOn bool
	AlertMessage   string

	UpdateAutoWave func(bool)
}

// Populated reports whether the engine has written anything yet.
func (s MediaBridgeState) Populated() bool {
	return s.RoomName != "" ||
		len(s.AudioOnlyStreams) > 0 ||
		len(s.OtherGridStreams) > 0 ||
		len(s.MainGridStream) > 0 ||
		len(s.AllVideoStreams) > 0 ||
		len(s.Participants) > 0 ||
		s.LocalStreamVideo != nil ||
		len(s.OldAllStreams) > 0 ||
		s.AudioLevel != 0 ||
		s.AudioAlreadyOn ||
		s.VideoAlreadyOn ||
		s.AlertMessage != ""
}

// Validate flags values the engine should never produce.
func (s MediaBridgeState) Validate() error {
	if s.AudioLevel < 0 || s.AudioLevel > 100 {
		return ErrForeignState
	}
	for _, v := range s.AllVideoStreams {
		if v.ProducerID == "" {
			return ErrForeignState
		}
	}
	return nil
}
