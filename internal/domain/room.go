package domain

type RoomAction uint8

const (
	RoomActionCreate RoomAction = iota + 1
	RoomActionJoin
)

func (a RoomAction) String() string {
	switch a {
	case RoomActionCreate:
		return "create"
	case RoomActionJoin:
		return "join"
	default:
		return "none"
	}
}

// RoomIntent is the one-shot decision to create or join the media room.
// MeetingID is empty for create until the engine assigns a room.
type RoomIntent struct {
	Action          RoomAction `json:"action"`
	MeetingID       string     `json:"meetingId,omitempty"`
	Name            string     `json:"name"`
	Capacity        int        `json:"capacity"`
	DurationMinutes int64      `json:"duration"`
}
