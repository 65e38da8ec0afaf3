package domain

import (
	"strings"
	"time"
)

type SpaceID string

// DefaultRoomSentinel prefixes RemoteName until the media room exists.
const DefaultRoomSentinel = "pending_"

// IDSet is a membership-only collection of user ids. Order carries no meaning.
type IDSet []UserID

func (s IDSet) Has(id UserID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// SameMembers compares two sets ignoring order and duplicates.
func (s IDSet) SameMembers(o IDSet) bool {
	a := make(map[UserID]struct{}, len(s))
	for _, v := range s {
		a[v] = struct{}{}
	}
	b := make(map[UserID]struct{}, len(o))
	for _, v := range o {
		if _, ok := a[v]; !ok {
			return false
		}
		b[v] = struct{}{}
	}
	return len(a) == len(b)
}

// Queue is an ordered sequence of user ids; insertion order is arrival order.
type Queue []UserID

func (q Queue) Has(id UserID) bool { return IDSet(q).Has(id) }

func (q Queue) Equal(o Queue) bool {
	if len(q) != len(o) {
		return false
	}
	for i := range q {
		if q[i] != o[i] {
			return false
		}
	}
	return true
}

// Space is the shared live gathering. The server owns it; clients mirror it.
// Timestamps and durations are milliseconds.
type Space struct {
	ID          SpaceID `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Host        UserID  `json:"host"`
	Active      bool    `json:"active"`
	StartedAt   int64   `json:"startedAt"`
	Duration    int64   `json:"duration"`
	EndedAt     int64   `json:"endedAt"`
	Capacity    int     `json:"capacity"`
	RemoteName  string  `json:"remoteName"`

	AskToJoin  bool `json:"askToJoin"`
	AskToSpeak bool `json:"askToSpeak"`

	AskToJoinQueue  Queue `json:"askToJoinQueue"`
	AskToSpeakQueue Queue `json:"askToSpeakQueue"`

	AskToSpeakHistory IDSet `json:"askToSpeakHistory"`
	RejectedSpeakers  IDSet `json:"rejectedSpeakers"`
	ApprovedToJoin    IDSet `json:"approvedToJoin"`
	Banned            IDSet `json:"banned"`

	Participants []Participant `json:"participants"`
	Speakers     IDSet         `json:"speakers"`
	Listeners    IDSet         `json:"listeners"`
}

// SpacePatch is a partial update for updateSpace. Nil fields are untouched.
type SpacePatch struct {
	RemoteName   *string       `json:"remoteName,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	Active       *bool         `json:"active,omitempty"`
	EndedAt      *int64        `json:"endedAt,omitempty"`
}

func (s *Space) StartTime() time.Time { return time.UnixMilli(s.StartedAt) }

// Remaining is the time left before the scheduled end, negative once past.
func (s *Space) Remaining(now time.Time) time.Duration {
	end := s.StartedAt + s.Duration
	return time.Duration(end-now.UnixMilli()) * time.Millisecond
}

func (s *Space) Ended() bool { return s.EndedAt != 0 }

// HasRoom reports whether RemoteName names a created media room.
func (s *Space) HasRoom(sentinel string) bool {
	if s.RemoteName == "" {
		return false
	}
	return sentinel == "" || !strings.HasPrefix(s.RemoteName, sentinel)
}

func (s *Space) Participant(id UserID) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

func (s *Space) IsHost(id UserID) bool { return id != "" && s.Host == id }

func (s *Space) IsBanned(id UserID) bool { return s.Banned.Has(id) }

func (s *Space) Full() bool {
	return s.Capacity > 0 && len(s.Participants) >= s.Capacity
}

// WithMuted returns a copy of the participant list with id's Muted set.
func (s *Space) WithMuted(id UserID, muted bool) ([]Participant, bool) {
	out := make([]Participant, len(s.Participants))
	copy(out, s.Participants)
	for i := range out {
		if out[i].ID == id {
			out[i].Muted = muted
			return out, true
		}
	}
	return out, false
}

// Clone returns a deep copy so cached snapshots never alias a caller's slices.
func (s *Space) Clone() *Space {
	if s == nil {
		return nil
	}
	c := *s
	c.AskToJoinQueue = append(Queue(nil), s.AskToJoinQueue...)
	c.AskToSpeakQueue = append(Queue(nil), s.AskToSpeakQueue...)
	c.AskToSpeakHistory = append(IDSet(nil), s.AskToSpeakHistory...)
	c.RejectedSpeakers = append(IDSet(nil), s.RejectedSpeakers...)
	c.ApprovedToJoin = append(IDSet(nil), s.ApprovedToJoin...)
	c.Banned = append(IDSet(nil), s.Banned...)
	c.Participants = append([]Participant(nil), s.Participants...)
	c.Speakers = append(IDSet(nil), s.Speakers...)
	c.Listeners = append(IDSet(nil), s.Listeners...)
	return &c
}

// Equal is structural equality: queues compare in order, sets as sets,
// participants keyed by id.
func (s *Space) Equal(o *Space) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.ID != o.ID || s.Title != o.Title || s.Description != o.Description ||
		s.Host != o.Host || s.Active != o.Active ||
		s.StartedAt != o.StartedAt || s.Duration != o.Duration || s.EndedAt != o.EndedAt ||
		s.Capacity != o.Capacity || s.RemoteName != o.RemoteName ||
		s.AskToJoin != o.AskToJoin || s.AskToSpeak != o.AskToSpeak {
		return false
	}
	if !s.AskToJoinQueue.Equal(o.AskToJoinQueue) || !s.AskToSpeakQueue.Equal(o.AskToSpeakQueue) {
		return false
	}
	sets := [][2]IDSet{
		{s.AskToSpeakHistory, o.AskToSpeakHistory},
		{s.RejectedSpeakers, o.RejectedSpeakers},
		{s.ApprovedToJoin, o.ApprovedToJoin},
		{s.Banned, o.Banned},
		{s.Speakers, o.Speakers},
		{s.Listeners, o.Listeners},
	}
	for _, pair := range sets {
		if !pair[0].SameMembers(pair[1]) {
			return false
		}
	}
	return sameParticipants(s.Participants, o.Participants)
}

func sameParticipants(a, b []Participant) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[UserID]Participant, len(a))
	for _, p := range a {
		byID[p.ID] = p
	}
	for _, p := range b {
		q, ok := byID[p.ID]
		if !ok || q != p {
			return false
		}
	}
	return true
}
