package domain

import "strings"

// Role is the closed set of positions a participant can hold in a space.
type Role uint8

const (
	RoleListener Role = iota
	RoleSpeaker
	RoleHost
	RoleRequested
)

func (r Role) String() string {
	switch r {
	case RoleSpeaker:
		return "speaker"
	case RoleHost:
		return "host"
	case RoleRequested:
		return "requested"
	default:
		return "listener"
	}
}

// ParseRole maps the wire name to a Role. Unknown names are listeners.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "speaker":
		return RoleSpeaker
	case "host":
		return RoleHost
	case "requested":
		return RoleRequested
	default:
		return RoleListener
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}

// CanPublishAudio reports whether the role speaks by itself, regardless of
// space policy.
func (r Role) CanPublishAudio() bool {
	switch r {
	case RoleSpeaker, RoleHost:
		return true
	case RoleListener, RoleRequested:
		return false
	}
	return false
}

// Participant is a user's membership record within a space.
// Muted is what the space last recorded, not what the media engine reports.
type Participant struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Role        Role   `json:"role"`
	Muted       bool   `json:"muted"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(user *User, role Role) Participant {
	return Participant{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Role:        role,
		Muted:       true,
	}
}
