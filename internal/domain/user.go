// Package domain contains entities without transport logic, just data and
// the pure helpers that read it.
package domain

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 64
)

type UserID string

// User is the identity record the persistence API knows about.
type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, displayName string) (*User, error) {
	if err := ValidateUserID(id); err != nil {
		return nil, err
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	if displayName == "" {
		displayName = string(id)
	}
	return &User{ID: id, DisplayName: displayName}, nil
}

func ValidateUserID(id UserID) error {
	if len(id) == 0 {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}
