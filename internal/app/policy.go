package app

import "github.com/dkeye/Spaces/internal/domain"

// CanSpeak derives speaking eligibility. The host is an implicit speaker even
// when the roster does not say so.
func CanSpeak(self *domain.Participant, space *domain.Space) bool {
	if self == nil || space == nil {
		return false
	}
	if self.Role.CanPublishAudio() || space.IsHost(self.ID) {
		return true
	}
	return !space.AskToSpeak
}

func IsHost(self *domain.Participant, space *domain.Space) bool {
	if self == nil || space == nil {
		return false
	}
	return self.Role == domain.RoleHost || space.IsHost(self.ID)
}

// SpeakAction is what the policy says about a request to speak.
type SpeakAction int

const (
	SpeakAllowed SpeakAction = iota
	SpeakAlreadyEligible
	SpeakAlreadyQueued
	SpeakNotMember
)

// RequestPolicy decides whether a participant may queue a speak request.
type RequestPolicy interface {
	OnSpeakRequest(self *domain.Participant, space *domain.Space) SpeakAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnSpeakRequest(self *domain.Participant, space *domain.Space) SpeakAction {
	switch {
	case self == nil || space == nil:
		return SpeakNotMember
	case CanSpeak(self, space):
		return SpeakAlreadyEligible
	case self.Role == domain.RoleRequested || space.AskToSpeakQueue.Has(self.ID):
		return SpeakAlreadyQueued
	default:
		return SpeakAllowed
	}
}
