package app

import "github.com/dkeye/Spaces/internal/domain"

const MsgSpeakerGranted = "You have been granted the speaker role"

// Instance holds the one-shot latches of one space instance. They reset only
// when the space identifier changes.
type Instance struct {
	id domain.SpaceID

	canSpeak       bool
	speakerGranted bool
	lastRole       domain.Role
	roleSeen       bool
	Lifecycle      *LifecycleMonitor
}

func NewInstance(lifecycle *LifecycleMonitor) *Instance {
	return &Instance{Lifecycle: lifecycle}
}

// Bind attaches the instance to id, clearing latches when id is new.
// It reports whether a reset happened.
func (in *Instance) Bind(id domain.SpaceID) bool {
	if in.id == id {
		return false
	}
	reset := in.id != ""
	in.id = id
	in.canSpeak = false
	in.speakerGranted = false
	in.roleSeen = false
	in.lastRole = domain.RoleListener
	if in.Lifecycle != nil {
		in.Lifecycle.Reset()
	}
	return reset
}

func (in *Instance) ID() domain.SpaceID { return in.id }

// CanSpeak is the latched eligibility: once true it stays true.
func (in *Instance) CanSpeak() bool { return in.canSpeak }

// Observe folds a fresh resolution into the latches. It returns the messages
// to surface, at most the one-time promotion notice.
func (in *Instance) Observe(self *domain.Participant, space *domain.Space) []string {
	if self == nil || space == nil {
		return nil
	}
	var out []string
	promoted := in.roleSeen && !in.lastRole.CanPublishAudio() && self.Role == domain.RoleSpeaker
	if promoted && !in.speakerGranted {
		in.speakerGranted = true
		out = append(out, MsgSpeakerGranted)
	}
	in.lastRole = self.Role
	in.roleSeen = true
	if !in.canSpeak && CanSpeak(self, space) {
		in.canSpeak = true
	}
	return out
}
