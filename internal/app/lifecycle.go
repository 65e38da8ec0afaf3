package app

import (
	"time"

	"github.com/dkeye/Spaces/internal/domain"
)

type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseScheduled
	PhaseIdle
	PhaseLive
	PhaseEndingSoon
	PhaseExpired
	PhaseEndedByHost
	PhaseBanned
)

func (p Phase) String() string {
	switch p {
	case PhaseScheduled:
		return "scheduled"
	case PhaseIdle:
		return "idle"
	case PhaseLive:
		return "live"
	case PhaseEndingSoon:
		return "ending_soon"
	case PhaseExpired:
		return "expired"
	case PhaseEndedByHost:
		return "ended_by_host"
	case PhaseBanned:
		return "banned"
	default:
		return "unknown"
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseExpired || p == PhaseEndedByHost || p == PhaseBanned
}

const (
	DefaultEndingSoonWindow = time.Minute
	DefaultExitDelay        = 3 * time.Second
)

const (
	MsgEndingSoon  = "This space will end in under a minute"
	MsgExpired     = "This space has ended"
	MsgEndedByHost = "The host has ended this space"
	MsgBanned      = "You have been banned from this space"
)

// LifecycleEffects are the one-shot side effects of a transition.
type LifecycleEffects struct {
	Messages []string
	// EndSpace asks the persistence collaborator to end the space.
	EndSpace bool
	// Leave asks the persistence collaborator to remove the local user.
	Leave bool
	// Teardown disconnects local media.
	Teardown bool
	Exit     bool
	Reason   domain.ExitReason
	// ExitAfter delays navigation away; zero means immediately.
	ExitAfter time.Duration
}

func (e LifecycleEffects) Empty() bool {
	return len(e.Messages) == 0 && !e.EndSpace && !e.Leave && !e.Teardown && !e.Exit
}

// LifecycleMonitor evaluates the phase of one space instance each tick.
// It owns the latches that keep notices and terminal effects one-shot.
type LifecycleMonitor struct {
	EndingSoon time.Duration
	ExitDelay  time.Duration

	endingSoonFired bool
	terminal        Phase
}

func NewLifecycleMonitor(endingSoon, exitDelay time.Duration) *LifecycleMonitor {
	if endingSoon <= 0 {
		endingSoon = DefaultEndingSoonWindow
	}
	if exitDelay < 0 {
		exitDelay = 0
	}
	return &LifecycleMonitor{EndingSoon: endingSoon, ExitDelay: exitDelay}
}

// Reset clears latches; call when the space identifier changes.
func (m *LifecycleMonitor) Reset() {
	m.endingSoonFired = false
	m.terminal = PhaseUnknown
}

// Classify is the pure phase function, without latches.
func Classify(space *domain.Space, self domain.UserID, now time.Time, endingSoon time.Duration) Phase {
	if space == nil {
		return PhaseUnknown
	}
	if self != "" && space.IsBanned(self) {
		return PhaseBanned
	}
	if space.Ended() {
		return PhaseEndedByHost
	}
	if now.UnixMilli() < space.StartedAt {
		return PhaseScheduled
	}
	if !space.Active {
		return PhaseIdle
	}
	remaining := space.Remaining(now)
	switch {
	case remaining < 0:
		return PhaseExpired
	case remaining < endingSoon:
		return PhaseEndingSoon
	default:
		return PhaseLive
	}
}

// Evaluate returns the current phase and the effects to apply this tick.
// Once a terminal phase is reached it sticks and produces no further effects.
func (m *LifecycleMonitor) Evaluate(space *domain.Space, self domain.UserID, now time.Time) (Phase, LifecycleEffects) {
	if m.terminal.Terminal() {
		return m.terminal, LifecycleEffects{}
	}
	phase := Classify(space, self, now, m.EndingSoon)
	var fx LifecycleEffects
	switch phase {
	case PhaseBanned:
		fx = LifecycleEffects{
			Messages: []string{MsgBanned},
			Leave:    true,
			Teardown: true,
			Exit:     true,
			Reason:   domain.ExitBanned,
		}
	case PhaseExpired:
		fx = LifecycleEffects{
			Messages:  []string{MsgExpired},
			EndSpace:  true,
			Teardown:  true,
			Exit:      true,
			Reason:    domain.ExitExpired,
			ExitAfter: m.ExitDelay,
		}
	case PhaseEndedByHost:
		fx = LifecycleEffects{
			Messages:  []string{MsgEndedByHost},
			Teardown:  true,
			Exit:      true,
			Reason:    domain.ExitEndedByHost,
			ExitAfter: m.ExitDelay,
		}
	case PhaseEndingSoon:
		if !m.endingSoonFired {
			m.endingSoonFired = true
			fx.Messages = []string{MsgEndingSoon}
		}
	case PhaseUnknown, PhaseScheduled, PhaseIdle, PhaseLive:
	}
	if phase.Terminal() {
		m.terminal = phase
	}
	return phase, fx
}

// Terminal reports the latched terminal phase, if any.
func (m *LifecycleMonitor) Terminal() (Phase, bool) {
	return m.terminal, m.terminal.Terminal()
}

// Latch marks the instance terminal without producing effects, used when the
// local user leaves or ends the space on purpose.
func (m *LifecycleMonitor) Latch(p Phase) {
	if !m.terminal.Terminal() && p.Terminal() {
		m.terminal = p
	}
}
