package domain

type EventType string

const (
	EventMessage  EventType = "message"
	EventView     EventType = "view"
	EventNavigate EventType = "navigate"
)

type ExitReason string

const (
	ExitNotFound    ExitReason = "not_found"
	ExitBanned      ExitReason = "banned"
	ExitExpired     ExitReason = "expired"
	ExitEndedByHost ExitReason = "ended_by_host"
	ExitLeft        ExitReason = "left"
	ExitEnded       ExitReason = "ended"
	ExitNoIdentity  ExitReason = "no_identity"
)

// Event is what the engine pushes to the view layer.
type Event struct {
	Type    EventType  `json:"type"`
	Message string     `json:"message,omitempty"`
	Reason  ExitReason `json:"reason,omitempty"`
	View    any        `json:"view,omitempty"`
}

func MessageEvent(text string) Event { return Event{Type: EventMessage, Message: text} }

func NavigateEvent(reason ExitReason) Event { return Event{Type: EventNavigate, Reason: reason} }
