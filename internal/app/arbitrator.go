package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

type IntentState int32

const (
	IntentIdle IntentState = iota
	IntentPending
	IntentCommitted
)

func (s IntentState) String() string {
	switch s {
	case IntentPending:
		return "pending"
	case IntentCommitted:
		return "committed"
	default:
		return "idle"
	}
}

const DefaultJoinWindow = 5 * time.Minute

// RoomArbitrator decides, once, whether this client creates or joins the
// media room. Its state is the single-flight latch:
// Idle -> Pending (TryCommit) -> Committed (MarkCommitted) or back to Idle
// (Release); Committed -> Idle on Reset when the room session ends.
type RoomArbitrator struct {
	JoinWindow time.Duration
	Sentinel   string

	state atomic.Int32 // Zero by default (IntentIdle)

	mu     sync.Mutex
	intent domain.RoomIntent
}

func NewRoomArbitrator(joinWindow time.Duration, sentinel string) *RoomArbitrator {
	if joinWindow <= 0 {
		joinWindow = DefaultJoinWindow
	}
	return &RoomArbitrator{JoinWindow: joinWindow, Sentinel: sentinel}
}

func (a *RoomArbitrator) State() IntentState {
	return IntentState(a.state.Load())
}

// CanJoinNow: the start is at most JoinWindow away, the space is active and
// has not ended.
func (a *RoomArbitrator) CanJoinNow(space *domain.Space, now time.Time) bool {
	if space == nil {
		return false
	}
	untilStart := time.Duration(space.StartedAt-now.UnixMilli()) * time.Millisecond
	return untilStart <= a.JoinWindow && space.Active && !space.Ended()
}

// Decide is the pure create/join decision for one tick.
func (a *RoomArbitrator) Decide(space *domain.Space, self domain.UserID, now time.Time) (domain.RoomIntent, bool) {
	if self == "" || !a.CanJoinNow(space, now) {
		return domain.RoomIntent{}, false
	}
	if !space.HasRoom(a.Sentinel) {
		if !space.IsHost(self) {
			// Room not created yet and we are not host: wait.
			return domain.RoomIntent{}, false
		}
		return domain.RoomIntent{
			Action:          domain.RoomActionCreate,
			Name:            string(self),
			Capacity:        space.Capacity,
			DurationMinutes: space.Duration / int64(time.Minute/time.Millisecond),
		}, true
	}
	return domain.RoomIntent{
		Action:          domain.RoomActionJoin,
		MeetingID:       space.RemoteName,
		Name:            string(self),
		Capacity:        space.Capacity,
		DurationMinutes: space.Duration / int64(time.Minute/time.Millisecond),
	}, true
}

// TryCommit takes the latch for intent. Callers that lose the race get false
// and must drop their attempt.
func (a *RoomArbitrator) TryCommit(intent domain.RoomIntent) bool {
	if !a.state.CompareAndSwap(int32(IntentIdle), int32(IntentPending)) {
		return false
	}
	a.mu.Lock()
	a.intent = intent
	a.mu.Unlock()
	log.Info().Str("module", "app.arbitrator").Str("action", intent.Action.String()).Str("meeting", intent.MeetingID).Msg("room intent committed")
	return true
}

// MarkCommitted records that the engine consumed the pending intent.
func (a *RoomArbitrator) MarkCommitted() bool {
	return a.state.CompareAndSwap(int32(IntentPending), int32(IntentCommitted))
}

// Release returns a pending intent to idle after a failed start.
func (a *RoomArbitrator) Release() bool {
	ok := a.state.CompareAndSwap(int32(IntentPending), int32(IntentIdle))
	if ok {
		log.Warn().Str("module", "app.arbitrator").Msg("room intent released")
	}
	return ok
}

// Reset clears the room session so a new decision can be made.
func (a *RoomArbitrator) Reset() {
	a.state.Store(int32(IntentIdle))
	a.mu.Lock()
	a.intent = domain.RoomIntent{}
	a.mu.Unlock()
}

// Intent returns the intent held by the latch, if any.
func (a *RoomArbitrator) Intent() (domain.RoomIntent, bool) {
	if a.State() == IntentIdle {
		return domain.RoomIntent{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.intent, true
}
