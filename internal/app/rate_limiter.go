package app

import (
	"sync"
	"time"

	"github.com/dkeye/Spaces/internal/domain"
)

type speakKey struct {
	space domain.SpaceID
	user  domain.UserID
}

// SpeakRequestThrottle caps request-to-speak attempts per user and space
// instance. Each key keeps a ring of its last limit attempts; a new attempt
// is allowed once the oldest of them has left the window.
type SpeakRequestThrottle struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	rings map[speakKey][]time.Time
	next  map[speakKey]int
}

// NewSpeakRequestThrottle returns a throttle allowing limit attempts per
// window. limit <= 0 disables it.
func NewSpeakRequestThrottle(limit int, window time.Duration) *SpeakRequestThrottle {
	return &SpeakRequestThrottle{
		limit:  limit,
		window: window,
		now:    time.Now,
		rings:  make(map[speakKey][]time.Time),
		next:   make(map[speakKey]int),
	}
}

// Allow records an attempt by user in space. When the attempt is refused it
// reports how long until the next one would pass.
func (th *SpeakRequestThrottle) Allow(space domain.SpaceID, user domain.UserID) (time.Duration, bool) {
	if th.limit <= 0 {
		return 0, true
	}
	th.mu.Lock()
	defer th.mu.Unlock()

	k := speakKey{space: space, user: user}
	now := th.now()
	ring := th.rings[k]
	if len(ring) < th.limit {
		th.rings[k] = append(ring, now)
		return 0, true
	}
	i := th.next[k]
	if wait := ring[i].Add(th.window).Sub(now); wait > 0 {
		return wait, false
	}
	ring[i] = now
	th.next[k] = (i + 1) % th.limit
	return 0, true
}

// Forget drops every attempt recorded for space.
func (th *SpeakRequestThrottle) Forget(space domain.SpaceID) {
	th.mu.Lock()
	defer th.mu.Unlock()
	for k := range th.rings {
		if k.space == space {
			delete(th.rings, k)
			delete(th.next, k)
		}
	}
}
