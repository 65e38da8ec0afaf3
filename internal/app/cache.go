package app

import (
	"sync"

	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

// EntityCache holds the last-known space snapshot and the local participant.
// Readers get copies; the cache never hands out its own slices.
type EntityCache struct {
	mu    sync.RWMutex
	self  domain.UserID
	space *domain.Space
	me    *domain.Participant
}

func NewEntityCache(self domain.UserID) *EntityCache {
	return &EntityCache{self: self}
}

func (c *EntityCache) SelfID() domain.UserID { return c.self }

// Refresh replaces the cached snapshot when remote differs structurally.
// It reports whether anything changed.
func (c *EntityCache) Refresh(remote *domain.Space) bool {
	if remote == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.space.Equal(remote) {
		return false
	}
	c.space = remote.Clone()
	c.me = nil
	if p, ok := c.space.Participant(c.self); ok {
		cp := *p
		c.me = &cp
	}
	log.Debug().Str("module", "app.cache").Str("space", string(remote.ID)).Bool("self_present", c.me != nil).Msg("space refreshed")
	return true
}

func (c *EntityCache) Space() (*domain.Space, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.space == nil {
		return nil, false
	}
	return c.space.Clone(), true
}

func (c *EntityCache) Self() (*domain.Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.me == nil {
		return nil, false
	}
	cp := *c.me
	return &cp, true
}
