// Package signal pushes engine events to view subscribers over websockets.
package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/metrics"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 32

var _ core.EventSink = (*Hub)(nil)

// Hub implements core.EventSink. The latest view and navigate events are
// replayed to late subscribers so a fresh page renders immediately.
type Hub struct {
	pingPeriod time.Duration
	readLimit  int64

	mu       sync.RWMutex
	conns    map[string]*EventConn
	lastView []byte
	lastNav  []byte
}

func NewHub(pingPeriod time.Duration, readLimit int64) *Hub {
	return &Hub{
		pingPeriod: pingPeriod,
		readLimit:  readLimit,
		conns:      make(map[string]*EventConn),
	}
}

func (h *Hub) Publish(ev domain.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	switch ev.Type {
	case domain.EventView:
		h.lastView = b
	case domain.EventNavigate:
		h.lastNav = b
	}
	for _, c := range h.conns {
		if err := c.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "adapters.signal").Str("sid", c.ID()).
				Str("type", string(ev.Type)).Msg("event dropped")
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(c *EventConn) {
	h.mu.Lock()
	if old, ok := h.conns[c.ID()]; ok {
		old.Close()
		metrics.EventSubscribers.Dec()
	}
	h.conns[c.ID()] = c
	for _, b := range [][]byte{h.lastView, h.lastNav} {
		if b != nil {
			_ = c.TrySend(b)
		}
	}
	h.mu.Unlock()
	metrics.EventSubscribers.Inc()
}

func (h *Hub) remove(c *EventConn) {
	h.mu.Lock()
	cur, ok := h.conns[c.ID()]
	if ok && cur == c {
		delete(h.conns, c.ID())
	}
	h.mu.Unlock()
	if ok && cur == c {
		metrics.EventSubscribers.Dec()
	}
	c.Close()
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*EventConn)
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
		metrics.EventSubscribers.Dec()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades the request and subscribes it under the viewer's
// client token.
func (h *Hub) HandleEvents(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "adapters.signal").Str("sid", sid).Msg("new event subscriber")

	conn := newEventConn(sid, ws, sendBuffer)
	h.add(conn)

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, conn)
	go func() {
		defer cancel()
		h.readPump(ctx, conn)
	}()
}
