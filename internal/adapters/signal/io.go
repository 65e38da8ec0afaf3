package signal

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (h *Hub) writePump(ctx context.Context, c *EventConn) {
	defer c.conn.Close()
	var ping <-chan time.Time
	if h.pingPeriod > 0 {
		t := time.NewTicker(h.pingPeriod)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "adapters.signal").Str("sid", c.ID()).Msg("writePump ctx done")
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump only answers pings; subscribers act through the HTTP API.
func (h *Hub) readPump(ctx context.Context, c *EventConn) {
	defer func() {
		log.Info().Str("module", "adapters.signal").Str("sid", c.ID()).Msg("readPump closing")
		h.remove(c)
	}()
	if h.readLimit > 0 {
		c.conn.SetReadLimit(h.readLimit)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.signal").Str("sid", c.ID()).Msg("readPump read error")
				return
			}
			var env struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("bad json")
				continue
			}
			switch env.Type {
			case "ping":
				_ = c.TrySend([]byte(`{"type":"pong"}`))
			default:
				log.Warn().Str("module", "adapters.signal").Str("type", env.Type).Msg("unknown message")
			}
		}
	}
}
