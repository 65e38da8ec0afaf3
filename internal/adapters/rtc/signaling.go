package rtc

import (
	"context"
	"errors"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type memberDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Muted bool   `json:"muted"`
}

// envelope is every message of the room signaling protocol.
type envelope struct {
	Type string `json:"type"`

	Room     string      `json:"room,omitempty"`
	RoomName string      `json:"room_name,omitempty"`
	Name     string      `json:"name,omitempty"`
	Capacity int         `json:"capacity,omitempty"`
	Duration int64       `json:"duration,omitempty"`
	Members  []memberDTO `json:"members,omitempty"`
	User     *memberDTO  `json:"user,omitempty"`

	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        string  `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`

	Member string `json:"member,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Muted  *bool  `json:"muted,omitempty"`

	Error string `json:"error,omitempty"`
}

// signalClient is one websocket to the room server. Writes go through a
// buffered channel drained by writePump; Close lets queued messages flush.
type signalClient struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func dialSignal(ctx context.Context, url string) (*signalClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &signalClient{conn: conn, send: make(chan []byte, 32)}, nil
}

func (c *signalClient) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *signalClient) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.rtc").Msg("sendJSON marshal")
		return err
	}
	return c.TrySend(b)
}

func (c *signalClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *signalClient) writePump() {
	defer func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	}()
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			log.Error().Err(err).Str("module", "adapters.rtc").Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "adapters.rtc").Msg("writePump write error")
			return
		}
	}
}

func (c *signalClient) readPump(ctx context.Context, handle func(envelope), onDone func()) {
	defer func() {
		log.Info().Str("module", "adapters.rtc").Msg("readPump closing")
		c.Close()
		onDone()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.rtc").Msg("readPump read error")
				return
			}
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Error().Err(err).Str("module", "adapters.rtc").Msg("bad json")
				continue
			}
			handle(env)
		}
	}
}
