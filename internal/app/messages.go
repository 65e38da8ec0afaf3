package app

import (
	"sync"
	"time"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultMessageTTL = 4 * time.Second

// MessageBoard shows one short-lived user message at a time and clears it
// after TTL. The clearing timer is cancelled by Stop.
type MessageBoard struct {
	TTL  time.Duration
	sink core.EventSink

	mu      sync.Mutex
	current string
	timer   *time.Timer
	seq     uint64
}

func NewMessageBoard(sink core.EventSink, ttl time.Duration) *MessageBoard {
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	return &MessageBoard{TTL: ttl, sink: sink}
}

func (b *MessageBoard) Show(text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	b.current = text
	b.seq++
	seq := b.seq
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.TTL, func() { b.clear(seq) })
	b.mu.Unlock()

	log.Info().Str("module", "app.messages").Str("message", text).Msg("user message")
	if b.sink != nil {
		b.sink.Publish(domain.MessageEvent(text))
	}
}

func (b *MessageBoard) clear(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seq != seq {
		return
	}
	b.current = ""
	b.timer = nil
}

func (b *MessageBoard) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Stop cancels the pending clear and drops the current message.
func (b *MessageBoard) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.seq++
	b.current = ""
}
