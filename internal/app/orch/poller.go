package orch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Poller runs the reconciliation and media ticks while the view has focus.
// It can be stopped and started again any number of times.
type Poller struct {
	o     *Orchestrator
	poll  time.Duration
	media time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(o *Orchestrator, poll, media time.Duration) *Poller {
	if poll <= 0 {
		poll = time.Second
	}
	if media <= 0 {
		media = 250 * time.Millisecond
	}
	return &Poller{o: o, poll: poll, media: media}
}

// Start begins polling; it is a no-op while already running.
func (p *Poller) Start(parent context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	log.Debug().Str("module", "orch.poller").Str("space", string(p.o.SpaceID)).Msg("polling started")
	return true
}

// Stop cancels polling and waits for the loop to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Debug().Str("module", "orch.poller").Str("space", string(p.o.SpaceID)).Msg("polling stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Focus starts polling on focus and stops it, with the message timer, on blur.
func (p *Poller) Focus(ctx context.Context, focused bool) {
	if focused {
		p.Start(ctx)
		return
	}
	p.Stop()
	p.o.ClearMessage()
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	pollTicker := time.NewTicker(p.poll)
	defer pollTicker.Stop()
	mediaTicker := time.NewTicker(p.media)
	defer mediaTicker.Stop()

	p.o.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.o.Done():
			return
		case <-pollTicker.C:
			p.o.Tick(ctx)
		case <-mediaTicker.C:
			p.o.MediaTick(ctx)
		}
	}
}
