package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Spaces/internal/app"
	"github.com/dkeye/Spaces/internal/app/media"
	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	MsgNetworkError  = "Network error, please try again"
	MsgMediaFailed   = "Could not connect to the media room"
	MsgNotEligible   = "You are not allowed to speak in this space"
	MsgNotHost       = "Only the host can do that"
	MsgNoRoom        = "Not connected to the media room yet"
	MsgBannedJoin    = "You are banned from this space"
	MsgSpaceFull     = "This space is full"
	MsgRequestSent   = "Your request to speak has been sent"
	MsgAlreadyQueued = "Your request to speak is pending"
	MsgSlowDown      = "Please wait before asking again"
)

type Options struct {
	PollInterval  time.Duration
	MediaInterval time.Duration
	ExitDelay     time.Duration
	MessageTTL    time.Duration
	JoinWindow    time.Duration
	EndingSoon    time.Duration
	Sentinel      string

	SpeakRequestLimit  int
	SpeakRequestWindow time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollInterval:       time.Second,
		MediaInterval:      250 * time.Millisecond,
		ExitDelay:          app.DefaultExitDelay,
		MessageTTL:         app.DefaultMessageTTL,
		JoinWindow:         app.DefaultJoinWindow,
		EndingSoon:         app.DefaultEndingSoonWindow,
		Sentinel:           domain.DefaultRoomSentinel,
		SpeakRequestLimit:  3,
		SpeakRequestWindow: time.Minute,
	}
}

// Deps are the external collaborators of one session view.
type Deps struct {
	API   core.SpaceAPI
	Media core.MediaEngine
	Sink  core.EventSink
	Clock core.Clock
}

// Orchestrator drives one space view: polling, lifecycle, room arbitration
// and media bridging. Every tick and user action runs under mu; collaborator
// calls other than the poll fetch run on wg and never take mu.
type Orchestrator struct {
	SpaceID domain.SpaceID

	api    core.SpaceAPI
	engine core.MediaEngine
	sink   core.EventSink
	clock  core.Clock
	opts   Options

	mu       sync.Mutex
	self     domain.UserID
	cache    *app.EntityCache
	instance *app.Instance
	arbiter  *app.RoomArbitrator
	bridge   *media.BridgeAdapter
	board    *app.MessageBoard
	policy   app.RequestPolicy
	throttle *app.SpeakRequestThrottle
	snapshot domain.MediaBridgeState
	phase    app.Phase

	exiting    bool
	exited     bool
	exitReason domain.ExitReason
	exitTimer  *time.Timer
	done       chan struct{}

	wg conc.WaitGroup
}

// New builds an orchestrator for spaceID. self may be empty when the device
// has no identity; the first Tick then exits with ExitNoIdentity.
func New(spaceID domain.SpaceID, self domain.UserID, deps Deps, opts Options) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = core.SystemClock{}
	}
	lifecycle := app.NewLifecycleMonitor(opts.EndingSoon, opts.ExitDelay)
	return &Orchestrator{
		SpaceID:  spaceID,
		api:      deps.API,
		engine:   deps.Media,
		sink:     deps.Sink,
		clock:    deps.Clock,
		opts:     opts,
		self:     self,
		cache:    app.NewEntityCache(self),
		instance: app.NewInstance(lifecycle),
		arbiter:  app.NewRoomArbitrator(opts.JoinWindow, opts.Sentinel),
		bridge:   media.NewBridgeAdapter(opts.Sentinel),
		board:    app.NewMessageBoard(deps.Sink, opts.MessageTTL),
		policy:   app.SimplePolicy{},
		throttle: app.NewSpeakRequestThrottle(opts.SpeakRequestLimit, opts.SpeakRequestWindow),
		done:     make(chan struct{}),
	}
}

func (o *Orchestrator) Self() domain.UserID { return o.self }

// Done is closed once the view navigates away.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

func (o *Orchestrator) Exited() (domain.ExitReason, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exitReason, o.exited
}

// Wait blocks until every dispatched collaborator call has returned.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Tick is one reconciliation step. A failed fetch is a no-op tick.
func (o *Orchestrator) Tick(ctx context.Context) {
	if _, done := o.Exited(); done {
		return
	}
	if o.self == "" {
		log.Warn().Str("module", "orch").Str("space", string(o.SpaceID)).Msg("no identity, leaving space view")
		o.mu.Lock()
		o.exitLocked(domain.ExitNoIdentity, 0)
		o.mu.Unlock()
		return
	}
	remote, err := o.api.FetchSpace(ctx, o.SpaceID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.PollsTotal.WithLabelValues("not_found").Inc()
		log.Info().Str("module", "orch").Str("space", string(o.SpaceID)).Msg("space not found")
		o.mu.Lock()
		o.exitLocked(domain.ExitNotFound, 0)
		o.mu.Unlock()
		return
	case err != nil:
		metrics.PollsTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("module", "orch").Str("space", string(o.SpaceID)).Msg("poll failed")
		return
	case remote == nil:
		metrics.PollsTotal.WithLabelValues("error").Inc()
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exited {
		return
	}
	changed := o.cache.Refresh(remote)
	if changed {
		metrics.PollsTotal.WithLabelValues("changed").Inc()
	} else {
		metrics.PollsTotal.WithLabelValues("unchanged").Inc()
	}
	if o.evaluateLocked(ctx) || changed {
		o.publishViewLocked()
	}
}

// evaluateLocked runs permission, lifecycle and arbitration for the cached
// space. It reports whether anything visible changed besides the cache.
func (o *Orchestrator) evaluateLocked(ctx context.Context) bool {
	space, ok := o.cache.Space()
	if !ok || o.exiting {
		return false
	}
	prev := o.instance.ID()
	if o.instance.Bind(space.ID) {
		o.throttle.Forget(prev)
		log.Info().Str("module", "orch").Str("space", string(space.ID)).Msg("space instance changed")
		o.teardownLocked(ctx)
	}
	self, _ := o.cache.Self()
	for _, msg := range o.instance.Observe(self, space) {
		o.board.Show(msg)
	}

	phase, fx := o.instance.Lifecycle.Evaluate(space, o.self, o.clock.Now())
	moved := phase != o.phase
	if moved {
		metrics.LifecycleTransitions.WithLabelValues(phase.String()).Inc()
		log.Info().Str("module", "orch").Str("space", string(space.ID)).
			Str("from", o.phase.String()).Str("to", phase.String()).Msg("lifecycle transition")
		o.phase = phase
	}
	o.applyLocked(ctx, space, fx)
	if o.exiting || phase.Terminal() {
		return moved
	}
	o.arbitrateLocked(ctx, space)
	return moved
}

func (o *Orchestrator) applyLocked(ctx context.Context, space *domain.Space, fx app.LifecycleEffects) {
	if fx.Empty() {
		return
	}
	for _, msg := range fx.Messages {
		o.board.Show(msg)
	}
	if fx.EndSpace {
		o.dispatch(ctx, "end_space", func(ctx context.Context) error {
			return o.api.EndSpace(ctx, space.ID)
		}, nil)
	}
	if fx.Leave && o.self != "" {
		self := o.self
		o.dispatch(ctx, "leave_space", func(ctx context.Context) error {
			return o.api.LeaveSpace(ctx, space.ID, self)
		}, nil)
	}
	if fx.Teardown {
		o.teardownLocked(ctx)
	}
	if fx.Exit {
		o.exitLocked(fx.Reason, fx.ExitAfter)
	}
}

func (o *Orchestrator) arbitrateLocked(ctx context.Context, space *domain.Space) {
	if o.arbiter.State() != app.IntentIdle {
		return
	}
	intent, ok := o.arbiter.Decide(space, o.self, o.clock.Now())
	if !ok || !o.arbiter.TryCommit(intent) {
		return
	}
	metrics.RoomIntents.WithLabelValues(intent.Action.String()).Inc()

	callCtx := context.WithoutCancel(ctx)
	o.wg.Go(func() {
		err := o.engine.Start(callCtx, intent)
		metrics.Call("media_start", err)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("action", intent.Action.String()).Msg("media start failed")
			o.arbiter.Release()
			o.board.Show(MsgMediaFailed)
			return
		}
		if !o.arbiter.MarkCommitted() {
			// The room session was torn down while the engine was starting.
			_ = o.engine.DisconnectRoom(callCtx)
		}
	})
}

// teardownLocked ends the local room session, if any.
func (o *Orchestrator) teardownLocked(ctx context.Context) {
	if o.arbiter.State() != app.IntentIdle {
		o.dispatch(ctx, "disconnect_room", o.engine.DisconnectRoom, nil)
	}
	o.arbiter.Reset()
	o.bridge.Reset()
	o.snapshot = domain.MediaBridgeState{}
}

// exitLocked navigates away once. after <= 0 exits synchronously.
func (o *Orchestrator) exitLocked(reason domain.ExitReason, after time.Duration) {
	if o.exiting {
		return
	}
	o.exiting = true
	if after <= 0 {
		o.finishExitLocked(reason)
		return
	}
	o.exitTimer = time.AfterFunc(after, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.finishExitLocked(reason)
	})
}

func (o *Orchestrator) finishExitLocked(reason domain.ExitReason) {
	if o.exited {
		return
	}
	o.exited = true
	o.exitReason = reason
	o.exitTimer = nil
	log.Info().Str("module", "orch").Str("space", string(o.SpaceID)).Str("reason", string(reason)).Msg("leaving space view")
	if o.sink != nil {
		o.sink.Publish(domain.NavigateEvent(reason))
	}
	close(o.done)
}

// Close abandons the view without navigation, cancelling timers.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.exitTimer != nil {
		o.exitTimer.Stop()
		o.exitTimer = nil
	}
	o.mu.Unlock()
	o.board.Stop()
	o.wg.Wait()
}

// ClearMessage drops the current user message and its timer.
func (o *Orchestrator) ClearMessage() { o.board.Stop() }

// dispatch runs a fire-and-forget collaborator call. Failures surface as a
// user message; onErr may undo local bookkeeping and must not take mu.
func (o *Orchestrator) dispatch(ctx context.Context, name string, call func(context.Context) error, onErr func(error)) {
	callCtx := context.WithoutCancel(ctx)
	o.wg.Go(func() {
		err := call(callCtx)
		metrics.Call(name, err)
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("module", "orch").Str("call", name).Msg("collaborator call failed")
		if onErr != nil {
			onErr(err)
		}
		o.board.Show(MsgNetworkError)
	})
}

func (o *Orchestrator) publishViewLocked() {
	if o.sink == nil {
		return
	}
	o.sink.Publish(domain.Event{Type: domain.EventView, View: o.viewLocked()})
}
