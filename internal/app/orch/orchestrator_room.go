package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Spaces/internal/app"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinSpace asks to join as a participant. Spaces that ask to join queue the
// request server-side.
func (o *Orchestrator) JoinSpace(ctx context.Context, wantsSpeaker bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.self == "" {
		return domain.ErrNoIdentity
	}
	space, ok := o.cache.Space()
	if !ok {
		return domain.ErrNotFound
	}
	_, member := space.Participant(o.self)
	switch {
	case space.IsBanned(o.self):
		o.board.Show(MsgBannedJoin)
		return domain.ErrPermissionDenied
	case member:
		return nil
	case space.Full():
		o.board.Show(MsgSpaceFull)
		return domain.ErrSpaceFull
	}

	self := o.self
	o.dispatch(ctx, "join_space", func(ctx context.Context) error {
		user, err := o.api.FetchUser(ctx, self)
		if errors.Is(err, domain.ErrNotFound) {
			user, err = domain.NewUser(self, "")
		}
		if err != nil {
			return err
		}
		return o.api.JoinSpace(ctx, space.ID, *user, wantsSpeaker)
	}, nil)
	return nil
}

// RequestToSpeak queues the local participant for the speaker role.
func (o *Orchestrator) RequestToSpeak(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	space, _ := o.cache.Space()
	self, _ := o.cache.Self()
	switch o.policy.OnSpeakRequest(self, space) {
	case app.SpeakNotMember:
		return domain.ErrPermissionDenied
	case app.SpeakAlreadyEligible:
		return nil
	case app.SpeakAlreadyQueued:
		o.board.Show(MsgAlreadyQueued)
		return nil
	case app.SpeakAllowed:
	}
	if wait, ok := o.throttle.Allow(space.ID, self.ID); !ok {
		log.Info().Str("module", "orch").Str("space", string(space.ID)).Dur("retry_in", wait).Msg("speak request throttled")
		o.board.Show(MsgSlowDown)
		return domain.ErrRateLimited
	}
	id := self.ID
	o.dispatch(ctx, "request_to_speak", func(ctx context.Context) error {
		return o.api.RequestToSpeak(ctx, space.ID, id)
	}, nil)
	o.board.Show(MsgRequestSent)
	return nil
}

// Leave removes the local user and navigates away.
func (o *Orchestrator) Leave(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	space, ok := o.cache.Space()
	if !ok {
		o.exitLocked(domain.ExitLeft, 0)
		return nil
	}
	o.leaveLocked(ctx, space)
	return nil
}

func (o *Orchestrator) leaveLocked(ctx context.Context, space *domain.Space) {
	if o.exiting {
		return
	}
	log.Info().Str("module", "orch").Str("space", string(space.ID)).Str("user", string(o.self)).Msg("leaving space")
	o.teardownLocked(ctx)
	if o.self != "" {
		self := o.self
		o.dispatch(ctx, "leave_space", func(ctx context.Context) error {
			return o.api.LeaveSpace(ctx, space.ID, self)
		}, nil)
	}
	o.exitLocked(domain.ExitLeft, 0)
}

// endLocked is the host's end flow: end the space for everyone, drop media
// and navigate away.
func (o *Orchestrator) endLocked(ctx context.Context, space *domain.Space) {
	if o.exiting {
		return
	}
	log.Info().Str("module", "orch").Str("space", string(space.ID)).Msg("host ending space")
	o.instance.Lifecycle.Latch(app.PhaseEndedByHost)
	o.dispatch(ctx, "end_space", func(ctx context.Context) error {
		return o.api.EndSpace(ctx, space.ID)
	}, nil)
	o.teardownLocked(ctx)
	o.exitLocked(domain.ExitEnded, 0)
}
