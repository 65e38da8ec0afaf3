package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Spaces/internal/app"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) requireHostLocked() (*domain.Space, error) {
	space, ok := o.cache.Space()
	self, _ := o.cache.Self()
	if !ok || !app.IsHost(self, space) {
		o.board.Show(MsgNotHost)
		return nil, domain.ErrPermissionDenied
	}
	return space, nil
}

// moderate checks host rights and then dispatches call.
func (o *Orchestrator) moderate(ctx context.Context, name string, target domain.UserID, call func(context.Context, *domain.Space) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	space, err := o.requireHostLocked()
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("space", string(space.ID)).Str("action", name).Str("target", string(target)).Msg("moderation")
	o.dispatch(ctx, name, func(ctx context.Context) error { return call(ctx, space) }, nil)
	return nil
}

// ApproveSpeakRequest answers a queued speak request. asSpeaker false
// settles the request while keeping uid a listener.
func (o *Orchestrator) ApproveSpeakRequest(ctx context.Context, uid domain.UserID, asSpeaker bool) error {
	return o.moderate(ctx, "approve_request", uid, func(ctx context.Context, s *domain.Space) error {
		return o.api.ApproveRequest(ctx, s.ID, uid, asSpeaker)
	})
}

func (o *Orchestrator) RejectSpeakRequest(ctx context.Context, uid domain.UserID) error {
	return o.moderate(ctx, "reject_request", uid, func(ctx context.Context, s *domain.Space) error {
		return o.api.RejectRequest(ctx, s.ID, uid)
	})
}

func (o *Orchestrator) ApproveJoinRequest(ctx context.Context, uid domain.UserID, asSpeaker bool) error {
	return o.moderate(ctx, "approve_join_request", uid, func(ctx context.Context, s *domain.Space) error {
		return o.api.ApproveJoinRequest(ctx, s.ID, uid, asSpeaker)
	})
}

func (o *Orchestrator) RejectJoinRequest(ctx context.Context, uid domain.UserID) error {
	return o.moderate(ctx, "reject_join_request", uid, func(ctx context.Context, s *domain.Space) error {
		return o.api.RejectJoinRequest(ctx, s.ID, uid)
	})
}

// MuteParticipant mutes uid in the space and, when connected, cuts their
// audio in the room.
func (o *Orchestrator) MuteParticipant(ctx context.Context, uid domain.UserID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	space, err := o.requireHostLocked()
	if err != nil {
		return err
	}
	o.dispatch(ctx, "mute_participant", func(ctx context.Context) error {
		return o.api.MuteParticipant(ctx, space.ID, uid, true)
	}, nil)
	if o.arbiter.State() == app.IntentCommitted {
		o.dispatch(ctx, "restrict_media", func(ctx context.Context) error {
			return o.engine.RestrictMedia(ctx, string(uid), domain.MediaAudio)
		}, nil)
	}
	return nil
}

// BanParticipant bans uid and removes them from the room.
func (o *Orchestrator) BanParticipant(ctx context.Context, uid domain.UserID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	space, err := o.requireHostLocked()
	if err != nil {
		return err
	}
	if uid == o.self {
		return domain.ErrPermissionDenied
	}
	o.dispatch(ctx, "ban_participant", func(ctx context.Context) error {
		return o.api.BanParticipant(ctx, space.ID, uid)
	}, nil)
	if o.arbiter.State() == app.IntentCommitted {
		o.dispatch(ctx, "remove_member", func(ctx context.Context) error {
			return o.engine.RemoveMember(ctx, string(uid))
		}, nil)
	}
	return nil
}

// EndSpace ends the space for everyone.
func (o *Orchestrator) EndSpace(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	space, err := o.requireHostLocked()
	if err != nil {
		return err
	}
	o.endLocked(ctx, space)
	return nil
}

type RequestKind string

const (
	RequestJoin  RequestKind = "join"
	RequestSpeak RequestKind = "speak"
)

type PendingRequest struct {
	Kind RequestKind `json:"kind"`
	User domain.User `json:"user"`
}

// PendingRequests lists the join and speak queues in order. Users not in the
// roster are fetched; unknown ones are skipped.
func (o *Orchestrator) PendingRequests(ctx context.Context) ([]PendingRequest, error) {
	o.mu.Lock()
	space, err := o.requireHostLocked()
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]PendingRequest, 0, len(space.AskToJoinQueue)+len(space.AskToSpeakQueue))
	resolve := func(kind RequestKind, ids domain.Queue) error {
		for _, id := range ids {
			if p, ok := space.Participant(id); ok {
				out = append(out, PendingRequest{Kind: kind, User: domain.User{ID: p.ID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL}})
				continue
			}
			user, err := o.api.FetchUser(ctx, id)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				continue
			case err != nil:
				return err
			}
			out = append(out, PendingRequest{Kind: kind, User: *user})
		}
		return nil
	}
	if err := resolve(RequestJoin, space.AskToJoinQueue); err != nil {
		return nil, err
	}
	if err := resolve(RequestSpeak, space.AskToSpeakQueue); err != nil {
		return nil, err
	}
	return out, nil
}
