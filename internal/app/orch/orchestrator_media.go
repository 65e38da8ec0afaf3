package orch

import (
	"context"

	"github.com/dkeye/Spaces/internal/app"
	"github.com/dkeye/Spaces/internal/app/media"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
)

// MediaTick folds the engine's current snapshot into the view. It only runs
// once a room intent has been consumed.
func (o *Orchestrator) MediaTick(ctx context.Context) {
	st, ok := o.engine.Snapshot()

	o.mu.Lock()
	defer o.mu.Unlock()
	if !ok || o.exiting || o.arbiter.State() != app.IntentCommitted {
		return
	}
	space, ok := o.cache.Space()
	if !ok {
		return
	}
	o.snapshot = st
	up := o.bridge.Observe(space, st)

	if name := up.PublishRoomName; name != "" {
		log.Info().Str("module", "orch").Str("space", string(space.ID)).Str("room", name).Msg("publishing room name")
		o.dispatch(ctx, "update_space", func(ctx context.Context) error {
			return o.api.UpdateSpace(ctx, space.ID, domain.SpacePatch{RemoteName: &name})
		}, func(error) { o.bridge.RetractPublish(name) })
	}

	if up.MuteChanged && o.self != "" {
		muted := up.Muted
		if participants, found := space.WithMuted(o.self, muted); found {
			o.dispatch(ctx, "update_space", func(ctx context.Context) error {
				return o.api.UpdateSpace(ctx, space.ID, domain.SpacePatch{Participants: participants})
			}, func(error) { o.bridge.RetractMute(muted) })
		} else {
			o.bridge.RetractMute(muted)
		}
	}

	if up.Alert != "" {
		o.board.Show(up.Alert)
		if up.MeetingEnded {
			self, _ := o.cache.Self()
			if app.IsHost(self, space) && o.bridge.Connected() {
				o.endLocked(ctx, space)
			} else {
				o.leaveLocked(ctx, space)
			}
		}
	}

	if up.Any() {
		o.publishViewLocked()
	}
}

// ToggleMic flips the local microphone. It never touches video.
func (o *Orchestrator) ToggleMic(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireSpeakerLocked(); err != nil {
		return err
	}
	o.dispatch(ctx, "toggle_audio", o.engine.ToggleAudio, nil)
	return nil
}

func (o *Orchestrator) ToggleVideo(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireSpeakerLocked(); err != nil {
		return err
	}
	o.dispatch(ctx, "toggle_video", o.engine.ToggleVideo, nil)
	return nil
}

func (o *Orchestrator) SwitchCamera(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireRoomLocked(); err != nil {
		return err
	}
	o.dispatch(ctx, "switch_camera", o.engine.SwitchCamera, nil)
	return nil
}

func (o *Orchestrator) SelectCamera(ctx context.Context, deviceID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireRoomLocked(); err != nil {
		return err
	}
	o.dispatch(ctx, "select_camera", func(ctx context.Context) error {
		return o.engine.SelectCamera(ctx, deviceID)
	}, nil)
	return nil
}

func (o *Orchestrator) requireRoomLocked() error {
	if o.arbiter.State() != app.IntentCommitted {
		o.board.Show(MsgNoRoom)
		return domain.ErrNoRoom
	}
	return nil
}

func (o *Orchestrator) requireSpeakerLocked() error {
	if !o.instance.CanSpeak() {
		o.board.Show(MsgNotEligible)
		return domain.ErrPermissionDenied
	}
	return o.requireRoomLocked()
}

// View is the render-ready state of the session view.
type View struct {
	SpaceID    domain.SpaceID      `json:"spaceId"`
	Space      *domain.Space       `json:"space,omitempty"`
	Self       *domain.Participant `json:"self,omitempty"`
	CanSpeak   bool                `json:"canSpeak"`
	IsHost     bool                `json:"isHost"`
	Phase      string              `json:"phase"`
	Room       string              `json:"room"`
	Media      media.View          `json:"media"`
	Tiles      []media.Tile        `json:"tiles"`
	Message    string              `json:"message,omitempty"`
	Exited     bool                `json:"exited"`
	ExitReason domain.ExitReason   `json:"exitReason,omitempty"`
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked()
}

func (o *Orchestrator) viewLocked() View {
	space, _ := o.cache.Space()
	self, _ := o.cache.Self()
	return View{
		SpaceID:    o.SpaceID,
		Space:      space,
		Self:       self,
		CanSpeak:   o.instance.CanSpeak(),
		IsHost:     app.IsHost(self, space),
		Phase:      o.phase.String(),
		Room:       o.arbiter.State().String(),
		Media:      o.bridge.View(),
		Tiles:      media.Bind(space, o.self, o.snapshot),
		Message:    o.board.Current(),
		Exited:     o.exited,
		ExitReason: o.exitReason,
	}
}
