package core

import (
	"context"

	"github.com/dkeye/Spaces/internal/domain"
)

// MediaEngine is the external media-transport collaborator.
type MediaEngine interface {
	// Start consumes a room intent and begins the media session. It returns
	// once the engine accepted the intent; room state then shows up in
	// Snapshot on the engine's own schedule.
	Start(ctx context.Context, intent domain.RoomIntent) error
	// Snapshot returns the current bridge state by value. ok is false when
	// the engine has nothing to report yet.
	Snapshot() (state domain.MediaBridgeState, ok bool)

	ToggleAudio(ctx context.Context) error
	ToggleVideo(ctx context.Context) error
	SwitchCamera(ctx context.Context) error
	SelectCamera(ctx context.Context, deviceID string) error
	// DisconnectRoom should stop all underlying media resources.
	DisconnectRoom(ctx context.Context) error
	RestrictMedia(ctx context.Context, memberID string, kind domain.MediaKind) error
	RemoveMember(ctx context.Context, memberID string) error
}
