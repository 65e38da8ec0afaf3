package core

import (
	"context"
	"time"

	"github.com/dkeye/Spaces/internal/domain"
)

// SpaceAPI is the persistence collaborator. Every call is network-backed and
// assumed idempotent. FetchSpace and FetchUser return domain.ErrNotFound when
// the entity is absent.
type SpaceAPI interface {
	FetchSpace(ctx context.Context, id domain.SpaceID) (*domain.Space, error)
	JoinSpace(ctx context.Context, id domain.SpaceID, user domain.User, wantsSpeaker bool) error
	LeaveSpace(ctx context.Context, id domain.SpaceID, userID domain.UserID) error
	MuteParticipant(ctx context.Context, id domain.SpaceID, userID domain.UserID, muted bool) error
	EndSpace(ctx context.Context, id domain.SpaceID) error
	BanParticipant(ctx context.Context, id domain.SpaceID, userID domain.UserID) error
	RequestToSpeak(ctx context.Context, id domain.SpaceID, userID domain.UserID) error
	ApproveJoinRequest(ctx context.Context, id domain.SpaceID, userID domain.UserID, asSpeaker bool) error
	RejectJoinRequest(ctx context.Context, id domain.SpaceID, userID domain.UserID) error
	ApproveRequest(ctx context.Context, id domain.SpaceID, userID domain.UserID, asSpeaker bool) error
	RejectRequest(ctx context.Context, id domain.SpaceID, userID domain.UserID) error
	UpdateSpace(ctx context.Context, id domain.SpaceID, patch domain.SpacePatch) error
	FetchUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// IdentityStore yields the device's current user. Read once per session view.
type IdentityStore interface {
	CurrentUserID() (domain.UserID, bool)
}

// EventSink receives what the engine wants the view layer to show.
// Implementations must be safe for concurrent use.
type EventSink interface {
	Publish(domain.Event)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
