package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Spaces/internal/adapters/signal"
	"github.com/dkeye/Spaces/internal/app/orch"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SpaceController is the session view the API drives.
type SpaceController interface {
	View() orch.View
	JoinSpace(ctx context.Context, wantsSpeaker bool) error
	Leave(ctx context.Context) error
	RequestToSpeak(ctx context.Context) error
	ToggleMic(ctx context.Context) error
	ToggleVideo(ctx context.Context) error
	SwitchCamera(ctx context.Context) error
	SelectCamera(ctx context.Context, deviceID string) error
	ApproveSpeakRequest(ctx context.Context, uid domain.UserID, asSpeaker bool) error
	RejectSpeakRequest(ctx context.Context, uid domain.UserID) error
	ApproveJoinRequest(ctx context.Context, uid domain.UserID, asSpeaker bool) error
	RejectJoinRequest(ctx context.Context, uid domain.UserID) error
	MuteParticipant(ctx context.Context, uid domain.UserID) error
	BanParticipant(ctx context.Context, uid domain.UserID) error
	EndSpace(ctx context.Context) error
	PendingRequests(ctx context.Context) ([]orch.PendingRequest, error)
}

// Focuser starts and stops polling as the view gains and loses focus.
type Focuser interface {
	Focus(ctx context.Context, focused bool)
}

type Handlers struct {
	Space  SpaceController
	Poller Focuser
	Events *signal.Hub
}

func NewHandlers(space SpaceController, focus Focuser, events *signal.Hub) *Handlers {
	return &Handlers{Space: space, Poller: focus, Events: events}
}

// statusOf maps engine errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoRoom), errors.Is(err, domain.ErrNoIdentity):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSpaceFull):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) reply(c *gin.Context, err error) {
	if err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("action failed")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Space.View())
}

func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.Space.View())
}

type focusRequest struct {
	Focused bool `json:"focused"`
}

// Focus starts or stops polling under root, not the request context.
func (h *Handlers) Focus(root context.Context, c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid focus"})
		return
	}
	sess := sessions.Default(c)
	sess.Set("focused", req.Focused)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	h.Poller.Focus(root, req.Focused)
	c.JSON(http.StatusOK, gin.H{"focused": req.Focused})
}

type joinRequest struct {
	WantsSpeaker bool `json:"wantsSpeaker"`
}

func (h *Handlers) Join(c *gin.Context) {
	var req joinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid join request"})
			return
		}
	}
	h.reply(c, h.Space.JoinSpace(c.Request.Context(), req.WantsSpeaker))
}

func (h *Handlers) Leave(c *gin.Context) {
	h.reply(c, h.Space.Leave(c.Request.Context()))
}

func (h *Handlers) End(c *gin.Context) {
	h.reply(c, h.Space.EndSpace(c.Request.Context()))
}

func (h *Handlers) Requests(c *gin.Context) {
	reqs, err := h.Space.PendingRequests(c.Request.Context())
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handlers) ToggleMic(c *gin.Context) {
	h.reply(c, h.Space.ToggleMic(c.Request.Context()))
}

func (h *Handlers) ToggleVideo(c *gin.Context) {
	h.reply(c, h.Space.ToggleVideo(c.Request.Context()))
}

func (h *Handlers) SwitchCamera(c *gin.Context) {
	h.reply(c, h.Space.SwitchCamera(c.Request.Context()))
}

type selectCameraRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

func (h *Handlers) SelectCamera(c *gin.Context) {
	var req selectCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid deviceId"})
		return
	}
	h.reply(c, h.Space.SelectCamera(c.Request.Context(), req.DeviceID))
}

func (h *Handlers) RequestToSpeak(c *gin.Context) {
	h.reply(c, h.Space.RequestToSpeak(c.Request.Context()))
}

func (h *Handlers) Moderate(c *gin.Context) {
	ctx := c.Request.Context()
	uid := domain.UserID(c.Param("userId"))
	if err := domain.ValidateUserID(uid); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch c.Param("action") {
	case "approve-speak":
		err = h.Space.ApproveSpeakRequest(ctx, uid, c.DefaultQuery("asSpeaker", "true") == "true")
	case "reject-speak":
		err = h.Space.RejectSpeakRequest(ctx, uid)
	case "approve-join":
		err = h.Space.ApproveJoinRequest(ctx, uid, c.Query("asSpeaker") == "true")
	case "reject-join":
		err = h.Space.RejectJoinRequest(ctx, uid)
	case "mute":
		err = h.Space.MuteParticipant(ctx, uid)
	case "ban":
		err = h.Space.BanParticipant(ctx, uid)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown moderation action"})
		return
	}
	h.reply(c, err)
}
