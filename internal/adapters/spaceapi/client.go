// Package spaceapi is the HTTP client for the spaces persistence service.
package spaceapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 10 * time.Second

var _ core.SpaceAPI = (*Client)(nil)

// Client implements core.SpaceAPI over the service's REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// envelope is the service's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func spacePath(id domain.SpaceID, parts ...string) string {
	p := "/api/spaces/" + url.PathEscape(string(id))
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) FetchSpace(ctx context.Context, id domain.SpaceID) (*domain.Space, error) {
	var s domain.Space
	if err := c.do(ctx, http.MethodGet, spacePath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) FetchUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(string(id)), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) JoinSpace(ctx context.Context, id domain.SpaceID, user domain.User, wantsSpeaker bool) error {
	body := struct {
		User         domain.User `json:"user"`
		WantsSpeaker bool        `json:"wantsSpeaker"`
	}{user, wantsSpeaker}
	return c.do(ctx, http.MethodPost, spacePath(id, "join"), body, nil)
}

type userBody struct {
	UserID domain.UserID `json:"userId"`
}

func (c *Client) LeaveSpace(ctx context.Context, id domain.SpaceID, uid domain.UserID) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "leave"), userBody{uid}, nil)
}

func (c *Client) MuteParticipant(ctx context.Context, id domain.SpaceID, uid domain.UserID, muted bool) error {
	body := struct {
		UserID domain.UserID `json:"userId"`
		Muted  bool          `json:"muted"`
	}{uid, muted}
	return c.do(ctx, http.MethodPost, spacePath(id, "mute"), body, nil)
}

func (c *Client) EndSpace(ctx context.Context, id domain.SpaceID) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "end"), nil, nil)
}

func (c *Client) BanParticipant(ctx context.Context, id domain.SpaceID, uid domain.UserID) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "ban"), userBody{uid}, nil)
}

func (c *Client) RequestToSpeak(ctx context.Context, id domain.SpaceID, uid domain.UserID) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "speak-requests"), userBody{uid}, nil)
}

type approveBody struct {
	AsSpeaker bool `json:"asSpeaker"`
}

func (c *Client) ApproveJoinRequest(ctx context.Context, id domain.SpaceID, uid domain.UserID, asSpeaker bool) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "join-requests", string(uid), "approve"), approveBody{asSpeaker}, nil)
}

func (c *Client) RejectJoinRequest(ctx context.Context, id domain.SpaceID, uid domain.UserID) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "join-requests", string(uid), "reject"), nil, nil)
}

func (c *Client) ApproveRequest(ctx context.Context, id domain.SpaceID, uid domain.UserID, asSpeaker bool) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "speak-requests", string(uid), "approve"), approveBody{asSpeaker}, nil)
}

func (c *Client) RejectRequest(ctx context.Context, id domain.SpaceID, uid domain.UserID) error {
	return c.do(ctx, http.MethodPost, spacePath(id, "speak-requests", string(uid), "reject"), nil, nil)
}

func (c *Client) UpdateSpace(ctx context.Context, id domain.SpaceID, patch domain.SpacePatch) error {
	return c.do(ctx, http.MethodPatch, spacePath(id), patch, nil)
}

// do sends one request. A 404 maps to domain.ErrNotFound; every other
// failure wraps domain.ErrTransport.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrTransport, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().Str("module", "adapters.spaceapi").Str("request_id", reqID).
		Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api call")

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return fmt.Errorf("%w: decode response: %v", domain.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s", domain.ErrTransport, method, path, resp.StatusCode, env.Error)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s %s: %s", domain.ErrTransport, method, path, env.Error)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return domain.ErrNotFound
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", domain.ErrTransport, err)
	}
	return nil
}
