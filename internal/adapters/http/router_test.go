package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dkeye/Spaces/internal/adapters/signal"
	"github.com/dkeye/Spaces/internal/app/orch"
	"github.com/dkeye/Spaces/internal/config"
	"github.com/dkeye/Spaces/internal/domain"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
	err   error
	reqs  []orch.PendingRequest
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeController) View() orch.View {
	return orch.View{SpaceID: "s1", Phase: "live", Room: "idle"}
}

func (f *fakeController) JoinSpace(_ context.Context, wantsSpeaker bool) error {
	return f.record(fmt.Sprintf("join:%t", wantsSpeaker))
}
func (f *fakeController) Leave(context.Context) error          { return f.record("leave") }
func (f *fakeController) RequestToSpeak(context.Context) error { return f.record("request_to_speak") }
func (f *fakeController) ToggleMic(context.Context) error      { return f.record("mic") }
func (f *fakeController) ToggleVideo(context.Context) error    { return f.record("video") }
func (f *fakeController) SwitchCamera(context.Context) error   { return f.record("switch_camera") }
func (f *fakeController) SelectCamera(_ context.Context, id string) error {
	return f.record("select_camera:" + id)
}
func (f *fakeController) ApproveSpeakRequest(_ context.Context, uid domain.UserID, asSpeaker bool) error {
	return f.record(fmt.Sprintf("approve_speak:%s:%t", uid, asSpeaker))
}
func (f *fakeController) RejectSpeakRequest(_ context.Context, uid domain.UserID) error {
	return f.record("reject_speak:" + string(uid))
}
func (f *fakeController) ApproveJoinRequest(_ context.Context, uid domain.UserID, asSpeaker bool) error {
	return f.record(fmt.Sprintf("approve_join:%s:%t", uid, asSpeaker))
}
func (f *fakeController) RejectJoinRequest(_ context.Context, uid domain.UserID) error {
	return f.record("reject_join:" + string(uid))
}
func (f *fakeController) MuteParticipant(_ context.Context, uid domain.UserID) error {
	return f.record("mute:" + string(uid))
}
func (f *fakeController) BanParticipant(_ context.Context, uid domain.UserID) error {
	return f.record("ban:" + string(uid))
}
func (f *fakeController) EndSpace(context.Context) error { return f.record("end") }
func (f *fakeController) PendingRequests(context.Context) ([]orch.PendingRequest, error) {
	if err := f.record("requests"); err != nil {
		return nil, err
	}
	return f.reqs, nil
}

type fakeFocus struct {
	mu     sync.Mutex
	states []bool
}

func (f *fakeFocus) Focus(_ context.Context, focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, focused)
}

func newTestRouter(t *testing.T) (http.Handler, *fakeController, *fakeFocus) {
	t.Helper()
	ctl := &fakeController{}
	focus := &fakeFocus{}
	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	hub := signal.NewHub(0, 0)
	t.Cleanup(hub.Close)
	return SetupRouter(context.Background(), cfg, NewHandlers(ctl, focus, hub)), ctl, focus
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStateReturnsView(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var v orch.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, domain.SpaceID("s1"), v.SpaceID)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestClientTokenCookie(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/api/state", "")
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "ct" {
			found = true
			assert.NotEmpty(t, c.Value)
		}
	}
	assert.True(t, found)
}

func TestFocus(t *testing.T) {
	r, _, focus := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/focus", `{"focused":true}`).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/focus", `{"focused":false}`).Code)
	assert.Equal(t, []bool{true, false}, focus.states)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/focus", `nope`).Code)
}

func TestActionRoutes(t *testing.T) {
	r, ctl, _ := newTestRouter(t)
	cases := []struct {
		method, path, body, call string
	}{
		{http.MethodPost, "/api/join", `{"wantsSpeaker":true}`, "join:true"},
		{http.MethodPost, "/api/join", "", "join:false"},
		{http.MethodPost, "/api/leave", "", "leave"},
		{http.MethodPost, "/api/end", "", "end"},
		{http.MethodPost, "/api/actions/mic", "", "mic"},
		{http.MethodPost, "/api/actions/video", "", "video"},
		{http.MethodPost, "/api/actions/switch-camera", "", "switch_camera"},
		{http.MethodPost, "/api/actions/select-camera", `{"deviceId":"cam-2"}`, "select_camera:cam-2"},
		{http.MethodPost, "/api/actions/request-to-speak", "", "request_to_speak"},
		{http.MethodPost, "/api/moderation/approve-speak/bob", "", "approve_speak:bob:true"},
		{http.MethodPost, "/api/moderation/approve-speak/bob?asSpeaker=false", "", "approve_speak:bob:false"},
		{http.MethodPost, "/api/moderation/reject-speak/bob", "", "reject_speak:bob"},
		{http.MethodPost, "/api/moderation/approve-join/dave?asSpeaker=true", "", "approve_join:dave:true"},
		{http.MethodPost, "/api/moderation/reject-join/dave", "", "reject_join:dave"},
		{http.MethodPost, "/api/moderation/mute/bob", "", "mute:bob"},
		{http.MethodPost, "/api/moderation/ban/eve", "", "ban:eve"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := do(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.call, ctl.last())
		})
	}
}

func TestMicAndVideoAreDistinct(t *testing.T) {
	r, ctl, _ := newTestRouter(t)
	do(t, r, http.MethodPost, "/api/actions/mic", "")
	do(t, r, http.MethodPost, "/api/actions/video", "")
	assert.Equal(t, []string{"mic", "video"}, ctl.calls)
}

func TestBadRequests(t *testing.T) {
	r, _, _ := newTestRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/actions/select-camera", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/api/moderation/promote/bob", "").Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrPermissionDenied, http.StatusForbidden},
		{domain.ErrNoRoom, http.StatusConflict},
		{domain.ErrNoIdentity, http.StatusConflict},
		{domain.ErrSpaceFull, http.StatusConflict},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: boom", domain.ErrTransport), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r, ctl, _ := newTestRouter(t)
			ctl.err = tc.err
			w := do(t, r, http.MethodPost, "/api/actions/mic", "")
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.err.Error())
		})
	}
}

func TestPendingRequests(t *testing.T) {
	r, ctl, _ := newTestRouter(t)
	ctl.reqs = []orch.PendingRequest{{Kind: orch.RequestJoin, User: domain.User{ID: "dave", DisplayName: "Dave"}}}

	w := do(t, r, http.MethodGet, "/api/requests", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Requests []orch.PendingRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Requests, 1)
	assert.Equal(t, domain.UserID("dave"), body.Requests[0].User.ID)

	ctl.err = domain.ErrPermissionDenied
	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodGet, "/api/requests", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	do(t, r, http.MethodGet, "/api/state", "")
	w := do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "spaces_http_requests_total")
}
