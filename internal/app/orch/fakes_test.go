package orch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Spaces/internal/domain"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type fakeAPI struct {
	mu       sync.Mutex
	space    *domain.Space
	fetchErr error
	fail     map[string]error
	calls    []string
	patches  []domain.SpacePatch
	users    map[domain.UserID]*domain.User
	joined   []domain.User
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[strings.SplitN(call, ":", 2)[0]]
}

func (f *fakeAPI) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) edit(fn func(s *domain.Space)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.space)
}

func (f *fakeAPI) Space() *domain.Space {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.space.Clone()
}

func (f *fakeAPI) Patches() []domain.SpacePatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SpacePatch(nil), f.patches...)
}

func (f *fakeAPI) FetchSpace(_ context.Context, id domain.SpaceID) (*domain.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.space == nil || f.space.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.space.Clone(), nil
}

func (f *fakeAPI) JoinSpace(_ context.Context, _ domain.SpaceID, user domain.User, _ bool) error {
	if err := f.record("join_space:" + string(user.ID)); err != nil {
		return err
	}
	f.mu.Lock()
	f.joined = append(f.joined, user)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) LeaveSpace(_ context.Context, _ domain.SpaceID, uid domain.UserID) error {
	return f.record("leave_space:" + string(uid))
}

func (f *fakeAPI) MuteParticipant(_ context.Context, _ domain.SpaceID, uid domain.UserID, _ bool) error {
	return f.record("mute_participant:" + string(uid))
}

func (f *fakeAPI) EndSpace(context.Context, domain.SpaceID) error {
	return f.record("end_space")
}

func (f *fakeAPI) BanParticipant(_ context.Context, _ domain.SpaceID, uid domain.UserID) error {
	return f.record("ban_participant:" + string(uid))
}

func (f *fakeAPI) RequestToSpeak(_ context.Context, _ domain.SpaceID, uid domain.UserID) error {
	return f.record("request_to_speak:" + string(uid))
}

func (f *fakeAPI) ApproveJoinRequest(_ context.Context, _ domain.SpaceID, uid domain.UserID, _ bool) error {
	return f.record("approve_join_request:" + string(uid))
}

func (f *fakeAPI) RejectJoinRequest(_ context.Context, _ domain.SpaceID, uid domain.UserID) error {
	return f.record("reject_join_request:" + string(uid))
}

func (f *fakeAPI) ApproveRequest(_ context.Context, _ domain.SpaceID, uid domain.UserID, asSpeaker bool) error {
	return f.record(fmt.Sprintf("approve_request:%s:%t", uid, asSpeaker))
}

func (f *fakeAPI) RejectRequest(_ context.Context, _ domain.SpaceID, uid domain.UserID) error {
	return f.record("reject_request:" + string(uid))
}

func (f *fakeAPI) UpdateSpace(_ context.Context, _ domain.SpaceID, patch domain.SpacePatch) error {
	if err := f.record("update_space"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	if patch.RemoteName != nil {
		f.space.RemoteName = *patch.RemoteName
	}
	if patch.Participants != nil {
		f.space.Participants = patch.Participants
	}
	return nil
}

func (f *fakeAPI) FetchUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeEngine struct {
	mu        sync.Mutex
	state     domain.MediaBridgeState
	populated bool
	startErr  error
	intents   []domain.RoomIntent
	calls     []string
}

func (e *fakeEngine) set(fn func(st *domain.MediaBridgeState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
	e.populated = true
}

func (e *fakeEngine) record(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	return nil
}

func (e *fakeEngine) count(call string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (e *fakeEngine) Intents() []domain.RoomIntent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.RoomIntent(nil), e.intents...)
}

func (e *fakeEngine) Start(_ context.Context, intent domain.RoomIntent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.intents = append(e.intents, intent)
	return e.startErr
}

func (e *fakeEngine) Snapshot() (domain.MediaBridgeState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.populated
}

func (e *fakeEngine) ToggleAudio(context.Context) error    { return e.record("toggle_audio") }
func (e *fakeEngine) ToggleVideo(context.Context) error    { return e.record("toggle_video") }
func (e *fakeEngine) SwitchCamera(context.Context) error   { return e.record("switch_camera") }
func (e *fakeEngine) DisconnectRoom(context.Context) error { return e.record("disconnect_room") }

func (e *fakeEngine) SelectCamera(_ context.Context, deviceID string) error {
	return e.record("select_camera:" + deviceID)
}

func (e *fakeEngine) RestrictMedia(_ context.Context, memberID string, kind domain.MediaKind) error {
	return e.record("restrict_media:" + memberID + ":" + string(kind))
}

func (e *fakeEngine) RemoveMember(_ context.Context, memberID string) error {
	return e.record("remove_member:" + memberID)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Publish(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.Type == domain.EventMessage {
			out = append(out, e.Message)
		}
	}
	return out
}

func (s *recordingSink) countMessage(text string) int {
	n := 0
	for _, m := range s.messages() {
		if m == text {
			n++
		}
	}
	return n
}

func (s *recordingSink) navigations() []domain.ExitReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ExitReason
	for _, e := range s.events {
		if e.Type == domain.EventNavigate {
			out = append(out, e.Reason)
		}
	}
	return out
}

func liveSpace() *domain.Space {
	return &domain.Space{
		ID:         "s1",
		Title:      "Friday sync",
		Host:       "host",
		Active:     true,
		StartedAt:  t0.UnixMilli(),
		Duration:   (30 * time.Minute).Milliseconds(),
		Capacity:   10,
		RemoteName: "pending_s1",
		Participants: []domain.Participant{
			{ID: "host", DisplayName: "Host", Role: domain.RoleHost, Muted: true},
			{ID: "bob", DisplayName: "Bob", Role: domain.RoleListener, Muted: true},
		},
	}
}

type harness struct {
	o      *Orchestrator
	api    *fakeAPI
	engine *fakeEngine
	sink   *recordingSink
	clock  *fakeClock
}

func newHarness(t *testing.T, self domain.UserID, space *domain.Space, tweak ...func(*Options)) *harness {
	t.Helper()
	opts := DefaultOptions()
	opts.ExitDelay = 0
	opts.MessageTTL = time.Hour
	for _, fn := range tweak {
		fn(&opts)
	}
	h := &harness{
		api:    &fakeAPI{space: space, users: map[domain.UserID]*domain.User{}},
		engine: &fakeEngine{},
		sink:   &recordingSink{},
		clock:  &fakeClock{now: t0.Add(time.Minute)},
	}
	h.o = New("s1", self, Deps{API: h.api, Media: h.engine, Sink: h.sink, Clock: h.clock}, opts)
	t.Cleanup(h.o.Close)
	return h
}

// tick runs one reconciliation step and drains dispatched calls.
func (h *harness) tick() {
	h.o.Tick(context.Background())
	h.o.Wait()
}

func (h *harness) mediaTick() {
	h.o.MediaTick(context.Background())
	h.o.Wait()
}
