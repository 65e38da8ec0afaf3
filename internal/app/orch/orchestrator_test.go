package orch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/Spaces/internal/app"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTick_NoIdentityNavigatesAway(t *testing.T) {
	h := newHarness(t, "", liveSpace())
	h.tick()
	h.tick()

	reason, exited := h.o.Exited()
	assert.True(t, exited)
	assert.Equal(t, domain.ExitNoIdentity, reason)
	assert.Equal(t, []domain.ExitReason{domain.ExitNoIdentity}, h.sink.navigations())
	assert.Empty(t, h.api.Calls())
	assert.Empty(t, h.engine.Intents())
}

func TestTick_NotFoundNavigatesAway(t *testing.T) {
	h := newHarness(t, "bob", nil)
	h.tick()

	reason, exited := h.o.Exited()
	assert.True(t, exited)
	assert.Equal(t, domain.ExitNotFound, reason)
	assert.Equal(t, []domain.ExitReason{domain.ExitNotFound}, h.sink.navigations())
	select {
	case <-h.o.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestTick_TransportErrorIsNoop(t *testing.T) {
	h := newHarness(t, "bob", liveSpace())
	h.api.fetchErr = fmt.Errorf("%w: connection reset", domain.ErrTransport)
	h.tick()

	_, exited := h.o.Exited()
	assert.False(t, exited)
	assert.Nil(t, h.o.View().Space)

	h.api.fetchErr = nil
	h.tick()
	assert.NotNil(t, h.o.View().Space)
}

func TestHostCreatesRoomAndPublishesNameOnce(t *testing.T) {
	h := newHarness(t, "host", liveSpace())
	h.tick()

	intents := h.engine.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, domain.RoomActionCreate, intents[0].Action)
	assert.Equal(t, "host", intents[0].Name)
	assert.Empty(t, intents[0].MeetingID)
	assert.Equal(t, 10, intents[0].Capacity)
	assert.EqualValues(t, 30, intents[0].DurationMinutes)
	assert.Equal(t, app.IntentCommitted.String(), h.o.View().Room)

	h.engine.set(func(st *domain.MediaBridgeState) { st.RoomName = "room-1" })
	h.mediaTick()
	assert.Equal(t, "room-1", h.api.Space().RemoteName)
	assert.True(t, h.o.View().Media.Connected)

	for i := 0; i < 3; i++ {
		h.tick()
		h.mediaTick()
	}
	assert.Equal(t, 1, h.api.count("update_space"))
	assert.Len(t, h.engine.Intents(), 1)
}

func TestFailedPublishIsRetried(t *testing.T) {
	h := newHarness(t, "host", liveSpace())
	h.tick()
	h.api.fail = map[string]error{"update_space": domain.ErrTransport}
	h.engine.set(func(st *domain.MediaBridgeState) { st.RoomName = "room-1" })
	h.mediaTick()
	assert.Contains(t, h.sink.messages(), MsgNetworkError)

	h.api.mu.Lock()
	h.api.fail = nil
	h.api.mu.Unlock()
	h.mediaTick()
	assert.Equal(t, "room-1", h.api.Space().RemoteName)
	assert.Equal(t, 2, h.api.count("update_space"))
}

func TestParticipantWaitsThenJoins(t *testing.T) {
	h := newHarness(t, "bob", liveSpace())
	h.tick()
	assert.Empty(t, h.engine.Intents())

	h.api.edit(func(s *domain.Space) { s.RemoteName = "room-1" })
	h.tick()
	intents := h.engine.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, domain.RoomActionJoin, intents[0].Action)
	assert.Equal(t, "room-1", intents[0].MeetingID)
	assert.Equal(t, "bob", intents[0].Name)
}

func TestNoRoomBeforeJoinWindow(t *testing.T) {
	space := liveSpace()
	space.RemoteName = "room-1"
	space.StartedAt = t0.Add(time.Hour).UnixMilli()
	h := newHarness(t, "bob", space)
	h.tick()
	assert.Empty(t, h.engine.Intents())
}

func TestStartFailureReleasesLatch(t *testing.T) {
	space := liveSpace()
	space.RemoteName = "room-1"
	h := newHarness(t, "bob", space)
	h.engine.startErr = errors.New("ice failed")
	h.tick()
	assert.Equal(t, app.IntentIdle.String(), h.o.View().Room)
	assert.Contains(t, h.sink.messages(), MsgMediaFailed)

	h.engine.mu.Lock()
	h.engine.startErr = nil
	h.engine.mu.Unlock()
	h.tick()
	assert.Len(t, h.engine.Intents(), 2)
	assert.Equal(t, app.IntentCommitted.String(), h.o.View().Room)
}

func TestBannedSequenceRunsOnce(t *testing.T) {
	space := liveSpace()
	space.RemoteName = "room-1"
	h := newHarness(t, "bob", space)
	h.tick()
	require.Equal(t, app.IntentCommitted.String(), h.o.View().Room)

	h.api.edit(func(s *domain.Space) { s.Banned = domain.IDSet{"bob"} })
	for i := 0; i < 3; i++ {
		h.tick()
	}

	assert.Equal(t, 1, h.api.count("leave_space:bob"))
	assert.Equal(t, 1, h.engine.count("disconnect_room"))
	assert.Equal(t, []domain.ExitReason{domain.ExitBanned}, h.sink.navigations())
	assert.Equal(t, 1, h.sink.countMessage(app.MsgBanned))
}

func TestExpiryEndsSpaceWithoutEndingSoon(t *testing.T) {
	h := newHarness(t, "bob", liveSpace())
	h.clock.Set(t0.Add(30*time.Minute + time.Millisecond))
	h.tick()
	h.tick()

	assert.Equal(t, 1, h.api.count("end_space"))
	reason, exited := h.o.Exited()
	assert.True(t, exited)
	assert.Equal(t, domain.ExitExpired, reason)
	assert.Zero(t, h.sink.countMessage(app.MsgEndingSoon))
	assert.Equal(t, 1, h.sink.countMessage(app.MsgExpired))
}

func TestExpiryNavigatesAfterDelay(t *testing.T) {
	h := newHarness(t, "bob", liveSpace(), func(o *Options) { o.ExitDelay = 30 * time.Millisecond })
	h.clock.Set(t0.Add(31 * time.Minute))
	h.tick()

	_, exited := h.o.Exited()
	assert.False(t, exited)
	h.tick()
	assert.Equal(t, 1, h.api.count("end_space"))

	assert.Eventually(t, func() bool {
		_, done := h.o.Exited()
		return done
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.ExitReason{domain.ExitExpired}, h.sink.navigations())
}

func TestEndedByHostDoesNotReissueEnd(t *testing.T) {
	space := liveSpace()
	space.EndedAt = t0.UnixMilli()
	h := newHarness(t, "bob", space)
	h.tick()

	assert.Zero(t, h.api.count("end_space"))
	reason, _ := h.o.Exited()
	assert.Equal(t, domain.ExitEndedByHost, reason)
}

func TestEndingSoonFiresOnce(t *testing.T) {
	h := newHarness(t, "bob", liveSpace())
	h.clock.Set(t0.Add(29*time.Minute + 30*time.Second))
	for i := 0; i < 4; i++ {
		h.tick()
	}
	assert.Equal(t, 1, h.sink.countMessage(app.MsgEndingSoon))
	assert.Equal(t, "ending_soon", h.o.View().Phase)
}

func TestSpeakerGrantedNoticeOnce(t *testing.T) {
	space := liveSpace()
	space.AskToSpeak = true
	h := newHarness(t, "bob", space)
	h.tick()
	assert.False(t, h.o.View().CanSpeak)

	h.api.edit(func(s *domain.Space) { s.Participants[1].Role = domain.RoleSpeaker })
	h.tick()
	h.tick()
	assert.Equal(t, 1, h.sink.countMessage(app.MsgSpeakerGranted))
	assert.True(t, h.o.View().CanSpeak)
}

func joinedHarness(t *testing.T, self domain.UserID, askToSpeak bool) *harness {
	t.Helper()
	space := liveSpace()
	space.RemoteName = "room-1"
	space.AskToSpeak = askToSpeak
	h := newHarness(t, self, space)
	h.tick()
	require.Equal(t, app.IntentCommitted.String(), h.o.View().Room)
	return h
}

func TestMuteFlipPushedOnce(t *testing.T) {
	h := joinedHarness(t, "bob", false)

	h.engine.set(func(st *domain.MediaBridgeState) {
		st.RoomName = "room-1"
		st.AudioAlreadyOn = true
	})
	h.mediaTick()
	h.engine.set(func(st *domain.MediaBridgeState) { st.AudioAlreadyOn = false })
	h.mediaTick()
	h.mediaTick()
	h.mediaTick()

	mutedPushes := 0
	for _, p := range h.api.Patches() {
		for _, part := range p.Participants {
			if part.ID == "bob" && part.Muted {
				mutedPushes++
			}
		}
	}
	assert.Equal(t, 1, mutedPushes)
	assert.True(t, h.o.View().Media.Muted)
}

func mutePushes(patches []domain.SpacePatch, uid domain.UserID, muted bool) int {
	n := 0
	for _, p := range patches {
		for _, part := range p.Participants {
			if part.ID == uid && part.Muted == muted {
				n++
			}
		}
	}
	return n
}

func TestFailedMutePushIsRetried(t *testing.T) {
	h := joinedHarness(t, "bob", false)
	h.engine.set(func(st *domain.MediaBridgeState) {
		st.RoomName = "room-1"
		st.AudioAlreadyOn = true
	})
	h.mediaTick()
	require.Equal(t, 1, mutePushes(h.api.Patches(), "bob", false))

	h.api.mu.Lock()
	h.api.fail = map[string]error{"update_space": domain.ErrTransport}
	h.api.mu.Unlock()
	h.engine.set(func(st *domain.MediaBridgeState) { st.AudioAlreadyOn = false })
	h.mediaTick()
	assert.Contains(t, h.sink.messages(), MsgNetworkError)
	assert.Zero(t, mutePushes(h.api.Patches(), "bob", true))

	h.api.mu.Lock()
	h.api.fail = nil
	h.api.mu.Unlock()
	h.mediaTick()
	h.mediaTick()
	assert.Equal(t, 1, mutePushes(h.api.Patches(), "bob", true))
	bob, ok := h.api.Space().Participant("bob")
	require.True(t, ok)
	assert.True(t, bob.Muted)
}

func TestMuteFlipWithoutSeatIsKept(t *testing.T) {
	h := joinedHarness(t, "bob", false)
	h.engine.set(func(st *domain.MediaBridgeState) { st.RoomName = "room-1" })
	h.mediaTick()

	h.api.edit(func(s *domain.Space) { s.Participants = s.Participants[:1] })
	h.tick()
	h.engine.set(func(st *domain.MediaBridgeState) { st.AudioAlreadyOn = true })
	h.mediaTick()
	assert.Zero(t, mutePushes(h.api.Patches(), "bob", false))

	h.api.edit(func(s *domain.Space) {
		s.Participants = append(s.Participants, domain.Participant{ID: "bob", DisplayName: "Bob", Role: domain.RoleListener, Muted: true})
	})
	h.tick()
	h.mediaTick()
	assert.Equal(t, 1, mutePushes(h.api.Patches(), "bob", false))
	bob, ok := h.api.Space().Participant("bob")
	require.True(t, ok)
	assert.False(t, bob.Muted)
}

func TestMeetingEndedAlertLeaves(t *testing.T) {
	h := joinedHarness(t, "bob", false)
	h.engine.set(func(st *domain.MediaBridgeState) {
		st.RoomName = "room-1"
		st.AlertMessage = "The meeting has ended"
	})
	h.mediaTick()

	assert.Equal(t, 1, h.api.count("leave_space:bob"))
	assert.Zero(t, h.api.count("end_space"))
	reason, _ := h.o.Exited()
	assert.Equal(t, domain.ExitLeft, reason)
}

func TestMeetingEndedAlertEndsForConnectedHost(t *testing.T) {
	h := joinedHarness(t, "host", false)
	h.engine.set(func(st *domain.MediaBridgeState) { st.RoomName = "room-1" })
	h.mediaTick()
	h.engine.set(func(st *domain.MediaBridgeState) { st.AlertMessage = "Meeting has ended by the server" })
	h.mediaTick()

	assert.Equal(t, 1, h.api.count("end_space"))
	reason, _ := h.o.Exited()
	assert.Equal(t, domain.ExitEnded, reason)
}

func TestRotateAlertIgnored(t *testing.T) {
	h := joinedHarness(t, "bob", false)
	h.engine.set(func(st *domain.MediaBridgeState) { st.AlertMessage = "Please rotate your phone" })
	h.mediaTick()
	assert.NotContains(t, h.sink.messages(), "Please rotate your phone")
}

func TestLeave(t *testing.T) {
	h := joinedHarness(t, "bob", false)
	require.NoError(t, h.o.Leave(context.Background()))
	h.o.Wait()

	assert.Equal(t, 1, h.api.count("leave_space:bob"))
	assert.Equal(t, 1, h.engine.count("disconnect_room"))
	assert.Equal(t, []domain.ExitReason{domain.ExitLeft}, h.sink.navigations())
}

func TestViewTilesBindStreams(t *testing.T) {
	h := joinedHarness(t, "bob", false)
	local := &domain.StreamHandle{ID: "cam"}
	h.engine.set(func(st *domain.MediaBridgeState) {
		st.RoomName = "room-1"
		st.LocalStreamVideo = local
	})
	h.mediaTick()

	tiles := h.o.View().Tiles
	require.Len(t, tiles, 2)
	assert.Nil(t, tiles[0].Stream)
	assert.True(t, tiles[1].Self)
	assert.Same(t, local, tiles[1].Stream)
}
