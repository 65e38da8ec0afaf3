package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const (
	AlertMeetingEnded   = "The meeting has ended"
	AlertConnectionLost = "Connection to the media room was lost"
	AlertRemoved        = "You were removed from the room"
)

var (
	ErrNotConnected   = errors.New("media engine not connected")
	ErrAlreadyStarted = errors.New("media engine already started")
	ErrUnknownCamera  = errors.New("unknown camera")
	ErrBadIntent      = errors.New("bad room intent")
)

var _ core.MediaEngine = (*Engine)(nil)

type Config struct {
	SignalURL  string
	ICEServers []string
	// Cameras are the selectable capture device ids, in switch order.
	Cameras []string
}

// Engine joins a room on the room server over websocket signaling and one
// peer connection. Capture is external: callers feed samples through
// WriteAudioSample and WriteVideoSample, dropped while the device is off.
type Engine struct {
	cfg   Config
	api   *webrtc.API
	state *stateHolder
	meter *levelMeter

	mu      sync.Mutex
	sig     *signalClient
	pc      *PeerConnection
	cancel  context.CancelFunc
	intent  domain.RoomIntent
	audio   *webrtc.TrackLocalStaticSample
	video   *webrtc.TrackLocalStaticSample
	audioOn bool
	videoOn bool
	camera  int
}

func NewEngine(cfg Config) (*Engine, error) {
	api, err := NewAPI()
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, api: api, state: newStateHolder(), meter: newLevelMeter()}, nil
}

func (e *Engine) Snapshot() (domain.MediaBridgeState, bool) {
	return e.state.Snapshot()
}

func (e *Engine) Start(ctx context.Context, intent domain.RoomIntent) error {
	first := envelope{Name: intent.Name}
	switch intent.Action {
	case domain.RoomActionCreate:
		first.Type = "create_room"
		first.Capacity = intent.Capacity
		first.Duration = intent.DurationMinutes
	case domain.RoomActionJoin:
		if intent.MeetingID == "" {
			return ErrBadIntent
		}
		first.Type = "join"
		first.Room = intent.MeetingID
	default:
		return ErrBadIntent
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sig != nil {
		return ErrAlreadyStarted
	}
	sig, err := dialSignal(ctx, e.cfg.SignalURL)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", domain.ErrTransport, e.cfg.SignalURL, err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e.sig, e.cancel, e.intent = sig, cancel, intent

	go sig.writePump()
	go sig.readPump(runCtx, e.handle, func() { e.onSignalDone(sig) })

	log.Info().Str("module", "adapters.rtc").Str("action", intent.Action.String()).Str("room", intent.MeetingID).Msg("room intent started")
	return sig.sendJSON(first)
}

func (e *Engine) handle(env envelope) {
	switch env.Type {
	case "room_created":
		e.send(envelope{Type: "join", Room: env.Room, Name: e.intentName()})
	case "room_state":
		if err := e.connectMedia(); err != nil {
			log.Error().Err(err).Str("module", "adapters.rtc").Msg("media connect failed")
			e.state.SetAlert(AlertConnectionLost)
			return
		}
		e.state.SetMembers(env.Members)
		e.state.SetRoom(env.Room)
	case "member_joined", "member_state":
		if env.User != nil {
			e.state.UpsertMember(*env.User)
		}
	case "member_left":
		if env.User != nil {
			e.state.RemoveMember(env.User.ID)
		}
	case "answer":
		e.withPeer(func(pc *PeerConnection) error { return pc.ApplyAnswer(env.SDP) })
	case "candidate":
		cand := webrtc.ICECandidateInit{Candidate: env.Candidate, SDPMLineIndex: env.SDPMLineIndex}
		if env.SDPMid != "" {
			cand.SDPMid = &env.SDPMid
		}
		e.withPeer(func(pc *PeerConnection) error { return pc.AddICECandidate(cand) })
	case "restricted":
		if env.Kind == string(domain.MediaAudio) {
			e.setAudio(false)
		} else if env.Kind == string(domain.MediaVideo) {
			e.setVideo(false)
		}
	case "kicked":
		e.state.SetAlert(AlertRemoved)
	case "room_closed":
		e.state.SetAlert(AlertMeetingEnded)
	case "error":
		if env.Error == "room is not exists" {
			e.state.SetAlert(AlertMeetingEnded)
			return
		}
		e.state.SetAlert(env.Error)
	case "pong", "left":
	default:
		log.Warn().Str("module", "adapters.rtc").Str("type", env.Type).Msg("unknown signal")
	}
}

func (e *Engine) intentName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intent.Name
}

func (e *Engine) send(env envelope) {
	e.mu.Lock()
	sig := e.sig
	e.mu.Unlock()
	if sig == nil {
		return
	}
	if err := sig.sendJSON(env); err != nil {
		log.Warn().Err(err).Str("module", "adapters.rtc").Str("type", env.Type).Msg("signal send failed")
	}
}

func (e *Engine) withPeer(fn func(pc *PeerConnection) error) {
	e.mu.Lock()
	pc := e.pc
	e.mu.Unlock()
	if pc == nil {
		return
	}
	if err := fn(pc); err != nil {
		log.Error().Err(err).Str("module", "adapters.rtc").Msg("peer connection")
	}
}

// connectMedia creates the peer connection with local tracks and sends the
// offer. It is a no-op once connected.
func (e *Engine) connectMedia() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc != nil || e.sig == nil {
		return nil
	}
	name := e.intent.Name
	pc, err := NewPeerConnection(e.api, DefaultWebRTCConfig(e.cfg.ICEServers), name)
	if err != nil {
		return err
	}
	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio-"+name, name)
	if err != nil {
		pc.Close()
		return err
	}
	video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video-"+name, name)
	if err != nil {
		pc.Close()
		return err
	}
	for _, t := range []webrtc.TrackLocal{audio, video} {
		if _, err := pc.AddLocalTrack(t); err != nil {
			pc.Close()
			return err
		}
	}

	sig := e.sig
	pc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		out := envelope{Type: "candidate", Candidate: ci.Candidate, SDPMLineIndex: ci.SDPMLineIndex}
		if ci.SDPMid != nil {
			out.SDPMid = *ci.SDPMid
		}
		_ = sig.sendJSON(out)
	})
	pc.OnTrack(e.onTrack)
	pc.OnClosed(func() { e.onPeerClosed(pc) })
	pc.Start(context.Background())

	offer, err := pc.CreateOffer()
	if err != nil {
		pc.OnClosed(nil)
		pc.Close()
		return err
	}
	e.pc, e.audio, e.video = pc, audio, video
	return sig.sendJSON(envelope{Type: "offer", SDP: offer.SDP})
}

// onTrack registers a remote track. The room server labels each relayed
// stream with its owner's member id.
func (e *Engine) onTrack(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	kind := domain.MediaVideo
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		kind = domain.MediaAudio
	}
	handle := &domain.StreamHandle{ID: track.ID(), StreamID: track.StreamID(), Kind: kind}
	e.state.AddTrack(track.StreamID(), handle)

	id, hasLevel := audioLevelID(receiver)
	go func() {
		defer func() {
			e.state.RemoveTrack(handle.ID)
			if kind == domain.MediaAudio {
				e.state.SetAudioLevel(e.meter.Forget(handle.ID))
			}
		}()
		for {
			if ctx.Err() != nil {
				return
			}
			pkt, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			if kind == domain.MediaAudio && hasLevel {
				if level, ok := e.meter.Observe(handle.ID, id, pkt); ok {
					e.state.SetAudioLevel(level)
				}
			}
		}
	}()
}

func (e *Engine) onPeerClosed(pc *PeerConnection) {
	e.mu.Lock()
	current := e.pc == pc
	e.mu.Unlock()
	if current {
		e.state.SetAlert(AlertConnectionLost)
	}
}

func (e *Engine) onSignalDone(sig *signalClient) {
	e.mu.Lock()
	current := e.sig == sig
	e.mu.Unlock()
	if current {
		e.state.SetAlert(AlertConnectionLost)
	}
}

func (e *Engine) ToggleAudio(context.Context) error {
	e.mu.Lock()
	on := !e.audioOn
	connected := e.pc != nil
	e.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	e.setAudio(on)
	return nil
}

func (e *Engine) ToggleVideo(context.Context) error {
	e.mu.Lock()
	on := !e.videoOn
	connected := e.pc != nil
	e.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	e.setVideo(on)
	return nil
}

func (e *Engine) setAudio(on bool) {
	e.mu.Lock()
	e.audioOn = on
	e.mu.Unlock()
	e.state.SetAudioOn(on)
	muted := !on
	e.send(envelope{Type: "mute", Kind: string(domain.MediaAudio), Muted: &muted})
}

func (e *Engine) setVideo(on bool) {
	e.mu.Lock()
	e.videoOn = on
	var local *domain.StreamHandle
	if on && e.video != nil {
		local = &domain.StreamHandle{ID: e.video.ID(), StreamID: e.video.StreamID(), Kind: domain.MediaVideo}
	}
	e.mu.Unlock()
	e.state.SetVideoOn(on, local)
}

func (e *Engine) SwitchCamera(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil {
		return ErrNotConnected
	}
	if len(e.cfg.Cameras) == 0 {
		return ErrUnknownCamera
	}
	e.camera = (e.camera + 1) % len(e.cfg.Cameras)
	log.Info().Str("module", "adapters.rtc").Str("camera", e.cfg.Cameras[e.camera]).Msg("camera switched")
	return nil
}

func (e *Engine) SelectCamera(_ context.Context, deviceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil {
		return ErrNotConnected
	}
	for i, id := range e.cfg.Cameras {
		if id == deviceID {
			e.camera = i
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCamera, deviceID)
}

// Camera returns the selected capture device id, if any.
func (e *Engine) Camera() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cfg.Cameras) == 0 {
		return ""
	}
	return e.cfg.Cameras[e.camera]
}

func (e *Engine) RestrictMedia(_ context.Context, memberID string, kind domain.MediaKind) error {
	return e.sendChecked(envelope{Type: "restrict", Member: memberID, Kind: string(kind)})
}

func (e *Engine) RemoveMember(_ context.Context, memberID string) error {
	return e.sendChecked(envelope{Type: "kick", Member: memberID})
}

func (e *Engine) sendChecked(env envelope) error {
	e.mu.Lock()
	sig := e.sig
	e.mu.Unlock()
	if sig == nil {
		return ErrNotConnected
	}
	return sig.sendJSON(env)
}

// DisconnectRoom leaves the room and releases every media resource.
func (e *Engine) DisconnectRoom(context.Context) error {
	e.mu.Lock()
	sig, pc, cancel := e.sig, e.pc, e.cancel
	e.sig, e.pc, e.cancel = nil, nil, nil
	e.audio, e.video = nil, nil
	e.audioOn, e.videoOn = false, false
	e.intent = domain.RoomIntent{}
	e.mu.Unlock()

	if sig == nil {
		return nil
	}
	_ = sig.sendJSON(envelope{Type: "leave"})
	sig.Close()
	if pc != nil {
		pc.Close()
	}
	if cancel != nil {
		cancel()
	}
	e.state.Reset()
	e.meter.Reset()
	log.Info().Str("module", "adapters.rtc").Msg("room disconnected")
	return nil
}

// WriteAudioSample feeds captured audio; dropped while the mic is off.
func (e *Engine) WriteAudioSample(s media.Sample) error {
	e.mu.Lock()
	track, on := e.audio, e.audioOn
	e.mu.Unlock()
	if track == nil || !on {
		return nil
	}
	return track.WriteSample(s)
}

// WriteVideoSample feeds captured video; dropped while the camera is off.
func (e *Engine) WriteVideoSample(s media.Sample) error {
	e.mu.Lock()
	track, on := e.video, e.videoOn
	e.mu.Unlock()
	if track == nil || !on {
		return nil
	}
	return track.WriteSample(s)
}
