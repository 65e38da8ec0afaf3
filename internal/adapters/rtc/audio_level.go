package rtc

import (
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// levelFromExtension maps an RFC 6464 level (0 loudest, 127 silent, in -dBov)
// onto 0..100.
func levelFromExtension(raw []byte) (int, bool) {
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(raw); err != nil {
		return 0, false
	}
	level := int(ext.Level)
	if level > 127 {
		level = 127
	}
	return 100 - level*100/127, true
}

// audioLevelID finds the negotiated extension id on a receiver.
func audioLevelID(receiver *webrtc.RTPReceiver) (uint8, bool) {
	if receiver == nil {
		return 0, false
	}
	for _, ext := range receiver.GetParameters().HeaderExtensions {
		if ext.URI == audioLevelURI {
			return uint8(ext.ID), true
		}
	}
	return 0, false
}

// levelMeter keeps the latest level per remote audio track and reports the
// loudest.
type levelMeter struct {
	mu     sync.Mutex
	levels map[string]int
}

func newLevelMeter() *levelMeter {
	return &levelMeter{levels: make(map[string]int)}
}

// Observe records pkt's level for track and returns the new loudest level.
func (m *levelMeter) Observe(track string, id uint8, pkt *rtp.Packet) (int, bool) {
	raw := pkt.GetExtension(id)
	if raw == nil {
		return 0, false
	}
	level, ok := levelFromExtension(raw)
	if !ok {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[track] = level
	return m.maxLocked(), true
}

func (m *levelMeter) Forget(track string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.levels, track)
	return m.maxLocked()
}

func (m *levelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = make(map[string]int)
}

func (m *levelMeter) maxLocked() int {
	loudest := 0
	for _, l := range m.levels {
		if l > loudest {
			loudest = l
		}
	}
	return loudest
}
