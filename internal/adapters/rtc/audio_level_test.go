package rtc

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromExtension(t *testing.T) {
	cases := []struct {
		raw  []byte
		want int
	}{
		{[]byte{0x00}, 100},
		{[]byte{0x7F}, 0},
		{[]byte{0x80 | 64}, 50},
	}
	for _, tc := range cases {
		got, ok := levelFromExtension(tc.raw)
		require.True(t, ok)
		assert.Equal(t, tc.want, got)
	}
	_, ok := levelFromExtension(nil)
	assert.False(t, ok)
}

func TestLevelMeter_LoudestTrack(t *testing.T) {
	m := newLevelMeter()
	packet := func(level byte) *rtp.Packet {
		pkt := &rtp.Packet{Header: rtp.Header{Version: 2}}
		require.NoError(t, pkt.Header.SetExtension(1, []byte{level}))
		return pkt
	}

	got, ok := m.Observe("a", 1, packet(127))
	require.True(t, ok)
	assert.Equal(t, 0, got)

	got, _ = m.Observe("b", 1, packet(0))
	assert.Equal(t, 100, got)

	assert.Equal(t, 0, m.Forget("b"))

	_, ok = m.Observe("a", 2, packet(0))
	assert.False(t, ok, "extension id not present")
}
