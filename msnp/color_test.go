package msnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorToWireUnpadded(t *testing.T) {
	assert.Equal(t, "10000", ColorToWire(0x000001))
	assert.Equal(t, "0", ColorToWire(0x000000))
}

func TestColorToWireSwapsByteOrder(t *testing.T) {
	// 0xRRGGBB = 0x112233 -> BGR = 0x332211
	assert.Equal(t, "332211", ColorToWire(0x112233))
}

func TestColorFromWirePadsShortStrings(t *testing.T) {
	rgb, err := ColorFromWire("1")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x010000), rgb)
}

func TestColorRoundTrip(t *testing.T) {
	for _, rgb := range []uint32{0x000000, 0x0000ff, 0xff0000, 0x00ff00, 0x123456, 0xffffff} {
		wire := ColorToWire(rgb)
		back, err := ColorFromWire(wire)
		require.NoError(t, err)
		assert.Equal(t, rgb, back, "round trip for 0x%06x via wire %q", rgb, wire)
	}
}

func TestColorFromWireInvalid(t *testing.T) {
	_, err := ColorFromWire("zzzzzz")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
