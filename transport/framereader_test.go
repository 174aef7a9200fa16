package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameReaderSingleLine(t *testing.T) {
	fr := NewFrameReader()
	defer fr.Close()

	cmds, err := fr.Feed([]byte("VER 1 MSNP11 CVR0\r\n"))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "VER", cmds[0].Verb)
	assert.Equal(t, []string{"1", "MSNP11", "CVR0"}, cmds[0].Args)
}

func TestFrameReaderArbitraryFragmentation(t *testing.T) {
	full := "USR 1 TWN I user@example.com\r\nCHG 2 NLN 0\r\n"
	fr := NewFrameReader()
	defer fr.Close()

	var got []string
	for i := 0; i < len(full); i++ {
		out, err := fr.Feed([]byte{full[i]})
		require.NoError(t, err)
		for _, c := range out {
			got = append(got, c.Verb)
		}
	}
	assert.Equal(t, []string{"USR", "CHG"}, got)
}

func TestFrameReaderPayloadVerb(t *testing.T) {
	fr := NewFrameReader()
	defer fr.Close()

	frame := "MSG 5 A 11\r\nhello world"
	cmds, err := fr.Feed([]byte(frame))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "MSG", cmds[0].Verb)
	assert.Equal(t, "hello world", string(cmds[0].Payload))
}

func TestFrameReaderPayloadSplitAcrossFeeds(t *testing.T) {
	fr := NewFrameReader()
	defer fr.Close()

	cmds, err := fr.Feed([]byte("MSG 5 A 11\r\nhello"))
	require.NoError(t, err)
	assert.Empty(t, cmds)

	cmds, err = fr.Feed([]byte(" world"))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "hello world", string(cmds[0].Payload))
}

func TestFrameReaderSkipsBareKeepAliveLine(t *testing.T) {
	fr := NewFrameReader()
	defer fr.Close()

	cmds, err := fr.Feed([]byte("\r\nVER 1 MSNP11 CVR0\r\n"))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "VER", cmds[0].Verb)
}

func TestFrameReaderMultipleCommandsInOneFeed(t *testing.T) {
	fr := NewFrameReader()
	defer fr.Close()

	cmds, err := fr.Feed([]byte("VER 1 MSNP11 CVR0\r\nCVR 2 0x0409 winnt\r\n"))
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "VER", cmds[0].Verb)
	assert.Equal(t, "CVR", cmds[1].Verb)
}
