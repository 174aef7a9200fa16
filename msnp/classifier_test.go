package msnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classify(t *testing.T, line string) (Event, bool) {
	t.Helper()
	cmd, err := ParseLine(line)
	require.NoError(t, err)
	return ClassifyNotification(cmd)
}

func TestClassifyGTCWithAndWithoutTrID(t *testing.T) {
	ev, ok := classify(t, "GTC A")
	require.True(t, ok)
	assert.Equal(t, EventGTC{Value: "A"}, ev)

	ev, ok = classify(t, "GTC 3 A")
	require.True(t, ok)
	assert.Equal(t, EventGTC{Value: "A"}, ev)
}

func TestClassifyPRPDisplayName(t *testing.T) {
	ev, ok := classify(t, "PRP MFN Bob%20Smith")
	require.True(t, ok)
	assert.Equal(t, EventDisplayName{DisplayName: "Bob Smith"}, ev)
}

func TestClassifyLSG(t *testing.T) {
	ev, ok := classify(t, "LSG Friends guid-1")
	require.True(t, ok)
	assert.Equal(t, EventGroup{Name: "Friends", GUID: "guid-1"}, ev)
}

func TestClassifyLSTForwardList(t *testing.T) {
	ev, ok := classify(t, "LST N=bob@example.com F=Bob C=guid-1 5 guid-a,guid-b")
	require.True(t, ok)
	fl, ok := ev.(EventContactInForwardList)
	require.True(t, ok)
	assert.Equal(t, "bob@example.com", fl.Email)
	assert.Equal(t, "Bob", fl.DisplayName)
	assert.Equal(t, "guid-1", fl.GUID)
	assert.Equal(t, []string{"guid-a", "guid-b"}, fl.Groups)
	assert.Contains(t, fl.Lists, ForwardList)
}

func TestClassifyLSTNonForwardList(t *testing.T) {
	ev, ok := classify(t, "LST N=bob@example.com F=Bob 2")
	require.True(t, ok)
	c, ok := ev.(EventContact)
	require.True(t, ok)
	assert.Equal(t, "bob@example.com", c.Email)
	assert.Contains(t, c.Lists, AllowList)
}

func TestClassifyNLNPresence(t *testing.T) {
	ev, ok := classify(t, "NLN NLN bob@example.com Bob 2789003324")
	require.True(t, ok)
	p, ok := ev.(EventPresenceUpdate)
	require.True(t, ok)
	assert.Equal(t, "bob@example.com", p.Email)
	assert.Equal(t, "Bob", p.DisplayName)
	assert.Equal(t, "NLN", p.Presence.Status)
}

func TestClassifyILNPresence(t *testing.T) {
	ev, ok := classify(t, "ILN 1 NLN bob@example.com Bob 2789003324")
	require.True(t, ok)
	p, ok := ev.(EventInitialPresenceUpdate)
	require.True(t, ok)
	assert.Equal(t, "bob@example.com", p.Email)
}

func TestClassifyFLN(t *testing.T) {
	ev, ok := classify(t, "FLN bob@example.com")
	require.True(t, ok)
	assert.Equal(t, EventContactOffline{Email: "bob@example.com"}, ev)
}

func TestClassifyADCAddedBy(t *testing.T) {
	ev, ok := classify(t, "ADC 0 RL N=bob@example.com F=Bob")
	require.True(t, ok)
	assert.Equal(t, EventAddedBy{Email: "bob@example.com", DisplayName: "Bob"}, ev)
}

func TestClassifyREMRemovedBy(t *testing.T) {
	ev, ok := classify(t, "REM 0 RL N=bob@example.com")
	require.True(t, ok)
	assert.Equal(t, EventRemovedBy{Email: "bob@example.com"}, ev)
}

func TestClassifyOUTVariants(t *testing.T) {
	ev, ok := classify(t, "OUT OTH")
	require.True(t, ok)
	assert.IsType(t, EventLoggedInAnotherDevice{}, ev)

	ev, ok = classify(t, "OUT")
	require.True(t, ok)
	assert.IsType(t, EventDisconnected{}, ev)
}

func TestClassifyUnknownVerbReturnsFalse(t *testing.T) {
	_, ok := classify(t, "XYZ 1 2 3")
	assert.False(t, ok)
}
