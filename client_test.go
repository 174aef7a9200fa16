package msnp11go

import (
	"testing"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/msnp11/msnp11go/msnptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientEmail(t *testing.T) {
	c, _ := newTestClient(t, "me@example.com")
	assert.Equal(t, "me@example.com", c.Email())
}

func TestClientAddRemoveSwitchboard(t *testing.T) {
	c, _ := newTestClient(t, "me@example.com")
	serverSide, clientSide := msnptest.PipeConns()
	defer serverSide.Close()
	defer clientSide.Close()

	sb := newSwitchboard(clientSide, c)
	sb.setSessionID("5")
	c.addSwitchboard(sb)

	c.mu.Lock()
	_, ok := c.switchboards["5"]
	c.mu.Unlock()
	require.True(t, ok)

	c.removeSwitchboard("5")
	c.mu.Lock()
	_, ok = c.switchboards["5"]
	c.mu.Unlock()
	assert.False(t, ok)
}

func TestSetDisplayPictureReturnsMsnObjectDescriptor(t *testing.T) {
	c, _ := newTestClient(t, "me@example.com")
	obj := c.SetDisplayPicture([]byte("fake picture bytes"))

	assert.Equal(t, "me@example.com", obj.Creator)
	assert.Equal(t, len("fake picture bytes"), obj.Size)
	assert.Equal(t, []byte("fake picture bytes"), c.displayPictureBytes())
}

func TestClientEmitDropsOnFullBuffer(t *testing.T) {
	c := &Client{events: make(chan msnp.Event, 1)}
	c.emit(msnp.EventDisconnected{})
	c.emit(msnp.EventDisconnected{}) // buffer full, should be dropped silently

	assert.Len(t, c.events, 1)
}
