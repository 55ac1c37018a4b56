package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomcast/internal/chat"
)

func TestPresence_MultipleConnections(t *testing.T) {
	hub := newTestHub()
	phone := connect(t, hub, "alice")
	laptop := connect(t, hub, "alice")
	p := chat.NewPresence()

	assert.True(t, p.Register(phone), "first connection brings the user online")
	assert.False(t, p.Register(laptop))
	assert.False(t, p.Register(phone), "registering twice is a no-op")
	assert.True(t, p.IsOnline("alice"))
	assert.Len(t, p.ConnectionsFor("alice"), 2)
	assert.Equal(t, 2, p.Count())

	assert.False(t, p.Deregister(phone.ID))
	assert.True(t, p.IsOnline("alice"))

	assert.True(t, p.Deregister(laptop.ID), "last connection takes the user offline")
	assert.False(t, p.IsOnline("alice"))
	assert.Empty(t, p.ConnectionsFor("alice"))
	assert.Empty(t, p.OnlineUsers())
}

func TestPresence_DeregisterUnknown(t *testing.T) {
	p := chat.NewPresence()
	assert.False(t, p.Deregister("missing"))
}

func TestPresence_Lookup(t *testing.T) {
	hub := newTestHub()
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")
	p := chat.NewPresence()
	p.Register(alice)
	p.Register(bob)

	got, ok := p.Client(bob.ID)
	require.True(t, ok)
	assert.Same(t, bob, got)
	assert.Equal(t, []string{"alice", "bob"}, p.OnlineUsers())
	assert.Len(t, p.Clients("alice"), 1)
}
