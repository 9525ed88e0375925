package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder("")
	assert.Equal(t, "command/alice/lamp-1", b.Build("command", "alice", "lamp-1"))
	assert.Equal(t, "response/+/+", b.BuildWildcard("response"))

	rooted := NewBuilder("/voicelink/")
	assert.Equal(t, "voicelink/state/bob/plug", rooted.Build("state", "bob", "plug"))
	assert.Equal(t, "$share/bridge/voicelink/state/+/+", rooted.Shared("bridge").BuildWildcard("state"))
}

func TestBuilder_Parse(t *testing.T) {
	b := NewBuilder("")

	addr, err := b.Parse("response/alice/lamp-1")
	require.NoError(t, err)
	assert.Equal(t, Address{Segment: "response", Username: "alice", EndpointID: "lamp-1"}, addr)

	_, err = b.Parse("response/alice")
	assert.Error(t, err)

	_, err = b.Parse("response//lamp-1")
	assert.Error(t, err)

	rooted := NewBuilder("vl")
	addr, err = rooted.Parse("vl/state/bob/plug")
	require.NoError(t, err)
	assert.Equal(t, "state", addr.Segment)

	_, err = rooted.Parse("other/state/bob/plug")
	assert.Error(t, err)
}
