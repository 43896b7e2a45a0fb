package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVolumeFlagsParsesBindMounts(t *testing.T) {
	mounts := parseVolumeFlags([]string{"/host/path:/container/path", "/host/ro:/container/ro:ro"})
	assert.Equal(t, "bind", mounts[0].Type)
	assert.Equal(t, "/host/path", mounts[0].Source)
	assert.Equal(t, "/container/path", mounts[0].Destination)
	assert.False(t, mounts[0].ReadOnly)

	assert.True(t, mounts[1].ReadOnly)
}

func TestParseVolumeFlagsSkipsMalformedSpec(t *testing.T) {
	mounts := parseVolumeFlags([]string{"no-separator"})
	assert.Empty(t, mounts)
}
