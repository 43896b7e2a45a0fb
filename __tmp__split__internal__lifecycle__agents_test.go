package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveImageKnownAgentDefaultTag(t *testing.T) {
	img, err := ResolveImage("claude", "")
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/containai/claude:latest", img)
}

func TestResolveImageUnknownAgentListsValidNames(t *testing.T) {
	_, err := ResolveImage("bogus", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude")
}


