package app

import (
	"errors"
	"testing"

	"github.com/containai/cai/internal/containerrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBootstrapsSubsystemsWithoutRuntime(t *testing.T) {
	workspace := t.TempDir()

	a, err := New(Options{
		Version:   "test-version",
		Commit:    "test-commit",
		BuildDate: "test-date",
		Workspace: workspace,
	})
	require.NoError(t, err)

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Log)
	assert.NotNil(t, a.OSCommand)
	assert.NotNil(t, a.Probe)
	assert.NotNil(t, a.Store)
}

func TestKnownErrorMapping(t *testing.T) {
	a := &App{}

	text, known := a.KnownError(errors.New("Got permission denied while trying to connect to the Docker daemon socket"))
	assert.True(t, known)
	assert.NotEmpty(t, text)

	text, known = a.KnownError(containerrt.ErrNoEndpoint)
	assert.True(t, known)
	assert.NotEmpty(t, text)

	text, known = a.KnownError(errors.New("some unrelated failure"))
	assert.False(t, known)
	assert.Empty(t, text)
}


