package provisioner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRuntimeCreatesAndMergesRuntimes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.json")

	require.NoError(t, registerRuntime(path))

	var cfg map[string]json.RawMessage
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &cfg))

	var runtimes map[string]runtimeEntry
	require.NoError(t, json.Unmarshal(cfg["runtimes"], &runtimes))
	assert.Contains(t, runtimes, hardenedRuntime)
}

func TestRegisterRuntimePreservesExistingFieldsAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.json")
	original := `{"log-level":"warn","runtimes":{"other-runtime":{"path":"/usr/bin/other"}}}`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	require.NoError(t, registerRuntime(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Contains(t, string(cfg["log-level"]), "warn")

	var runtimes map[string]runtimeEntry
	require.NoError(t, json.Unmarshal(cfg["runtimes"], &runtimes))
	assert.Contains(t, runtimes, "other-runtime")
	assert.Contains(t, runtimes, hardenedRuntime)

	matches, _ := filepath.Glob(path + ".bak.*")
	assert.Len(t, matches, 1)
}

func TestRegisterRuntimeRejectsMalformedExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	err := registerRuntime(path)
	assert.Error(t, err)
}

func TestUserNamespaceRemapActive(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "identity_uid_map")
	require.NoError(t, os.WriteFile(identity, []byte("         0          0 4294967295\n"), 0o644))
	active, err := UserNamespaceRemapActive(identity)
	require.NoError(t, err)
	assert.False(t, active)

	remapped := filepath.Join(dir, "remapped_uid_map")
	require.NoError(t, os.WriteFile(remapped, []byte("         0     100000      65536\n"), 0o644))
	active, err = UserNamespaceRemapActive(remapped)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestWaitForSocketTimesOutWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "no.sock")
	err := waitForSocket(context.Background(), missing, 10*time.Millisecond)
	assert.Error(t, err)
}


