package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestResolveWorkspaceOverrideWins(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	configPath := filepath.Join(root, ".containai", "config.toml")
	writeConfig(t, configPath, `
default_excludes = ["*.log"]

[agent]
default_agent = "claude"
data_volume = "cai-data"

[workspace."`+nested+`"]
data_volume = "project-data"
excludes = ["node_modules", "*.log"]
`)

	store, err := Load(testLogger(), nested, "", "")
	require.NoError(t, err)

	eff := store.Resolve(nested)
	assert.Equal(t, "project-data", eff.DataVolume)
	assert.Equal(t, []string{"*.log", "node_modules"}, eff.Excludes)
}

func TestResolveEqualDepthTieGoesToTextuallyFirstEntry(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	// Both keys clean to the same ancestor path and depth; the raw TOML
	// key text decides the tie (spec §8), not map iteration order.
	configPath := filepath.Join(root, ".containai", "config.toml")
	writeConfig(t, configPath, `
[workspace."`+nested+`/"]
data_volume = "b-data"

[workspace."`+nested+`"]
data_volume = "a-data"
`)

	store, err := Load(testLogger(), nested, "", "")
	require.NoError(t, err)

	eff := store.Resolve(nested)
	assert.Equal(t, "a-data", eff.DataVolume)
}

func TestResolveFallsBackToAgentSection(t *testing.T) {
	root := t.TempDir()
	configPath := filepath.Join(root, ".containai", "config.toml")
	writeConfig(t, configPath, `
[agent]
default_agent = "codex"
data_volume = "shared-data"
`)

	store, err := Load(testLogger(), root, "", "")
	require.NoError(t, err)

	eff := store.Resolve(root)
	assert.Equal(t, "codex", eff.DefaultAgent)
	assert.Equal(t, "shared-data", eff.DataVolume)
}

func TestResolveUsesBuiltinDefaultsWhenNoFileFound(t *testing.T) {
	root := t.TempDir()
	store, err := Load(testLogger(), root, "", filepath.Join(root, "xdg-empty"))
	require.NoError(t, err)

	eff := store.Resolve(root)
	assert.Equal(t, builtinDefaults.DefaultAgent, eff.DefaultAgent)
	assert.Equal(t, builtinDefaults.DataVolume, eff.DataVolume)
	assert.Empty(t, store.SourcePath())
}

func TestLoadStrictModeFailsOnParseError(t *testing.T) {
	root := t.TempDir()
	badPath := filepath.Join(root, "bad.toml")
	writeConfig(t, badPath, `this is not valid toml [[[`)

	_, err := Load(testLogger(), root, badPath, "")
	assert.Error(t, err)
}

func TestExcludesDropNewlineEntries(t *testing.T) {
	root := t.TempDir()
	configPath := filepath.Join(root, ".containai", "config.toml")
	writeConfig(t, configPath, "default_excludes = [\"good\", \"bad\\nline\"]\n")

	store, err := Load(testLogger(), root, "", "")
	require.NoError(t, err)

	eff := store.Resolve(root)
	assert.Equal(t, []string{"good"}, eff.Excludes)
}

func TestDiscoveryStopsAtGitRoot(t *testing.T) {
	root := t.TempDir()
	outerConfig := filepath.Join(root, ".containai", "config.toml")
	writeConfig(t, outerConfig, "[agent]\ndefault_agent = \"outer\"\n")

	repo := filepath.Join(root, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))
	nested := filepath.Join(repo, "src")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	store, err := Load(testLogger(), nested, "", "")
	require.NoError(t, err)
	assert.Empty(t, store.SourcePath())
}
