package lifecycle

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLowercasesAndCollapsesDashes(t *testing.T) {
	assert.Equal(t, "myapp-repo-feature-x-y", Sanitize("MyApp-Repo-feature/x.y"))
}

func TestSanitizeTrimsLeadingTrailingDash(t *testing.T) {
	assert.Equal(t, "a", Sanitize("---a---"))
}

func TestSanitizeEmptyFallsBackToFixedName(t *testing.T) {
	assert.Equal(t, fallbackName, Sanitize("..."))
}

func TestSanitizeTruncatesTo63(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	got := Sanitize(long)
	assert.LessOrEqual(t, len(got), 63)
}

func TestDeriveNameFromGitBranch(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "MyApp-Repo")
	require.NoError(t, os.MkdirAll(repo, 0o755))
	runGit(t, repo, "init", "-q")
	runGit(t, repo, "config", "user.email", "t@example.com")
	runGit(t, repo, "config", "user.name", "t")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "f"), []byte("x"), 0o644))
	runGit(t, repo, "add", "f")
	runGit(t, repo, "commit", "-q", "-m", "init")
	runGit(t, repo, "checkout", "-q", "-b", "feature/x.y")

	assert.Equal(t, "myapp-repo-feature-x-y", DeriveName(repo))
}

func TestDeriveNameFallsBackToWorkspaceBasename(t *testing.T) {
	dir := t.TempDir()
	workspace := filepath.Join(dir, "Some Workspace")
	require.NoError(t, os.MkdirAll(workspace, 0o755))
	assert.Equal(t, "some-workspace", DeriveName(workspace))
}

func TestIsOwnedByLabel(t *testing.T) {
	assert.True(t, IsOwned(map[string]string{OwnershipLabelKey: OwnershipLabelValue}, "unrelated:latest"))
}

func TestIsOwnedByLegacyLabel(t *testing.T) {
	assert.True(t, IsOwned(map[string]string{OwnershipLabelKey: "devcontainer-sandbox"}, "unrelated:latest"))
}

func TestIsOwnedByImagePrefix(t *testing.T) {
	assert.True(t, IsOwned(nil, "ghcr.io/containai/claude:latest"))
}

func TestIsNotOwned(t *testing.T) {
	assert.False(t, IsOwned(map[string]string{"other": "label"}, "random/image:latest"))
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
}


