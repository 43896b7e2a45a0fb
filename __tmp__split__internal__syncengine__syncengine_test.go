package syncengine

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containai/cai/internal/containerrt"
	"github.com/klauspost/pgzip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveExcludesDedupesPreservingOrder(t *testing.T) {
	got := EffectiveExcludes([]string{"cache/", "logs/"}, []string{"logs/", "tmp/"}, false)
	assert.Equal(t, []string{"cache/", "logs/", "tmp/"}, got)
}

func TestEffectiveExcludesNoExcludesDisablesBoth(t *testing.T) {
	got := EffectiveExcludes([]string{"cache/"}, []string{"logs/"}, true)
	assert.Nil(t, got)
}

func TestEffectiveExcludesFiltersNewlines(t *testing.T) {
	got := EffectiveExcludes([]string{"cache/\n"}, nil, false)
	assert.Empty(t, got)
}

func TestSyncMapValidateRejectsBothDirAndFile(t *testing.T) {
	m := SyncMap{{Source: "a", Target: "b", Flags: "df"}}
	assert.Error(t, m.Validate())
}

func TestSyncMapValidateAcceptsDefault(t *testing.T) {
	assert.NoError(t, DefaultSyncMap.Validate())
}

func TestValidateArchiveRejectsAbsolutePath(t *testing.T) {
	path := writeTestArchive(t, map[string]string{"/etc/passwd": "x"})
	err := ValidateArchive(path)
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestValidateArchiveRejectsDotDot(t *testing.T) {
	path := writeTestArchive(t, map[string]string{"../evil": "x"})
	err := ValidateArchive(path)
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestValidateArchiveAcceptsSafeEntries(t *testing.T) {
	path := writeTestArchive(t, map[string]string{"claude/settings.json": "{}"})
	assert.NoError(t, ValidateArchive(path))
}

func TestRestoreRefusesUnsafeVolumeName(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	e := New(log, &containerrt.MockAdapter{}, "")
	err := e.Restore(context.Background(), "/dev/null", "../../etc")
	assert.Error(t, err)
}

func TestRestoreAbortsOnInvalidArchiveWithoutTouchingVolume(t *testing.T) {
	path := writeTestArchive(t, map[string]string{"/abs": "x"})
	called := false
	adapter := &containerrt.MockAdapter{
		RunForegroundFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, timeout time.Duration) containerrt.Outcome[containerrt.ExecResult] {
			called = true
			return containerrt.OK(containerrt.ExecResult{})
		},
	}
	log := logrus.NewEntry(logrus.New())
	e := New(log, adapter, "")

	err := e.Restore(context.Background(), path, "cai-data")

	assert.Error(t, err)
	assert.False(t, called, "disposable container must not run when archive validation fails")
}

func writeTestArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.tgz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := pgzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return path
}


