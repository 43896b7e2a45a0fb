package exportengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containai/cai/internal/containerrt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

func TestResolveOutputPathEmptyUsesCWDTimestamped(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	got, err := ResolveOutputPath("", fixedTime)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cai-export-20260730-120000.tgz"), got)
}

func TestResolveOutputPathDirectoryUsesTimestampedWithin(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveOutputPath(dir, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cai-export-20260730-120000.tgz"), got)
}

func TestResolveOutputPathLiteralFile(t *testing.T) {
	dir := t.TempDir()
	literal := filepath.Join(dir, "backup.tgz")
	got, err := ResolveOutputPath(literal, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, literal, got)
}

func TestExcludeArgsAppliesBothForms(t *testing.T) {
	got := excludeArgs([]string{"cache/"})
	assert.Equal(t, []string{"--exclude=./cache/", "--exclude=cache/"}, got)
}

func TestExportRunsHelperWithUserAndExcludes(t *testing.T) {
	dir := t.TempDir()
	var gotSpec containerrt.RunSpec
	adapter := &containerrt.MockAdapter{
		RunForegroundFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, timeout time.Duration) containerrt.Outcome[containerrt.ExecResult] {
			gotSpec = spec
			return containerrt.OK(containerrt.ExecResult{ExitCode: 0})
		},
	}
	e := New(logrus.NewEntry(logrus.New()), adapter, "")
	e.now = func() time.Time { return fixedTime }

	path, err := e.Export(context.Background(), Options{
		DataVolume: "cai-data",
		OutputPath: dir,
		Excludes:   []string{"cache/"},
		UID:        1000,
		GID:        1000,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cai-export-20260730-120000.tgz"), path)
	assert.Equal(t, "1000:1000", gotSpec.User)
	assert.Contains(t, gotSpec.Command, "--exclude=cache/")
}

func TestExportFailsOnUnwritableOutputDir(t *testing.T) {
	e := New(logrus.NewEntry(logrus.New()), &containerrt.MockAdapter{}, "")
	e.now = func() time.Time { return fixedTime }
	_, err := e.Export(context.Background(), Options{DataVolume: "cai-data", OutputPath: "/nonexistent-dir-for-test/out.tgz"})
	assert.Error(t, err)
}


