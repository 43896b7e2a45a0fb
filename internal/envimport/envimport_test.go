package envimport

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containai/cai/internal/config"
	"github.com/containai/cai/internal/containerrt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("FOO_BAR"))
	assert.True(t, ValidName("_FOO"))
	assert.False(t, ValidName("1FOO"))
	assert.False(t, ValidName("FOO-BAR"))
	assert.False(t, ValidName(""))
}

func TestAllowlistDedupesAndFiltersInvalid(t *testing.T) {
	got := Allowlist([]string{"FOO", "FOO", "1BAD", "BAR"})
	assert.Equal(t, []string{"FOO", "BAR"}, got)
}

func TestImportNoopsWhenAllowlistEmpty(t *testing.T) {
	im := New(logrus.NewEntry(logrus.New()), &containerrt.MockAdapter{}, "")
	res, err := im.Import(context.Background(), Options{Env: config.EnvSection{}})
	require.NoError(t, err)
	assert.Empty(t, res.Names)
}

func TestImportDryRunListsNamesOnlyAndDoesNotWrite(t *testing.T) {
	t.Setenv("CAI_TEST_TOKEN", "super-secret-value")
	called := false
	adapter := &containerrt.MockAdapter{
		RunForegroundFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, timeout time.Duration) containerrt.Outcome[containerrt.ExecResult] {
			called = true
			return containerrt.OK(containerrt.ExecResult{})
		},
	}
	im := New(logrus.NewEntry(logrus.New()), adapter, "")
	res, err := im.Import(context.Background(), Options{
		Env:    config.EnvSection{Import: []string{"CAI_TEST_TOKEN"}, FromHost: true},
		DryRun: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CAI_TEST_TOKEN"}, res.Names)
	assert.False(t, called)
}

func TestReadWorkspaceEnvFileParsesAndFilters(t *testing.T) {
	dir := t.TempDir()
	content := "# a comment\n\nexport FOO=bar\nBAZ=\"quoted value\"\nBAD-NAME=x\nQUX='single'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o644))

	values, err := readWorkspaceEnvFile(dir, ".env")
	require.NoError(t, err)
	assert.Equal(t, "bar", values["FOO"])
	assert.Equal(t, "quoted value", values["BAZ"])
	assert.Equal(t, "single", values["QUX"])
	_, hasBad := values["BAD-NAME"]
	assert.False(t, hasBad)
}

func TestReadWorkspaceEnvFileRejectsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	_, err := readWorkspaceEnvFile(dir, "/etc/passwd")
	assert.Error(t, err)
}

func TestReadWorkspaceEnvFileRejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	_, err := readWorkspaceEnvFile(dir, "../outside.env")
	assert.Error(t, err)
}

func TestWriteEnvFileDecodesPayloadFromEnvVarNotStdin(t *testing.T) {
	var gotSpec containerrt.RunSpec
	adapter := &containerrt.MockAdapter{
		RunForegroundFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, timeout time.Duration) containerrt.Outcome[containerrt.ExecResult] {
			gotSpec = spec
			return containerrt.OK(containerrt.ExecResult{ExitCode: 0})
		},
	}
	im := New(logrus.NewEntry(logrus.New()), adapter, "")
	err := im.writeEnvFile(context.Background(), "cai-data", map[string]string{"FOO": "bar"})
	require.NoError(t, err)

	payload, ok := gotSpec.Env["CAI_ENV_PAYLOAD"]
	require.True(t, ok, "expected CAI_ENV_PAYLOAD to be set on the helper container")
	assert.NotEmpty(t, payload)
	require.Len(t, gotSpec.Command, 2)
	assert.Contains(t, gotSpec.Command[1], "CAI_ENV_PAYLOAD")
	assert.Contains(t, gotSpec.Command[1], "base64 -d")
}

func TestHostOverridesFileOnCollision(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SHARED=from-file\n"), 0o644))
	t.Setenv("SHARED", "from-host")

	var gotSpec containerrt.RunSpec
	adapter := &containerrt.MockAdapter{
		RunForegroundFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, timeout time.Duration) containerrt.Outcome[containerrt.ExecResult] {
			gotSpec = spec
			return containerrt.OK(containerrt.ExecResult{ExitCode: 0})
		},
	}
	im := New(logrus.NewEntry(logrus.New()), adapter, "")
	res, err := im.Import(context.Background(), Options{
		Workspace:  dir,
		DataVolume: "cai-data",
		Env:        config.EnvSection{Import: []string{"SHARED"}, FromHost: true, EnvFile: ".env"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SHARED"}, res.Names)

	payload, err := base64.StdEncoding.DecodeString(gotSpec.Env["CAI_ENV_PAYLOAD"])
	require.NoError(t, err)
	assert.Equal(t, "SHARED=from-host\n", string(payload))
}
