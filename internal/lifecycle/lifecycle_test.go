package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/containai/cai/internal/containerrt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	return logrus.NewEntry(l)
}

func TestOptionsValidateRequiresCredentialAcknowledgement(t *testing.T) {
	opts := Options{Credentials: CredentialsHost}
	assert.Error(t, opts.Validate())
	opts.AcknowledgeCredentialRisk = true
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidateRequiresDockerSocketAcknowledgement(t *testing.T) {
	opts := Options{MountDockerSocket: true}
	assert.Error(t, opts.Validate())
	opts.AcknowledgeDockerSocket = true
	assert.NoError(t, opts.Validate())
}

func TestResolveNameUsesOverride(t *testing.T) {
	assert.Equal(t, "my-name", ResolveName(Options{Name: "My Name"}))
}

func TestRunCreatesContainerWhenNoneExists(t *testing.T) {
	var ranSpec containerrt.RunSpec
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			return containerrt.Outcome[containerrt.ContainerState]{Unknown: nil, Err: &containerrt.ClassifiedError{Reason: containerrt.ReasonNoSuchObject}}
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{DefaultRuntime: "sysbox-runc"})
		},
		VolumeExistsFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		RunFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, useSandboxSubcommand bool) containerrt.Outcome[string] {
			ranSpec = spec
			return containerrt.OK("deadbeef")
		},
	}

	c := New(testLog(), adapter)
	code, err := c.Run(context.Background(), "", Options{
		Name:       "proj",
		Workspace:  "/ws",
		DataVolume: "cai-data",
		Image:      "ghcr.io/containai/claude:latest",
		Agent:      "claude",
		Detached:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "proj", ranSpec.Name)
	assert.Equal(t, OwnershipLabelValue, ranSpec.Labels[OwnershipLabelKey])
}

func TestRunFreshRecreatesAndForcesPull(t *testing.T) {
	existing := true
	var stopped, removed bool
	var ranSpec containerrt.RunSpec
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			if !existing {
				return containerrt.Outcome[containerrt.ContainerState]{Err: &containerrt.ClassifiedError{Reason: containerrt.ReasonNoSuchObject}}
			}
			return containerrt.OK(containerrt.ContainerState{
				Status: "running",
				Image:  "ghcr.io/containai/claude:latest",
				Labels: map[string]string{OwnershipLabelKey: OwnershipLabelValue},
			})
		},
		StopFunc: func(ctx context.Context, endpoint, name string, timeout time.Duration) containerrt.Outcome[bool] {
			stopped = true
			return containerrt.OK(true)
		},
		RemoveFunc: func(ctx context.Context, endpoint, name string, force bool) containerrt.Outcome[bool] {
			removed = true
			existing = false
			return containerrt.OK(true)
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{DefaultRuntime: "sysbox-runc"})
		},
		VolumeExistsFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		RunFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, useSandboxSubcommand bool) containerrt.Outcome[string] {
			ranSpec = spec
			return containerrt.OK("deadbeef")
		},
	}

	c := New(testLog(), adapter)
	code, err := c.Run(context.Background(), "", Options{
		Name: "proj", Workspace: "/ws", DataVolume: "cai-data",
		Image: "ghcr.io/containai/claude:latest", Agent: "claude",
		Fresh: true, Detached: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.True(t, stopped, "expected --fresh to stop the existing container")
	assert.True(t, removed, "expected --fresh to remove the existing container")
	assert.Equal(t, []string{"--pull", "always"}, ranSpec.ExtraArgs)
}

func TestRunHardFailsOnForeignContainer(t *testing.T) {
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			return containerrt.OK(containerrt.ContainerState{Status: "running", Image: "random:latest", Labels: map[string]string{}})
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{DefaultRuntime: "sysbox-runc"})
		},
	}
	c := New(testLog(), adapter)
	_, err := c.Run(context.Background(), "", Options{Name: "proj", Workspace: "/ws", DataVolume: "cai-data", Agent: "claude"})
	require.Error(t, err)
	var conflict *IdentityConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ownership", conflict.Field)
}

func TestRunHardFailsOnImageMismatch(t *testing.T) {
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			return containerrt.OK(containerrt.ContainerState{
				Status: "running",
				Image:  "ghcr.io/containai/claude:old",
				Labels: map[string]string{OwnershipLabelKey: OwnershipLabelValue},
			})
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{DefaultRuntime: "sysbox-runc"})
		},
	}
	c := New(testLog(), adapter)
	_, err := c.Run(context.Background(), "", Options{
		Name: "proj", Workspace: "/ws", DataVolume: "cai-data", Agent: "claude",
		Image: "ghcr.io/containai/claude:new",
	})
	require.Error(t, err)
	var conflict *IdentityConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, "image", conflict.Field)
}

func TestRunFailsClosedWhenSandboxFeatureDisabled(t *testing.T) {
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			return containerrt.Outcome[containerrt.ContainerState]{Err: &containerrt.ClassifiedError{Reason: containerrt.ReasonNoSuchObject}}
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureDisabledState)
		},
	}
	c := New(testLog(), adapter)
	_, err := c.Run(context.Background(), "", Options{Name: "proj", Workspace: "/ws", Agent: "claude"})
	assert.Error(t, err)
}

func TestRunSoftWarnsWhenIsolationUndetected(t *testing.T) {
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			return containerrt.Outcome[containerrt.ContainerState]{Err: &containerrt.ClassifiedError{Reason: containerrt.ReasonNoSuchObject}}
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{})
		},
		VolumeExistsFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		RunFunc: func(ctx context.Context, endpoint string, spec containerrt.RunSpec, useSandboxSubcommand bool) containerrt.Outcome[string] {
			return containerrt.OK("id")
		},
	}
	c := New(testLog(), adapter)
	code, err := c.Run(context.Background(), "", Options{Name: "proj", Workspace: "/ws", Agent: "claude", Detached: true})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRunHardFailsWhenIsolationRequiredAndUndetected(t *testing.T) {
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			return containerrt.Outcome[containerrt.ContainerState]{Err: &containerrt.ClassifiedError{Reason: containerrt.ReasonNoSuchObject}}
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{})
		},
	}
	c := New(testLog(), adapter)
	_, err := c.Run(context.Background(), "", Options{Name: "proj", Workspace: "/ws", Agent: "claude", RequireIsolation: true})
	assert.Error(t, err)
}

func TestRunStartsDetachedThenExecsWhenResumingWithAgentArgs(t *testing.T) {
	var started, execed bool
	var execArgv []string
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			return containerrt.OK(containerrt.ContainerState{
				Status: "exited",
				Image:  "ghcr.io/containai/claude:latest",
				Labels: map[string]string{OwnershipLabelKey: OwnershipLabelValue},
			})
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{DefaultRuntime: "sysbox-runc"})
		},
		StartFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[bool] {
			started = true
			return containerrt.OK(true)
		},
		StartAttachedFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[int] {
			t.Fatal("StartAttached must not be called when agent args need forwarding")
			return containerrt.OK(0)
		},
		ExecFunc: func(ctx context.Context, endpoint, name string, argv []string, interactive bool) containerrt.Outcome[int] {
			execed = true
			execArgv = argv
			return containerrt.OK(0)
		},
	}
	c := New(testLog(), adapter)
	code, err := c.Run(context.Background(), "", Options{
		Name: "proj", Workspace: "/ws", Agent: "claude",
		Image:     "ghcr.io/containai/claude:latest",
		AgentArgs: []string{"--resume"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.True(t, started, "expected a detached Start before Exec")
	assert.True(t, execed)
	assert.Equal(t, []string{"claude", "--resume"}, execArgv)
}

func TestStopCandidatesDeduplicatesByLabelAndImage(t *testing.T) {
	adapter := &containerrt.MockAdapter{
		ContainerInspectFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[containerrt.ContainerState] {
			switch name {
			case "owned":
				return containerrt.OK(containerrt.ContainerState{Image: "other:latest", Labels: map[string]string{OwnershipLabelKey: OwnershipLabelValue}})
			case "by-image":
				return containerrt.OK(containerrt.ContainerState{Image: "ghcr.io/containai/claude:latest", Labels: map[string]string{}})
			default:
				return containerrt.OK(containerrt.ContainerState{Image: "unrelated:latest", Labels: map[string]string{}})
			}
		},
	}
	c := New(testLog(), adapter)
	got, err := c.StopCandidates(context.Background(), "", []string{"ghcr.io/containai/claude:latest"}, []string{"owned", "by-image", "unrelated", "owned"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "by-image", got[0].Name)
	assert.Equal(t, "owned", got[1].Name)
}

func TestStopRemovesWhenRequested(t *testing.T) {
	removed := false
	adapter := &containerrt.MockAdapter{
		StopFunc: func(ctx context.Context, endpoint, name string, timeout time.Duration) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		RemoveFunc: func(ctx context.Context, endpoint, name string, force bool) containerrt.Outcome[bool] {
			removed = true
			return containerrt.OK(true)
		},
	}
	c := New(testLog(), adapter)
	require.NoError(t, c.Stop(context.Background(), "", "proj", true, false))
	assert.True(t, removed)
}
