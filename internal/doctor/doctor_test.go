package doctor

import (
	"context"
	"io"
	"testing"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/platform"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func readyAdapter() *containerrt.MockAdapter {
	return &containerrt.MockAdapter{
		CLIPresentFunc: func(ctx context.Context) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		DaemonReachableFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		DesktopVersionFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[string] {
			return containerrt.OK("4.40.0")
		},
		SandboxSubcommandPresentFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		SandboxFeatureEnabledFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
			return containerrt.OK(containerrt.SandboxFeatureEnabledState)
		},
		ContextExistsFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[bool] {
			return containerrt.OK(true)
		},
		ContextInspectFunc: func(ctx context.Context, name string) containerrt.Outcome[containerrt.ContextInfo] {
			return containerrt.OK(containerrt.ContextInfo{Name: name, Endpoint: "unix:///run/cai/sysbox.sock"})
		},
		InfoFunc: func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.InfoProjection] {
			return containerrt.OK(containerrt.InfoProjection{DefaultRuntime: "sysbox-runc"})
		},
	}
}

func TestRunReadyWhenBothPathsAvailable(t *testing.T) {
	probe := platform.NewProbe(testLog())
	r := NewRunner(testLog(), readyAdapter(), probe, "cai-hardened")

	report := r.Run(context.Background(), "unix:///var/run/docker.sock")

	assert.True(t, report.Ready())
	assert.Equal(t, ActionReady, report.Summary.RecommendedAction)
	assert.True(t, *report.DockerDesktop.ECIEnabled)
	assert.True(t, *report.Sysbox.Available)
}

func TestRunSetupRequiredWhenNothingAvailable(t *testing.T) {
	adapter := &containerrt.MockAdapter{
		CLIPresentFunc: func(ctx context.Context) containerrt.Outcome[bool] {
			return containerrt.Failed[bool](containerrt.ReasonDaemonNotRunning, "cannot connect to the docker daemon", assertErr)
		},
		ContextExistsFunc: func(ctx context.Context, endpoint, name string) containerrt.Outcome[bool] {
			return containerrt.OK(false)
		},
	}
	probe := platform.NewProbe(testLog())
	r := NewRunner(testLog(), adapter, probe, "cai-hardened")

	report := r.Run(context.Background(), "")

	assert.False(t, report.Ready())
	assert.Equal(t, ActionSetupRequired, report.Summary.RecommendedAction)
}

func TestRunEmptySandboxListIsWarnNotError(t *testing.T) {
	adapter := readyAdapter()
	adapter.SandboxFeatureEnabledFunc = func(ctx context.Context, endpoint string) containerrt.Outcome[containerrt.SandboxFeatureState] {
		return containerrt.OK(containerrt.SandboxFeatureEmptyState)
	}
	probe := platform.NewProbe(testLog())
	r := NewRunner(testLog(), adapter, probe, "cai-hardened")

	report := r.Run(context.Background(), "unix:///var/run/docker.sock")

	// Empty sandbox list still counts toward ECI-enabled and the sysbox
	// endpoint remains ready, so the overall gate still passes.
	assert.True(t, report.Ready())
	var sawWarn bool
	for _, c := range report.Checks {
		if c.Name == "enhanced-isolation" && c.Status == StatusWarn {
			sawWarn = true
		}
	}
	assert.True(t, sawWarn)
}

var assertErr = &testStaticErr{"daemon not running"}

type testStaticErr struct{ msg string }

func (e *testStaticErr) Error() string { return e.msg }
