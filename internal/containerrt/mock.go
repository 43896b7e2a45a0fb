package containerrt

import (
	"context"
	"time"
)

// MockAdapter implements Adapter with one overridable function field per
// method, following the teacher's mock-runtime convention: tests set only
// the funcs they exercise and leave the rest nil, which panics loudly if
// called unexpectedly.
type MockAdapter struct {
	EngineFunc                   func() Engine
	CLIPresentFunc               func(ctx context.Context) Outcome[bool]
	DaemonReachableFunc          func(ctx context.Context, endpoint string) Outcome[bool]
	DesktopVersionFunc           func(ctx context.Context, endpoint string) Outcome[string]
	SandboxSubcommandPresentFunc func(ctx context.Context, endpoint string) Outcome[bool]
	SandboxFeatureEnabledFunc    func(ctx context.Context, endpoint string) Outcome[SandboxFeatureState]
	InfoFunc                     func(ctx context.Context, endpoint string) Outcome[InfoProjection]
	VolumeExistsFunc             func(ctx context.Context, endpoint, name string) Outcome[bool]
	VolumeCreateFunc             func(ctx context.Context, endpoint, name string, labels map[string]string) Outcome[bool]
	VolumeInspectFunc            func(ctx context.Context, endpoint, name string) Outcome[VolumeInfo]
	ContextExistsFunc            func(ctx context.Context, endpoint, name string) Outcome[bool]
	ContextCreateFunc            func(ctx context.Context, name, dockerEndpoint string) Outcome[bool]
	ContextInspectFunc           func(ctx context.Context, name string) Outcome[ContextInfo]
	ContainerInspectFunc         func(ctx context.Context, endpoint, name string) Outcome[ContainerState]
	RunFunc                      func(ctx context.Context, endpoint string, spec RunSpec, useSandboxSubcommand bool) Outcome[string]
	RunForegroundFunc            func(ctx context.Context, endpoint string, spec RunSpec, timeout time.Duration) Outcome[ExecResult]
	ExecFunc                     func(ctx context.Context, endpoint, name string, argv []string, interactive bool) Outcome[int]
	StartAttachedFunc            func(ctx context.Context, endpoint, name string) Outcome[int]
	StartFunc                    func(ctx context.Context, endpoint, name string) Outcome[bool]
	StopFunc                     func(ctx context.Context, endpoint, name string, timeout time.Duration) Outcome[bool]
	RemoveFunc                   func(ctx context.Context, endpoint, name string, force bool) Outcome[bool]
}

var _ Adapter = (*MockAdapter)(nil)

func (m *MockAdapter) Engine() Engine { return m.EngineFunc() }

func (m *MockAdapter) CLIPresent(ctx context.Context) Outcome[bool] {
	return m.CLIPresentFunc(ctx)
}

func (m *MockAdapter) DaemonReachable(ctx context.Context, endpoint string) Outcome[bool] {
	return m.DaemonReachableFunc(ctx, endpoint)
}

func (m *MockAdapter) DesktopVersion(ctx context.Context, endpoint string) Outcome[string] {
	return m.DesktopVersionFunc(ctx, endpoint)
}

func (m *MockAdapter) SandboxSubcommandPresent(ctx context.Context, endpoint string) Outcome[bool] {
	return m.SandboxSubcommandPresentFunc(ctx, endpoint)
}

func (m *MockAdapter) SandboxFeatureEnabled(ctx context.Context, endpoint string) Outcome[SandboxFeatureState] {
	return m.SandboxFeatureEnabledFunc(ctx, endpoint)
}

func (m *MockAdapter) Info(ctx context.Context, endpoint string) Outcome[InfoProjection] {
	return m.InfoFunc(ctx, endpoint)
}

func (m *MockAdapter) VolumeExists(ctx context.Context, endpoint, name string) Outcome[bool] {
	return m.VolumeExistsFunc(ctx, endpoint, name)
}

func (m *MockAdapter) VolumeCreate(ctx context.Context, endpoint, name string, labels map[string]string) Outcome[bool] {
	return m.VolumeCreateFunc(ctx, endpoint, name, labels)
}

func (m *MockAdapter) VolumeInspect(ctx context.Context, endpoint, name string) Outcome[VolumeInfo] {
	return m.VolumeInspectFunc(ctx, endpoint, name)
}

func (m *MockAdapter) ContextExists(ctx context.Context, endpoint, name string) Outcome[bool] {
	return m.ContextExistsFunc(ctx, endpoint, name)
}

func (m *MockAdapter) ContextCreate(ctx context.Context, name, dockerEndpoint string) Outcome[bool] {
	return m.ContextCreateFunc(ctx, name, dockerEndpoint)
}

func (m *MockAdapter) ContextInspect(ctx context.Context, name string) Outcome[ContextInfo] {
	return m.ContextInspectFunc(ctx, name)
}

func (m *MockAdapter) ContainerInspect(ctx context.Context, endpoint, name string) Outcome[ContainerState] {
	return m.ContainerInspectFunc(ctx, endpoint, name)
}

func (m *MockAdapter) Run(ctx context.Context, endpoint string, spec RunSpec, useSandboxSubcommand bool) Outcome[string] {
	return m.RunFunc(ctx, endpoint, spec, useSandboxSubcommand)
}

func (m *MockAdapter) RunForeground(ctx context.Context, endpoint string, spec RunSpec, timeout time.Duration) Outcome[ExecResult] {
	return m.RunForegroundFunc(ctx, endpoint, spec, timeout)
}

func (m *MockAdapter) Exec(ctx context.Context, endpoint, name string, argv []string, interactive bool) Outcome[int] {
	return m.ExecFunc(ctx, endpoint, name, argv, interactive)
}

func (m *MockAdapter) StartAttached(ctx context.Context, endpoint, name string) Outcome[int] {
	return m.StartAttachedFunc(ctx, endpoint, name)
}

func (m *MockAdapter) Start(ctx context.Context, endpoint, name string) Outcome[bool] {
	return m.StartFunc(ctx, endpoint, name)
}

func (m *MockAdapter) Stop(ctx context.Context, endpoint, name string, timeout time.Duration) Outcome[bool] {
	return m.StopFunc(ctx, endpoint, name, timeout)
}

func (m *MockAdapter) Remove(ctx context.Context, endpoint, name string, force bool) Outcome[bool] {
	return m.RemoveFunc(ctx, endpoint, name, force)
}
