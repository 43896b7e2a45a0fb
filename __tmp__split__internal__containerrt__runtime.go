package containerrt

import (
	"context"
	"time"
)

// Timeout classes from spec §5. Each RuntimeAdapter call is bounded by the
// timeout appropriate to its operation class; callers never pass an
// unbounded context.
const (
	TimeoutInfo            = 5 * time.Second
	TimeoutDaemonLiveness  = 5 * time.Second
	TimeoutContextOrVolume = 10 * time.Second
	TimeoutContainerStart  = 30 * time.Second
	TimeoutSocketAppear    = 30 * time.Second
	TimeoutVMBoot          = 120 * time.Second
)

// Adapter is the uniform, timeout-bounded wrapper over the container CLI
// described in spec §4.1. Every method is bounded by the timeout appropriate
// to its operation class and, when an Endpoint is set, scopes that one call
// to it without leaking ambient endpoint environment to the rest of the
// process.
type Adapter interface {
	// Engine identifies which CLI binary (docker or podman) this adapter
	// drives.
	Engine() Engine

	// CLIPresent reports whether the underlying binary is on PATH.
	CLIPresent(ctx context.Context) Outcome[bool]

	// DaemonReachable performs a bounded liveness probe ("info"/"version").
	DaemonReachable(ctx context.Context, endpoint string) Outcome[bool]

	// DesktopVersion extracts the Desktop/Machine version string when
	// available, empty string otherwise.
	DesktopVersion(ctx context.Context, endpoint string) Outcome[string]

	// SandboxSubcommandPresent reports whether the runtime's hardened
	// sandbox subcommand (e.g. Docker's "docker sandbox") is registered.
	SandboxSubcommandPresent(ctx context.Context, endpoint string) Outcome[bool]

	// SandboxFeatureEnabled distinguishes "no sandboxes configured" from
	// "feature disabled" from "blocked by policy", per §4.1.
	SandboxFeatureEnabled(ctx context.Context, endpoint string) Outcome[SandboxFeatureState]

	// Info returns the default-runtime/rootless/security-options
	// projection.
	Info(ctx context.Context, endpoint string) Outcome[InfoProjection]

	// VolumeExists, VolumeCreate, VolumeInspect
	VolumeExists(ctx context.Context, endpoint, name string) Outcome[bool]
	VolumeCreate(ctx context.Context, endpoint, name string, labels map[string]string) Outcome[bool]
	VolumeInspect(ctx context.Context, endpoint, name string) Outcome[VolumeInfo]

	// ContextExists, ContextCreate, ContextInspect
	ContextExists(ctx context.Context, endpoint, name string) Outcome[bool]
	ContextCreate(ctx context.Context, name, dockerEndpoint string) Outcome[bool]
	ContextInspect(ctx context.Context, name string) Outcome[ContextInfo]

	// ContainerInspect returns state, labels, image and mounts for a
	// named container.
	ContainerInspect(ctx context.Context, endpoint, name string) Outcome[ContainerState]

	// Run creates and starts a new container. useSandboxSubcommand selects
	// the hardened sandbox subcommand variant over a direct `run`.
	Run(ctx context.Context, endpoint string, spec RunSpec, useSandboxSubcommand bool) Outcome[string]

	// RunForeground runs spec as a one-shot, non-detached container (the
	// disposable helper container pattern of spec §4.6/§4.7/§4.9),
	// capturing its full stdout/stderr and exit code. The container is
	// expected to carry AutoRemove; the caller owns the timeout via ctx.
	RunForeground(ctx context.Context, endpoint string, spec RunSpec, timeout time.Duration) Outcome[ExecResult]

	// Exec runs a command inside a running container, attached to the
	// calling process's stdio.
	Exec(ctx context.Context, endpoint, name string, argv []string, interactive bool) Outcome[int]

	// StartAttached starts a stopped container attached ("start -ai").
	StartAttached(ctx context.Context, endpoint, name string) Outcome[int]

	// Stop stops a running container.
	Stop(ctx context.Context, endpoint, name string, timeout time.Duration) Outcome[bool]

	// Remove removes a container.
	Remove(ctx context.Context, endpoint, name string, force bool) Outcome[bool]
}

// SandboxFeatureState distinguishes the three ways a hardened sandbox
// feature can be unavailable from the one way it can be available.
type SandboxFeatureState string

const (
	SandboxFeatureEnabledState  SandboxFeatureState = "enabled"
	SandboxFeatureEmptyState    SandboxFeatureState = "empty"    // present, configured, no entries
	SandboxFeatureDisabledState SandboxFeatureState = "disabled" // present, turned off
	SandboxFeaturePolicyBlocked SandboxFeatureState = "policy-blocked"
)

// RunSpec describes the parameters of a container creation/start call.
// Only the fields Lifecycle actually needs are modeled; this is not a
// general-purpose container spec.
type RunSpec struct {
	Name        string
	Image       string
	Hostname    string
	Labels      map[string]string
	Env         map[string]string
	Mounts      []MountSpec
	WorkingDir  string
	User        string
	Entrypoint  []string
	Command     []string
	Interactive bool
	TTY         bool
	AutoRemove  bool
	ExtraArgs   []string
}

// MountSpec describes one bind or volume mount to attach at container
// creation.
type MountSpec struct {
	Type        string // "bind" or "volume"
	Source      string
	Destination string
	ReadOnly    bool
}


