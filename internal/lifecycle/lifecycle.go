package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/doctor"
	"github.com/sirupsen/logrus"
)

// CredentialsMode selects how host credentials reach the agent container.
type CredentialsMode string

const (
	CredentialsNone CredentialsMode = "none"
	CredentialsHost CredentialsMode = "host"
)

// DataMountPath is the canonical in-container mount point for the data
// volume (spec §3).
const DataMountPath = "/home/agent/.containai"

// WorkspaceMountPath is the canonical in-container mount point for the
// workspace.
const WorkspaceMountPath = "/workspace"

// IdentityConflictError reports a container that exists under the target
// name but fails the ownership, image, or volume equality check (spec §7,
// §8 scenario 5).
type IdentityConflictError struct {
	Field    string // "ownership", "image", "volume"
	Expected string
	Actual   string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("%s mismatch: expected %q, found %q (use --restart or --name to pick a different container)", e.Field, e.Expected, e.Actual)
}

// UsageError is a bad-flag/bad-input error, mapped to exit code 2.
type UsageError struct{ Msg string }

func (e *UsageError) Error() string { return e.Msg }

// Options carries everything one `run`/`shell`/`exec` invocation needs.
type Options struct {
	Name       string // explicit --name override; empty derives from workspace
	Workspace  string
	DataVolume string
	Image      string
	Agent      string
	AgentArgs  []string
	Shell      bool // true for `cai shell`: exec bash instead of the agent command

	Credentials               CredentialsMode
	AcknowledgeCredentialRisk bool
	MountDockerSocket         bool
	AcknowledgeDockerSocket   bool

	Restart  bool
	Fresh    bool
	Reset    bool
	Force    bool
	Detached bool
	WarnMode bool // accept a mismatched mounted volume instead of hard-failing

	ExtraEnv    map[string]string
	ExtraMounts []containerrt.MountSpec

	RequireIsolation bool
}

// Validate applies the argument-parsing safety gates (spec §4.8): credential
// forwarding and docker-socket mounting each require an explicit
// acknowledgement flag.
func (o Options) Validate() error {
	if o.Credentials == CredentialsHost && !o.AcknowledgeCredentialRisk {
		return &UsageError{Msg: "--credentials=host requires --acknowledge-credential-risk"}
	}
	if o.MountDockerSocket && !o.AcknowledgeDockerSocket {
		return &UsageError{Msg: "mounting the docker socket requires --please-root-my-host"}
	}
	return nil
}

// Controller drives the Lifecycle state machine for one container.
type Controller struct {
	log     *logrus.Entry
	adapter containerrt.Adapter
}

// New returns a Controller.
func New(log *logrus.Entry, adapter containerrt.Adapter) *Controller {
	return &Controller{log: log, adapter: adapter}
}

// ResolveName returns opts.Name if set, else the derived name for the
// workspace (spec §3/§8 scenario 1).
func ResolveName(opts Options) string {
	if opts.Name != "" {
		return Sanitize(opts.Name)
	}
	return DeriveName(opts.Workspace)
}

// Preflight performs the sandbox-feature/isolation gate of step 3 (spec
// §4.8): sandbox feature disabled is fail-closed; isolation undetected is
// soft unless RequireIsolation.
func (c *Controller) Preflight(ctx context.Context, endpoint string, opts Options) error {
	state := c.adapter.SandboxFeatureEnabled(ctx, endpoint)
	if !state.IsOK() {
		return fmt.Errorf("checking sandbox feature: %w", describeErr(state))
	}
	if state.Value == containerrt.SandboxFeatureDisabledState || state.Value == containerrt.SandboxFeaturePolicyBlocked {
		return fmt.Errorf("hardened sandbox feature is not available (%s); run `cai doctor` for remediation", state.Value)
	}

	info := c.adapter.Info(ctx, endpoint)
	isolated := info.IsOK() && isIsolated(info.Value)
	if !isolated {
		msg := "no isolation runtime detected for this endpoint"
		if opts.RequireIsolation {
			return fmt.Errorf("%s and CONTAINAI_REQUIRE_ISOLATION=1 is set", msg)
		}
		c.log.Warnf("%s; continuing without enforced isolation", msg)
	}
	return nil
}

func isIsolated(info containerrt.InfoProjection) bool {
	if info.DefaultRuntime == "sysbox-runc" {
		return true
	}
	for _, opt := range info.SecurityOptions {
		if opt == "name=userns" || opt == "userns" {
			return true
		}
	}
	return false
}

// Run executes the full entry-to-`run`/`shell` flow described in spec
// §4.8 steps 1-6, returning the exit code of the attached session (or 0
// when Detached).
func (c *Controller) Run(ctx context.Context, endpoint string, opts Options) (int, error) {
	if err := opts.Validate(); err != nil {
		return 2, err
	}

	name := ResolveName(opts)
	insp := c.adapter.ContainerInspect(ctx, endpoint, name)

	if opts.Restart || opts.Reset || opts.Fresh {
		if insp.IsOK() && insp.Value.Status != "" {
			if err := assertOwnership(insp.Value); err != nil {
				return 1, err
			}
			if err := c.stopAndRemove(ctx, endpoint, name); err != nil {
				return 1, err
			}
		}
		insp = c.adapter.ContainerInspect(ctx, endpoint, name)
	}

	if err := c.Preflight(ctx, endpoint, opts); err != nil {
		return 1, err
	}

	status := ""
	if insp.IsOK() {
		status = insp.Value.Status
	}

	switch status {
	case "running":
		if err := assertIdentity(insp.Value, opts); err != nil {
			return 1, err
		}
		return c.attachRunning(ctx, endpoint, name, opts)

	case "exited", "created":
		if err := assertIdentity(insp.Value, opts); err != nil {
			return 1, err
		}
		return c.startExisting(ctx, endpoint, name, opts)

	default:
		return c.createAndRun(ctx, endpoint, name, opts)
	}
}

func (c *Controller) attachRunning(ctx context.Context, endpoint, name string, opts Options) (int, error) {
	argv := agentArgv(opts)
	out := c.adapter.Exec(ctx, endpoint, name, argv, !opts.Detached)
	return execOutcome(out)
}

func (c *Controller) startExisting(ctx context.Context, endpoint, name string, opts Options) (int, error) {
	if opts.Shell || len(opts.AgentArgs) == 0 {
		out := c.adapter.StartAttached(ctx, endpoint, name)
		return execOutcome(out)
	}
	// The native start path does not forward arguments to the entrypoint
	// (spec §4.8 step 5): start detached, then exec with the agent args.
	// StartAttached here would block on the container's own entrypoint
	// instead, starving the exec below of a still-running container.
	startOut := c.adapter.Start(ctx, endpoint, name)
	if !startOut.IsOK() {
		return 1, fmt.Errorf("starting container: %w", describeErr(startOut))
	}
	return c.attachRunning(ctx, endpoint, name, opts)
}

func (c *Controller) createAndRun(ctx context.Context, endpoint, name string, opts Options) (int, error) {
	exists := c.adapter.VolumeExists(ctx, endpoint, opts.DataVolume)
	if !exists.IsOK() {
		return 1, fmt.Errorf("checking data volume: %w", describeErr(exists))
	}
	if !exists.Value {
		create := c.adapter.VolumeCreate(ctx, endpoint, opts.DataVolume, map[string]string{OwnershipLabelKey: OwnershipLabelValue})
		if !create.IsOK() {
			return 1, fmt.Errorf("creating data volume: %w", describeErr(create))
		}
	}

	spec := buildRunSpec(name, opts)
	runOut := c.adapter.Run(ctx, endpoint, spec, false)
	if !runOut.IsOK() {
		return 11, fmt.Errorf("starting container: %w", describeErr(runOut))
	}

	if opts.Detached {
		return 0, nil
	}
	return c.attachRunning(ctx, endpoint, name, opts)
}

func buildRunSpec(name string, opts Options) containerrt.RunSpec {
	labels := map[string]string{OwnershipLabelKey: OwnershipLabelValue}
	mounts := []containerrt.MountSpec{
		{Type: "bind", Source: opts.Workspace, Destination: WorkspaceMountPath},
		{Type: "volume", Source: opts.DataVolume, Destination: DataMountPath},
	}
	mounts = append(mounts, opts.ExtraMounts...)
	if opts.MountDockerSocket {
		mounts = append(mounts, containerrt.MountSpec{Type: "bind", Source: "/var/run/docker.sock", Destination: "/var/run/docker.sock"})
	}

	env := map[string]string{}
	for k, v := range opts.ExtraEnv {
		env[k] = v
	}

	tty := false
	if !opts.Detached {
		if w, h, isTerminal := attachTTY(); isTerminal {
			tty = true
			env["COLUMNS"] = strconv.Itoa(w)
			env["LINES"] = strconv.Itoa(h)
		}
	}

	var extraArgs []string
	if opts.Fresh {
		// --fresh recreates the container without reusing cached image
		// layers: force a fresh pull instead of whatever is already local.
		extraArgs = append(extraArgs, "--pull", "always")
	}

	return containerrt.RunSpec{
		Name:        name,
		Image:       opts.Image,
		Labels:      labels,
		Env:         env,
		Mounts:      mounts,
		WorkingDir:  WorkspaceMountPath,
		Interactive: !opts.Detached,
		TTY:         tty,
		Command:     agentArgv(opts),
		ExtraArgs:   extraArgs,
	}
}

func agentArgv(opts Options) []string {
	if opts.Shell {
		return []string{"bash"}
	}
	argv := append([]string{opts.Agent}, opts.AgentArgs...)
	return argv
}

// assertOwnership hard-fails when a named container exists but carries
// neither the ownership label nor an image under the ContainAI repository
// (spec §4.8 step 2, §7 Identity conflicts, §8 scenario 5).
func assertOwnership(state containerrt.ContainerState) error {
	if IsOwned(state.Labels, state.Image) {
		return nil
	}
	return &IdentityConflictError{Field: "ownership", Expected: OwnershipLabelValue, Actual: fmt.Sprintf("labels=%v image=%s", state.Labels, state.Image)}
}

// assertIdentity performs the full steps 4/5 ownership+image+volume check.
// Volume mismatch is a hard fail unless the caller opted into warn mode.
func assertIdentity(state containerrt.ContainerState, opts Options) error {
	if err := assertOwnership(state); err != nil {
		return err
	}
	if opts.Image != "" && state.Image != opts.Image {
		return &IdentityConflictError{Field: "image", Expected: opts.Image, Actual: state.Image}
	}
	if opts.DataVolume != "" {
		mounted := mountedVolume(state.Mounts, DataMountPath)
		if mounted != "" && mounted != opts.DataVolume {
			if opts.WarnMode {
				return nil
			}
			return &IdentityConflictError{Field: "volume", Expected: opts.DataVolume, Actual: mounted}
		}
	}
	return nil
}

func mountedVolume(mounts []containerrt.MountInfo, dest string) string {
	for _, m := range mounts {
		if m.Destination == dest {
			return m.Source
		}
	}
	return ""
}

func (c *Controller) stopAndRemove(ctx context.Context, endpoint, name string) error {
	stop := c.adapter.Stop(ctx, endpoint, name, containerrt.TimeoutContainerStart)
	if !stop.IsOK() {
		return fmt.Errorf("stopping container: %w", describeErr(stop))
	}
	rm := c.adapter.Remove(ctx, endpoint, name, true)
	if !rm.IsOK() {
		return fmt.Errorf("removing container: %w", describeErr(rm))
	}
	return nil
}

// StopCandidate is one container surfaced by StopCandidates.
type StopCandidate struct {
	Name  string
	Image string
}

// StopCandidates inspects each of the given names and keeps those that
// carry the ownership label or run one of knownImages, deduplicated by
// name, sorted for stable interactive listing (spec §4.8 stop). It does not
// list containers from the runtime: only the names passed in are
// considered.
func (c *Controller) StopCandidates(ctx context.Context, endpoint string, knownImages []string, names []string) ([]StopCandidate, error) {
	seen := map[string]StopCandidate{}
	for _, name := range names {
		insp := c.adapter.ContainerInspect(ctx, endpoint, name)
		if !insp.IsOK() {
			continue
		}
		owned := IsOwned(insp.Value.Labels, insp.Value.Image)
		imageMatch := false
		for _, img := range knownImages {
			if insp.Value.Image == img {
				imageMatch = true
				break
			}
		}
		if !owned && !imageMatch {
			continue
		}
		seen[name] = StopCandidate{Name: name, Image: insp.Value.Image}
	}

	out := make([]StopCandidate, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stop stops and optionally removes the named container.
func (c *Controller) Stop(ctx context.Context, endpoint, name string, remove, force bool) error {
	stop := c.adapter.Stop(ctx, endpoint, name, containerrt.TimeoutContainerStart)
	if !stop.IsOK() && !force {
		return fmt.Errorf("stopping %s: %w", name, describeErr(stop))
	}
	if !remove {
		return nil
	}
	rm := c.adapter.Remove(ctx, endpoint, name, force)
	if !rm.IsOK() {
		return fmt.Errorf("removing %s: %w", name, describeErr(rm))
	}
	return nil
}

// Status reports the resolved container's current state for `cai status`.
type Status struct {
	Name   string
	State  string
	Image  string
	Ready  bool
	Report *doctor.Report
}

// Inspect reports the current container state for `cai status`.
func (c *Controller) Inspect(ctx context.Context, endpoint, name string) (Status, error) {
	insp := c.adapter.ContainerInspect(ctx, endpoint, name)
	if !insp.IsOK() {
		return Status{Name: name, State: "none"}, nil
	}
	return Status{Name: name, State: insp.Value.Status, Image: insp.Value.Image}, nil
}

// execOutcome converts an Outcome[int] (an attached exec/start exit code)
// into the (exitCode, error) pair callers return up to the CLI layer.
func execOutcome(out containerrt.Outcome[int]) (int, error) {
	if out.IsOK() {
		return out.Value, nil
	}
	return 1, describeErr(out)
}

// describeErr renders any failed Outcome as a single error, regardless of
// which of the three failure shapes it carries.
func describeErr[T any](out containerrt.Outcome[T]) error {
	switch {
	case out.TimedOut:
		return &containerrt.TimeoutError{Operation: "container operation"}
	case out.Err != nil:
		return out.Err
	case out.Unknown != nil:
		return out.Unknown
	default:
		return nil
	}
}
