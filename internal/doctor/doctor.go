// Package doctor implements the Doctor subsystem (spec §4.4): an ordered
// check suite that aggregates into a stable JSON report and an overall
// isolation-readiness gate.
package doctor

import (
	"context"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/platform"
	"github.com/sirupsen/logrus"
)

// Status is the per-check verdict.
type Status string

const (
	StatusOK    Status = "OK"
	StatusWarn  Status = "WARN"
	StatusError Status = "ERROR"
)

// Check is one line of the human-readable report.
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// DockerDesktopReport is the `docker_desktop` projection of §6's JSON shape.
type DockerDesktopReport struct {
	Version            *string `json:"version"`
	SandboxesAvailable *bool   `json:"sandboxes_available"`
	SandboxesEnabled   *bool   `json:"sandboxes_enabled"`
	ECIEnabled         *bool   `json:"eci_enabled"`
}

// SysboxReport is the `sysbox` projection: the hardened-runtime endpoint.
type SysboxReport struct {
	Available     *bool   `json:"available"`
	Runtime       *string `json:"runtime"`
	ContextExists *bool   `json:"context_exists"`
	ContextName   *string `json:"context_name"`
}

// PlatformReport is the `platform` projection.
type PlatformReport struct {
	Type    string  `json:"type"`
	Arch    string  `json:"arch"`
	Seccomp *string `json:"seccomp"`
}

// RecommendedAction is the summary's actionable next step.
type RecommendedAction string

const (
	ActionReady         RecommendedAction = "ready"
	ActionEnableECI     RecommendedAction = "enable_eci"
	ActionSetupRequired RecommendedAction = "setup_required"
)

// Summary is the `summary` projection: the gate decision.
type Summary struct {
	ECIEnabled         bool              `json:"eci_enabled"`
	SysboxOK           bool              `json:"sysbox_ok"`
	IsolationAvailable bool              `json:"isolation_available"`
	RecommendedAction  RecommendedAction `json:"recommended_action"`
}

// Report is the full stable JSON shape of §6.
type Report struct {
	DockerDesktop DockerDesktopReport `json:"docker_desktop"`
	Sysbox        SysboxReport        `json:"sysbox"`
	Platform      PlatformReport      `json:"platform"`
	Summary       Summary             `json:"summary"`
	Checks        []Check             `json:"checks"`
}

// Runner executes the Doctor check suite.
type Runner struct {
	log     *logrus.Entry
	adapter containerrt.Adapter
	probe   *platform.Probe

	hardenedContextName string
	minDesktopVersion   string
}

// NewRunner builds a Runner. hardenedContextName is the name Doctor looks
// for when checking whether the hardened endpoint is registered
// (CONTAINAI_SECURE_ENGINE_CONTEXT, or its built-in default).
func NewRunner(log *logrus.Entry, adapter containerrt.Adapter, probe *platform.Probe, hardenedContextName string) *Runner {
	return &Runner{log: log, adapter: adapter, probe: probe, hardenedContextName: hardenedContextName, minDesktopVersion: "4.34.0"}
}

// Run executes the checks in order and aggregates the result. The checks
// are not independent: daemon reachability is not probed when the CLI is
// absent, and the Desktop-version and sandbox checks are not probed when
// the daemon is unreachable; each of those is reported as "skipped". The
// hardened-endpoint and seccomp checks always run. endpoint is the ambient (non-hardened) endpoint Doctor checks the
// Desktop/sandbox path against; it may be empty when no runtime was
// detected at all.
func (r *Runner) Run(ctx context.Context, endpoint string) *Report {
	snap := r.probe.Detect()

	report := &Report{
		Platform: PlatformReport{
			Type: string(snap.Tag),
			Arch: snap.Arch,
		},
	}

	var checks []Check

	// 1. CLI present; daemon reachable.
	cliOK := r.checkCLIPresent(ctx, &checks)
	daemonOK := false
	if cliOK {
		daemonOK = r.checkDaemonReachable(ctx, endpoint, &checks)
	} else {
		checks = append(checks, Check{"daemon-reachable", StatusError, "skipped: CLI not present"})
	}

	// 2. Desktop variant + version.
	var desktopVersion string
	if daemonOK {
		desktopVersion = r.checkDesktopVersion(ctx, endpoint, &checks)
	} else {
		checks = append(checks, Check{"desktop-version", StatusWarn, "skipped: daemon unreachable"})
	}

	// 3. Sandbox subcommand + feature.
	var sandboxPresent bool
	var sandboxState containerrt.SandboxFeatureState
	if daemonOK {
		sandboxPresent = r.checkSandboxSubcommand(ctx, endpoint, &checks)
		sandboxState = r.checkSandboxFeature(ctx, endpoint, sandboxPresent, &checks)
	} else {
		checks = append(checks, Check{"sandbox-subcommand", StatusWarn, "skipped: daemon unreachable"})
		checks = append(checks, Check{"sandbox-feature", StatusWarn, "skipped: daemon unreachable"})
	}
	eciEnabled := sandboxState == containerrt.SandboxFeatureEnabledState || sandboxState == containerrt.SandboxFeatureEmptyState

	// 4. Enhanced-isolation gate: feature enabled but nothing isolated is a warn.
	if sandboxState == containerrt.SandboxFeatureEmptyState {
		checks = append(checks, Check{"enhanced-isolation", StatusWarn, "sandbox feature enabled, no sandboxes configured yet"})
	} else if eciEnabled {
		checks = append(checks, Check{"enhanced-isolation", StatusOK, "enhanced container isolation is enabled"})
	} else {
		checks = append(checks, Check{"enhanced-isolation", StatusWarn, "enhanced container isolation is not enabled"})
	}

	// 5. Hardened-runtime endpoint present and registered.
	sysboxOK, sysboxRuntime := r.checkHardenedEndpoint(ctx, &checks)

	// 6. Platform-specific: WSL2 PID-1 seccomp mode.
	if snap.Tag == platform.TagWSL2 {
		r.checkSeccomp(snap, &checks)
		mode := seccompLabel(snap.Seccomp)
		report.Platform.Seccomp = &mode
	}

	report.DockerDesktop = DockerDesktopReport{
		ECIEnabled: boolPtr(eciEnabled),
	}
	if desktopVersion != "" {
		report.DockerDesktop.Version = &desktopVersion
	}
	if daemonOK {
		report.DockerDesktop.SandboxesAvailable = boolPtr(sandboxPresent)
		report.DockerDesktop.SandboxesEnabled = boolPtr(eciEnabled)
	}

	report.Sysbox = SysboxReport{
		Available: boolPtr(sysboxOK),
	}
	if sysboxOK {
		report.Sysbox.Runtime = &sysboxRuntime
		report.Sysbox.ContextExists = boolPtr(true)
		report.Sysbox.ContextName = &r.hardenedContextName
	} else {
		report.Sysbox.ContextExists = boolPtr(false)
	}

	isolationAvailable := eciEnabled || sysboxOK
	action := ActionSetupRequired
	switch {
	case isolationAvailable:
		action = ActionReady
	case daemonOK && sandboxPresent && !eciEnabled:
		action = ActionEnableECI
	}

	report.Summary = Summary{
		ECIEnabled:         eciEnabled,
		SysboxOK:           sysboxOK,
		IsolationAvailable: isolationAvailable,
		RecommendedAction:  action,
	}
	report.Checks = checks
	return report
}

// Ready reports the exit-code gate: 0 iff at least one isolation path is
// ready.
func (r *Report) Ready() bool { return r.Summary.IsolationAvailable }

func (r *Runner) checkCLIPresent(ctx context.Context, checks *[]Check) bool {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutInfo)
	defer cancel()
	out := r.adapter.CLIPresent(cctx)
	if !out.IsOK() || !out.Value {
		*checks = append(*checks, Check{"cli-present", StatusError, describeFailure(out, "container CLI not found on PATH")})
		return false
	}
	*checks = append(*checks, Check{"cli-present", StatusOK, "container CLI present"})
	return true
}

func (r *Runner) checkDaemonReachable(ctx context.Context, endpoint string, checks *[]Check) bool {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutDaemonLiveness)
	defer cancel()
	out := r.adapter.DaemonReachable(cctx, endpoint)
	if !out.IsOK() || !out.Value {
		*checks = append(*checks, Check{"daemon-reachable", StatusError, describeFailure(out, "daemon not reachable")})
		return false
	}
	*checks = append(*checks, Check{"daemon-reachable", StatusOK, "daemon reachable"})
	return true
}

func (r *Runner) checkDesktopVersion(ctx context.Context, endpoint string, checks *[]Check) string {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutInfo)
	defer cancel()
	out := r.adapter.DesktopVersion(cctx, endpoint)
	if !out.IsOK() {
		*checks = append(*checks, Check{"desktop-version", StatusWarn, describeFailure(out, "could not determine desktop version")})
		return ""
	}
	if out.Value == "" {
		*checks = append(*checks, Check{"desktop-version", StatusWarn, "not running a desktop variant"})
		return ""
	}
	status := StatusOK
	detail := "desktop version " + out.Value
	if versionLess(out.Value, r.minDesktopVersion) {
		status = StatusWarn
		detail += " is below the minimum " + r.minDesktopVersion + " required for the sandbox path"
	}
	*checks = append(*checks, Check{"desktop-version", status, detail})
	return out.Value
}

func (r *Runner) checkSandboxSubcommand(ctx context.Context, endpoint string, checks *[]Check) bool {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutInfo)
	defer cancel()
	out := r.adapter.SandboxSubcommandPresent(cctx, endpoint)
	if !out.IsOK() || !out.Value {
		*checks = append(*checks, Check{"sandbox-subcommand", StatusWarn, describeFailure(out, "sandbox subcommand not registered")})
		return false
	}
	*checks = append(*checks, Check{"sandbox-subcommand", StatusOK, "sandbox subcommand present"})
	return true
}

func (r *Runner) checkSandboxFeature(ctx context.Context, endpoint string, present bool, checks *[]Check) containerrt.SandboxFeatureState {
	if !present {
		*checks = append(*checks, Check{"sandbox-feature", StatusWarn, "skipped: subcommand not present"})
		return containerrt.SandboxFeatureDisabledState
	}
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutInfo)
	defer cancel()
	out := r.adapter.SandboxFeatureEnabled(cctx, endpoint)
	if !out.IsOK() {
		*checks = append(*checks, Check{"sandbox-feature", StatusWarn, describeFailure(out, "could not determine sandbox feature state")})
		return containerrt.SandboxFeatureDisabledState
	}
	switch out.Value {
	case containerrt.SandboxFeatureEnabledState:
		*checks = append(*checks, Check{"sandbox-feature", StatusOK, "sandbox feature enabled"})
	case containerrt.SandboxFeatureEmptyState:
		*checks = append(*checks, Check{"sandbox-feature", StatusOK, "sandbox feature enabled, list empty"})
	case containerrt.SandboxFeaturePolicyBlocked:
		*checks = append(*checks, Check{"sandbox-feature", StatusError, "sandbox feature disabled by administrator policy"})
	default:
		*checks = append(*checks, Check{"sandbox-feature", StatusWarn, "sandbox feature disabled by user settings"})
	}
	return out.Value
}

func (r *Runner) checkHardenedEndpoint(ctx context.Context, checks *[]Check) (bool, string) {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutContextOrVolume)
	defer cancel()
	exists := r.adapter.ContextExists(cctx, "", r.hardenedContextName)
	if !exists.IsOK() || !exists.Value {
		*checks = append(*checks, Check{"hardened-endpoint", StatusError, describeFailure(exists, "hardened-runtime endpoint not registered")})
		return false, ""
	}
	info := r.adapter.ContextInspect(cctx, r.hardenedContextName)
	if !info.IsOK() {
		*checks = append(*checks, Check{"hardened-endpoint", StatusError, describeFailure(info, "hardened-runtime endpoint registered but unreachable")})
		return false, ""
	}
	daemon := r.adapter.DaemonReachable(cctx, info.Value.Endpoint)
	if !daemon.IsOK() || !daemon.Value {
		*checks = append(*checks, Check{"hardened-endpoint", StatusError, "hardened-runtime endpoint registered but daemon unreachable"})
		return false, ""
	}
	runtimeInfo := r.adapter.Info(cctx, info.Value.Endpoint)
	runtime := "sysbox-runc"
	if runtimeInfo.IsOK() && runtimeInfo.Value.DefaultRuntime != "" {
		runtime = runtimeInfo.Value.DefaultRuntime
	}
	*checks = append(*checks, Check{"hardened-endpoint", StatusOK, "hardened-runtime endpoint reachable at " + info.Value.Endpoint})
	return true, runtime
}

func (r *Runner) checkSeccomp(snap platform.Snapshot, checks *[]Check) {
	switch snap.Seccomp {
	case platform.SeccompFiltered:
		*checks = append(*checks, Check{"wsl2-seccomp", StatusWarn, "PID 1 reports seccomp mode 2 (filter); WSL userland may be outdated"})
	case platform.SeccompUnknown:
		*checks = append(*checks, Check{"wsl2-seccomp", StatusWarn, "could not determine PID 1 seccomp mode"})
	default:
		*checks = append(*checks, Check{"wsl2-seccomp", StatusOK, "PID 1 seccomp mode is compatible"})
	}
}

func describeFailure[T any](out containerrt.Outcome[T], fallback string) string {
	switch {
	case out.TimedOut:
		return fallback + " (timed out)"
	case out.Err != nil:
		return out.Err.Error()
	case out.Unknown != nil:
		return out.Unknown.Error()
	default:
		return fallback
	}
}

func boolPtr(b bool) *bool { return &b }

func seccompLabel(mode platform.SeccompMode) string {
	switch mode {
	case platform.SeccompDisabled:
		return "disabled"
	case platform.SeccompStrict:
		return "strict"
	case platform.SeccompFiltered:
		return "filter"
	default:
		return "unknown"
	}
}

// versionLess does a best-effort dotted-numeric comparison; a version it
// cannot parse is treated as not-less (never blocks the gate on a parse
// failure).
func versionLess(a, b string) bool {
	as, bs := splitVersion(a), splitVersion(b)
	if len(as) == 0 {
		return false
	}
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

func splitVersion(v string) []int {
	var parts []int
	cur := 0
	has := false
	for _, c := range v {
		if c >= '0' && c <= '9' {
			cur = cur*10 + int(c-'0')
			has = true
			continue
		}
		if has {
			parts = append(parts, cur)
		}
		cur, has = 0, false
	}
	if has {
		parts = append(parts, cur)
	}
	return parts
}
