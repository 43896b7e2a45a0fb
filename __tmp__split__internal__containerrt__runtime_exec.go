package containerrt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/containai/cai/internal/platform"
	"github.com/sirupsen/logrus"
)

// asExitError extracts a process exit code from a non-timeout failure, so
// RunForeground can distinguish "ran and exited nonzero" (still an OK
// Outcome carrying the code) from a genuine launch/classification failure.
func asExitError(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

// ExecAdapter implements Adapter by shelling out to the docker or podman
// CLI binary, the way spec §4.1 describes the RuntimeAdapter: a wrapper
// over the container CLI, not a REST client.
type ExecAdapter struct {
	log    *logrus.Entry
	os     *platform.OSCommand
	engine Engine
	binary string
}

// NewExecAdapter returns an Adapter driving the given engine's CLI binary.
func NewExecAdapter(log *logrus.Entry, os *platform.OSCommand, engine Engine) *ExecAdapter {
	binary := string(engine)
	return &ExecAdapter{log: log, os: os, engine: engine, binary: binary}
}

func (a *ExecAdapter) Engine() Engine { return a.engine }

func hostEnv(engine Engine, endpoint string) []string {
	if endpoint == "" {
		return nil
	}
	if engine == EnginePodman {
		return []string{"CONTAINER_HOST=" + endpoint}
	}
	return []string{"DOCKER_HOST=" + endpoint}
}

func (a *ExecAdapter) run(ctx context.Context, timeout time.Duration, endpoint string, args ...string) (string, string, error) {
	return a.os.RunWithTimeoutEnv(ctx, timeout, hostEnv(a.engine, endpoint), a.binary, args...)
}

func classify(stdout, stderr string, err error) Outcome[string] {
	if err == context.DeadlineExceeded {
		return Timeout[string]()
	}
	if err != nil {
		reason := Classify(stderr)
		if reason == ReasonUnknown {
			return Lost[string](fmt.Errorf("%s: %w", strings.TrimSpace(stderr), err))
		}
		return Failed[string](reason, stderr, err)
	}
	return OK(stdout)
}

func (a *ExecAdapter) CLIPresent(ctx context.Context) Outcome[bool] {
	stdout, stderr, err := a.run(ctx, TimeoutInfo, "", "--version")
	o := classify(stdout, stderr, err)
	return rebool(o)
}

func (a *ExecAdapter) DaemonReachable(ctx context.Context, endpoint string) Outcome[bool] {
	stdout, stderr, err := a.run(ctx, TimeoutDaemonLiveness, endpoint, "info", "--format", "{{.ServerVersion}}")
	o := classify(stdout, stderr, err)
	return rebool(o)
}

func (a *ExecAdapter) DesktopVersion(ctx context.Context, endpoint string) Outcome[string] {
	format := "{{.ClientInfo.Context}}"
	if a.engine == EnginePodman {
		format = "{{.Version.Version}}"
	}
	stdout, stderr, err := a.run(ctx, TimeoutInfo, endpoint, "version", "--format", format)
	return trimOutcome(classify(stdout, stderr, err))
}

func (a *ExecAdapter) SandboxSubcommandPresent(ctx context.Context, endpoint string) Outcome[bool] {
	stdout, stderr, err := a.run(ctx, TimeoutInfo, endpoint, "sandbox", "--help")
	o := classify(stdout, stderr, err)
	if o.Err != nil && o.Err.Reason == ReasonNotRecognizedSubcmd {
		return OK(false)
	}
	return rebool(o)
}

func (a *ExecAdapter) SandboxFeatureEnabled(ctx context.Context, endpoint string) Outcome[SandboxFeatureState] {
	stdout, stderr, err := a.run(ctx, TimeoutInfo, endpoint, "sandbox", "ls", "--format", "{{.Name}}")
	o := classify(stdout, stderr, err)
	if o.TimedOut {
		return Timeout[SandboxFeatureState]()
	}
	if o.Unknown != nil {
		return Lost[SandboxFeatureState](o.Unknown)
	}
	if o.Err != nil {
		switch o.Err.Reason {
		case ReasonPolicyDisabled:
			return OK(SandboxFeaturePolicyBlocked)
		case ReasonNotRecognizedSubcmd:
			return OK(SandboxFeatureDisabledState)
		default:
			return Failed[SandboxFeatureState](o.Err.Reason, o.Err.Stderr, o.Err.Err)
		}
	}
	if strings.TrimSpace(o.Value) == "" {
		return OK(SandboxFeatureEmptyState)
	}
	return OK(SandboxFeatureEnabledState)
}

func (a *ExecAdapter) Info(ctx context.Context, endpoint string) Outcome[InfoProjection] {
	stdout, stderr, err := a.run(ctx, TimeoutInfo, endpoint, "info", "--format", "{{json .}}")
	o := classify(stdout, stderr, err)
	if !o.IsOK() {
		return carryError[InfoProjection](o)
	}

	var raw struct {
		DefaultRuntime string `json:"DefaultRuntime"`
		SecurityOptions []string `json:"SecurityOptions"`
		Host            struct {
			Security struct {
				Rootless bool `json:"rootless"`
			} `json:"security"`
		} `json:"host"`
	}
	if err := json.Unmarshal([]byte(o.Value), &raw); err != nil {
		return Lost[InfoProjection](err)
	}
	return OK(InfoProjection{
		DefaultRuntime:  raw.DefaultRuntime,
		Rootless:        raw.Host.Security.Rootless,
		SecurityOptions: raw.SecurityOptions,
	})
}

func (a *ExecAdapter) VolumeExists(ctx context.Context, endpoint, name string) Outcome[bool] {
	_, stderr, err := a.run(ctx, TimeoutContextOrVolume, endpoint, "volume", "inspect", name)
	o := classify("", stderr, err)
	if o.Err != nil && o.Err.Reason == ReasonNoSuchObject {
		return OK(false)
	}
	return rebool(o)
}

func (a *ExecAdapter) VolumeCreate(ctx context.Context, endpoint, name string, labels map[string]string) Outcome[bool] {
	args := []string{"volume", "create"}
	for k, v := range labels {
		args = append(args, "--label", k+"="+v)
	}
	args = append(args, name)
	stdout, stderr, err := a.run(ctx, TimeoutContextOrVolume, endpoint, args...)
	return rebool(classify(stdout, stderr, err))
}

func (a *ExecAdapter) VolumeInspect(ctx context.Context, endpoint, name string) Outcome[VolumeInfo] {
	stdout, stderr, err := a.run(ctx, TimeoutContextOrVolume, endpoint, "volume", "inspect", "--format", "{{json .}}", name)
	o := classify(stdout, stderr, err)
	if !o.IsOK() {
		return carryError[VolumeInfo](o)
	}
	var raw struct {
		Name       string            `json:"Name"`
		Driver     string            `json:"Driver"`
		Mountpoint string            `json:"Mountpoint"`
		Labels     map[string]string `json:"Labels"`
	}
	if err := json.Unmarshal([]byte(o.Value), &raw); err != nil {
		return Lost[VolumeInfo](err)
	}
	return OK(VolumeInfo{Name: raw.Name, Driver: raw.Driver, Mountpoint: raw.Mountpoint, Labels: raw.Labels})
}

func (a *ExecAdapter) ContextExists(ctx context.Context, endpoint, name string) Outcome[bool] {
	stdout, stderr, err := a.run(ctx, TimeoutContextOrVolume, endpoint, "context", "ls", "--format", "{{.Name}}")
	o := classify(stdout, stderr, err)
	if !o.IsOK() {
		return rebool(o)
	}
	for _, line := range strings.Split(o.Value, "\n") {
		if strings.TrimSpace(line) == name {
			return OK(true)
		}
	}
	return OK(false)
}

func (a *ExecAdapter) ContextCreate(ctx context.Context, name, dockerEndpoint string) Outcome[bool] {
	stdout, stderr, err := a.run(ctx, TimeoutContextOrVolume, "", "context", "create", name,
		"--docker", "host="+dockerEndpoint)
	return rebool(classify(stdout, stderr, err))
}

func (a *ExecAdapter) ContextInspect(ctx context.Context, name string) Outcome[ContextInfo] {
	stdout, stderr, err := a.run(ctx, TimeoutContextOrVolume, "", "context", "inspect", name, "--format", "{{json .}}")
	o := classify(stdout, stderr, err)
	if !o.IsOK() {
		return carryError[ContextInfo](o)
	}
	var raw []struct {
		Name      string `json:"Name"`
		Endpoints struct {
			Docker struct {
				Host string `json:"Host"`
			} `json:"docker"`
		} `json:"Endpoints"`
	}
	if err := json.Unmarshal([]byte(o.Value), &raw); err != nil || len(raw) == 0 {
		return Lost[ContextInfo](fmt.Errorf("unexpected context inspect output"))
	}
	return OK(ContextInfo{Name: raw[0].Name, Endpoint: raw[0].Endpoints.Docker.Host})
}

func (a *ExecAdapter) ContainerInspect(ctx context.Context, endpoint, name string) Outcome[ContainerState] {
	stdout, stderr, err := a.run(ctx, TimeoutInfo, endpoint, "inspect", "--format", "{{json .}}", name)
	o := classify(stdout, stderr, err)
	if !o.IsOK() {
		return carryError[ContainerState](o)
	}
	var raw struct {
		ID    string `json:"Id"`
		Name  string `json:"Name"`
		State struct {
			Status    string    `json:"Status"`
			StartedAt time.Time `json:"StartedAt"`
		} `json:"State"`
		Config struct {
			Image  string            `json:"Image"`
			Labels map[string]string `json:"Labels"`
		} `json:"Config"`
		Mounts []struct {
			Type        string `json:"Type"`
			Source      string `json:"Source"`
			Destination string `json:"Destination"`
			RW          bool   `json:"RW"`
		} `json:"Mounts"`
	}
	if err := json.Unmarshal([]byte(o.Value), &raw); err != nil {
		return Lost[ContainerState](err)
	}
	mounts := make([]MountInfo, 0, len(raw.Mounts))
	for _, m := range raw.Mounts {
		mounts = append(mounts, MountInfo{Type: m.Type, Source: m.Source, Destination: m.Destination, RW: m.RW})
	}
	return OK(ContainerState{
		ID:      raw.ID,
		Name:    strings.TrimPrefix(raw.Name, "/"),
		Status:  raw.State.Status,
		Image:   raw.Config.Image,
		Labels:  raw.Config.Labels,
		Mounts:  mounts,
		Started: raw.State.StartedAt,
	})
}

func (a *ExecAdapter) Run(ctx context.Context, endpoint string, spec RunSpec, useSandboxSubcommand bool) Outcome[string] {
	args := []string{}
	if useSandboxSubcommand {
		args = append(args, "sandbox", "run")
	} else {
		args = append(args, "run")
	}
	args = append(args, "-d", "--name", spec.Name)
	if spec.Hostname != "" {
		args = append(args, "--hostname", spec.Hostname)
	}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}
	if spec.WorkingDir != "" {
		args = append(args, "--workdir", spec.WorkingDir)
	}
	if spec.TTY {
		args = append(args, "-t")
	}
	if spec.Interactive {
		args = append(args, "-i")
	}
	if spec.AutoRemove {
		args = append(args, "--rm")
	}
	for k, v := range spec.Labels {
		args = append(args, "--label", k+"="+v)
	}
	for k, v := range spec.Env {
		args = append(args, "--env", k+"="+v)
	}
	for _, m := range spec.Mounts {
		mount := fmt.Sprintf("type=%s,source=%s,destination=%s", m.Type, m.Source, m.Destination)
		if m.ReadOnly {
			mount += ",readonly"
		}
		args = append(args, "--mount", mount)
	}
	args = append(args, spec.ExtraArgs...)
	if len(spec.Entrypoint) > 0 {
		args = append(args, "--entrypoint", spec.Entrypoint[0])
	}
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	stdout, stderr, err := a.run(ctx, TimeoutContainerStart, endpoint, args...)
	return trimOutcome(classify(stdout, stderr, err))
}

func (a *ExecAdapter) RunForeground(ctx context.Context, endpoint string, spec RunSpec, timeout time.Duration) Outcome[ExecResult] {
	args := []string{"run", "--rm"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}
	if spec.WorkingDir != "" {
		args = append(args, "--workdir", spec.WorkingDir)
	}
	for k, v := range spec.Labels {
		args = append(args, "--label", k+"="+v)
	}
	for k, v := range spec.Env {
		args = append(args, "--env", k+"="+v)
	}
	for _, m := range spec.Mounts {
		mount := fmt.Sprintf("type=%s,source=%s,destination=%s", m.Type, m.Source, m.Destination)
		if m.ReadOnly {
			mount += ",readonly"
		}
		args = append(args, "--mount", mount)
	}
	args = append(args, spec.ExtraArgs...)
	if len(spec.Entrypoint) > 0 {
		args = append(args, "--entrypoint", spec.Entrypoint[0])
	}
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	stdout, stderr, err := a.run(ctx, timeout, endpoint, args...)
	if err == context.DeadlineExceeded {
		return Timeout[ExecResult]()
	}
	if err != nil {
		if exitErr, ok := asExitError(err); ok {
			return OK(ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: exitErr})
		}
		reason := Classify(stderr)
		if reason == ReasonUnknown {
			return Lost[ExecResult](fmt.Errorf("%s: %w", strings.TrimSpace(stderr), err))
		}
		return Failed[ExecResult](reason, stderr, err)
	}
	return OK(ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: 0})
}

func (a *ExecAdapter) Exec(ctx context.Context, endpoint, name string, argv []string, interactive bool) Outcome[int] {
	args := []string{"exec"}
	if interactive {
		args = append(args, "-it")
	}
	args = append(args, name)
	args = append(args, argv...)
	code, err := a.os.RunAttached(ctx, hostEnv(a.engine, endpoint), a.binary, args...)
	if err != nil {
		return Lost[int](err)
	}
	return OK(code)
}

func (a *ExecAdapter) StartAttached(ctx context.Context, endpoint, name string) Outcome[int] {
	code, err := a.os.RunAttached(ctx, hostEnv(a.engine, endpoint), a.binary, "start", "-ai", name)
	if err != nil {
		return Lost[int](err)
	}
	return OK(code)
}

func (a *ExecAdapter) Stop(ctx context.Context, endpoint, name string, timeout time.Duration) Outcome[bool] {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	stdout, stderr, err := a.run(ctx, TimeoutContainerStart, endpoint, "stop", "--time", fmt.Sprint(secs), name)
	return rebool(classify(stdout, stderr, err))
}

func (a *ExecAdapter) Remove(ctx context.Context, endpoint, name string, force bool) Outcome[bool] {
	args := []string{"rm"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, name)
	stdout, stderr, err := a.run(ctx, TimeoutContainerStart, endpoint, args...)
	return rebool(classify(stdout, stderr, err))
}

func rebool(o Outcome[string]) Outcome[bool] {
	if o.TimedOut {
		return Timeout[bool]()
	}
	if o.Unknown != nil {
		return Lost[bool](o.Unknown)
	}
	if o.Err != nil {
		return Failed[bool](o.Err.Reason, o.Err.Stderr, o.Err.Err)
	}
	return OK(true)
}

func trimOutcome(o Outcome[string]) Outcome[string] {
	if o.IsOK() {
		o.Value = strings.TrimSpace(o.Value)
	}
	return o
}

func carryError[T any](o Outcome[string]) Outcome[T] {
	if o.TimedOut {
		return Timeout[T]()
	}
	if o.Unknown != nil {
		return Lost[T](o.Unknown)
	}
	if o.Err != nil {
		return Failed[T](o.Err.Reason, o.Err.Stderr, o.Err.Err)
	}
	var zero T
	return OK(zero)
}


