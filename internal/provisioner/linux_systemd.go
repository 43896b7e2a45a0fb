package provisioner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/platform"
	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/sirupsen/logrus"
)

const (
	daemonConfigPath   = "/etc/docker/daemon.json"
	dropInDir          = "/etc/systemd/system/docker.service.d"
	dropInName         = "containai-hardened.conf"
	dedicatedSocket    = "/run/containai/hardened.sock"
	hardenedRuntime    = "sysbox-runc"
	hardenedEndpoint   = "unix://" + dedicatedSocket
	releaseIndexURLFmt = "https://downloads.sysbox.io/releases/latest/sysbox-ce_%s.deb"
)

// linuxSystemdInstaller provisions the hardened runtime on WSL2 or native
// Linux hosts running systemd as PID 1, per spec §4.5's first bullet.
type linuxSystemdInstaller struct {
	log     *logrus.Entry
	adapter containerrt.Adapter
	tag     platform.Tag
}

func (i *linuxSystemdInstaller) Plan(ctx context.Context, opts Options) (*Plan, error) {
	arch := archPackageSuffix(runtime.GOARCH)
	packageURL := fmt.Sprintf(releaseIndexURLFmt, arch)

	plan := &Plan{Platform: i.tag}
	plan.Steps = []Step{
		{
			Name:        "dependency-check",
			Description: "verify systemd is PID 1 and the host is a Debian/Ubuntu package ecosystem",
			Apply:       func(ctx context.Context) error { return checkDependencies() },
		},
		{
			Name:        "install-package",
			Description: fmt.Sprintf("download and install %s", packageURL),
			Apply:       func(ctx context.Context) error { return installPackage(ctx, packageURL) },
		},
		{
			Name:        "register-runtime",
			Description: fmt.Sprintf("merge %s to register %q under \"runtimes\" (backing up the original)", daemonConfigPath, hardenedRuntime),
			Apply:       func(ctx context.Context) error { return registerRuntime(daemonConfigPath) },
		},
		{
			Name:        "install-drop-in",
			Description: fmt.Sprintf("install a systemd drop-in appending \"-H %s\" to the docker.service ExecStart", hardenedEndpoint),
			Apply:       func(ctx context.Context) error { return installDropIn(dropInDir, dropInName, dedicatedSocket) },
		},
		{
			Name:        "reload-restart",
			Description: "systemctl daemon-reload && restart docker.service",
			Apply:       reloadAndRestart,
		},
		{
			Name:        "wait-socket",
			Description: fmt.Sprintf("wait up to %s for %s to appear and be reachable", containerrt.TimeoutSocketAppear, dedicatedSocket),
			Apply:       func(ctx context.Context) error { return waitForSocket(ctx, dedicatedSocket, containerrt.TimeoutSocketAppear) },
		},
		{
			Name:        "create-endpoint",
			Description: fmt.Sprintf("create the %q context bound to %s", hardenedContextNameDefault, hardenedEndpoint),
			Apply:       func(ctx context.Context) error { return i.createEndpoint(ctx) },
		},
		{
			Name:        "validate",
			Description: "run a minimal container under the hardened runtime and assert user-namespace remapping is active",
			Apply:       func(ctx context.Context) error { return i.validate(ctx) },
		},
	}
	return plan, nil
}

// hardenedContextNameDefault is resolved once per process from
// CONTAINAI_SECURE_ENGINE_CONTEXT, falling back to containerrt's fixed
// default, so Provisioner and Doctor always agree on the context name.
var hardenedContextNameDefault = containerrt.HardenedContextName()

func checkDependencies() error {
	data, err := os.ReadFile("/proc/1/comm")
	if err != nil {
		return fmt.Errorf("reading /proc/1/comm: %w", err)
	}
	if strings.TrimSpace(string(data)) != "systemd" {
		return fmt.Errorf("PID 1 is not systemd; automated install requires a systemd host")
	}
	if _, err := os.Stat("/usr/bin/dpkg"); err != nil {
		return fmt.Errorf("dpkg not found; automated install requires a Debian/Ubuntu package ecosystem")
	}
	return nil
}

func archPackageSuffix(goarch string) string {
	switch goarch {
	case "arm64":
		return "arm64"
	default:
		return "amd64"
	}
}

// installPackage fetches the architecture-appropriate .deb from the
// upstream release index and installs it with dpkg, per spec §4.5.
func installPackage(ctx context.Context, packageURL string) error {
	dest, err := downloadToTemp(ctx, packageURL)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", packageURL, err)
	}
	defer os.Remove(dest)

	out, err := exec.CommandContext(ctx, "dpkg", "-i", dest).CombinedOutput()
	if err != nil {
		return fmt.Errorf("dpkg -i %s: %w: %s", dest, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// downloadToTemp fetches url into a temp file and returns its path, leaving
// removal to the caller.
func downloadToTemp(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "containai-sysbox-*.deb")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// dockerDaemonConfig is the subset of /etc/docker/daemon.json this tool
// touches; unknown fields are preserved via a raw-message passthrough map.
type dockerDaemonConfig map[string]json.RawMessage

type runtimeEntry struct {
	Path string   `json:"path"`
	Args []string `json:"runtimeArgs,omitempty"`
}

// registerRuntime merges the hardened runtime into daemon.json's "runtimes"
// object, backing up the original file first. A malformed existing file is
// a hard failure (spec §4.5): we refuse to guess at its structure.
func registerRuntime(path string) error {
	raw, err := os.ReadFile(path)
	notExist := os.IsNotExist(err)
	if err != nil && !notExist {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := dockerDaemonConfig{}
	if !notExist {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("%s is malformed JSON, refusing to merge: %w", path, err)
		}
		backup := fmt.Sprintf("%s.bak.%d", path, time.Now().Unix())
		if err := os.WriteFile(backup, raw, 0o644); err != nil {
			return fmt.Errorf("backing up %s: %w", path, err)
		}
	}

	var runtimes map[string]runtimeEntry
	if existing, ok := cfg["runtimes"]; ok {
		if err := json.Unmarshal(existing, &runtimes); err != nil {
			return fmt.Errorf("%s has a malformed \"runtimes\" object: %w", path, err)
		}
	}
	if runtimes == nil {
		runtimes = map[string]runtimeEntry{}
	}
	runtimes[hardenedRuntime] = runtimeEntry{Path: "/usr/bin/" + hardenedRuntime}

	encoded, err := json.Marshal(runtimes)
	if err != nil {
		return err
	}
	cfg["runtimes"] = encoded

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// installDropIn writes a systemd drop-in that appends an extra "-H"
// listening socket to docker.service's existing ExecStart, preserving all
// prior flags by substring-extracting the current command (spec §6).
func installDropIn(dir, name, socket string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	current, err := currentExecStart()
	if err != nil {
		return err
	}
	content := fmt.Sprintf("[Service]\nExecStart=\nExecStart=%s -H unix://%s\n", current, socket)
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

// currentExecStart reads docker.service's ExecStart= line via systemctl
// show, the standard way to query a running unit's resolved command line.
func currentExecStart() (string, error) {
	out, err := runCaptured("systemctl", "show", "-p", "ExecStart", "--value", "docker.service")
	if err != nil {
		return "", fmt.Errorf("reading docker.service ExecStart: %w", err)
	}
	line := strings.TrimSpace(out)
	if idx := strings.Index(line, "argv[]="); idx >= 0 {
		line = line[idx+len("argv[]="):]
	}
	if idx := strings.Index(line, " ;"); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "/usr/bin/dockerd", nil
	}
	return strings.Join(fields, " "), nil
}

func reloadAndRestart(ctx context.Context) error {
	conn, err := systemdDbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("connecting to systemd: %w", err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	ch := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, "docker.service", "replace", ch); err != nil {
		return fmt.Errorf("restarting docker.service: %w", err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("docker.service restart finished with result %q", result)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func waitForSocket(ctx context.Context, socket string, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		if _, err := os.Stat(socket); err == nil {
			return nil
		}
		select {
		case <-cctx.Done():
			return fmt.Errorf("%s did not appear within %s", socket, timeout)
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (i *linuxSystemdInstaller) createEndpoint(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutContextOrVolume)
	defer cancel()
	out := i.adapter.ContextCreate(cctx, hardenedContextNameDefault, hardenedEndpoint)
	if !out.IsOK() {
		return fmt.Errorf("creating %q context: %s", hardenedContextNameDefault, describeOutcome(out))
	}
	return nil
}

func (i *linuxSystemdInstaller) validate(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutContainerStart)
	defer cancel()

	ctxInfo := i.adapter.ContextInspect(cctx, hardenedContextNameDefault)
	if !ctxInfo.IsOK() {
		return fmt.Errorf("hardened endpoint not reachable: %s", describeOutcome(ctxInfo))
	}

	info := i.adapter.Info(cctx, ctxInfo.Value.Endpoint)
	if !info.IsOK() {
		return fmt.Errorf("reading runtime info: %s", describeOutcome(info))
	}

	return validateUserNamespaceRemap(cctx, i.adapter, ctxInfo.Value.Endpoint)
}

func runCaptured(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	return string(out), err
}

func describeOutcome[T any](out containerrt.Outcome[T]) string {
	switch {
	case out.TimedOut:
		return "timed out"
	case out.Err != nil:
		return out.Err.Error()
	case out.Unknown != nil:
		return out.Unknown.Error()
	default:
		return "ok"
	}
}
