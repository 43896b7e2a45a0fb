package provisioner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/platform"
	"github.com/sirupsen/logrus"
)

const (
	vmName          = "cai-hardened"
	vmForwardedSock = "hardened.sock"
	vmTemplateAsset = vmName + ".yaml"
)

// macOSInstaller provisions the hardened runtime inside a lightweight
// Linux VM, per spec §4.5's second bullet. The invariant here is stronger
// than on Linux: the user's primary host endpoint (Docker Desktop's own)
// is never touched; everything this installer does is additive.
type macOSInstaller struct {
	log     *logrus.Entry
	adapter containerrt.Adapter
	tag     platform.Tag
}

func (i *macOSInstaller) Plan(ctx context.Context, opts Options) (*Plan, error) {
	socketPath := filepath.Join(vmSocketDir(), vmForwardedSock)
	endpoint := "unix://" + socketPath

	plan := &Plan{Platform: i.tag}
	plan.Steps = []Step{
		{
			Name:        "check-package-manager",
			Description: "verify a host package manager (Homebrew) is present",
			Apply:       checkHomebrew,
		},
		{
			Name:        "install-vm-manager",
			Description: "install a lightweight Linux VM manager (lima) via Homebrew",
			Apply:       installVMManager,
		},
		{
			Name:        "materialize-template",
			Description: fmt.Sprintf("write the %s VM template installing the daemon and hardened runtime inside the VM", vmTemplateAsset),
			Apply:       materializeVMTemplate,
		},
		{
			Name:        "start-vm",
			Description: fmt.Sprintf("start the %q VM", vmName),
			Apply:       startVM,
		},
		{
			Name:        "wait-socket",
			Description: fmt.Sprintf("wait up to %s for the VM's forwarded socket at %s", containerrt.TimeoutVMBoot, socketPath),
			Apply:       func(ctx context.Context) error { return waitForVMSocket(ctx, socketPath) },
		},
		{
			Name:        "create-endpoint",
			Description: fmt.Sprintf("create the %q context bound to %s (the host's own Desktop endpoint is left untouched)", hardenedContextNameDefault, endpoint),
			Apply:       func(ctx context.Context) error { return i.createEndpointMacOS(ctx, endpoint) },
		},
		{
			Name:        "validate",
			Description: "run a minimal container under the hardened runtime and assert user-namespace remapping is active",
			Apply:       func(ctx context.Context) error { return i.validate(ctx, endpoint) },
		},
	}
	return plan, nil
}

func vmSocketDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(string(os.PathSeparator), "tmp")
	}
	return filepath.Join(home, ".lima", vmName, "sock")
}

func checkHomebrew() error {
	if _, err := exec.LookPath("brew"); err != nil {
		return fmt.Errorf("homebrew not found: install it from https://brew.sh before running setup")
	}
	return nil
}

func installVMManager(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "brew", "install", "lima").CombinedOutput()
	if err != nil {
		return fmt.Errorf("brew install lima: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// vmTemplatePath returns the path lima reads the named instance's config
// from: ~/.lima/<name>.yaml.
func vmTemplatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lima", vmTemplateAsset), nil
}

// materializeVMTemplate writes the lima template that boots a minimal Linux
// guest and installs the Docker daemon plus the hardened (sysbox) runtime
// inside it via a provisioning script, per spec §4.5.
func materializeVMTemplate(ctx context.Context) error {
	path, err := vmTemplatePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(vmTemplateYAML), 0o644)
}

const vmTemplateYAML = `# generated by cai setup; safe to delete and regenerate
images:
- location: "https://cloud-images.ubuntu.com/releases/24.04/release/ubuntu-24.04-server-cloudimg-amd64.img"
  arch: "x86_64"
- location: "https://cloud-images.ubuntu.com/releases/24.04/release/ubuntu-24.04-server-cloudimg-arm64.img"
  arch: "aarch64"
mounts: []
provision:
- mode: system
  script: |
    #!/bin/sh
    set -eux
    if ! command -v docker >/dev/null; then
      curl -fsSL https://get.docker.com | sh
    fi
    if ! command -v sysbox-runc >/dev/null; then
      curl -fsSL -o /tmp/sysbox-ce.deb "https://downloads.sysbox.io/releases/latest/sysbox-ce_$(dpkg --print-architecture).deb"
      apt-get install -y /tmp/sysbox-ce.deb
    fi
portForwards:
- guestSocket: "/var/run/docker.sock"
  hostSocket: "{{.Dir}}/sock/hardened.sock"
`

func startVM(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "limactl", "start", "--tty=false", vmName).CombinedOutput()
	if err != nil {
		return fmt.Errorf("limactl start %s: %w: %s", vmName, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func waitForVMSocket(ctx context.Context, socket string) error {
	return waitForSocket(ctx, socket, containerrt.TimeoutVMBoot)
}

func (i *macOSInstaller) createEndpointMacOS(ctx context.Context, endpoint string) error {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutContextOrVolume)
	defer cancel()
	out := i.adapter.ContextCreate(cctx, hardenedContextNameDefault, endpoint)
	if !out.IsOK() {
		return fmt.Errorf("creating %q context: %s", hardenedContextNameDefault, describeOutcome(out))
	}
	return nil
}

func (i *macOSInstaller) validate(ctx context.Context, endpoint string) error {
	cctx, cancel := context.WithTimeout(ctx, containerrt.TimeoutContainerStart)
	defer cancel()
	reachable := i.adapter.DaemonReachable(cctx, endpoint)
	if !reachable.IsOK() || !reachable.Value {
		return fmt.Errorf("VM daemon not reachable at %s", endpoint)
	}
	return validateUserNamespaceRemap(cctx, i.adapter, endpoint)
}
