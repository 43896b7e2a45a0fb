package platform

import (
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Tag identifies the broad host platform family.
type Tag string

const (
	TagLinux Tag = "linux"
	TagMacOS Tag = "macos"
	TagWSL2  Tag = "wsl2"
	TagWSL1  Tag = "wsl1"
)

// SeccompMode mirrors the PID 1 Seccomp field of /proc/1/status.
type SeccompMode int

const (
	SeccompDisabled SeccompMode = 0
	SeccompStrict   SeccompMode = 1
	SeccompFiltered SeccompMode = 2
	SeccompUnknown  SeccompMode = -1
)

// Snapshot is the full result of one PlatformProbe run.
type Snapshot struct {
	Tag            Tag
	Arch           string
	Seccomp        SeccompMode
	DesktopVariant string
}

// Probe performs pure host-side platform detection: no container runtime
// calls, just /proc and uname.
type Probe struct {
	log *logrus.Entry
}

func NewProbe(log *logrus.Entry) *Probe {
	return &Probe{log: log}
}

var microsoftKernelRe = regexp.MustCompile(`(?i)microsoft`)
var wsl2KernelRe = regexp.MustCompile(`(?i)microsoft-standard-wsl2`)

// Detect returns a full Snapshot of the running host.
func (p *Probe) Detect() Snapshot {
	return Snapshot{
		Tag:            p.detectTag(),
		Arch:           normalizeArch(runtime.GOARCH),
		Seccomp:        p.detectSeccomp(),
		DesktopVariant: p.detectDesktopVariant(),
	}
}

func (p *Probe) detectTag() Tag {
	if runtime.GOOS == "darwin" {
		return TagMacOS
	}
	if runtime.GOOS != "linux" {
		// Windows itself is not a supported container host; Provisioner
		// rejects it, but PlatformProbe still reports a best-effort tag.
		return TagLinux
	}

	version, err := os.ReadFile("/proc/version")
	if err != nil {
		p.log.Debugf("unable to read /proc/version: %v", err)
		return TagLinux
	}
	text := string(version)
	if !microsoftKernelRe.MatchString(text) {
		return TagLinux
	}
	if wsl2KernelRe.MatchString(text) {
		return TagWSL2
	}
	// Any other Microsoft-tagged kernel without the wsl2 marker is WSL1,
	// which runs a translated syscall layer rather than a real Linux
	// kernel and cannot host user namespaces the way Provisioner requires.
	return TagWSL1
}

func (p *Probe) detectSeccomp() SeccompMode {
	data, err := os.ReadFile("/proc/1/status")
	if err != nil {
		p.log.Debugf("unable to read /proc/1/status: %v", err)
		return SeccompUnknown
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Seccomp:") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return SeccompUnknown
			}
			mode, err := strconv.Atoi(fields[1])
			if err != nil {
				return SeccompUnknown
			}
			return SeccompMode(mode)
		}
	}
	return SeccompUnknown
}

func (p *Probe) detectDesktopVariant() string {
	if out, err := exec.Command("sw_vers", "-productVersion").Output(); err == nil {
		return "macOS " + strings.TrimSpace(string(out))
	}
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "PRETTY_NAME=") {
				return strings.Trim(strings.TrimPrefix(line, "PRETTY_NAME="), `"`)
			}
		}
	}
	return ""
}

func normalizeArch(goarch string) string {
	switch goarch {
	case "amd64", "386":
		return "amd64"
	case "arm64", "arm":
		return "arm64"
	default:
		return goarch
	}
}


