//go:build !windows

package containerrt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	dockerSocketSchema = "unix://"
	dockerSocketPath   = "/var/run/docker.sock"
)

type socketCandidate struct {
	path   string
	engine Engine
}

func socketCandidates() []socketCandidate {
	var out []socketCandidate
	add := func(path string, engine Engine) {
		if path != "" {
			out = append(out, socketCandidate{dockerSocketSchema + path, engine})
		}
	}

	add(dockerSocketPath, EngineDocker)

	xdgRuntime := os.Getenv("XDG_RUNTIME_DIR")
	home, _ := os.UserHomeDir()
	uid := os.Getuid()

	if xdgRuntime != "" {
		add(filepath.Join(xdgRuntime, "docker.sock"), EngineDocker)
		add(filepath.Join(xdgRuntime, "podman", "podman.sock"), EnginePodman)
	}
	if home != "" {
		add(filepath.Join(home, ".docker", "run", "docker.sock"), EngineDocker)
		add(filepath.Join(home, ".docker", "desktop", "docker.sock"), EngineDocker)
		add(filepath.Join(home, ".colima", "default", "docker.sock"), EngineDocker)
		add(filepath.Join(home, ".orbstack", "run", "docker.sock"), EngineDocker)
		add(filepath.Join(home, ".lima", "default", "sock", "docker.sock"), EngineDocker)
		add(filepath.Join(home, ".rd", "docker.sock"), EngineDocker)
		add(filepath.Join(home, ".local", "share", "containers", "podman", "podman.sock"), EnginePodman)
	}
	add(filepath.Join("/run", "user", strconv.Itoa(uid), "docker.sock"), EngineDocker)
	add(filepath.Join("/run", "user", strconv.Itoa(uid), "podman", "podman.sock"), EnginePodman)
	add("/var/snap/docker/current/run/docker.sock", EngineDocker)
	add("/run/podman/podman.sock", EnginePodman)

	return out
}

func detectPlatformCandidates(log *logrus.Entry) (string, Engine, error) {
	var lastErr error
	for _, c := range socketCandidates() {
		socketPath := strings.TrimPrefix(c.path, dockerSocketSchema)
		if _, err := os.Stat(socketPath); err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), socketValidationTimeout)
		err := validateSocket(ctx, c.path, false)
		cancel()

		if err != nil {
			log.Debugf("socket %s exists but validation failed: %v", c.path, err)
			if strings.Contains(err.Error(), "permission denied") {
				lastErr = fmt.Errorf("%s: permission denied (are you in the docker group?)", c.path)
			} else {
				lastErr = fmt.Errorf("%s: %w", c.path, err)
			}
			continue
		}

		log.Infof("connected to %s via %s", c.engine, c.path)
		return c.path, c.engine, nil
	}

	if lastErr != nil {
		return "", EngineUnknown, fmt.Errorf("%w: last error: %v", ErrNoEndpoint, lastErr)
	}
	return "", EngineUnknown, fmt.Errorf("%w: ensure docker or podman is running", ErrNoEndpoint)
}


