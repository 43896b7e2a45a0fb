//go:build windows

package containerrt

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultDockerHost = "npipe://./pipe/docker_engine"

func getPodmanPipes() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return []string{"npipe:////./pipe/podman-machine-default"}
	}
	configDir := filepath.Join(home, ".config", "containers", "podman", "machine", "wsl")
	files, err := os.ReadDir(configDir)
	if err != nil {
		return []string{"npipe:////./pipe/podman-machine-default"}
	}

	var pipes []string
	for _, f := range files {
		if !f.IsDir() && filepath.Ext(f.Name()) == ".json" {
			pipes = append(pipes, "npipe:////./pipe/"+strings.TrimSuffix(f.Name(), ".json"))
		}
	}
	if len(pipes) == 0 {
		return []string{"npipe:////./pipe/podman-machine-default"}
	}
	return pipes
}

func detectPlatformCandidates(log *logrus.Entry) (string, Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), socketValidationTimeout)
	err := validateSocket(ctx, defaultDockerHost, false)
	cancel()
	if err == nil {
		return defaultDockerHost, EngineDocker, nil
	}

	for _, host := range getPodmanPipes() {
		ctx, cancel := context.WithTimeout(context.Background(), socketValidationTimeout)
		err := validateSocket(ctx, host, false)
		cancel()
		if err == nil {
			return host, EnginePodman, nil
		}
	}

	return "", EngineUnknown, ErrNoEndpoint
}


