package containerrt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	cliconfig "github.com/docker/cli/cli/config"
	ddocker "github.com/docker/cli/cli/context/docker"
	ctxstore "github.com/docker/cli/cli/context/store"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"
)

const socketValidationTimeout = 3 * time.Second

// ErrNoEndpoint indicates every known socket candidate was tried and none
// responded.
var ErrNoEndpoint = errors.New("no working container runtime endpoint found")

var (
	cachedEndpoint string
	cachedEngine   Engine
	endpointOnce   sync.Once
	endpointErr    error
)

// DetectEndpoint finds a working Docker/Podman endpoint. Priority order is
// DOCKER_HOST / CONTAINER_HOST, then the current Docker CLI context, then a
// platform-specific list of well-known socket paths. Results are cached
// after the first successful detection, mirroring the teacher's
// DetectDockerHost.
func DetectEndpoint(log *logrus.Entry) (string, Engine, error) {
	endpointOnce.Do(func() {
		cachedEndpoint, cachedEngine, endpointErr = detectEndpointInternal(log)
	})
	return cachedEndpoint, cachedEngine, endpointErr
}

func detectEndpointInternal(log *logrus.Entry) (string, Engine, error) {
	if host := os.Getenv("CONTAINER_HOST"); host != "" {
		return host, EnginePodman, nil
	}
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		log.Debugf("using DOCKER_HOST from environment: %s", host)
		validateIfLocal(log, host, true)
		return host, EngineDocker, nil
	}

	contextHost, err := getHostFromContext()
	if err != nil {
		if os.Getenv("DOCKER_CONTEXT") != "" {
			return "", EngineUnknown, fmt.Errorf("failed to use DOCKER_CONTEXT: %w", err)
		}
		log.Debugf("failed to get host from default context: %v", err)
	} else if contextHost != "" {
		log.Debugf("using host from docker context: %s", contextHost)
		validateIfLocal(log, contextHost, false)
		return contextHost, EngineDocker, nil
	}

	return detectPlatformCandidates(log)
}

func validateIfLocal(log *logrus.Entry, host string, useEnv bool) {
	if strings.HasPrefix(host, "ssh://") {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), socketValidationTimeout)
	defer cancel()
	if err := validateSocket(ctx, host, useEnv); err != nil {
		log.Warnf("%s is set but not reachable: %v", host, err)
	}
}

func getHostFromContext() (string, error) {
	currentContext := os.Getenv("DOCKER_CONTEXT")
	if currentContext == "" {
		cf, err := cliconfig.Load(cliconfig.Dir())
		if err != nil {
			return "", err
		}
		currentContext = cf.CurrentContext
	}
	if currentContext == "" || currentContext == "default" {
		return "", nil
	}

	storeConfig := ctxstore.NewConfig(
		func() interface{} { return &ddocker.EndpointMeta{} },
		ctxstore.EndpointTypeGetter(ddocker.DockerEndpoint, func() interface{} { return &ddocker.EndpointMeta{} }),
	)
	st := ctxstore.New(cliconfig.ContextStoreDir(), storeConfig)
	md, err := st.GetMetadata(currentContext)
	if err != nil {
		return "", err
	}
	dockerEP, ok := md.Endpoints[ddocker.DockerEndpoint]
	if !ok {
		return "", nil
	}
	dockerEPMeta, ok := dockerEP.(ddocker.EndpointMeta)
	if !ok {
		return "", fmt.Errorf("expected docker.EndpointMeta, got %T", dockerEP)
	}
	return dockerEPMeta.Host, nil
}

func validateSocket(ctx context.Context, host string, useEnv bool) error {
	var opts []client.Opt
	if useEnv {
		opts = append(opts, client.FromEnv)
	}
	opts = append(opts, client.WithHost(host), client.WithAPIVersionNegotiation())

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
