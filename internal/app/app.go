// Package app bootstraps the shared subsystems every cai subcommand needs:
// logging, configuration, platform detection and the RuntimeAdapter.
package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/containai/cai/internal/applog"
	"github.com/containai/cai/internal/config"
	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/platform"
	"github.com/sirupsen/logrus"
)

// App carries every subsystem a subcommand might need. Subcommands that
// don't need a live container runtime (e.g. `doctor --build-templates`)
// are free to ignore Adapter/Endpoint.
type App struct {
	closers []io.Closer

	Config    *config.AppConfig
	Log       *logrus.Entry
	OSCommand *platform.OSCommand
	Probe     *platform.Probe
	Store     *config.Store

	Adapter  containerrt.Adapter
	Endpoint string
	Engine   containerrt.Engine
}

// Options controls bootstrap behavior; subcommands fill in only the fields
// relevant to them.
type Options struct {
	Version, Commit, BuildDate string
	Workspace                  string
	ConfigPath                 string
	RequireRuntime             bool
	Verbose, Debug             bool
}

// New bootstraps a fresh App. When opts.RequireRuntime is false, runtime
// endpoint detection failures are logged but not fatal, so read-only
// commands like `doctor` can still report what they saw.
func New(opts Options) (*App, error) {
	cfg, err := config.NewAppConfig(opts.Version, opts.Commit, opts.BuildDate)
	if err != nil {
		return nil, fmt.Errorf("resolving app config: %w", err)
	}
	if opts.Verbose || opts.Debug {
		cfg.Verbose = true
		cfg.Debug = true
	}

	log := applog.NewLogger(cfg)
	osCommand := platform.NewOSCommand(log)
	probe := platform.NewProbe(log)

	store, err := config.Load(log, opts.Workspace, opts.ConfigPath, cfg.ConfigDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		OSCommand: osCommand,
		Probe:     probe,
		Store:     store,
	}

	endpoint, engine, err := containerrt.DetectEndpoint(log)
	if err != nil {
		log.Debugf("endpoint detection failed: %v", err)
		if opts.RequireRuntime {
			return a, err
		}
		return a, nil
	}

	a.Endpoint = endpoint
	a.Engine = engine
	a.Adapter = containerrt.NewExecAdapter(log, osCommand, engine)
	return a, nil
}

// Close releases any resources registered during bootstrap.
func (a *App) Close() error {
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return nil
}

// KnownError maps a handful of well-understood failures to a friendlier
// message, the way the teacher's App.KnownError does, instead of printing a
// raw stack trace.
func (a *App) KnownError(err error) (string, bool) {
	msg := err.Error()
	mappings := map[string]string{
		"Got permission denied while trying to connect to the Docker daemon socket": "cannot access the container runtime socket: is your user in the docker group?",
		containerrt.ErrNoEndpoint.Error():                                           "no container runtime endpoint found: run `cai doctor` for details",
	}
	for original, friendly := range mappings {
		if strings.Contains(msg, original) {
			return friendly, true
		}
	}
	return "", false
}
