// Package provisioner implements the idempotent per-platform install flow
// (spec §4.5) that registers the hardened runtime as an additional,
// never-default runtime of the external daemon.
package provisioner

import (
	"context"
	"fmt"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/platform"
	"github.com/sirupsen/logrus"
)

// Step is one named, orderable unit of the install plan. Steps run in
// order; a step's Apply is skipped entirely in dry-run mode and its
// description is rendered instead.
type Step struct {
	Name        string
	Description string
	Apply       func(ctx context.Context) error
}

// Plan is the ordered list of steps an Installer would run.
type Plan struct {
	Platform platform.Tag
	Steps    []Step
}

// Options controls a provisioning run.
type Options struct {
	DryRun  bool
	Force   bool // bypass the WSL2 seccomp-mode-2 compatibility warning
	Verbose bool
}

// SeccompWarning is returned by Provision when PID 1 reports seccomp mode 2
// and Force was not set; the caller is expected to present the three
// choices from spec §4.5 and re-invoke with Force if the user proceeds.
type SeccompWarning struct{}

func (SeccompWarning) Error() string {
	return "PID 1 seccomp mode is 2 (filter): the hardened runtime may be incompatible with this WSL2 kernel. " +
		"Re-run with --force to proceed anyway, downgrade your WSL2 userland, or skip the hardened path."
}

// Installer builds and (optionally) executes the install plan for one
// platform family.
type Installer interface {
	Plan(ctx context.Context, opts Options) (*Plan, error)
}

// Provisioner dispatches to the platform-appropriate Installer.
type Provisioner struct {
	log     *logrus.Entry
	probe   *platform.Probe
	adapter containerrt.Adapter
}

// New returns a Provisioner bound to the given probe and adapter (the
// adapter may be nil; platforms needing a live daemon check for it).
func New(log *logrus.Entry, probe *platform.Probe, adapter containerrt.Adapter) *Provisioner {
	return &Provisioner{log: log, probe: probe, adapter: adapter}
}

// Plan builds the install plan for the detected platform without running
// it, performing the WSL2 compatibility gate along the way.
func (p *Provisioner) Plan(ctx context.Context, opts Options) (*Plan, error) {
	snap := p.probe.Detect()

	if snap.Tag == platform.TagWSL2 && snap.Seccomp == platform.SeccompFiltered && !opts.Force {
		return nil, SeccompWarning{}
	}

	installer, err := p.installerFor(snap.Tag)
	if err != nil {
		return nil, err
	}
	return installer.Plan(ctx, opts)
}

// Run executes the plan's steps in order. In dry-run mode no step's Apply
// is invoked.
func (p *Provisioner) Run(ctx context.Context, opts Options) (*Plan, error) {
	plan, err := p.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return plan, nil
	}
	for _, step := range plan.Steps {
		p.log.Infof("-> %s", step.Description)
		if err := step.Apply(ctx); err != nil {
			return plan, fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return plan, nil
}

func (p *Provisioner) installerFor(tag platform.Tag) (Installer, error) {
	switch tag {
	case platform.TagWSL2, platform.TagLinux:
		return &linuxSystemdInstaller{log: p.log, adapter: p.adapter, tag: tag}, nil
	case platform.TagMacOS:
		return &macOSInstaller{log: p.log, adapter: p.adapter, tag: tag}, nil
	case platform.TagWSL1:
		return nil, fmt.Errorf("WSL1 does not support user-namespace isolation; upgrade to WSL2")
	default:
		return nil, fmt.Errorf("unsupported platform %q", tag)
	}
}
