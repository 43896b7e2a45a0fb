// Package exportengine implements the ExportEngine subsystem (spec §4.9):
// exporting a data volume to a local .tgz via a disposable container that
// preserves host UID/GID ownership, and restoring one back via
// [syncengine.Engine.Restore].
package exportengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/containai/cai/internal/containerrt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HelperImage is the default disposable-container image used to read the
// volume and produce the archive.
const HelperImage = "busybox:stable"

const (
	volumeMount = "/source"
	outputMount = "/output"
	helperTimeout = 5 * time.Minute
)

// Options controls one Export invocation.
type Options struct {
	DataVolume string
	OutputPath string // empty, a directory, or a literal file path
	Excludes   []string
	NoExcludes bool
	UID, GID   int // host user/group the archive should be owned by
}

// Engine runs exports through a disposable helper container.
type Engine struct {
	log     *logrus.Entry
	adapter containerrt.Adapter
	image   string
	now     func() time.Time
}

// New returns an Engine. image empty uses HelperImage.
func New(log *logrus.Entry, adapter containerrt.Adapter, image string) *Engine {
	if image == "" {
		image = HelperImage
	}
	return &Engine{log: log, adapter: adapter, image: image, now: time.Now}
}

// ResolveOutputPath implements spec §4.9's output-path rule: empty produces
// a timestamped default in the current directory; a directory produces a
// timestamped default within it; anything else is the literal path,
// resolved to an absolute path.
func ResolveOutputPath(raw string, now time.Time) (string, error) {
	stamp := now.UTC().Format("20060102-150405")
	defaultName := fmt.Sprintf("cai-export-%s.tgz", stamp)

	if raw == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, defaultName), nil
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return filepath.Join(abs, defaultName), nil
	}
	return abs, nil
}

// excludeArgs applies each exclude pattern in both "./pattern" and
// "pattern" forms, covering tar implementation differences (spec §4.9).
func excludeArgs(excludes []string) []string {
	var args []string
	for _, pat := range excludes {
		args = append(args, "--exclude=./"+pat, "--exclude="+pat)
	}
	return args
}

// Export runs the export flow and returns the absolute archive path on
// success.
func (e *Engine) Export(ctx context.Context, opts Options) (string, error) {
	outPath, err := ResolveOutputPath(opts.OutputPath, e.now())
	if err != nil {
		return "", fmt.Errorf("resolving output path: %w", err)
	}
	outDir := filepath.Dir(outPath)
	if err := checkWritableDir(outDir); err != nil {
		return "", fmt.Errorf("output directory %s: %w", outDir, err)
	}

	var excludes []string
	if !opts.NoExcludes {
		excludes = opts.Excludes
	}

	archiveName := filepath.Base(outPath)
	tarArgs := append([]string{"-czf", filepath.Join(outputMount, archiveName), "-C", volumeMount}, excludeArgs(excludes)...)
	tarArgs = append(tarArgs, ".")

	user := ""
	if opts.UID != 0 || opts.GID != 0 {
		user = fmt.Sprintf("%d:%d", opts.UID, opts.GID)
	}

	spec := containerrt.RunSpec{
		Name:       "cai-export-" + uuid.NewString()[:8],
		Image:      e.image,
		AutoRemove: true,
		User:       user,
		Entrypoint: []string{"tar"},
		Command:    tarArgs,
		Mounts: []containerrt.MountSpec{
			{Type: "volume", Source: opts.DataVolume, Destination: volumeMount, ReadOnly: true},
			{Type: "bind", Source: outDir, Destination: outputMount},
		},
	}

	out := e.adapter.RunForeground(ctx, "", spec, helperTimeout)
	if !out.IsOK() {
		return "", fmt.Errorf("export helper failed: %w", describeFailure(out))
	}
	if out.Value.ExitCode != 0 {
		return "", fmt.Errorf("export helper exited %d: %s", out.Value.ExitCode, out.Value.Stderr)
	}

	return outPath, nil
}

func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	probe := filepath.Join(dir, ".cai-export-writable-check")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

func describeFailure(out containerrt.Outcome[containerrt.ExecResult]) error {
	switch {
	case out.TimedOut:
		return &containerrt.TimeoutError{Operation: "export", Timeout: helperTimeout.String()}
	case out.Err != nil:
		return out.Err
	default:
		return out.Unknown
	}
}


