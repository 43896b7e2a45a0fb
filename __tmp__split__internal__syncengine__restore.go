package syncengine

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/containai/cai/internal/containerrt"
	"github.com/klauspost/pgzip"
)

// ErrUnsafePath is returned when an archive entry escapes the volume root
// via an absolute path or a ".." component.
var ErrUnsafePath = fmt.Errorf("UNSAFE_PATH")

// ErrUnsafeEntryType is returned when an archive entry is not a regular
// file or directory (symlinks, hardlinks, devices, fifos, sockets).
var ErrUnsafeEntryType = fmt.Errorf("UNSAFE_ENTRY_TYPE")

var validVolumeName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateArchive reads path as a gzip-tar stream and rejects it per spec
// §4.6/§6: no absolute paths, no ".." components, and only regular files
// and directories are allowed. This runs host-side (not inside the
// disposable container) so a rejected archive never touches the volume at
// all; RunForeground is never called.
func ValidateArchive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s is not readable as gzip: %w", path, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s is not a valid tar stream: %w", path, err)
		}
		if err := validateEntry(hdr); err != nil {
			return err
		}
	}
}

func validateEntry(hdr *tar.Header) error {
	name := hdr.Name
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %s is an absolute path", ErrUnsafePath, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %s contains a \"..\" component", ErrUnsafePath, name)
		}
	}
	switch hdr.Typeflag {
	case tar.TypeReg, tar.TypeDir:
		return nil
	default:
		return fmt.Errorf("%w: %s has disallowed entry type %d", ErrUnsafeEntryType, name, hdr.Typeflag)
	}
}

// Restore validates archivePath, then clears and repopulates volume through
// a disposable container run with --network=none, per spec §4.6/§5. The
// volume name is checked against a strict allowlist before being used in
// the container's "find -delete" invocation to prevent bind-mount
// injection.
func (e *Engine) Restore(ctx context.Context, archivePath, volume string) error {
	if !validVolumeName.MatchString(volume) {
		return fmt.Errorf("refusing to restore into volume with unsafe name %q", volume)
	}
	if err := ValidateArchive(archivePath); err != nil {
		return fmt.Errorf("archive validation failed, volume untouched: %w", err)
	}

	archiveMountDir := "/restore"
	spec := containerrt.RunSpec{
		Name:       "cai-restore-" + shortSuffix(),
		Image:      e.image,
		AutoRemove: true,
		Entrypoint: []string{"sh"},
		Command: []string{"-c",
			"find " + targetMount + " -mindepth 1 -delete && " +
				"tar -xzf " + archiveMountDir + "/archive.tgz -C " + targetMount},
		ExtraArgs: []string{"--network=none"},
		Mounts: []containerrt.MountSpec{
			{Type: "volume", Source: volume, Destination: targetMount},
			{Type: "bind", Source: archivePath, Destination: archiveMountDir + "/archive.tgz", ReadOnly: true},
		},
	}
	out := e.adapter.RunForeground(ctx, "", spec, helperTimeout)
	if !out.IsOK() {
		return fmt.Errorf("restore helper failed: %s", describeExecOutcome(out))
	}
	if out.Value.ExitCode != 0 {
		return fmt.Errorf("restore helper exited %d: %s", out.Value.ExitCode, strings.TrimSpace(out.Value.Stderr))
	}
	return nil
}


