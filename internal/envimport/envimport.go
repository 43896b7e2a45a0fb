// Package envimport implements the EnvImporter subsystem (spec §4.7):
// merging host and workspace-file environment variables, restricted to a
// configured allowlist, into the data volume's /.env.
package envimport

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/containai/cai/internal/config"
	"github.com/containai/cai/internal/containerrt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// nameRe matches a POSIX shell variable name.
var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name is a POSIX-legal environment variable
// name.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// Allowlist builds the deduplicated, validated set of names EnvImporter is
// permitted to import, from config §[env].import.
func Allowlist(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		if !ValidName(n) {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Importer runs the EnvImporter flow.
type Importer struct {
	log     *logrus.Entry
	adapter containerrt.Adapter
	image   string
}

// New returns an Importer. image is the disposable-helper image; empty
// uses syncengine's default helper image convention.
func New(log *logrus.Entry, adapter containerrt.Adapter, image string) *Importer {
	if image == "" {
		image = "busybox:stable"
	}
	return &Importer{log: log, adapter: adapter, image: image}
}

// Options controls one Import invocation.
type Options struct {
	Workspace  string
	DataVolume string
	Env        config.EnvSection
	DryRun     bool
}

// Result is the outcome of one Import invocation: only names, never
// values, per spec §4.7's secrecy requirement.
type Result struct {
	Names []string
}

// Import reads [env] from opts.Env. If Import is empty, it silently
// no-ops (spec §4.7). Otherwise it builds the merged value set (workspace
// file overridden by host on name collision, both restricted to the
// allowlist) and, unless DryRun, writes it atomically into the volume.
func (im *Importer) Import(ctx context.Context, opts Options) (*Result, error) {
	allow := Allowlist(opts.Env.Import)
	if len(allow) == 0 {
		return &Result{}, nil
	}

	values := map[string]string{}

	if opts.Env.EnvFile != "" {
		fileValues, err := readWorkspaceEnvFile(opts.Workspace, opts.Env.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("reading env_file: %w", err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}

	if opts.Env.FromHost {
		for _, name := range allow {
			v, ok := os.LookupEnv(name)
			if !ok {
				continue
			}
			if strings.Contains(v, "\n") {
				im.log.Warnf("skipping host variable %s: value contains a newline", name)
				continue
			}
			values[name] = v
		}
	}

	merged := map[string]string{}
	var names []string
	for _, name := range allow {
		if v, ok := values[name]; ok {
			merged[name] = v
			names = append(names, name)
		}
	}

	if opts.DryRun {
		return &Result{Names: names}, nil
	}

	if err := im.writeEnvFile(ctx, opts.DataVolume, merged); err != nil {
		return nil, err
	}
	return &Result{Names: names}, nil
}

// readWorkspaceEnvFile parses envFile (strictly workspace-relative,
// symlinks rejected) line by line: "#"-comments and blanks are skipped, an
// optional leading "export " is stripped, the line is split on the first
// "=" only, CRLF is stripped, keys failing ValidName are rejected, and an
// unclosed quoted multi-line value is rejected. Rejected entries are
// skipped without any log output.
func readWorkspaceEnvFile(workspace, envFile string) (map[string]string, error) {
	path, err := resolveWorkspaceRelative(workspace, envFile)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		trimmed = strings.TrimPrefix(trimmed, "export ")

		idx := strings.Index(trimmed, "=")
		if idx < 0 {
			continue
		}
		key := trimmed[:idx]
		val := trimmed[idx+1:]
		if !ValidName(key) {
			continue
		}
		if isUnclosedQuote(val) {
			// skipped silently; values never appear in diagnostics.
			continue
		}
		values[key] = unquote(val)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func isUnclosedQuote(v string) bool {
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case '"', '\'':
		return !strings.HasSuffix(v, string(v[0])) || len(v) < 2
	default:
		return false
	}
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// writeEnvFile writes merged into the volume as /.env atomically: a
// disposable container creates a temp file as root inside the volume,
// chowns it to the agent UID/GID, chmods 0600, verifies neither the mount
// point nor the target is a symlink, then renames into place.
func (im *Importer) writeEnvFile(ctx context.Context, volume string, merged map[string]string) error {
	var b strings.Builder
	for k, v := range merged {
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}

	script := `
set -e
if [ -L /target ] || [ -L /target/.env ]; then
  echo "refusing to write through a symlink" >&2
  exit 1
fi
tmp=$(mktemp /target/.env.XXXXXX)
echo "$CAI_ENV_PAYLOAD" | base64 -d > "$tmp"
chown 1000:1000 "$tmp"
chmod 0600 "$tmp"
mv "$tmp" /target/.env
`
	spec := containerrt.RunSpec{
		Name:       "cai-envimport-" + uuid.NewString()[:8],
		Image:      im.image,
		AutoRemove: true,
		Entrypoint: []string{"sh"},
		Command:    []string{"-c", script},
		Mounts: []containerrt.MountSpec{
			{Type: "volume", Source: volume, Destination: "/target"},
		},
	}

	out, err := im.runForegroundStdin(ctx, spec, b.String())
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("env-write helper exited %d: %s", out.ExitCode, out.Stderr)
	}
	return nil
}

// runForegroundStdin passes the merged .env content to the helper
// container via a base64 env variable that the script itself decodes; the
// Adapter's RunForeground does not carry stdin directly, and this keeps
// the payload out of argv and container logs.
func (im *Importer) runForegroundStdin(ctx context.Context, spec containerrt.RunSpec, stdin string) (containerrt.ExecResult, error) {
	if spec.Env == nil {
		spec.Env = map[string]string{}
	}
	spec.Env["CAI_ENV_PAYLOAD"] = b64(stdin)

	out := im.adapter.RunForeground(ctx, "", spec, containerrt.TimeoutContextOrVolume)
	if !out.IsOK() {
		switch {
		case out.TimedOut:
			return containerrt.ExecResult{}, fmt.Errorf("env-write helper timed out")
		case out.Err != nil:
			return containerrt.ExecResult{}, out.Err
		default:
			return containerrt.ExecResult{}, out.Unknown
		}
	}
	return out.Value, nil
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
