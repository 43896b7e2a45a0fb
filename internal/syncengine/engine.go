package syncengine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/containai/cai/internal/containerrt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HelperImage is the minimal Linux image carrying an rsync-like tool that
// every disposable helper container in this package runs.
const HelperImage = "ghcr.io/containai/sync-helper:latest"

const (
	sourceMount = "/source"
	targetMount = "/target"

	envSyncMap  = "CAI_SYNC_MAP"
	envExcludes = "CAI_EXCLUDES"
	envDryRun   = "CAI_DRY_RUN"

	agentUID = "1000"
	agentGID = "1000"
)

// timeout for the helper container itself: unbounded-but-cancellable per
// spec §5, bounded generously here so a hung helper doesn't wedge forever.
const helperTimeout = 10 * time.Minute

// Options controls one Sync invocation.
type Options struct {
	HomeDir         string
	DataVolume      string
	Map             SyncMap
	ConfigExcludes  []string
	WorkspaceExcludes []string
	NoExcludes      bool
	DryRun          bool
}

// Result is the outcome of one Sync invocation.
type Result struct {
	Changes  []string
	Excludes []string
}

// Engine executes SyncMaps through disposable helper containers.
type Engine struct {
	log     *logrus.Entry
	adapter containerrt.Adapter
	image   string
}

// New returns an Engine. image overrides HelperImage when non-empty.
func New(log *logrus.Entry, adapter containerrt.Adapter, image string) *Engine {
	if image == "" {
		image = HelperImage
	}
	return &Engine{log: log, adapter: adapter, image: image}
}

// EffectiveExcludes computes default_excludes ∪ workspace.excludes per spec
// §8's invariant: newline-free filtered, order-preserving deduplicated.
// --no-excludes disables both sets entirely (and the caller is expected to
// also drop the per-entry "x" flag's behavior when NoExcludes is set).
func EffectiveExcludes(configExcludes, workspaceExcludes []string, noExcludes bool) []string {
	if noExcludes {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{configExcludes, workspaceExcludes} {
		for _, e := range group {
			if strings.ContainsAny(e, "\n\r") {
				continue
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// Sync runs opts.Map against the data volume through a single disposable
// helper container, in declared map order (the helper, not this code,
// walks each entry; the map and excludes travel in as base64-encoded
// environment variables to avoid shell-escaping hazards).
func (e *Engine) Sync(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Map.Validate(); err != nil {
		return nil, fmt.Errorf("sync map: %w", err)
	}

	excludes := EffectiveExcludes(opts.ConfigExcludes, opts.WorkspaceExcludes, opts.NoExcludes)
	excludeArgs := make([]string, 0, len(excludes))
	for _, ex := range excludes {
		excludeArgs = append(excludeArgs, "--exclude="+ex)
	}

	mapJSON, err := json.Marshal(opts.Map)
	if err != nil {
		return nil, fmt.Errorf("encoding sync map: %w", err)
	}

	spec := containerrt.RunSpec{
		Name:       "cai-sync-" + uuid.NewString()[:8],
		Image:      e.image,
		AutoRemove: true,
		Env: map[string]string{
			envSyncMap:  base64.StdEncoding.EncodeToString(mapJSON),
			envExcludes: base64.StdEncoding.EncodeToString([]byte(strings.Join(excludeArgs, "\n"))),
			envDryRun:   boolEnv(opts.DryRun),
			"CAI_AGENT_UID": agentUID,
			"CAI_AGENT_GID": agentGID,
			"CAI_NO_EXCLUDES": boolEnv(opts.NoExcludes),
		},
		Mounts: []containerrt.MountSpec{
			{Type: "bind", Source: opts.HomeDir, Destination: sourceMount, ReadOnly: true},
			{Type: "volume", Source: opts.DataVolume, Destination: targetMount},
		},
	}

	out := e.adapter.RunForeground(ctx, "", spec, helperTimeout)
	if !out.IsOK() {
		return nil, fmt.Errorf("sync helper container failed: %s", describeExecOutcome(out))
	}
	if out.Value.ExitCode != 0 {
		return nil, fmt.Errorf("sync helper exited %d: %s", out.Value.ExitCode, strings.TrimSpace(out.Value.Stderr))
	}

	return &Result{
		Changes:  splitNonEmpty(out.Value.Stdout),
		Excludes: excludes,
	}, nil
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func describeExecOutcome(o containerrt.Outcome[containerrt.ExecResult]) string {
	switch {
	case o.TimedOut:
		return "timed out"
	case o.Err != nil:
		return o.Err.Error()
	case o.Unknown != nil:
		return o.Unknown.Error()
	default:
		return "ok"
	}
}
