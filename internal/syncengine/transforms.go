package syncengine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/containai/cai/internal/containerrt"
	"github.com/google/uuid"
)

// Transform is one post-sync JSON rewrite (spec §4.6). Each transform reads
// host files directly and, on success, writes its result into the volume
// through a disposable container. A transform that fails validation warns
// and is skipped; it never aborts the overall sync.
type Transform struct {
	Name string
	Run  func(ctx context.Context, e *Engine, opts Options) error
}

// PostSyncTransforms is the ordered set of transforms that run after a
// non-dry-run Sync.
var PostSyncTransforms = []Transform{
	{Name: "installed-plugins-rewrite", Run: installedPluginsRewrite},
	{Name: "marketplaces-rewrite", Run: marketplacesRewrite},
	{Name: "settings-merge", Run: settingsMerge},
	{Name: "orphan-marker-cleanup", Run: orphanMarkerCleanup},
}

const (
	hostPluginRoot      = ".claude/plugins"
	hostSettingsFile    = ".claude/settings.json"
	containerPluginRoot = "/home/agent/.claude/plugins"

	installedPluginsFile = "claude/plugins/installed.json"
	marketplacesFile     = "claude/plugins/marketplaces.json"
	settingsFile         = "claude/settings.json"
)

// RunPostSyncTransforms executes every transform, logging and continuing
// past individual failures (spec §4.6/§7: recoverable sync-transform
// failures warn, the sync as a whole still succeeds).
func (e *Engine) RunPostSyncTransforms(ctx context.Context, opts Options) {
	for _, t := range PostSyncTransforms {
		if err := t.Run(ctx, e, opts); err != nil {
			e.log.Warnf("post-sync transform %q skipped: %v", t.Name, err)
		}
	}
}

// installedPluginsRewrite rewrites each entry's install path from the
// host's plugin root to the container's, sets scope="user", and strips any
// projectPath field.
func installedPluginsRewrite(ctx context.Context, e *Engine, opts Options) error {
	raw, err := readHostJSONArray(opts.HomeDir, hostPluginRoot+"/installed.json")
	if err != nil {
		return err
	}
	for i, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return fmt.Errorf("entry %d is not an object", i)
		}
		if path, ok := m["installPath"].(string); ok {
			m["installPath"] = rewritePath(path, hostPluginRoot, containerPluginRoot)
		}
		m["scope"] = "user"
		delete(m, "projectPath")
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return e.writeIntoVolume(ctx, opts.DataVolume, installedPluginsFile, out)
}

// marketplacesRewrite applies the same host→container path substitution to
// each entry's installLocation field.
func marketplacesRewrite(ctx context.Context, e *Engine, opts Options) error {
	raw, err := readHostJSONArray(opts.HomeDir, hostPluginRoot+"/marketplaces.json")
	if err != nil {
		return err
	}
	for i, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return fmt.Errorf("entry %d is not an object", i)
		}
		if loc, ok := m["installLocation"].(string); ok {
			m["installLocation"] = rewritePath(loc, hostPluginRoot, containerPluginRoot)
		}
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return e.writeIntoVolume(ctx, opts.DataVolume, marketplacesFile, out)
}

// canonicalSettings is the default object settingsMerge starts from when
// the volume's existing settings are missing or invalid.
var canonicalSettings = map[string]interface{}{
	"enabledPlugins": map[string]interface{}{},
}

// settingsMerge overlays the host settings' enabledPlugins map onto the
// volume's existing settings, preserving the rest of the volume's fields.
func settingsMerge(ctx context.Context, e *Engine, opts Options) error {
	hostRaw, err := readHostJSONObject(opts.HomeDir, hostSettingsFile)
	if err != nil {
		return err
	}
	hostEnabled, _ := hostRaw["enabledPlugins"].(map[string]interface{})
	if hostEnabled == nil {
		hostEnabled = map[string]interface{}{}
	}

	volumeRaw, err := e.readVolumeJSONObject(ctx, opts.DataVolume, settingsFile)
	if err != nil || volumeRaw == nil {
		volumeRaw = cloneMap(canonicalSettings)
	}
	volumeRaw["enabledPlugins"] = hostEnabled

	out, err := json.Marshal(volumeRaw)
	if err != nil {
		return err
	}
	return e.writeIntoVolume(ctx, opts.DataVolume, settingsFile, out)
}

// orphanMarkerCleanup deletes any file named ".orphaned_at" under the
// plugin cache subtree inside the volume.
func orphanMarkerCleanup(ctx context.Context, e *Engine, opts Options) error {
	spec := containerrt.RunSpec{
		Name:       "cai-sync-cleanup-" + shortSuffix(),
		Image:      e.image,
		AutoRemove: true,
		Entrypoint: []string{"sh"},
		Command:    []string{"-c", "find /target/claude/plugins -name .orphaned_at -delete"},
		Mounts: []containerrt.MountSpec{
			{Type: "volume", Source: opts.DataVolume, Destination: targetMount},
		},
	}
	out := e.adapter.RunForeground(ctx, "", spec, helperTimeout)
	if !out.IsOK() {
		return fmt.Errorf("cleanup helper failed: %s", describeExecOutcome(out))
	}
	if out.Value.ExitCode != 0 {
		return fmt.Errorf("cleanup helper exited %d", out.Value.ExitCode)
	}
	return nil
}

// writeIntoVolume base64-encodes data and writes it to relPath (relative to
// /target) inside a disposable container, validating it parses as JSON
// before writing (spec §4.6: "validates output JSON before writing").
func (e *Engine) writeIntoVolume(ctx context.Context, volume, relPath string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("refusing to write invalid JSON to %s", relPath)
	}
	spec := containerrt.RunSpec{
		Name:       "cai-sync-write-" + shortSuffix(),
		Image:      e.image,
		AutoRemove: true,
		Entrypoint: []string{"sh"},
		Command: []string{"-c",
			"mkdir -p \"$(dirname /target/" + relPath + ")\" && " +
				"echo \"$CAI_PAYLOAD\" | base64 -d > /target/" + relPath},
		Env: map[string]string{"CAI_PAYLOAD": base64.StdEncoding.EncodeToString(data)},
		Mounts: []containerrt.MountSpec{
			{Type: "volume", Source: volume, Destination: targetMount},
		},
	}
	out := e.adapter.RunForeground(ctx, "", spec, helperTimeout)
	if !out.IsOK() {
		return fmt.Errorf("write helper failed: %s", describeExecOutcome(out))
	}
	if out.Value.ExitCode != 0 {
		return fmt.Errorf("write helper exited %d: %s", out.Value.ExitCode, out.Value.Stderr)
	}
	return nil
}

// readVolumeJSONObject reads relPath from the volume via a disposable
// container, returning (nil, nil) when the file is missing or not valid
// JSON (callers treat that as "start from canonical default").
func (e *Engine) readVolumeJSONObject(ctx context.Context, volume, relPath string) (map[string]interface{}, error) {
	spec := containerrt.RunSpec{
		Name:       "cai-sync-read-" + shortSuffix(),
		Image:      e.image,
		AutoRemove: true,
		Entrypoint: []string{"sh"},
		Command:    []string{"-c", "cat /target/" + relPath + " 2>/dev/null || true"},
		Mounts: []containerrt.MountSpec{
			{Type: "volume", Source: volume, Destination: targetMount},
		},
	}
	out := e.adapter.RunForeground(ctx, "", spec, helperTimeout)
	if !out.IsOK() || out.Value.ExitCode != 0 {
		return nil, fmt.Errorf("read helper failed")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(out.Value.Stdout), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// rewritePath substitutes the from prefix with to, but only at a path
// segment boundary: "from/foo" rewrites, "from-backup/foo" does not.
func rewritePath(path, from, to string) string {
	if path == from {
		return to
	}
	if strings.HasPrefix(path, from+"/") {
		return to + path[len(from):]
	}
	return path
}

func shortSuffix() string {
	return uuid.NewString()[:8]
}
