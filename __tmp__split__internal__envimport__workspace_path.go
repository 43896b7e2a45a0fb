package envimport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveWorkspaceRelative resolves rel against workspace, rejecting any
// path that escapes the workspace (spec §4.7: "strictly workspace-relative,
// symlink-rejected") or that passes through a symlink anywhere along the
// way.
func resolveWorkspaceRelative(workspace, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("env_file must be workspace-relative, got absolute path %q", rel)
	}
	joined := filepath.Join(workspace, rel)
	relCheck, err := filepath.Rel(workspace, joined)
	if err != nil || relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("env_file %q escapes the workspace", rel)
	}

	if info, err := os.Lstat(joined); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("env_file %q is a symlink", rel)
	}

	dir := filepath.Dir(joined)
	for dir != workspace && dir != filepath.Dir(dir) {
		if info, err := os.Lstat(dir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("env_file %q has a symlinked ancestor directory", rel)
		}
		dir = filepath.Dir(dir)
	}

	return joined, nil
}


