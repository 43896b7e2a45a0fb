// Package lifecycle implements the Lifecycle subsystem (spec §4.8):
// container naming, ownership/identity checks, and the
// none/created/running/exited state machine driving run/shell/exec/stop.
package lifecycle

import (
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// OwnershipLabelKey is the label key Lifecycle checks for ownership.
	OwnershipLabelKey = "containai.sandbox"
	// OwnershipLabelValue is the current label value.
	OwnershipLabelValue = "containai"
	// legacyOwnershipLabelValue is honored for containers created by an
	// older release that used a different label value.
	legacyOwnershipLabelValue = "devcontainer-sandbox"
	// ImageRepoPrefix identifies images published under the ContainAI
	// image repository, the second ownership signal.
	ImageRepoPrefix = "ghcr.io/containai/"

	fallbackName = "containai-workspace"
)

var (
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9-]+`)
	multiDashRe = regexp.MustCompile(`-{2,}`)
)

// DeriveName computes the deterministic container name for a workspace per
// spec §3/§8: "{repo-basename}-{branch-or-detached-sha}" when workspace is
// inside a git checkout, else the workspace basename, sanitized to
// lowercase [a-z0-9-]{1,63} with no leading/trailing dash, falling back to
// a fixed non-empty name if sanitization empties the result.
func DeriveName(workspace string) string {
	var raw string
	if repoRoot, ok := gitRoot(workspace); ok {
		branch := gitBranchOrSHA(repoRoot)
		raw = filepath.Base(repoRoot) + "-" + branch
	} else {
		raw = filepath.Base(workspace)
	}
	return Sanitize(raw)
}

// Sanitize lowercases name, replaces runs of non-[a-z0-9-] with a single
// dash, trims leading/trailing dashes, truncates to 63 characters, and
// substitutes the fixed fallback if the result is empty.
func Sanitize(name string) string {
	lower := strings.ToLower(name)
	dashed := nonAlnumRe.ReplaceAllString(lower, "-")
	collapsed := multiDashRe.ReplaceAllString(dashed, "-")
	trimmed := strings.Trim(collapsed, "-")
	if len(trimmed) > 63 {
		trimmed = strings.Trim(trimmed[:63], "-")
	}
	if trimmed == "" {
		return fallbackName
	}
	return trimmed
}

func gitRoot(workspace string) (string, bool) {
	out, err := exec.Command("git", "-C", workspace, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", false
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", false
	}
	return root, true
}

func gitBranchOrSHA(repoRoot string) string {
	if out, err := exec.Command("git", "-C", repoRoot, "symbolic-ref", "--short", "-q", "HEAD").Output(); err == nil {
		if branch := strings.TrimSpace(string(out)); branch != "" {
			return branch
		}
	}
	out, err := exec.Command("git", "-C", repoRoot, "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "detached"
	}
	return strings.TrimSpace(string(out))
}

// IsOwned reports whether a container's labels or image identify it as a
// ContainAI-managed container.
func IsOwned(labels map[string]string, image string) bool {
	if v, ok := labels[OwnershipLabelKey]; ok {
		if v == OwnershipLabelValue || v == legacyOwnershipLabelValue {
			return true
		}
	}
	return strings.HasPrefix(image, ImageRepoPrefix)
}
