package lifecycle

import (
	"fmt"
	"sort"
	"strings"
)

// agentImages maps a known agent name to its ContainAI-published image
// repository. New agents are added here, not inferred from user input.
var agentImages = map[string]string{
	"claude": "ghcr.io/containai/claude",
	"codex":  "ghcr.io/containai/codex",
	"aider":  "ghcr.io/containai/aider",
}

// ResolveImage maps an agent name and optional --image-tag override to a
// full image reference, hard-failing with the list of valid agents when
// the name is unknown (spec §4.8's "unknown agent name" usage gate).
func ResolveImage(agent, tag string) (string, error) {
	repo, ok := agentImages[agent]
	if !ok {
		names := make([]string, 0, len(agentImages))
		for name := range agentImages {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", &UsageError{Msg: fmt.Sprintf("unknown agent %q; valid agents: %s", agent, strings.Join(names, ", "))}
	}
	if tag == "" {
		tag = "latest"
	}
	return repo + ":" + tag, nil
}


