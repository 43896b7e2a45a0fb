package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/containai/cai/internal/lifecycle"
	"github.com/spf13/cobra"
)

var (
	stopAll       bool
	stopRemove    bool
	stopForce     bool
	stopWorkspace string
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop ContainAI-owned containers",
	RunE: func(c *cobra.Command, args []string) error {
		workspace, err := resolveWorkspace(stopWorkspace)
		if err != nil {
			return err
		}
		a, err := bootstrap(workspace, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl := lifecycle.New(a.Log, a.Adapter)
		name := lifecycle.DeriveName(workspace)
		candidates, err := ctrl.StopCandidates(context.Background(), a.Endpoint, knownAgentImages(), []string{name})
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			printer().Info("no ContainAI-owned containers found")
			return nil
		}

		selected := candidates
		if !stopAll {
			if !isInteractive() {
				return &lifecycle.UsageError{Msg: "stop requires --all for non-interactive use"}
			}
			selected, err = promptSelect(candidates)
			if err != nil {
				return err
			}
		}

		out := printer()
		for _, cand := range selected {
			if err := ctrl.Stop(context.Background(), a.Endpoint, cand.Name, stopRemove, stopForce); err != nil {
				out.Error("%s: %v", cand.Name, err)
				continue
			}
			out.OK("stopped %s", cand.Name)
		}
		return nil
	},
}

func knownAgentImages() []string {
	names := []string{}
	for _, agent := range []string{"claude", "codex", "aider"} {
		if img, err := lifecycle.ResolveImage(agent, ""); err == nil {
			names = append(names, img)
		}
	}
	return names
}

func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func promptSelect(candidates []lifecycle.StopCandidate) ([]lifecycle.StopCandidate, error) {
	fmt.Fprintln(os.Stderr, "Select a container to stop:")
	for i, cand := range candidates {
		fmt.Fprintf(os.Stderr, "  [%d] %s (%s)\n", i+1, cand.Name, cand.Image)
	}
	fmt.Fprint(os.Stderr, "> ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return nil, fmt.Errorf("no selection made")
	}
	var idx int
	if _, err := fmt.Sscanf(scanner.Text(), "%d", &idx); err != nil || idx < 1 || idx > len(candidates) {
		return nil, fmt.Errorf("invalid selection")
	}
	return []lifecycle.StopCandidate{candidates[idx-1]}, nil
}

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop all candidates without prompting")
	stopCmd.Flags().BoolVar(&stopRemove, "remove", false, "remove the container after stopping")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "force stop/remove even on error")
	stopCmd.Flags().StringVar(&stopWorkspace, "workspace", "", "workspace path")
	rootCmd.AddCommand(stopCmd)
}


