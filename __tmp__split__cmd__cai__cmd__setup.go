package cmd

import (
	"context"

	"github.com/containai/cai/internal/provisioner"
	"github.com/spf13/cobra"
)

var (
	setupForce   bool
	setupDryRun  bool
	setupVerbose bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the hardened isolation runtime for this host",
	RunE: func(c *cobra.Command, args []string) error {
		a, err := bootstrap("", true)
		if err != nil {
			return err
		}
		defer a.Close()

		p := provisioner.New(a.Log, a.Probe, a.Adapter)
		plan, err := p.Run(context.Background(), provisioner.Options{
			Force:   setupForce,
			DryRun:  setupDryRun,
			Verbose: setupVerbose || flagVerbose,
		})
		if err != nil {
			return err
		}

		out := printer()
		for _, step := range plan.Steps {
			out.OK("%s", step.Description)
		}
		if setupDryRun {
			out.Info("dry run: %d step(s) planned, none applied", len(plan.Steps))
		}
		return nil
	},
}

func init() {
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "re-apply steps even if already satisfied")
	setupCmd.Flags().BoolVar(&setupDryRun, "dry-run", false, "print the plan without applying it")
	setupCmd.Flags().BoolVar(&setupVerbose, "verbose", false, "print each step's detail as it runs")
	rootCmd.AddCommand(setupCmd)
}


