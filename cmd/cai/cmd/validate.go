package cmd

import (
	"context"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/doctor"
	"github.com/spf13/cobra"
)

var validateVerbose bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the hardened isolation path is functional",
	RunE: func(c *cobra.Command, args []string) error {
		a, err := bootstrap("", true)
		if err != nil {
			return err
		}
		defer a.Close()

		runner := doctor.NewRunner(a.Log, a.Adapter, a.Probe, containerrt.HardenedContextName())
		report := runner.Run(context.Background(), a.Endpoint)

		out := printer()
		for _, check := range report.Checks {
			if check.Status == doctor.StatusOK && !validateVerbose && !flagVerbose {
				continue
			}
			switch check.Status {
			case doctor.StatusOK:
				out.OK("%s: %s", check.Name, check.Detail)
			case doctor.StatusWarn:
				out.Warn("%s: %s", check.Name, check.Detail)
			default:
				out.Error("%s: %s", check.Name, check.Detail)
			}
		}

		if !report.Ready() {
			out.Error("isolation is not ready: recommended action is %q", report.Summary.RecommendedAction)
			return withExitCode(1, errDoctorNotReady)
		}
		out.OK("isolation is ready")
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateVerbose, "verbose", false, "show passing checks as well as failing ones")
	rootCmd.AddCommand(validateCmd)
}
