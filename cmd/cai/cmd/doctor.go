package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/doctor"
	"github.com/spf13/cobra"
)

var (
	doctorJSON           bool
	doctorBuildTemplates bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report whether a hardened isolation path is available",
	RunE: func(c *cobra.Command, args []string) error {
		a, err := bootstrap("", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if doctorBuildTemplates {
			printer().Info("template build is a build-time step; nothing to do at runtime")
		}

		if a.Adapter == nil {
			report := &doctor.Report{}
			return emitDoctorReport(report, false)
		}

		runner := doctor.NewRunner(a.Log, a.Adapter, a.Probe, containerrt.HardenedContextName())
		report := runner.Run(context.Background(), a.Endpoint)
		return emitDoctorReport(report, report.Ready())
	},
}

func emitDoctorReport(report *doctor.Report, ready bool) error {
	if doctorJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		p := printer()
		for _, check := range report.Checks {
			switch check.Status {
			case doctor.StatusOK:
				p.OK("%s: %s", check.Name, check.Detail)
			case doctor.StatusWarn:
				p.Warn("%s: %s", check.Name, check.Detail)
			default:
				p.Error("%s: %s", check.Name, check.Detail)
			}
		}
		p.Info("recommended action: %s", report.Summary.RecommendedAction)
	}
	if !ready {
		return withExitCode(1, errDoctorNotReady)
	}
	return nil
}

var errDoctorNotReady = &doctorNotReadyError{}

type doctorNotReadyError struct{}

func (e *doctorNotReadyError) Error() string { return "no isolation path is ready" }

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "emit the stable JSON report shape")
	doctorCmd.Flags().BoolVar(&doctorBuildTemplates, "build-templates", false, "note that templates are built at build time (no runtime action)")
	rootCmd.AddCommand(doctorCmd)
}
