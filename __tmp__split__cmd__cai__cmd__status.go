package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/doctor"
	"github.com/containai/cai/internal/lifecycle"
	"github.com/spf13/cobra"
)

var (
	statusJSON      bool
	statusWorkspace string
)

type statusReport struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	Image          string `json:"image"`
	IsolationReady bool   `json:"isolation_ready"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the resolved container's current state",
	RunE: func(c *cobra.Command, args []string) error {
		workspace, err := resolveWorkspace(statusWorkspace)
		if err != nil {
			return err
		}
		a, err := bootstrap(workspace, true)
		if err != nil {
			return err
		}
		defer a.Close()

		name := lifecycle.DeriveName(workspace)
		ctrl := lifecycle.New(a.Log, a.Adapter)
		st, err := ctrl.Inspect(context.Background(), a.Endpoint, name)
		if err != nil {
			return err
		}

		runner := doctor.NewRunner(a.Log, a.Adapter, a.Probe, containerrt.HardenedContextName())
		report := runner.Run(context.Background(), a.Endpoint)

		result := statusReport{
			Name:           st.Name,
			State:          st.State,
			Image:          st.Image,
			IsolationReady: report.Ready(),
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		out := printer()
		out.Result("%s", result.Name)
		if result.State == "none" {
			out.Info("state: none (no container created yet)")
		} else {
			out.Info("state: %s", result.State)
			out.Info("image: %s", result.Image)
		}
		if result.IsolationReady {
			out.OK("isolation ready")
		} else {
			out.Warn("isolation not ready; run `cai doctor` for details")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable JSON")
	statusCmd.Flags().StringVar(&statusWorkspace, "workspace", "", "workspace path")
	rootCmd.AddCommand(statusCmd)
}


