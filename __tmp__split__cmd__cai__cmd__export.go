package cmd

import (
	"context"
	"os"

	"github.com/containai/cai/internal/exportengine"
	"github.com/spf13/cobra"
)

var (
	exportOutput     string
	exportContainer  string
	exportDataVolume string
	exportWorkspace  string
	exportNoExcludes bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the data volume to a local .tgz archive",
	RunE: func(c *cobra.Command, args []string) error {
		workspace, err := resolveWorkspace(exportWorkspace)
		if err != nil {
			return err
		}
		a, err := bootstrap(workspace, true)
		if err != nil {
			return err
		}
		defer a.Close()

		eff := a.Store.Resolve(workspace)
		dataVolume := exportDataVolume
		if dataVolume == "" {
			dataVolume = eff.DataVolume
		}
		if v := os.Getenv("CONTAINAI_DATA_VOLUME"); v != "" {
			dataVolume = v
		}

		eng := exportengine.New(a.Log, a.Adapter, "")
		path, err := eng.Export(context.Background(), exportengine.Options{
			DataVolume: dataVolume,
			OutputPath: exportOutput,
			Excludes:   eff.Excludes,
			NoExcludes: exportNoExcludes,
			UID:        os.Getuid(),
			GID:        os.Getgid(),
		})
		if err != nil {
			return err
		}
		printer().Result("%s", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output archive path (default: timestamped, in cwd)")
	exportCmd.Flags().StringVar(&exportContainer, "container", "", "target container name (reserved for future container-scoped export)")
	exportCmd.Flags().StringVar(&exportDataVolume, "data-volume", "", "override the resolved data volume")
	exportCmd.Flags().StringVar(&exportWorkspace, "workspace", "", "workspace to resolve configuration for")
	exportCmd.Flags().BoolVar(&exportNoExcludes, "no-excludes", false, "disable excludes")
	rootCmd.AddCommand(exportCmd)
}


