package cmd

import (
	"context"
	"os"

	"github.com/containai/cai/internal/envimport"
	"github.com/containai/cai/internal/syncengine"
	"github.com/spf13/cobra"
)

var (
	importContainer  string
	importDataVolume string
	importFrom       string
	importDryRun     bool
	importNoExcludes bool
	importNoSecrets  bool
	importVerbose    bool
)

var importCmd = &cobra.Command{
	Use:   "import [workspace]",
	Short: "Sync host configuration and environment into the data volume",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		raw := ""
		if len(args) == 1 {
			raw = args[0]
		}
		workspace, err := resolveWorkspace(raw)
		if err != nil {
			return err
		}
		a, err := bootstrap(workspace, true)
		if err != nil {
			return err
		}
		defer a.Close()

		eff := a.Store.Resolve(workspace)
		dataVolume := importDataVolume
		if dataVolume == "" {
			dataVolume = eff.DataVolume
		}
		if v := os.Getenv("CONTAINAI_DATA_VOLUME"); v != "" {
			dataVolume = v
		}

		home := importFrom
		if home == "" {
			home, err = os.UserHomeDir()
			if err != nil {
				return err
			}
		}

		syncMap := syncengine.DefaultSyncMap
		if importNoSecrets {
			syncMap = withoutSecrets(syncMap)
		}

		out := printer()
		syncEng := syncengine.New(a.Log, a.Adapter, "")
		res, err := syncEng.Sync(context.Background(), syncengine.Options{
			HomeDir:           home,
			DataVolume:        dataVolume,
			Map:               syncMap,
			ConfigExcludes:    eff.Excludes,
			WorkspaceExcludes: nil,
			NoExcludes:        importNoExcludes,
			DryRun:            importDryRun,
		})
		if err != nil {
			return err
		}
		for _, change := range res.Changes {
			out.OK("synced %s", change)
		}

		if !importDryRun {
			syncEng.RunPostSyncTransforms(context.Background(), syncengine.Options{HomeDir: home, DataVolume: dataVolume})
		}

		importer := envimport.New(a.Log, a.Adapter, "")
		envRes, err := importer.Import(context.Background(), envimport.Options{
			Workspace:  workspace,
			DataVolume: dataVolume,
			Env:        eff.Env,
			DryRun:     importDryRun,
		})
		if err != nil {
			return err
		}
		for _, name := range envRes.Names {
			out.OK("imported env var %s", name)
		}

		out.Result("%s", dataVolume)
		return nil
	},
}

func withoutSecrets(m syncengine.SyncMap) syncengine.SyncMap {
	out := make(syncengine.SyncMap, 0, len(m))
	for _, e := range m {
		if e.IsSecret() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func init() {
	importCmd.Flags().StringVar(&importContainer, "container", "", "target container name (reserved for future container-scoped import)")
	importCmd.Flags().StringVar(&importDataVolume, "data-volume", "", "override the resolved data volume")
	importCmd.Flags().StringVar(&importFrom, "from", "", "alternate host home directory to sync from")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report what would change without writing")
	importCmd.Flags().BoolVar(&importNoExcludes, "no-excludes", false, "disable default and per-entry excludes")
	importCmd.Flags().BoolVar(&importNoSecrets, "no-secrets", false, "skip secret-flagged sync map entries")
	importCmd.Flags().BoolVar(&importVerbose, "verbose", false, "print every synced path")
	rootCmd.AddCommand(importCmd)
}


