package cmd

import (
	"context"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/lifecycle"
	"github.com/spf13/cobra"
)

var execWorkspace string

var execCmd = &cobra.Command{
	Use:   "exec [--] COMMAND...",
	Short: "Run a command inside the running agent container",
	RunE: func(c *cobra.Command, args []string) error {
		command := args
		if dash := c.ArgsLenAtDash(); dash >= 0 {
			command = args[dash:]
		}
		if len(command) == 0 {
			return &lifecycle.UsageError{Msg: "exec requires a command"}
		}

		workspace, err := resolveWorkspace(execWorkspace)
		if err != nil {
			return err
		}
		a, err := bootstrap(workspace, true)
		if err != nil {
			return err
		}
		defer a.Close()

		name := lifecycle.DeriveName(workspace)
		insp := a.Adapter.ContainerInspect(context.Background(), a.Endpoint, name)
		if !insp.IsOK() || insp.Value.Status != "running" {
			return &lifecycle.UsageError{Msg: "no running container named " + name + "; run `cai run` first"}
		}

		out := a.Adapter.Exec(context.Background(), a.Endpoint, name, command, true)
		if !out.IsOK() {
			return withExitCode(1, describeExecFailure(out))
		}
		if out.Value != 0 {
			return withExitCode(out.Value, errNonZeroExit(out.Value))
		}
		return nil
	},
}

func describeExecFailure(out containerrt.Outcome[int]) error {
	switch {
	case out.TimedOut:
		return &containerrt.TimeoutError{Operation: "exec"}
	case out.Err != nil:
		return out.Err
	default:
		return out.Unknown
	}
}

func init() {
	execCmd.Flags().StringVar(&execWorkspace, "workspace", "", "workspace path")
	rootCmd.AddCommand(execCmd)
}


