package cmd

import (
	"os"

	"github.com/containai/cai/internal/app"
	"github.com/containai/cai/internal/cliutil"
	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool

	buildVersion, buildCommit, buildDate string
)

var rootCmd = &cobra.Command{
	Use:           "cai",
	Short:         "Run AI coding agents inside hardened Linux containers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and returns the process exit code.
func Execute(version, commit, date string) int {
	buildVersion, buildCommit, buildDate = version, commit, date

	err := rootCmd.Execute()
	if err == nil {
		return cliutil.ExitSuccess
	}
	if code, ok := exitCodeFromError(err); ok {
		return code
	}
	printer().Error("%v", err)
	return cliutil.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "explicit configuration file path")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", os.Getenv("CONTAINAI_VERBOSE") == "1", "raise log verbosity")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress non-essential progress output")
}

func printer() cliutil.Printer {
	return cliutil.Printer{Out: os.Stdout, Err: os.Stderr, Verbose: flagVerbose || flagDebug}
}

// resolveWorkspace returns arg unchanged if non-empty, else the current
// working directory.
func resolveWorkspace(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	return os.Getwd()
}

// bootstrap builds an App for a subcommand, resolving workspace against
// the current directory when empty.
func bootstrap(workspace string, requireRuntime bool) (*app.App, error) {
	workspace, err := resolveWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	return app.New(app.Options{
		Version:        buildVersion,
		Commit:         buildCommit,
		BuildDate:      buildDate,
		Workspace:      workspace,
		ConfigPath:     flagConfigPath,
		RequireRuntime: requireRuntime,
		Verbose:        flagVerbose,
		Debug:          flagDebug,
	})
}

// exitCodeError lets a subcommand's RunE carry a specific exit code
// (e.g. the container-start or session-attach codes) through cobra's
// generic error-returning RunE signature.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeError{code: code, err: err}
}

func exitCodeFromError(err error) (int, bool) {
	var ec *exitCodeError
	if as, ok := err.(*exitCodeError); ok {
		ec = as
		printer().Error("%v", ec.err)
		return ec.code, true
	}
	return 0, false
}
