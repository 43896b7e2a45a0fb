package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/containai/cai/internal/containerrt"
	"github.com/containai/cai/internal/lifecycle"
	"github.com/spf13/cobra"
)

var (
	runName                      string
	runWorkspace                 string
	runDataVolume                string
	runAgent                     string
	runImageTag                  string
	runCredentials               string
	runAcknowledgeCredentialRisk bool
	runRestart                   bool
	runFresh                     bool
	runReset                     bool
	runForce                     bool
	runDetached                  bool
	runShell                     bool
	runMountDockerSocket         bool
	runPleaseRootMyHost          bool
	runEnv                       []string
	runVolumes                   []string
)

var runCmd = &cobra.Command{
	Use:   "run [path] [-- AGENT_ARGS...]",
	Short: "Create or attach the agent container for a workspace",
	RunE: func(c *cobra.Command, args []string) error {
		raw, agentArgs := splitPathAndAgentArgs(c, args)
		return runLifecycle(raw, agentArgs, runShell)
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Attach a shell session inside the agent container",
	RunE: func(c *cobra.Command, args []string) error {
		return runLifecycle(runWorkspace, nil, true)
	},
}

// splitPathAndAgentArgs separates an optional leading workspace path from
// the AGENT_ARGS following a literal "--", per spec §6's run/exec syntax.
func splitPathAndAgentArgs(c *cobra.Command, args []string) (string, []string) {
	dash := c.ArgsLenAtDash()
	if dash < 0 {
		if len(args) > 0 {
			return args[0], nil
		}
		return "", nil
	}
	var path string
	if dash > 0 {
		path = args[0]
	}
	return path, args[dash:]
}

func runLifecycle(workspacePath string, agentArgs []string, shell bool) error {
	if workspacePath == "" {
		workspacePath = runWorkspace
	}
	workspace, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	a, err := bootstrap(workspace, true)
	if err != nil {
		return err
	}
	defer a.Close()

	eff := a.Store.Resolve(workspace)

	agent := runAgent
	if agent == "" {
		agent = eff.DefaultAgent
	}
	image, err := lifecycle.ResolveImage(agent, runImageTag)
	if err != nil {
		return err
	}

	dataVolume := runDataVolume
	if dataVolume == "" {
		dataVolume = eff.DataVolume
	}
	if v := os.Getenv("CONTAINAI_DATA_VOLUME"); v != "" {
		dataVolume = v
	}

	creds := lifecycle.CredentialsNone
	if runCredentials == string(lifecycle.CredentialsHost) {
		creds = lifecycle.CredentialsHost
	}

	opts := lifecycle.Options{
		Name:                      runName,
		Workspace:                 workspace,
		DataVolume:                dataVolume,
		Image:                     image,
		Agent:                     agent,
		AgentArgs:                 agentArgs,
		Shell:                     shell,
		Credentials:               creds,
		AcknowledgeCredentialRisk: runAcknowledgeCredentialRisk,
		MountDockerSocket:         runMountDockerSocket,
		AcknowledgeDockerSocket:   runPleaseRootMyHost,
		Restart:                   runRestart,
		Fresh:                     runFresh,
		Reset:                     runReset,
		Force:                     runForce,
		Detached:                  runDetached,
		ExtraEnv:                  parseEnvFlags(runEnv),
		ExtraMounts:               parseVolumeFlags(runVolumes),
		RequireIsolation:          os.Getenv("CONTAINAI_REQUIRE_ISOLATION") == "1",
	}

	ctrl := lifecycle.New(a.Log, a.Adapter)
	code, err := ctrl.Run(context.Background(), a.Endpoint, opts)
	if err != nil {
		return withExitCode(code, err)
	}
	if code != 0 {
		return withExitCode(code, errNonZeroExit(code))
	}
	return nil
}

type nonZeroExitError int

func (e nonZeroExitError) Error() string { return "session exited non-zero" }

func errNonZeroExit(code int) error { return nonZeroExitError(code) }

func parseEnvFlags(raw []string) map[string]string {
	out := map[string]string{}
	for _, kv := range raw {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}

// parseVolumeFlags parses docker-style "-v SOURCE:DESTINATION[:ro]" specs
// into bind mounts. A malformed spec (missing the SOURCE:DESTINATION
// separator) is skipped with a warning rather than failing the whole run.
func parseVolumeFlags(raw []string) []containerrt.MountSpec {
	out := make([]containerrt.MountSpec, 0, len(raw))
	for _, spec := range raw {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 {
			printer().Warn("ignoring malformed --volume %q (want SOURCE:DESTINATION[:ro])", spec)
			continue
		}
		mount := containerrt.MountSpec{Type: "bind", Source: parts[0], Destination: parts[1]}
		if len(parts) >= 3 && parts[2] == "ro" {
			mount.ReadOnly = true
		}
		out = append(out, mount)
	}
	return out
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "override the derived container name")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "workspace path")
	runCmd.Flags().StringVar(&runDataVolume, "data-volume", "", "override the resolved data volume")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "agent to run (default from config)")
	runCmd.Flags().StringVar(&runImageTag, "image-tag", "", "image tag override")
	runCmd.Flags().StringVar(&runCredentials, "credentials", "none", "credential forwarding mode: none|host")
	runCmd.Flags().BoolVar(&runAcknowledgeCredentialRisk, "acknowledge-credential-risk", false, "required with --credentials=host")
	runCmd.Flags().BoolVar(&runRestart, "restart", false, "stop and recreate the container first")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "recreate the container without reusing cached layers")
	runCmd.Flags().BoolVar(&runReset, "reset", false, "stop and recreate, discarding container state")
	runCmd.Flags().BoolVar(&runForce, "force", false, "skip confirmation prompts")
	runCmd.Flags().BoolVar(&runDetached, "detached", false, "start without attaching")
	runCmd.Flags().BoolVar(&runShell, "shell", false, "attach a shell instead of the agent command")
	runCmd.Flags().BoolVar(&flagQuiet, "quiet", flagQuiet, "suppress non-essential progress output")
	runCmd.Flags().BoolVar(&runMountDockerSocket, "mount-docker-socket", false, "mount the host docker socket into the container")
	runCmd.Flags().BoolVar(&runPleaseRootMyHost, "please-root-my-host", false, "required with --mount-docker-socket")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "extra VAR=value to set in the container")
	runCmd.Flags().StringArrayVarP(&runVolumes, "volume", "v", nil, "extra bind mount SPEC")
	rootCmd.AddCommand(runCmd)

	shellCmd.Flags().StringVar(&runWorkspace, "workspace", "", "workspace path")
	rootCmd.AddCommand(shellCmd)
}
