// Command cai is the host-side controller that runs AI coding agents
// inside hardened Linux containers.
package main

import (
	"os"

	"github.com/containai/cai/cmd/cai/cmd"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(cmd.Execute(version, commit, buildDate))
}
