package cliutil

import (
	"errors"

	"github.com/containai/cai/internal/lifecycle"
)

// Exit codes per spec §6.
const (
	ExitSuccess          = 0
	ExitGeneralFailure   = 1
	ExitUsage            = 2
	ExitContainerStart   = 11
	ExitSessionAttachMin = 12
	ExitSessionAttachMax = 15
)

// ExitCode maps an error returned by a subcommand's RunE to the process
// exit code spec §6 prescribes. nil maps to success.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *lifecycle.UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitGeneralFailure
}
