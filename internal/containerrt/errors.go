// Package containerrt implements the RuntimeAdapter: a uniform, timeout
// bounded wrapper over the container CLI (docker or podman).
package containerrt

import (
	"fmt"
	"strings"

	"github.com/go-errors/errors"
)

// WrapError wraps an error for the sake of showing a stack trace at the top
// level. go-errors does not return nil when wrapping a non-error, so we
// guard that here.
func WrapError(err error) error {
	if err == nil {
		return err
	}
	return errors.Wrap(err, 0)
}

// ReasonClass is the set of stderr-derived failure classifications the
// RuntimeAdapter recognizes. Callers branch on these instead of matching
// raw stderr text themselves.
type ReasonClass string

const (
	ReasonDaemonNotRunning      ReasonClass = "daemon-not-running"
	ReasonPermissionDenied      ReasonClass = "permission-denied"
	ReasonContextMissing        ReasonClass = "context-missing"
	ReasonNotRecognizedSubcmd   ReasonClass = "not-recognized-subcommand"
	ReasonPolicyDisabled        ReasonClass = "policy-disabled"
	ReasonNoSuchObject          ReasonClass = "no-such-object"
	ReasonUnknown               ReasonClass = "unknown"
)

// classifiers are tried in order; the first matching substring wins.
var classifiers = []struct {
	class   ReasonClass
	matches []string
}{
	{ReasonDaemonNotRunning, []string{
		"cannot connect to the docker daemon",
		"is the docker daemon running",
		"cannot connect to podman",
		"connection refused",
		// the Go net dialer's wording for a missing engine socket, e.g.
		// "dial unix /var/run/docker.sock: connect: no such file or
		// directory" — narrower than a bare "no such file or directory",
		// which also shows up for unrelated missing-path failures (a bad
		// bind-mount source, a missing workdir).
		"connect: no such file or directory",
	}},
	{ReasonPermissionDenied, []string{
		"permission denied",
		"got permission denied while trying to connect",
	}},
	{ReasonContextMissing, []string{
		"context not found",
		"unknown context",
		"no such context",
	}},
	{ReasonNotRecognizedSubcmd, []string{
		"unknown command",
		"is not a docker command",
		"unrecognized command",
	}},
	{ReasonPolicyDisabled, []string{
		"operation not permitted",
		"disabled by policy",
		"administrator has disabled",
	}},
	{ReasonNoSuchObject, []string{
		"no such container",
		"no such volume",
		"no such image",
		"no such object",
	}},
}

// Classify matches stderr text against the reason table and returns the
// first hit, or ReasonUnknown if nothing matches.
func Classify(stderr string) ReasonClass {
	lower := strings.ToLower(stderr)
	for _, c := range classifiers {
		for _, m := range c.matches {
			if strings.Contains(lower, m) {
				return c.class
			}
		}
	}
	return ReasonUnknown
}

// ClassifiedError is returned when an external call fails with output the
// adapter was able to classify.
type ClassifiedError struct {
	Reason ReasonClass
	Stderr string
	Err    error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, firstLine(e.Stderr))
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// TimeoutError is returned when an external call exceeds its bounded
// timeout without producing a classified failure.
type TimeoutError struct {
	Operation string
	Timeout   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
