// Package platform implements the PlatformProbe and the OSCommand external
// process runner every other subsystem shells out through.
package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/jesseduffield/kill"
	"github.com/mgutz/str"
	"github.com/sirupsen/logrus"
)

// osInfo stores the host's shell and path conventions.
type osInfo struct {
	os       string
	shell    string
	shellArg string
}

// OSCommand wraps os/exec with structured logging, context-bound timeouts
// and process-group termination, the way the teacher's OSCommand does.
type OSCommand struct {
	Log     *logrus.Entry
	os      *osInfo
	command func(string, ...string) *exec.Cmd
}

// NewOSCommand returns an OSCommand bound to the running host.
func NewOSCommand(log *logrus.Entry) *OSCommand {
	return &OSCommand{
		Log:     log,
		os:      getOSInfo(),
		command: exec.Command,
	}
}

// SetCommand overrides the command constructor function, for tests only.
func (c *OSCommand) SetCommand(cmd func(string, ...string) *exec.Cmd) {
	c.command = cmd
}

// NewCmd builds an *exec.Cmd inheriting the current environment.
func (c *OSCommand) NewCmd(name string, args ...string) *exec.Cmd {
	cmd := c.command(name, args...)
	cmd.Env = os.Environ()
	return cmd
}

// ExecutableFromString splits a shell-style command line ("docker ps -a")
// into an *exec.Cmd the way a shell's word-splitting would.
func (c *OSCommand) ExecutableFromString(commandStr string) *exec.Cmd {
	split := str.ToArgv(commandStr)
	return c.NewCmd(split[0], split[1:]...)
}

// RunWithTimeout runs an external command bounded by the given timeout,
// returning classified outcomes instead of a raw error: the timeout is
// enforced both via the command's context and, on expiry, by killing the
// command's entire process group so stray children do not linger.
func (c *OSCommand) RunWithTimeout(ctx context.Context, timeout time.Duration, name string, args ...string) (string, string, error) {
	return c.RunWithTimeoutEnv(ctx, timeout, nil, name, args...)
}

// RunWithTimeoutEnv is RunWithTimeout with additional environment variables
// appended after the inherited environment, so a caller can scope a single
// call to an explicit endpoint without mutating the process environment.
func (c *OSCommand) RunWithTimeoutEnv(ctx context.Context, timeout time.Duration, extraEnv []string, name string, args ...string) (string, string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	kill.PrepareForChildren(cmd)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	before := time.Now()
	err := cmd.Start()
	if err != nil {
		return "", "", errors.Wrap(err, 0)
	}

	waitErr := cmd.Wait()
	c.Log.Debugf("%s %s: %s", name, strings.Join(args, " "), time.Since(before))

	if cctx.Err() == context.DeadlineExceeded {
		_ = kill.Kill(cmd)
		return stdout.String(), stderr.String(), context.DeadlineExceeded
	}

	return stdout.String(), stderr.String(), waitErr
}

// RunAttached runs a command with stdin/stdout/stderr wired directly to the
// controlling terminal, for `shell`, `exec` and `run`'s interactive paths.
// It returns the command's exit code and an error only when the command
// could not be started at all (the exit code itself is the normal channel
// for a nonzero exit).
func (c *OSCommand) RunAttached(ctx context.Context, extraEnv []string, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.Wrap(err, 0)
	}
	return 0, nil
}

// FileType tells us if the file is a file, directory, or other.
func (c *OSCommand) FileType(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "other"
	}
	if info.IsDir() {
		return "directory"
	}
	return "file"
}

// FileExists checks whether a file exists at the specified path.
func (c *OSCommand) FileExists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateTempFile writes content to a new temp file and returns its name.
func (c *OSCommand) CreateTempFile(pattern, content string) (string, error) {
	tmpfile, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	if _, err := tmpfile.WriteString(content); err != nil {
		tmpfile.Close()
		return "", errors.Wrap(err, 0)
	}
	if err := tmpfile.Close(); err != nil {
		return "", errors.Wrap(err, 0)
	}
	return tmpfile.Name(), nil
}

// AtomicWriteFile writes content to path via a temp file in the same
// directory followed by a rename, so readers never observe a partial write.
func (c *OSCommand) AtomicWriteFile(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, 0)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, 0)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, 0)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, 0)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, 0)
	}
	return nil
}

// Remove removes a file or directory at the specified path.
func (c *OSCommand) Remove(path string) error {
	return errors.Wrap(os.RemoveAll(path), 0)
}

// Quote wraps a message in platform-specific quotation marks.
func (c *OSCommand) Quote(message string) string {
	if c.os.os == "windows" {
		message = strings.NewReplacer(
			`"`, `"'"'"`,
			`\"`, `\\"`,
		).Replace(message)
		return `\"` + message + `\"`
	}
	message = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`$`, `\$`,
		"`", "\\`",
	).Replace(message)
	return `"` + message + `"`
}

func sanitisedCommandOutput(output []byte, err error) (string, error) {
	outputString := string(output)
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return outputString, fmt.Errorf("%s", string(exitErr.Stderr))
		}
		return "", errors.Wrap(err, 0)
	}
	return outputString, nil
}


