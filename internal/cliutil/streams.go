// Package cliutil holds the small pieces every cmd/cai subcommand shares:
// stream discipline, exit-code mapping, and error rendering.
package cliutil

import (
	"fmt"
	"io"
)

// Stream discipline per spec §6: data results go to stdout; every other
// message carries one of these stable prefixes and goes to stderr.
const (
	PrefixOK    = "[OK]"
	PrefixWarn  = "[WARN]"
	PrefixError = "[ERROR]"
	PrefixInfo  = "[INFO]"
	PrefixDebug = "[DEBUG] ->"
)

// Printer writes progress markers to stderr and data results to stdout.
type Printer struct {
	Out, Err io.Writer
	Verbose  bool
}

func (p Printer) line(prefix, format string, args ...interface{}) {
	fmt.Fprintf(p.Err, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

func (p Printer) OK(format string, args ...interface{})    { p.line(PrefixOK, format, args...) }
func (p Printer) Warn(format string, args ...interface{})  { p.line(PrefixWarn, format, args...) }
func (p Printer) Error(format string, args ...interface{}) { p.line(PrefixError, format, args...) }
func (p Printer) Info(format string, args ...interface{})  { p.line(PrefixInfo, format, args...) }

func (p Printer) Debug(format string, args ...interface{}) {
	if !p.Verbose {
		return
	}
	p.line(PrefixDebug, format, args...)
}

// Result prints a data result (an archive path, a resolved volume name) to
// stdout, never stderr.
func (p Printer) Result(format string, args ...interface{}) {
	fmt.Fprintf(p.Out, format+"\n", args...)
}
