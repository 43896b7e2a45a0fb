// Package utils holds small generic helpers shared across subsystems.
package utils

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
)

// SplitLines takes a multiline string and splits it on newlines, stripping
// \r's.
func SplitLines(multilineString string) []string {
	multilineString = strings.Replace(multilineString, "\r", "", -1)
	if multilineString == "" || multilineString == "\n" {
		return make([]string, 0)
	}
	lines := strings.Split(multilineString, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	return lines
}

// NormalizeLinefeeds removes all Windows and Mac style line feeds.
func NormalizeLinefeeds(str string) string {
	str = strings.Replace(str, "\r\n", "\n", -1)
	str = strings.Replace(str, "\r", "", -1)
	return str
}

// ResolvePlaceholderString populates a "{{key}}"-style template with
// values.
func ResolvePlaceholderString(str string, arguments map[string]string) string {
	for key, value := range arguments {
		str = strings.Replace(str, "{{"+key+"}}", value, -1)
	}
	return str
}

var ansiRe = regexp.MustCompile(`\x1B\[([0-9]{1,2}(;[0-9]{1,2})?)?[mK]`)

// Decolorise strips a string of ANSI escape sequences.
func Decolorise(str string) string {
	return ansiRe.ReplaceAllString(str, "")
}

// WithPadding right-pads str to the given width, ignoring ANSI escapes when
// measuring its width.
func WithPadding(str string, padding int) string {
	uncolored := Decolorise(str)
	if padding < len(uncolored) {
		return str
	}
	return str + strings.Repeat(" ", padding-len(uncolored))
}

// RenderTable takes an array of string arrays and returns a column-aligned
// table, used by Doctor and status text output.
func RenderTable(rows [][]string) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	if !displayArraysAligned(rows) {
		return "", errTableMismatch
	}

	widths := columnWidths(rows)
	lines := make([]string, len(rows))
	for i, cells := range rows {
		var b strings.Builder
		for j, width := range widths {
			b.WriteString(WithPadding(cells[j], width))
			b.WriteString(" ")
		}
		b.WriteString(cells[len(widths)])
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n"), nil
}

func columnWidths(rows [][]string) []int {
	if len(rows[0]) <= 1 {
		return []int{}
	}
	widths := make([]int, len(rows[0])-1)
	for i := range widths {
		for _, cells := range rows {
			if l := len(Decolorise(cells[i])); l > widths[i] {
				widths[i] = l
			}
		}
	}
	return widths
}

func displayArraysAligned(rows [][]string) bool {
	for _, r := range rows {
		if len(r) != len(rows[0]) {
			return false
		}
	}
	return true
}

var errTableMismatch = &tableError{"each row must have the same number of columns"}

type tableError struct{ msg string }

func (e *tableError) Error() string { return e.msg }

// FormatBinaryBytes renders a byte count using binary (KiB/MiB/…) units.
func FormatBinaryBytes(b int64) string {
	return formatBytes(b, 1024, []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"})
}

// FormatDecimalBytes renders a byte count using decimal (kB/MB/…) units.
func FormatDecimalBytes(b int64) string {
	return formatBytes(b, 1000, []string{"B", "kB", "MB", "GB", "TB", "PB"})
}

func formatBytes(b int64, base float64, units []string) string {
	n := float64(b)
	for i, unit := range units {
		if n < base || i == len(units)-1 {
			if n == math.Trunc(n) {
				return fmt.Sprintf("%.0f%s", n, unit)
			}
			return fmt.Sprintf("%.2f%s", n, unit)
		}
		n /= base
	}
	return "a lot"
}

// SafeTruncate truncates str to limit bytes without panicking on short
// strings.
func SafeTruncate(str string, limit int) string {
	if len(str) > limit {
		return str[0:limit]
	}
	return str
}

type multiErr []error

func (m multiErr) Error() string {
	var b bytes.Buffer
	b.WriteString("encountered multiple errors:")
	for _, err := range m {
		b.WriteString("\n\t... " + err.Error())
	}
	return b.String()
}

// CloseMany closes every closer, aggregating any errors encountered.
func CloseMany(closers []io.Closer) error {
	errs := make([]error, 0, len(closers))
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return multiErr(errs)
	}
	return nil
}


