package collate

import (
	"fmt"
	"strings"
)

const (
	// abridgeThreshold is the line count above which a surfaced block is
	// abridged to a head and tail segment.
	abridgeThreshold = 10
	abridgeHead      = 3
	abridgeTail      = 2
)

// trimLines splits captured text into lines with a consistent
// whitespace rule: trailing blank lines and trailing whitespace at the
// very end of the capture are dropped, every line loses its trailing
// spaces and carriage returns, and leading blank lines survive as
// written. Returns nil when nothing printable remains.
func trimLines(text string) []string {
	text = strings.TrimRight(text, " \t\r\n")
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return lines
}

// Trim applies the trimming rule without abridgment.
func Trim(text string) string {
	return strings.Join(trimLines(text), "\n")
}

// Abridge trims the captured text and, when it runs past the line
// threshold, keeps the leading and trailing segments with a marker line
// stating how many lines were dropped in between.
func Abridge(text string) string {
	lines := trimLines(text)
	if len(lines) <= abridgeThreshold {
		return strings.Join(lines, "\n")
	}

	omitted := len(lines) - abridgeHead - abridgeTail
	out := make([]string, 0, abridgeHead+abridgeTail+1)
	out = append(out, lines[:abridgeHead]...)
	out = append(out, fmt.Sprintf("  [...%d lines omitted...]", omitted))
	out = append(out, lines[len(lines)-abridgeTail:]...)
	return strings.Join(out, "\n")
}
