// Package diff computes line-level differences between configuration
// snapshots and lays them out for unified and side-by-side display.
//
// Every function in this package is pure and safe for concurrent use.
package diff

import "strings"

// SplitLines splits content on "\n". A trailing newline does not produce an
// empty last line. Carriage returns stay part of the line, so a change of
// line endings is a change of content.
func SplitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}
