package diff

import (
	"fmt"
	"strings"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// Hunk is one contiguous region of a unified diff.
// OldStart and NewStart are the 1-based values printed in the header; when a
// count is zero the start names the line before the empty range.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	// Lines holds the body with its " ", "-" and "+" prefixes.
	Lines []string
}

// Header returns the "@@ -s,c +s,c @@" marker line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// Result is the outcome of comparing two line sequences.
type Result struct {
	// Unified is the complete unified diff text, ending in a newline.
	Unified string
	Hunks   []Hunk
	// Script is the full edit script, including equal runs.
	Script []Op
}

// Identical reports whether the compared sequences were equal.
func (r *Result) Identical() bool {
	return len(r.Hunks) == 0
}

// Lines returns the unified diff split into its raw lines.
func (r *Result) Lines() []string {
	return SplitLines(r.Unified)
}

// Compute diffs a against b with the given number of context lines. The
// labels only appear in the "---" and "+++" header lines.
func Compute(a, b []string, label1, label2 string, context int) *Result {
	if context < 0 {
		context = 0
	}
	script := EditScript(a, b)
	hunks := buildHunks(a, b, script, context)

	out := make([]string, 0, 2+len(hunks)*(2*context+2))
	out = append(out, "--- "+label1, "+++ "+label2)
	for _, h := range hunks {
		out = append(out, h.Header())
		out = append(out, h.Lines...)
	}

	return &Result{
		Unified: strings.Join(out, "\n") + "\n",
		Hunks:   hunks,
		Script:  script,
	}
}

// ComputeDiff splits both contents into lines and returns their unified diff
// with DefaultContext lines of context.
func ComputeDiff(content1, content2, label1, label2 string) string {
	return Compute(SplitLines(content1), SplitLines(content2), label1, label2, DefaultContext).Unified
}

// buildHunks groups the script into hunks. Change runs separated by no more
// than 2*context equal lines share a hunk.
func buildHunks(a, b []string, script []Op, context int) []Hunk {
	changed := false
	for _, op := range script {
		if op.Kind != Equal {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	ops := make([]Op, len(script))
	copy(ops, script)

	if first := &ops[0]; first.Kind == Equal {
		first.OldStart = max(first.OldStart, first.OldEnd-context)
		first.NewStart = max(first.NewStart, first.NewEnd-context)
	}
	if last := &ops[len(ops)-1]; last.Kind == Equal {
		last.OldEnd = min(last.OldEnd, last.OldStart+context)
		last.NewEnd = min(last.NewEnd, last.NewStart+context)
	}

	var groups [][]Op
	var group []Op
	for _, op := range ops {
		if op.Kind == Equal && op.OldEnd-op.OldStart > 2*context {
			group = append(group, Op{
				Kind:     Equal,
				OldStart: op.OldStart, OldEnd: min(op.OldEnd, op.OldStart+context),
				NewStart: op.NewStart, NewEnd: min(op.NewEnd, op.NewStart+context),
			})
			groups = append(groups, group)
			group = nil
			op.OldStart = max(op.OldStart, op.OldEnd-context)
			op.NewStart = max(op.NewStart, op.NewEnd-context)
		}
		group = append(group, op)
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].Kind == Equal) {
		groups = append(groups, group)
	}

	hunks := make([]Hunk, 0, len(groups))
	for _, g := range groups {
		// A leading split can leave a group holding only an empty equal run.
		if len(g) == 1 && g[0].Kind == Equal {
			continue
		}
		hunks = append(hunks, renderHunk(a, b, g))
	}
	return hunks
}

func renderHunk(a, b []string, group []Op) Hunk {
	first, last := group[0], group[len(group)-1]
	h := Hunk{
		OldStart: first.OldStart + 1,
		OldCount: last.OldEnd - first.OldStart,
		NewStart: first.NewStart + 1,
		NewCount: last.NewEnd - first.NewStart,
	}
	if h.OldCount == 0 {
		h.OldStart--
	}
	if h.NewCount == 0 {
		h.NewStart--
	}

	for _, op := range group {
		switch op.Kind {
		case Equal:
			for _, line := range a[op.OldStart:op.OldEnd] {
				h.Lines = append(h.Lines, " "+line)
			}
		case Delete, Replace, Insert:
			for _, line := range a[op.OldStart:op.OldEnd] {
				h.Lines = append(h.Lines, "-"+line)
			}
			for _, line := range b[op.NewStart:op.NewEnd] {
				h.Lines = append(h.Lines, "+"+line)
			}
		}
	}
	return h
}
