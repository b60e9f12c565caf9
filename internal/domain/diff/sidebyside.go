package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ersonp/confighistory/internal/domain/entities"
)

// ChangeType classifies a side-by-side row.
type ChangeType string

const (
	ChangeEqual  ChangeType = "EQUAL"
	ChangeInsert ChangeType = "INSERT"
	ChangeDelete ChangeType = "DELETE"
	ChangeModify ChangeType = "MODIFY"
)

// Line is one visual row of a two-column comparison. A line number of 0
// means that side has no line in this row.
type Line struct {
	OldNumber  int        `json:"old_number,omitempty"`
	NewNumber  int        `json:"new_number,omitempty"`
	OldContent string     `json:"old_content"`
	NewContent string     `json:"new_content"`
	Change     ChangeType `json:"change"`
}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

type alignMode int

const (
	expectHeader alignMode = iota
	inContext
	inDeleting
	inInserting
)

type pendingLine struct {
	number  int
	content string
}

// aligner walks unified diff lines and accumulates rows.
type aligner struct {
	rows     []Line
	mode     alignMode
	oldNo    int
	newNo    int
	oldLeft  int
	newLeft  int
	deleted  []pendingLine
	inserted []pendingLine
}

// SideBySide converts the raw lines of a unified diff into display rows.
// File header lines and hunk markers are consumed, not emitted. Input that
// does not follow the unified diff grammar yields an error wrapping
// entities.ErrFormat.
func SideBySide(unifiedLines []string) ([]Line, error) {
	al := &aligner{mode: expectHeader}
	for i, line := range unifiedLines {
		if err := al.step(line); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", entities.ErrFormat, i+1, err)
		}
	}
	if al.mode != expectHeader {
		return nil, fmt.Errorf("%w: truncated hunk: %d old and %d new lines missing",
			entities.ErrFormat, al.oldLeft, al.newLeft)
	}
	return al.rows, nil
}

func (al *aligner) step(line string) error {
	if al.mode == expectHeader {
		return al.stepHeader(line)
	}

	switch {
	case line == "" || line[0] == ' ':
		if al.oldLeft == 0 || al.newLeft == 0 {
			return fmt.Errorf("context line exceeds hunk counts")
		}
		al.flush()
		content := ""
		if line != "" {
			content = line[1:]
		}
		al.rows = append(al.rows, Line{
			OldNumber:  al.oldNo,
			NewNumber:  al.newNo,
			OldContent: content,
			NewContent: content,
			Change:     ChangeEqual,
		})
		al.oldNo++
		al.newNo++
		al.oldLeft--
		al.newLeft--
		al.mode = inContext
	case line[0] == '-':
		if al.oldLeft == 0 {
			return fmt.Errorf("deletion exceeds hunk counts")
		}
		if al.mode == inInserting {
			al.flush()
		}
		al.deleted = append(al.deleted, pendingLine{number: al.oldNo, content: line[1:]})
		al.oldNo++
		al.oldLeft--
		al.mode = inDeleting
	case line[0] == '+':
		if al.newLeft == 0 {
			return fmt.Errorf("insertion exceeds hunk counts")
		}
		al.inserted = append(al.inserted, pendingLine{number: al.newNo, content: line[1:]})
		al.newNo++
		al.newLeft--
		al.mode = inInserting
	case line[0] == '\\':
		return nil
	default:
		return fmt.Errorf("unexpected line %q inside hunk", line)
	}

	if al.oldLeft == 0 && al.newLeft == 0 {
		al.flush()
		al.mode = expectHeader
	}
	return nil
}

func (al *aligner) stepHeader(line string) error {
	switch {
	case line == "",
		strings.HasPrefix(line, "\\"),
		strings.HasPrefix(line, "--- "), line == "---",
		strings.HasPrefix(line, "+++ "), line == "+++":
		return nil
	case strings.HasPrefix(line, "@@"):
		return al.startHunk(line)
	default:
		return fmt.Errorf("unexpected line %q outside hunk", line)
	}
}

func (al *aligner) startHunk(line string) error {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("malformed hunk header %q", line)
	}
	oldStart, oldCount, err := parseRange(m[1], m[2])
	if err != nil {
		return err
	}
	newStart, newCount, err := parseRange(m[3], m[4])
	if err != nil {
		return err
	}

	al.oldNo, al.newNo = oldStart, newStart
	if oldCount == 0 {
		al.oldNo++
	}
	if newCount == 0 {
		al.newNo++
	}
	al.oldLeft, al.newLeft = oldCount, newCount
	if oldCount == 0 && newCount == 0 {
		return nil
	}
	al.mode = inContext
	return nil
}

func parseRange(start, count string) (int, int, error) {
	s, err := strconv.Atoi(start)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing hunk start %q: %w", start, err)
	}
	c := 1
	if count != "" {
		c, err = strconv.Atoi(count)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing hunk count %q: %w", count, err)
		}
	}
	return s, c, nil
}

// flush emits the buffered deletion and insertion runs. Runs are paired
// positionally as MODIFY rows; the longer run's excess follows unpaired.
func (al *aligner) flush() {
	al.rows = appendPaired(al.rows, al.deleted, al.inserted)
	al.deleted = al.deleted[:0]
	al.inserted = al.inserted[:0]
}

func appendPaired(rows []Line, deleted, inserted []pendingLine) []Line {
	paired := min(len(deleted), len(inserted))
	for i := 0; i < paired; i++ {
		rows = append(rows, Line{
			OldNumber:  deleted[i].number,
			NewNumber:  inserted[i].number,
			OldContent: deleted[i].content,
			NewContent: inserted[i].content,
			Change:     ChangeModify,
		})
	}
	for _, d := range deleted[paired:] {
		rows = append(rows, Line{OldNumber: d.number, OldContent: d.content, Change: ChangeDelete})
	}
	for _, in := range inserted[paired:] {
		rows = append(rows, Line{NewNumber: in.number, NewContent: in.content, Change: ChangeInsert})
	}
	return rows
}

// Align builds the full set of display rows straight from an edit script,
// including every unchanged line. Identical inputs yield only EQUAL rows.
func Align(a, b []string, script []Op) []Line {
	rows := make([]Line, 0, max(len(a), len(b)))
	for _, op := range script {
		switch op.Kind {
		case Equal:
			for i := 0; i < op.OldEnd-op.OldStart; i++ {
				rows = append(rows, Line{
					OldNumber:  op.OldStart + i + 1,
					NewNumber:  op.NewStart + i + 1,
					OldContent: a[op.OldStart+i],
					NewContent: b[op.NewStart+i],
					Change:     ChangeEqual,
				})
			}
		default:
			deleted := make([]pendingLine, 0, op.OldEnd-op.OldStart)
			for i := op.OldStart; i < op.OldEnd; i++ {
				deleted = append(deleted, pendingLine{number: i + 1, content: a[i]})
			}
			inserted := make([]pendingLine, 0, op.NewEnd-op.NewStart)
			for i := op.NewStart; i < op.NewEnd; i++ {
				inserted = append(inserted, pendingLine{number: i + 1, content: b[i]})
			}
			rows = appendPaired(rows, deleted, inserted)
		}
	}
	return rows
}

// CountChanges tallies rows by change type.
func CountChanges(rows []Line) map[ChangeType]int {
	counts := make(map[ChangeType]int, 4)
	for _, r := range rows {
		counts[r.Change]++
	}
	return counts
}
