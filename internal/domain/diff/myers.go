package diff

import "fmt"

// OpKind classifies an edit script operation.
type OpKind int

const (
	Equal OpKind = iota
	Delete
	Insert
	Replace
)

// String returns the lower-case name of the operation.
func (k OpKind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one run of an edit script over 0-based half-open line ranges.
// Applying the ops in order turns old[OldStart:OldEnd] into new[NewStart:NewEnd].
type Op struct {
	Kind     OpKind
	OldStart int
	OldEnd   int
	NewStart int
	NewEnd   int
}

// EditScript returns the shortest edit script turning a into b as a
// sequence of Equal, Delete, Insert and Replace runs covering both inputs.
// Two empty inputs yield an empty script.
func EditScript(a, b []string) []Op {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	edits := shortestEdit(a[prefix:len(a)-suffix], b[prefix:len(b)-suffix])

	var ops []Op
	if prefix > 0 {
		ops = append(ops, Op{Kind: Equal, OldEnd: prefix, NewEnd: prefix})
	}
	ops = appendRuns(ops, edits, prefix)
	if suffix > 0 {
		oldStart, newStart := len(a)-suffix, len(b)-suffix
		ops = appendOp(ops, Op{Kind: Equal, OldStart: oldStart, OldEnd: len(a), NewStart: newStart, NewEnd: len(b)})
	}
	return ops
}

// lineEdit is a single-line step of the edit path.
type lineEdit struct {
	kind OpKind
	old  int
	new  int
}

// shortestEdit returns a minimal single-line edit path from a to b using
// the linear-space variant of Myers' O(ND) algorithm: each step finds the
// middle snake of the remaining region and recurses on both sides of it.
func shortestEdit(a, b []string) []lineEdit {
	if len(a)+len(b) == 0 {
		return nil
	}
	offset := (len(a)+len(b)+1)/2 + 1
	s := &snakeSearch{
		a:      a,
		b:      b,
		offset: offset,
		vf:     make([]int, 2*offset+3),
		vb:     make([]int, 2*offset+3),
		edits:  make([]lineEdit, 0, len(a)+len(b)),
	}
	s.compare(0, len(a), 0, len(b))
	return s.edits
}

// snakeSearch holds the frontier buffers shared by every recursion step.
// vf and vb are indexed by diagonal k plus offset.
type snakeSearch struct {
	a, b   []string
	offset int
	vf, vb []int
	edits  []lineEdit
}

func (s *snakeSearch) compare(aLo, aHi, bLo, bHi int) {
	for aLo < aHi && bLo < bHi && s.a[aLo] == s.b[bLo] {
		s.edits = append(s.edits, lineEdit{kind: Equal, old: aLo, new: bLo})
		aLo++
		bLo++
	}
	suffix := 0
	for aLo < aHi-suffix && bLo < bHi-suffix && s.a[aHi-1-suffix] == s.b[bHi-1-suffix] {
		suffix++
	}
	aHi -= suffix
	bHi -= suffix

	switch {
	case aLo == aHi:
		for y := bLo; y < bHi; y++ {
			s.edits = append(s.edits, lineEdit{kind: Insert, old: aLo, new: y})
		}
	case bLo == bHi:
		for x := aLo; x < aHi; x++ {
			s.edits = append(s.edits, lineEdit{kind: Delete, old: x, new: bLo})
		}
	default:
		x, y, u, v := s.middleSnake(aLo, aHi, bLo, bHi)
		s.compare(aLo, aLo+x, bLo, bLo+y)
		for i := 0; i < u-x; i++ {
			s.edits = append(s.edits, lineEdit{kind: Equal, old: aLo + x + i, new: bLo + y + i})
		}
		s.compare(aLo+u, aHi, bLo+v, bHi)
	}

	for i := 0; i < suffix; i++ {
		s.edits = append(s.edits, lineEdit{kind: Equal, old: aHi + i, new: bHi + i})
	}
}

// middleSnake runs the forward and reverse searches over a[aLo:aHi] and
// b[bLo:bHi] until they overlap, and returns the overlapping snake as
// region-relative start (x, y) and end (u, v). Both sides must be non-empty.
func (s *snakeSearch) middleSnake(aLo, aHi, bLo, bHi int) (x, y, u, v int) {
	n, m := aHi-aLo, bHi-bLo
	delta := n - m
	odd := delta%2 != 0
	vf, vb, off := s.vf, s.vb, s.offset
	vf[off+1] = 0
	vb[off+1] = 0

	for d := 0; d <= (n+m+1)/2; d++ {
		for k := -d; k <= d; k += 2 {
			var px int
			if k == -d || (k != d && vf[off+k-1] < vf[off+k+1]) {
				px = vf[off+k+1]
			} else {
				px = vf[off+k-1] + 1
			}
			py := px - k
			ex, ey := px, py
			for ex < n && ey < m && s.a[aLo+ex] == s.b[bLo+ey] {
				ex++
				ey++
			}
			vf[off+k] = ex
			if odd && k >= delta-(d-1) && k <= delta+(d-1) && ex+vb[off+delta-k] >= n {
				return px, py, ex, ey
			}
		}

		// The reverse search measures x and y back from aHi and bHi.
		for k := -d; k <= d; k += 2 {
			var px int
			if k == -d || (k != d && vb[off+k-1] < vb[off+k+1]) {
				px = vb[off+k+1]
			} else {
				px = vb[off+k-1] + 1
			}
			py := px - k
			ex, ey := px, py
			for ex < n && ey < m && s.a[aHi-1-ex] == s.b[bHi-1-ey] {
				ex++
				ey++
			}
			vb[off+k] = ex
			if !odd && delta-k >= -d && delta-k <= d && vf[off+delta-k]+ex >= n {
				return n - ex, m - ey, n - px, m - py
			}
		}
	}
	// Unreachable: the searches always meet by round ceil((n+m)/2).
	panic("diff: searches did not meet")
}

// appendRuns coalesces single-line edits into runs. Consecutive deletions
// and insertions between two equal lines form one Delete, Insert or
// Replace run regardless of how the path interleaved them.
func appendRuns(ops []Op, edits []lineEdit, shift int) []Op {
	i := 0
	for i < len(edits) {
		e := edits[i]
		if e.kind == Equal {
			j := i
			for j < len(edits) && edits[j].kind == Equal {
				j++
			}
			ops = appendOp(ops, Op{
				Kind:     Equal,
				OldStart: shift + e.old, OldEnd: shift + e.old + (j - i),
				NewStart: shift + e.new, NewEnd: shift + e.new + (j - i),
			})
			i = j
			continue
		}

		oldStart, newStart := -1, -1
		deleted, inserted := 0, 0
		for i < len(edits) && edits[i].kind != Equal {
			switch edits[i].kind {
			case Delete:
				if oldStart < 0 {
					oldStart = edits[i].old
				}
				deleted++
			case Insert:
				if newStart < 0 {
					newStart = edits[i].new
				}
				inserted++
			}
			i++
		}
		if oldStart < 0 {
			oldStart = edits[i-1].old
		}
		if newStart < 0 {
			newStart = edits[i-1].new
		}

		kind := Replace
		switch {
		case inserted == 0:
			kind = Delete
		case deleted == 0:
			kind = Insert
		}
		ops = appendOp(ops, Op{
			Kind:     kind,
			OldStart: shift + oldStart, OldEnd: shift + oldStart + deleted,
			NewStart: shift + newStart, NewEnd: shift + newStart + inserted,
		})
	}
	return ops
}

// appendOp appends op, merging it into the previous op when both are Equal.
func appendOp(ops []Op, op Op) []Op {
	if n := len(ops); n > 0 && op.Kind == Equal && ops[n-1].Kind == Equal {
		ops[n-1].OldEnd = op.OldEnd
		ops[n-1].NewEnd = op.NewEnd
		return ops
	}
	return append(ops, op)
}
