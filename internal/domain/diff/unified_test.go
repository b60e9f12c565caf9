package diff

import (
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"testing"

	godiff "github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("l%d", i+1)
	}
	return lines
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: []string{}},
		{name: "single line no newline", input: "a", expected: []string{"a"}},
		{name: "trailing newline", input: "a\nb\n", expected: []string{"a", "b"}},
		{name: "crlf kept", input: "a\r\nb\r\n", expected: []string{"a\r", "b\r"}},
		{name: "blank lines kept", input: "a\n\nb", expected: []string{"a", "", "b"}},
		{name: "only newline", input: "\n", expected: []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitLines(tt.input))
		})
	}
}

func TestCompute_LineEndingChangeIsReported(t *testing.T) {
	result := Compute(SplitLines("a\nb\n"), SplitLines("a\r\nb\r\n"), "old", "new", DefaultContext)

	require.False(t, result.Identical())
	require.Len(t, result.Hunks, 1)
	assert.Equal(t, "@@ -1,2 +1,2 @@", result.Hunks[0].Header())
	assert.ElementsMatch(t, []string{"-a", "-b", "+a\r", "+b\r"}, result.Hunks[0].Lines)
}

func TestCompute_ModifyScenario(t *testing.T) {
	a := []string{"one", "two", "three"}
	b := []string{"one", "TWO", "three"}

	res := Compute(a, b, "old", "new", DefaultContext)

	require.Len(t, res.Hunks, 1)
	assert.Equal(t, "@@ -1,3 +1,3 @@", res.Hunks[0].Header())
	assert.Equal(t, "--- old\n+++ new\n@@ -1,3 +1,3 @@\n one\n-two\n+TWO\n three\n", res.Unified)
	assert.Equal(t, []Op{
		{Kind: Equal, OldStart: 0, OldEnd: 1, NewStart: 0, NewEnd: 1},
		{Kind: Replace, OldStart: 1, OldEnd: 2, NewStart: 1, NewEnd: 2},
		{Kind: Equal, OldStart: 2, OldEnd: 3, NewStart: 2, NewEnd: 3},
	}, res.Script)
}

func TestCompute_InsertScenario(t *testing.T) {
	res := Compute([]string{"a", "b"}, []string{"a", "b", "c"}, "old", "new", DefaultContext)

	require.Len(t, res.Hunks, 1)
	assert.Equal(t, "@@ -1,2 +1,3 @@", res.Hunks[0].Header())
	assert.Equal(t, []string{" a", " b", "+c"}, res.Hunks[0].Lines)
}

func TestCompute_Identical(t *testing.T) {
	a := []string{"x", "y", "z"}

	res := Compute(a, a, "left", "right", DefaultContext)

	assert.True(t, res.Identical())
	assert.Empty(t, res.Hunks)
	assert.Equal(t, "--- left\n+++ right\n", res.Unified)
}

func TestCompute_EmptyInputs(t *testing.T) {
	res := Compute(nil, nil, "a", "b", DefaultContext)
	assert.Empty(t, res.Hunks)
	assert.Empty(t, res.Script)
	assert.Equal(t, "--- a\n+++ b\n", res.Unified)
}

func TestCompute_ZeroCountHeaders(t *testing.T) {
	t.Run("everything deleted", func(t *testing.T) {
		res := Compute([]string{"x", "y"}, nil, "a", "b", DefaultContext)
		require.Len(t, res.Hunks, 1)
		assert.Equal(t, "@@ -1,2 +0,0 @@", res.Hunks[0].Header())
	})

	t.Run("everything inserted", func(t *testing.T) {
		res := Compute(nil, []string{"x"}, "a", "b", DefaultContext)
		require.Len(t, res.Hunks, 1)
		assert.Equal(t, "@@ -0,0 +1,1 @@", res.Hunks[0].Header())
	})

	t.Run("insertion with no context", func(t *testing.T) {
		res := Compute([]string{"a", "b"}, []string{"a", "new", "b"}, "a", "b", 0)
		require.Len(t, res.Hunks, 1)
		assert.Equal(t, "@@ -1,0 +2,1 @@", res.Hunks[0].Header())
		assert.Equal(t, []string{"+new"}, res.Hunks[0].Lines)
	})
}

func TestCompute_DeletionsPrecedeInsertions(t *testing.T) {
	res := Compute([]string{"a", "b", "c"}, []string{"x", "y"}, "a", "b", DefaultContext)

	require.Len(t, res.Hunks, 1)
	assert.Equal(t, []string{"-a", "-b", "-c", "+x", "+y"}, res.Hunks[0].Lines)
}

func TestCompute_HunkGrouping(t *testing.T) {
	tests := []struct {
		name    string
		changed []int
		headers []string
	}{
		{
			name:    "gap of six merges",
			changed: []int{1, 8},
			headers: []string{"@@ -1,12 +1,12 @@"},
		},
		{
			name:    "gap of seven splits",
			changed: []int{1, 9},
			headers: []string{"@@ -1,5 +1,5 @@", "@@ -7,7 +7,7 @@"},
		},
		{
			name:    "far apart",
			changed: []int{1, 18},
			headers: []string{"@@ -1,5 +1,5 @@", "@@ -16,5 +16,5 @@"},
		},
		{
			name:    "change in the middle trims context",
			changed: []int{10},
			headers: []string{"@@ -8,7 +8,7 @@"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := numbered(20)
			b := numbered(20)
			for _, i := range tt.changed {
				b[i] = strings.ToUpper(b[i])
			}

			res := Compute(a, b, "a", "b", DefaultContext)

			headers := make([]string, 0, len(res.Hunks))
			for _, h := range res.Hunks {
				headers = append(headers, h.Header())
			}
			assert.Equal(t, tt.headers, headers)
		})
	}
}

func TestComputeDiff_UsesDefaultContext(t *testing.T) {
	out := ComputeDiff("a\nb\nc\nd\ne\nf\ng\n", "a\nb\nc\nd\nE\nf\ng\n", "v1", "v2")
	assert.Equal(t, "--- v1\n+++ v2\n@@ -2,6 +2,6 @@\n b\n c\n d\n-e\n+E\n f\n g\n", out)
}

func TestEditScript_IsMinimal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		a := randomLines(rng)
		b := randomLines(rng)

		script := EditScript(a, b)

		edits := 0
		for _, op := range script {
			if op.Kind != Equal {
				edits += (op.OldEnd - op.OldStart) + (op.NewEnd - op.NewStart)
			}
		}
		assert.Equal(t, len(a)+len(b)-2*lcsLength(a, b), edits, "a=%v b=%v", a, b)
	}
}

func TestEditScript_LargeRewriteUsesLinearMemory(t *testing.T) {
	const n = 3000
	a := make([]string, n)
	b := make([]string, n)
	for i := range a {
		a[i] = fmt.Sprintf("old %d", i)
		b[i] = fmt.Sprintf("new %d", i)
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	script := EditScript(a, b)
	runtime.ReadMemStats(&after)

	require.Equal(t, []Op{{Kind: Replace, OldEnd: n, NewEnd: n}}, script)
	allocated := after.TotalAlloc - before.TotalAlloc
	assert.Less(t, allocated, uint64(4<<20), "allocated %d bytes", allocated)
}

func TestEditScript_SparseChangesInLargeInput(t *testing.T) {
	a := numbered(5000)
	b := append([]string{}, a...)
	b[100] = "changed"
	b = append(b[:2000], b[2010:]...)
	b = append(b, "tail")

	script := EditScript(a, b)

	edits := 0
	for _, op := range script {
		if op.Kind != Equal {
			edits += (op.OldEnd - op.OldStart) + (op.NewEnd - op.NewStart)
		}
	}
	assert.Equal(t, 2+10+1, edits)
}

func TestEditScript_CoversBothInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := randomLines(rng)
		b := randomLines(rng)

		oldPos, newPos := 0, 0
		for _, op := range EditScript(a, b) {
			require.Equal(t, oldPos, op.OldStart)
			require.Equal(t, newPos, op.NewStart)
			if op.Kind == Equal {
				assert.Equal(t, a[op.OldStart:op.OldEnd], b[op.NewStart:op.NewEnd])
			}
			oldPos, newPos = op.OldEnd, op.NewEnd
		}
		assert.Equal(t, len(a), oldPos)
		assert.Equal(t, len(b), newPos)
	}
}

func TestCompute_AgreesWithGoDiffParser(t *testing.T) {
	a := numbered(30)
	b := append([]string{}, a...)
	b[2] = "changed"
	b = append(b[:12], b[14:]...)
	b = append(b, "tail")

	res := Compute(a, b, "a", "b", DefaultContext)

	fd, err := godiff.ParseFileDiff([]byte(res.Unified))
	require.NoError(t, err)
	require.Len(t, fd.Hunks, len(res.Hunks))
	for i, h := range fd.Hunks {
		assert.Equal(t, int32(res.Hunks[i].OldStart), h.OrigStartLine)
		assert.Equal(t, int32(res.Hunks[i].OldCount), h.OrigLines)
		assert.Equal(t, int32(res.Hunks[i].NewStart), h.NewStartLine)
		assert.Equal(t, int32(res.Hunks[i].NewCount), h.NewLines)
	}
}

func TestCompute_ConcurrentCallsAreDeterministic(t *testing.T) {
	a := numbered(50)
	b := numbered(50)
	b[25] = "x"
	want := Compute(a, b, "a", "b", DefaultContext).Unified

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, Compute(a, b, "a", "b", DefaultContext).Unified)
		}()
	}
	wg.Wait()
}

func randomLines(rng *rand.Rand) []string {
	n := rng.Intn(12)
	lines := make([]string, n)
	for i := range lines {
		lines[i] = string(rune('a' + rng.Intn(4)))
	}
	return lines
}

func lcsLength(a, b []string) int {
	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}
	return dp[len(a)][len(b)]
}
