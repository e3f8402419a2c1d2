package results

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quersearch/quer/internal/searchtypes"
)

func record(path string, offset int64, length int, spec searchtypes.SpecID) searchtypes.MatchRecord {
	return searchtypes.MatchRecord{Path: path, Offset: offset, Length: length, Spec: spec}
}

func result(path string, truncated bool, matches ...searchtypes.MatchRecord) searchtypes.FileResult {
	return searchtypes.FileResult{
		File:      searchtypes.FileDescriptor{Path: path},
		Matches:   matches,
		Truncated: truncated,
	}
}

func pairs(fm FileMatches) [][2]int64 {
	out := make([][2]int64, 0, len(fm.Matches))
	for _, m := range fm.Matches {
		out = append(out, [2]int64{m.Offset, int64(m.Spec)})
	}
	return out
}

func TestSubmit_ReplaceOverwrites(t *testing.T) {
	agg := NewAggregator(Replace)
	agg.Submit(result("a.bin", false, record("a.bin", 0, 4, 1), record("a.bin", 10, 4, 1)))
	agg.Submit(result("a.bin", true, record("a.bin", 5, 4, 2)))

	fm, ok := agg.Snapshot().File("a.bin")
	require.True(t, ok)
	require.Len(t, fm.Matches, 1)
	assert.Equal(t, int64(5), fm.Matches[0].Offset)
	assert.True(t, fm.Truncated)
}

func TestSubmit_ReplaceIdempotent(t *testing.T) {
	submit := func(agg *Aggregator) {
		agg.Submit(result("a.bin", false, record("a.bin", 0, 4, 1)))
		agg.Submit(result("b.bin", false, record("b.bin", 8, 2, 1)))
	}

	agg := NewAggregator(Replace)
	submit(agg)
	first := agg.Snapshot()
	submit(agg)
	second := agg.Snapshot()

	require.Equal(t, first.Paths(), second.Paths())
	for _, path := range first.Paths() {
		a, _ := first.File(path)
		b, _ := second.File(path)
		assert.Equal(t, pairs(a), pairs(b))
	}
}

func TestSubmit_AppendUnionsAndSorts(t *testing.T) {
	agg := NewAggregator(Append)
	agg.Submit(result("a.bin", false, record("a.bin", 10, 4, 1), record("a.bin", 30, 4, 1)))
	agg.Submit(result("a.bin", false, record("a.bin", 0, 2, 2), record("a.bin", 20, 2, 2)))

	fm, ok := agg.Snapshot().File("a.bin")
	require.True(t, ok)
	assert.Equal(t, [][2]int64{{0, 2}, {10, 1}, {20, 2}, {30, 1}}, pairs(fm))
}

func TestSubmit_AppendDeduplicates(t *testing.T) {
	agg := NewAggregator(Append)
	agg.Submit(result("a.bin", false, record("a.bin", 10, 4, 1)))
	// Same (file, offset, spec) from a re-run must not duplicate.
	agg.Submit(result("a.bin", false, record("a.bin", 10, 4, 1), record("a.bin", 20, 4, 1)))

	fm, _ := agg.Snapshot().File("a.bin")
	assert.Equal(t, [][2]int64{{10, 1}, {20, 1}}, pairs(fm))
}

func TestSubmit_AppendKeepsSameOffsetDifferentSpec(t *testing.T) {
	agg := NewAggregator(Append)
	agg.Submit(result("a.bin", false, record("a.bin", 10, 4, 1)))
	agg.Submit(result("a.bin", false, record("a.bin", 10, 2, 2)))

	fm, _ := agg.Snapshot().File("a.bin")
	assert.Equal(t, [][2]int64{{10, 1}, {10, 2}}, pairs(fm))
}

func TestSubmit_AppendOrderIndependent(t *testing.T) {
	q1 := result("a.bin", false, record("a.bin", 10, 4, 1), record("a.bin", 30, 4, 1))
	q2 := result("a.bin", false, record("a.bin", 0, 2, 2), record("a.bin", 10, 2, 2))

	forward := NewAggregator(Append)
	forward.Submit(q1)
	forward.Submit(q2)

	reverse := NewAggregator(Append)
	reverse.Submit(q2)
	reverse.Submit(q1)

	a, _ := forward.Snapshot().File("a.bin")
	b, _ := reverse.Snapshot().File("a.bin")
	assert.Equal(t, pairs(a), pairs(b))
}

func TestSubmit_AppendPreservesTruncated(t *testing.T) {
	agg := NewAggregator(Append)
	agg.Submit(result("a.bin", true, record("a.bin", 0, 4, 1)))
	agg.Submit(result("a.bin", false, record("a.bin", 10, 4, 2)))

	fm, _ := agg.Snapshot().File("a.bin")
	assert.True(t, fm.Truncated)
}

func TestSubmit_EmptyResultIgnored(t *testing.T) {
	agg := NewAggregator(Replace)
	agg.Submit(result("a.bin", false))

	assert.Empty(t, agg.Snapshot().Paths())
}

func TestSubmit_ConcurrentDistinctFiles(t *testing.T) {
	agg := NewAggregator(Replace)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("file-%d.bin", i)
			for off := int64(0); off < 20; off++ {
				agg.Submit(result(path, false, record(path, off, 1, 1)))
			}
		}(i)
	}
	wg.Wait()

	rs := agg.Snapshot()
	require.Len(t, rs.Paths(), 32)
	for _, path := range rs.Paths() {
		fm, _ := rs.File(path)
		assert.Len(t, fm.Matches, 1, "replace mode keeps the last submission only")
	}
}

func TestSnapshot_Immutable(t *testing.T) {
	agg := NewAggregator(Replace)
	agg.Submit(result("a.bin", false, record("a.bin", 0, 4, 1)))

	snap := agg.Snapshot()
	agg.Submit(result("a.bin", false, record("a.bin", 99, 4, 1)))

	fm, _ := snap.File("a.bin")
	require.Len(t, fm.Matches, 1)
	assert.Equal(t, int64(0), fm.Matches[0].Offset, "snapshot unaffected by later submissions")
}

func TestClear(t *testing.T) {
	agg := NewAggregator(Append)
	agg.Submit(result("a.bin", false, record("a.bin", 0, 4, 1)))
	agg.AddDiagnostic(searchtypes.Diagnostic{Path: "a.bin", Msg: "x"})

	agg.Clear()

	assert.Empty(t, agg.Snapshot().Paths())
	assert.Empty(t, agg.Diagnostics())
}

func TestDiagnostics_Collected(t *testing.T) {
	agg := NewAggregator(Replace)
	agg.AddDiagnostic(searchtypes.Diagnostic{Stage: searchtypes.StageWalk, Path: "p1", Msg: "denied"})
	agg.AddDiagnostic(searchtypes.Diagnostic{Stage: searchtypes.StageScan, Path: "p2", Msg: "vanished"})

	diags := agg.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, "p1", diags[0].Path)
	assert.Equal(t, "p2", diags[1].Path)
}
