package bookmark

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quersearch/quer/internal/results"
	"github.com/quersearch/quer/internal/searchtypes"
)

func snapshotOf(t *testing.T, fileResults ...searchtypes.FileResult) *results.ResultSet {
	t.Helper()
	agg := results.NewAggregator(results.Replace)
	for _, r := range fileResults {
		agg.Submit(r)
	}
	return agg.Snapshot()
}

func fileResult(path string, offsets ...int64) searchtypes.FileResult {
	r := searchtypes.FileResult{File: searchtypes.FileDescriptor{Path: path}}
	for _, off := range offsets {
		r.Matches = append(r.Matches, searchtypes.MatchRecord{Path: path, Offset: off, Length: 2})
	}
	return r
}

func TestTargetMatches_SingleFileDefault(t *testing.T) {
	rs := snapshotOf(t, fileResult("/data/a.bin", 0x10, 0x40))

	matches, err := TargetMatches(rs, "/data", "")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(0x10), matches[0].Offset)
}

func TestTargetMatches_MultiFileNeedsTarget(t *testing.T) {
	rs := snapshotOf(t,
		fileResult("/data/a.bin", 0x10),
		fileResult("/data/b.bin", 0x10),
	)

	_, err := TargetMatches(rs, "/data", "")
	var ee *ExportError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrorAmbiguous, ee.Kind)
}

func TestTargetMatches_FiltersToOneFile(t *testing.T) {
	rs := snapshotOf(t,
		fileResult("/data/a.bin", 0x10),
		fileResult("/data/b.bin", 0x20, 0x30),
	)

	matches, err := TargetMatches(rs, "/data", "/data/b.bin")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "/data/b.bin", m.Path)
	}
}

func TestTargetMatches_RelativeTargetResolvesAgainstRoot(t *testing.T) {
	rs := snapshotOf(t,
		fileResult(filepath.Join("/data", "sub", "a.bin"), 0x10),
		fileResult("/data/b.bin", 0x20),
	)

	matches, err := TargetMatches(rs, "/data", filepath.Join("sub", "a.bin"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(0x10), matches[0].Offset)
}

func TestTargetMatches_UnknownTarget(t *testing.T) {
	rs := snapshotOf(t, fileResult("/data/a.bin", 0x10))

	_, err := TargetMatches(rs, "/data", "missing.bin")
	var ee *ExportError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrorUnknownTarget, ee.Kind)
}

func TestTargetMatches_EmptyResultSet(t *testing.T) {
	rs := snapshotOf(t)

	_, err := TargetMatches(rs, "/data", "")
	var ee *ExportError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrorEmpty, ee.Kind)
}
