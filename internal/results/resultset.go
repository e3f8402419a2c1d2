package results

import (
	"github.com/quersearch/quer/internal/searchtypes"
)

// FileMatches is one file's slice of the result set.
type FileMatches struct {
	Matches   []searchtypes.MatchRecord
	Truncated bool
}

// RowID identifies a row in a result set's natural order. Natural order
// is files in first-discovery order, matches offset-ascending within
// each file.
type RowID int

// Row pairs a row identifier with its match record.
type Row struct {
	ID    RowID
	Match searchtypes.MatchRecord
}

// ResultSet is an immutable snapshot of aggregated results. External
// readers share it freely; the aggregator never mutates a snapshot it
// has handed out.
type ResultSet struct {
	paths []string
	files map[string]FileMatches
}

// Paths returns the file paths in first-discovery order.
func (rs *ResultSet) Paths() []string {
	return rs.paths
}

// File returns one file's matches.
func (rs *ResultSet) File(path string) (FileMatches, bool) {
	fm, ok := rs.files[path]
	return fm, ok
}

// Len returns the total number of match rows.
func (rs *ResultSet) Len() int {
	n := 0
	for _, path := range rs.paths {
		n += len(rs.files[path].Matches)
	}
	return n
}

// Rows flattens the result set into natural order.
func (rs *ResultSet) Rows() []Row {
	rows := make([]Row, 0, rs.Len())
	for _, path := range rs.paths {
		for _, m := range rs.files[path].Matches {
			rows = append(rows, Row{ID: RowID(len(rows)), Match: m})
		}
	}
	return rows
}
