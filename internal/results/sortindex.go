package results

import (
	"sort"

	"github.com/quersearch/quer/internal/searchtypes"
)

// BuildSortIndex returns the result set's row identifiers ordered by
// key. The sort is stable: rows comparing equal keep their relative
// natural order. Ties on the primary column fall through the key's
// tie-break columns ((path, offset) by default) so output is
// deterministic regardless of scan scheduling. The result set itself is
// never reordered.
func BuildSortIndex(rs *ResultSet, key searchtypes.SortKey) []RowID {
	rows := rs.Rows()
	ids := make([]RowID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}

	tiebreak := key.Tiebreak
	if tiebreak == nil {
		tiebreak = searchtypes.DefaultTiebreak
	}

	sort.SliceStable(ids, func(i, j int) bool {
		a, b := rows[ids[i]].Match, rows[ids[j]].Match

		if c := compareColumn(a, b, key.Column); c != 0 {
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		for _, col := range tiebreak {
			if col == key.Column {
				continue
			}
			if c := compareColumn(a, b, col); c != 0 {
				return c < 0
			}
		}
		return false
	})

	return ids
}

func compareColumn(a, b searchtypes.MatchRecord, col searchtypes.SortColumn) int {
	switch col {
	case searchtypes.SortByPath:
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
	case searchtypes.SortByOffset:
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
	case searchtypes.SortByLength:
		switch {
		case a.Length < b.Length:
			return -1
		case a.Length > b.Length:
			return 1
		}
	case searchtypes.SortBySpec:
		switch {
		case a.Spec < b.Spec:
			return -1
		case a.Spec > b.Spec:
			return 1
		}
	}
	return 0
}
