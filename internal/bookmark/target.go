package bookmark

import (
	"fmt"
	"path/filepath"

	"github.com/quersearch/quer/internal/results"
	"github.com/quersearch/quer/internal/searchtypes"
)

// TargetMatches selects the single file's matches an export applies to.
// Bookmark offsets are byte positions inside one target file, so a
// result set spanning several files needs an explicit target; a relative
// target resolves against root. An empty target is accepted only when at
// most one file matched.
func TargetMatches(rs *results.ResultSet, root, target string) ([]searchtypes.MatchRecord, error) {
	if target == "" {
		paths := rs.Paths()
		if len(paths) > 1 {
			return nil, &ExportError{
				Kind:       ErrorAmbiguous,
				Underlying: fmt.Errorf("matches span %d files", len(paths)),
			}
		}
		if len(paths) == 0 {
			return nil, &ExportError{Kind: ErrorEmpty}
		}
		target = paths[0]
	}

	if !filepath.IsAbs(target) && root != "" {
		target = filepath.Join(root, target)
	}

	fm, ok := rs.File(filepath.Clean(target))
	if !ok {
		return nil, &ExportError{Kind: ErrorUnknownTarget, Path: target}
	}
	return fm.Matches, nil
}
