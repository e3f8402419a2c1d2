package searchtypes

import (
	"time"
)

// SpecID identifies the compiled search spec that produced a match.
// It is stable across scans for the same pattern text, kind and case
// sensitivity, which is what append-mode deduplication keys on.
type SpecID uint64

// FileDescriptor describes a candidate file yielded by the walker.
// Immutable once produced; workers only ever read it.
type FileDescriptor struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Hidden  bool      `json:"hidden"`
	ModTime time.Time `json:"mod_time"`
}

// MatchRecord is a single match within a file.
type MatchRecord struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Length int    `json:"length"`

	// Context holds the raw bytes immediately surrounding the match,
	// clamped to the file's byte range. Its size is bounded by the
	// configured context window.
	Context []byte `json:"context,omitempty"`

	// Preview is the display form of the matched bytes: space-separated
	// hex pairs for hex matches, lossy UTF-8 for text matches.
	Preview string `json:"preview"`

	Spec SpecID `json:"spec"`
}

// FileResult is the unit streamed from a scan worker: all matches found
// in one file, offset-ascending, plus whether the per-file hit cap cut
// the scan short.
type FileResult struct {
	File      FileDescriptor `json:"file"`
	Matches   []MatchRecord  `json:"matches"`
	Truncated bool           `json:"truncated"`
}

// ScanStatus is the terminal state of a scan.
type ScanStatus int

const (
	StatusCompleted ScanStatus = iota
	StatusCancelled
)

func (s ScanStatus) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// DiagnosticStage identifies which phase produced a non-fatal diagnostic.
type DiagnosticStage int

const (
	StageWalk DiagnosticStage = iota
	StageScan
)

func (s DiagnosticStage) String() string {
	switch s {
	case StageWalk:
		return "walk"
	case StageScan:
		return "scan"
	default:
		return "unknown"
	}
}

// Diagnostic records a per-path failure that did not stop the scan.
type Diagnostic struct {
	Stage DiagnosticStage `json:"stage"`
	Path  string          `json:"path"`
	Err   error           `json:"-"`
	Msg   string          `json:"message"`
}

// SortColumn names a sortable column of the result table.
type SortColumn int

const (
	SortByPath SortColumn = iota
	SortByOffset
	SortByLength
	SortBySpec
)

// SortKey describes a requested ordering: primary column, direction,
// and the tie-break columns applied in order when the primary compares
// equal. A nil Tiebreak means the default (path, offset).
type SortKey struct {
	Column     SortColumn
	Descending bool
	Tiebreak   []SortColumn
}

// DefaultTiebreak is the deterministic secondary ordering used when a
// SortKey does not specify its own.
var DefaultTiebreak = []SortColumn{SortByPath, SortByOffset}
