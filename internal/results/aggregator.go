package results

import (
	"sort"
	"sync"

	"github.com/quersearch/quer/internal/debug"
	"github.com/quersearch/quer/internal/searchtypes"
)

// MergeMode controls what Submit does with matches for a file that
// already has an entry.
type MergeMode int

const (
	// Replace overwrites the file's prior entry. Used when a brand-new
	// query starts.
	Replace MergeMode = iota

	// Append unions the new matches into the file's existing sequence,
	// re-sorted offset-ascending and deduplicated by (offset, spec), so
	// several refining queries accumulate.
	Append
)

// fileEntry holds one file's matches. Each entry has its own lock so
// workers submitting different files never contend.
type fileEntry struct {
	mu        sync.Mutex
	matches   []searchtypes.MatchRecord
	truncated bool
}

// Aggregator merges per-file match streams from all scan workers into a
// single result set. Writes are serialized per file; reads get
// consistent point-in-time snapshots.
type Aggregator struct {
	mu    sync.RWMutex
	files map[string]*fileEntry
	order []string
	mode  MergeMode

	diagMu sync.Mutex
	diags  []searchtypes.Diagnostic
}

// NewAggregator creates an empty aggregator in the given merge mode.
func NewAggregator(mode MergeMode) *Aggregator {
	return &Aggregator{
		files: make(map[string]*fileEntry),
		mode:  mode,
	}
}

// SetMergeMode switches the merge policy for subsequent submissions.
func (a *Aggregator) SetMergeMode(mode MergeMode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mode = mode
}

// MergeMode returns the current merge policy.
func (a *Aggregator) MergeMode() MergeMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Clear discards all collected matches and diagnostics.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.files = make(map[string]*fileEntry)
	a.order = nil
	a.mu.Unlock()

	a.diagMu.Lock()
	a.diags = nil
	a.diagMu.Unlock()
}

// Submit records one file's scan output. Safe for concurrent use by
// multiple workers; submissions for different files proceed in parallel.
func (a *Aggregator) Submit(result searchtypes.FileResult) {
	if len(result.Matches) == 0 && !result.Truncated {
		return
	}

	entry, mode := a.entryFor(result.File.Path)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	switch mode {
	case Replace:
		entry.matches = append([]searchtypes.MatchRecord(nil), result.Matches...)
		entry.truncated = result.Truncated
	case Append:
		entry.matches = mergeMatches(entry.matches, result.Matches)
		entry.truncated = entry.truncated || result.Truncated
	}

	debug.LogResult("%s: %d matches (truncated=%v)\n", result.File.Path, len(entry.matches), entry.truncated)
}

// entryFor returns the file's entry, creating it on first submission,
// together with the merge mode in force at that moment.
func (a *Aggregator) entryFor(path string) (*fileEntry, MergeMode) {
	a.mu.RLock()
	entry, ok := a.files[path]
	mode := a.mode
	a.mu.RUnlock()
	if ok {
		return entry, mode
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok = a.files[path]; !ok {
		entry = &fileEntry{}
		a.files[path] = entry
		a.order = append(a.order, path)
	}
	return entry, a.mode
}

// AddDiagnostic records a non-fatal walk or scan diagnostic. Safe for
// concurrent use.
func (a *Aggregator) AddDiagnostic(d searchtypes.Diagnostic) {
	a.diagMu.Lock()
	defer a.diagMu.Unlock()
	a.diags = append(a.diags, d)
}

// Diagnostics returns a copy of the collected diagnostics.
func (a *Aggregator) Diagnostics() []searchtypes.Diagnostic {
	a.diagMu.Lock()
	defer a.diagMu.Unlock()
	return append([]searchtypes.Diagnostic(nil), a.diags...)
}

// Snapshot returns an immutable point-in-time copy of the result set.
// Entry locks are taken one at a time, so a snapshot taken during a scan
// never locks writers out for the whole result set.
func (a *Aggregator) Snapshot() *ResultSet {
	a.mu.RLock()
	order := append([]string(nil), a.order...)
	entries := make([]*fileEntry, len(order))
	for i, path := range order {
		entries[i] = a.files[path]
	}
	a.mu.RUnlock()

	rs := &ResultSet{files: make(map[string]FileMatches, len(order))}
	for i, entry := range entries {
		entry.mu.Lock()
		matches := append([]searchtypes.MatchRecord(nil), entry.matches...)
		truncated := entry.truncated
		entry.mu.Unlock()

		if len(matches) == 0 && !truncated {
			continue
		}
		rs.paths = append(rs.paths, order[i])
		rs.files[order[i]] = FileMatches{Matches: matches, Truncated: truncated}
	}
	return rs
}

// mergeMatches unions two offset-ascending match sequences, dropping
// records that duplicate an (offset, spec) pair already present.
func mergeMatches(existing, incoming []searchtypes.MatchRecord) []searchtypes.MatchRecord {
	merged := make([]searchtypes.MatchRecord, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Offset != merged[j].Offset {
			return merged[i].Offset < merged[j].Offset
		}
		return merged[i].Spec < merged[j].Spec
	})

	out := merged[:0]
	for _, m := range merged {
		if n := len(out); n > 0 && out[n-1].Offset == m.Offset && out[n-1].Spec == m.Spec {
			continue
		}
		out = append(out, m)
	}
	return out
}
