package history

import (
	"sort"
	"sync"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/quersearch/quer/internal/pattern"
)

// DefaultCapacity bounds how many previous searches are remembered.
const DefaultCapacity = 10

// Entry is one previously compiled search, most recent first in the
// history list.
type Entry struct {
	Text          string
	Kind          pattern.Kind
	CaseSensitive bool
	LastUsed      time.Time
}

// History keeps an ordered, capacity-bounded list of previously
// compiled search specs for an external component to persist or show.
// It does no I/O itself. Safe for concurrent use.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

// New creates a history with the given capacity (0 uses
// DefaultCapacity).
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Record pushes a compiled spec to the front of the history. An entry
// with the same pattern text and kind is moved to the front instead of
// duplicated; the oldest entry falls off when capacity is exceeded.
func (h *History) Record(spec pattern.Spec) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.entries {
		if e.Text == spec.Text && e.Kind == spec.Kind {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}

	entry := Entry{
		Text:          spec.Text,
		Kind:          spec.Kind,
		CaseSensitive: spec.CaseSensitive,
		LastUsed:      time.Now(),
	}
	h.entries = append([]Entry{entry}, h.entries...)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
}

// Entries returns a copy of the history, most recent first.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), h.entries...)
}

// Restore replaces the history contents, trimming to capacity. Used by
// the shell when loading a persisted history file.
func (h *History) Restore(entries []Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(entries) > h.capacity {
		entries = entries[:h.capacity]
	}
	h.entries = append([]Entry(nil), entries...)
}

// Similar returns history entries whose pattern text resembles text,
// best match first. Entries below the similarity threshold are left
// out.
func (h *History) Similar(text string, max int) []Entry {
	const threshold = 0.5

	type scored struct {
		entry Entry
		score float64
	}

	var candidates []scored
	for _, e := range h.Entries() {
		if e.Text == text {
			continue
		}
		score, err := edlib.StringsSimilarity(text, e.Text, edlib.JaroWinkler)
		if err != nil || float64(score) < threshold {
			continue
		}
		candidates = append(candidates, scored{entry: e, score: float64(score)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.entry)
	}
	return out
}
