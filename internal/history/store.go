package history

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/quersearch/quer/internal/pattern"
)

// The on-disk history is plain TOML so users can read and prune it by
// hand. The engine core never touches this file; only the CLI shell
// loads and saves it around a run.

type storedEntry struct {
	Text          string    `toml:"text"`
	Kind          string    `toml:"kind"`
	CaseSensitive bool      `toml:"case_sensitive"`
	LastUsed      time.Time `toml:"last_used"`
}

type storedHistory struct {
	Searches []storedEntry `toml:"searches"`
}

// Load reads a persisted history file. A missing file is not an error;
// it yields an empty history.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file %s: %w", path, err)
	}

	var doc storedHistory
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(doc.Searches))
	for _, s := range doc.Searches {
		kind, ok := pattern.ParseKind(s.Kind)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Text:          s.Text,
			Kind:          kind,
			CaseSensitive: s.CaseSensitive,
			LastUsed:      s.LastUsed,
		})
	}
	return entries, nil
}

// Save writes the history file, most recent entry first.
func Save(path string, entries []Entry) error {
	doc := storedHistory{Searches: make([]storedEntry, 0, len(entries))}
	for _, e := range entries {
		doc.Searches = append(doc.Searches, storedEntry{
			Text:          e.Text,
			Kind:          e.Kind.String(),
			CaseSensitive: e.CaseSensitive,
			LastUsed:      e.LastUsed,
		})
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file %s: %w", path, err)
	}
	return nil
}
