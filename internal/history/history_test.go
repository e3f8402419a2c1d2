package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quersearch/quer/internal/pattern"
)

func TestRecord_MostRecentFirst(t *testing.T) {
	h := New(0)
	h.Record(pattern.Spec{Text: "first", Kind: pattern.KindRegex})
	h.Record(pattern.Spec{Text: "second", Kind: pattern.KindRegex})

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Text)
	assert.Equal(t, "first", entries[1].Text)
}

func TestRecord_DedupMovesToFront(t *testing.T) {
	h := New(0)
	h.Record(pattern.Spec{Text: "abc", Kind: pattern.KindRegex})
	h.Record(pattern.Spec{Text: "def", Kind: pattern.KindRegex})
	h.Record(pattern.Spec{Text: "abc", Kind: pattern.KindRegex})

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].Text)
	assert.Equal(t, "def", entries[1].Text)
}

func TestRecord_SameTextDifferentKindKept(t *testing.T) {
	h := New(0)
	h.Record(pattern.Spec{Text: "DEAD", Kind: pattern.KindRegex})
	h.Record(pattern.Spec{Text: "DEAD", Kind: pattern.KindHex})

	assert.Len(t, h.Entries(), 2)
}

func TestRecord_CapacityEnforced(t *testing.T) {
	h := New(3)
	for _, text := range []string{"a", "b", "c", "d"} {
		h.Record(pattern.Spec{Text: text, Kind: pattern.KindRegex})
	}

	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "d", entries[0].Text)
	assert.Equal(t, "b", entries[2].Text, "oldest entry dropped")
}

func TestSimilar(t *testing.T) {
	h := New(0)
	h.Record(pattern.Spec{Text: "deadbeef", Kind: pattern.KindHex})
	h.Record(pattern.Spec{Text: "completely unrelated", Kind: pattern.KindRegex})

	similar := h.Similar("deadbeaf", 5)
	require.NotEmpty(t, similar)
	assert.Equal(t, "deadbeef", similar[0].Text)
	for _, e := range similar {
		assert.NotEqual(t, "completely unrelated", e.Text)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	h := New(0)
	h.Record(pattern.Spec{Text: "abc", Kind: pattern.KindRegex, CaseSensitive: true})
	h.Record(pattern.Spec{Text: "DE AD", Kind: pattern.KindHex})

	path := filepath.Join(t.TempDir(), "history.toml")
	require.NoError(t, Save(path, h.Entries()))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "DE AD", loaded[0].Text)
	assert.Equal(t, pattern.KindHex, loaded[0].Kind)
	assert.Equal(t, "abc", loaded[1].Text)
	assert.True(t, loaded[1].CaseSensitive)

	restored := New(0)
	restored.Restore(loaded)
	assert.Equal(t, h.Entries()[0].Text, restored.Entries()[0].Text)
}

func TestStore_MissingFile(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
