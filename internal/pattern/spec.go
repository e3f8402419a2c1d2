package pattern

import (
	"github.com/cespare/xxhash/v2"

	"github.com/quersearch/quer/internal/searchtypes"
)

// Kind selects how a pattern's text is interpreted.
type Kind int

const (
	// KindRegex treats the text as a regular expression matched against
	// raw file bytes.
	KindRegex Kind = iota

	// KindHex treats the text as a sequence of hex byte values with
	// optional wildcard nibbles, matched byte-for-byte.
	KindHex
)

func (k Kind) String() string {
	switch k {
	case KindRegex:
		return "regex"
	case KindHex:
		return "hex"
	default:
		return "unknown"
	}
}

// ParseKind converts the user-facing kind name ("regex" or "hex").
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "regex", "text", "":
		return KindRegex, true
	case "hex":
		return KindHex, true
	default:
		return KindRegex, false
	}
}

// Spec is a user-supplied search specification. Immutable once a scan
// starts; Compile turns it into an executable Matcher.
type Spec struct {
	Text          string
	Kind          Kind
	CaseSensitive bool

	// Alignment restricts retained matches to offsets that are a
	// multiple of this value. 0 and 1 both mean unconstrained.
	Alignment int

	// MaxHitsPerFile stops scanning a file once this many matches have
	// been retained. 0 means unlimited.
	MaxHitsPerFile int

	IncludeHidden bool
}

// ID returns the stable identity of this spec's pattern. Two specs with
// the same text, kind and case sensitivity share an ID regardless of
// alignment or hit cap, so re-running a query with a different alignment
// filter dedupes against earlier results in append mode.
func (s Spec) ID() searchtypes.SpecID {
	h := xxhash.New()
	var meta [2]byte
	meta[0] = byte(s.Kind)
	if s.CaseSensitive {
		meta[1] = 1
	}
	_, _ = h.Write(meta[:])
	_, _ = h.WriteString(s.Text)
	return searchtypes.SpecID(h.Sum64())
}
