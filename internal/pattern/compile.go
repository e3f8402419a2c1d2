package pattern

import (
	"fmt"
	"regexp"

	"github.com/quersearch/quer/internal/searchtypes"
)

// CompileError is returned when a pattern cannot be compiled. Underlying
// carries the parser's error unchanged (including the position info in a
// regexp/syntax error) so callers can highlight the offending spot.
type CompileError struct {
	Pattern    string
	Kind       Kind
	Underlying error
}

// Error implements the error interface
func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Kind, e.Pattern, e.Underlying)
}

// Unwrap returns the underlying parser error
func (e *CompileError) Unwrap() error {
	return e.Underlying
}

// Span is a half-open byte range [Start, End) of a match in a buffer.
type Span struct {
	Start int
	End   int
}

// Matcher is the executable form of a Spec. It is a tagged variant over
// the two pattern kinds: exactly one of re/hex is set. A Matcher holds
// no mutable state after Compile, so one instance is shared read-only
// across all scan workers.
type Matcher struct {
	spec      Spec
	id        searchtypes.SpecID
	re        *regexp.Regexp
	hex       []hexByte
	alignment int
}

// Compile validates spec and builds its matcher. Compilation is pure:
// no I/O, no side effects.
func Compile(spec Spec) (*Matcher, error) {
	m := &Matcher{
		spec:      spec,
		id:        spec.ID(),
		alignment: spec.Alignment,
	}

	switch spec.Kind {
	case KindRegex:
		expr := spec.Text
		if expr == "" {
			return nil, &CompileError{Pattern: spec.Text, Kind: spec.Kind, Underlying: fmt.Errorf("empty pattern")}
		}
		if !spec.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &CompileError{Pattern: spec.Text, Kind: spec.Kind, Underlying: err}
		}
		m.re = re

	case KindHex:
		pat, err := parseHex(spec.Text)
		if err != nil {
			return nil, &CompileError{Pattern: spec.Text, Kind: spec.Kind, Underlying: err}
		}
		m.hex = pat

	default:
		return nil, &CompileError{Pattern: spec.Text, Kind: spec.Kind, Underlying: fmt.Errorf("unknown pattern kind %d", spec.Kind)}
	}

	return m, nil
}

// Spec returns the spec this matcher was compiled from.
func (m *Matcher) Spec() Spec {
	return m.spec
}

// ID returns the stable pattern identity used for deduplication.
func (m *Matcher) ID() searchtypes.SpecID {
	return m.id
}

// Kind returns the pattern kind.
func (m *Matcher) Kind() Kind {
	return m.spec.Kind
}

// Alignment returns the offset alignment filter carried with this
// matcher. Values of 0 or 1 accept every offset.
func (m *Matcher) Alignment() int {
	return m.alignment
}

// WithAlignment returns a matcher sharing this one's compiled program
// but carrying a different alignment filter. Alignment is metadata, not
// part of the matching algorithm, so no recompilation happens.
func (m *Matcher) WithAlignment(alignment int) *Matcher {
	clone := *m
	clone.alignment = alignment
	return &clone
}

// Find returns the next match in buf at or after from. Callers step
// from match to match with from = prev.End, which yields the
// non-overlapping, offset-ascending sequence the engine requires.
// Zero-length regex matches are skipped.
func (m *Matcher) Find(buf []byte, from int) (Span, bool) {
	if from < 0 {
		from = 0
	}

	if m.hex != nil {
		at, ok := findHex(m.hex, buf, from)
		if !ok {
			return Span{}, false
		}
		return Span{Start: at, End: at + len(m.hex)}, true
	}

	for from <= len(buf) {
		loc := m.re.FindIndex(buf[from:])
		if loc == nil {
			return Span{}, false
		}
		if loc[0] == loc[1] {
			// Empty match carries no content; resume one byte later.
			from += loc[0] + 1
			continue
		}
		return Span{Start: from + loc[0], End: from + loc[1]}, true
	}
	return Span{}, false
}

// FindAll returns every non-overlapping match in buf, offset-ascending.
// Mostly a convenience for tests and the MCP surface; the scan workers
// use Find directly so they can stop at the per-file hit cap.
func (m *Matcher) FindAll(buf []byte) []Span {
	var spans []Span
	from := 0
	for {
		span, ok := m.Find(buf, from)
		if !ok {
			return spans
		}
		spans = append(spans, span)
		from = span.End
	}
}
