package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_RegexValid(t *testing.T) {
	m, err := Compile(Spec{Text: "abc", Kind: KindRegex, CaseSensitive: true})
	require.NoError(t, err)
	assert.Equal(t, KindRegex, m.Kind())
}

func TestCompile_RegexInvalidSurfacesParserError(t *testing.T) {
	_, err := Compile(Spec{Text: "a(b", Kind: KindRegex})
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce), "error should be a CompileError")
	assert.Equal(t, "a(b", ce.Pattern)
	// The regexp parser's message must come through unchanged.
	require.NotNil(t, ce.Underlying)
	assert.Contains(t, err.Error(), ce.Underlying.Error())
}

func TestCompile_EmptyPatternsRejected(t *testing.T) {
	_, err := Compile(Spec{Text: "", Kind: KindRegex})
	assert.Error(t, err)

	_, err = Compile(Spec{Text: "   ", Kind: KindHex})
	assert.Error(t, err)
}

func TestCompile_HexInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"odd digit count", "DEA"},
		{"non-hex character", "DE AD ZZ"},
		{"regex metacharacters rejected", "DE(AD)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(Spec{Text: tt.text, Kind: KindHex})
			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, KindHex, ce.Kind)
		})
	}
}

func TestFind_RegexNonOverlapping(t *testing.T) {
	m, err := Compile(Spec{Text: "abc", Kind: KindRegex, CaseSensitive: true})
	require.NoError(t, err)

	buf := []byte("xxabcxxabcx")
	spans := m.FindAll(buf)
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Start: 2, End: 5}, spans[0])
	assert.Equal(t, Span{Start: 7, End: 10}, spans[1])
}

func TestFind_RegexCaseInsensitive(t *testing.T) {
	m, err := Compile(Spec{Text: "abc", Kind: KindRegex, CaseSensitive: false})
	require.NoError(t, err)

	spans := m.FindAll([]byte("xxABCxx"))
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 2, End: 5}, spans[0])
}

func TestFind_RegexSkipsEmptyMatches(t *testing.T) {
	m, err := Compile(Spec{Text: "a*", Kind: KindRegex, CaseSensitive: true})
	require.NoError(t, err)

	spans := m.FindAll([]byte("bbaabb"))
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 2, End: 4}, spans[0])
}

func TestFind_RegexOverRawBytes(t *testing.T) {
	// Invalid UTF-8 surrounding the pattern must not break matching.
	m, err := Compile(Spec{Text: "abc", Kind: KindRegex, CaseSensitive: true})
	require.NoError(t, err)

	buf := []byte{0xFF, 0xFE, 'a', 'b', 'c', 0x80, 0x81}
	spans := m.FindAll(buf)
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 2, End: 5}, spans[0])
}

func TestFind_HexWildcardByte(t *testing.T) {
	m, err := Compile(Spec{Text: "DE AD ?? EF", Kind: KindHex})
	require.NoError(t, err)

	spans := m.FindAll([]byte{0xDE, 0xAD, 0x00, 0xEF})
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 0, End: 4}, spans[0])
}

func TestFind_HexWildcardNibbles(t *testing.T) {
	m, err := Compile(Spec{Text: "3?", Kind: KindHex})
	require.NoError(t, err)

	buf := []byte{0x2F, 0x30, 0x3F, 0x40, 0x35}
	spans := m.FindAll(buf)
	require.Len(t, spans, 3)
	assert.Equal(t, 1, spans[0].Start)
	assert.Equal(t, 2, spans[1].Start)
	assert.Equal(t, 4, spans[2].Start)

	m, err = Compile(Spec{Text: "?3", Kind: KindHex})
	require.NoError(t, err)

	spans = m.FindAll([]byte{0x03, 0x13, 0x31, 0xF3})
	require.Len(t, spans, 3)
	assert.Equal(t, []Span{{0, 1}, {1, 2}, {3, 4}}, spans)
}

func TestFind_HexHighBytes(t *testing.T) {
	// Bytes above 0x7F must match literally, not as UTF-8 runes.
	m, err := Compile(Spec{Text: "C3 A9", Kind: KindHex})
	require.NoError(t, err)

	spans := m.FindAll([]byte{0x00, 0xC3, 0xA9, 0xC3})
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 1, End: 3}, spans[0])
}

func TestFind_HexNonOverlapping(t *testing.T) {
	m, err := Compile(Spec{Text: "AA AA", Kind: KindHex})
	require.NoError(t, err)

	spans := m.FindAll([]byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA})
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Start: 0, End: 2}, spans[0])
	assert.Equal(t, Span{Start: 2, End: 4}, spans[1])
}

func TestWithAlignment_SharesCompiledProgram(t *testing.T) {
	m, err := Compile(Spec{Text: "DE AD", Kind: KindHex})
	require.NoError(t, err)

	aligned := m.WithAlignment(4)
	assert.Equal(t, 4, aligned.Alignment())
	assert.Equal(t, 0, m.Alignment(), "original matcher unchanged")
	assert.Equal(t, m.ID(), aligned.ID())

	// Both variants still match.
	spans := aligned.FindAll([]byte{0xDE, 0xAD})
	require.Len(t, spans, 1)
}

func TestSpecID_IgnoresAlignmentAndCap(t *testing.T) {
	base := Spec{Text: "abc", Kind: KindRegex, CaseSensitive: true}
	withFilters := base
	withFilters.Alignment = 8
	withFilters.MaxHitsPerFile = 5

	assert.Equal(t, base.ID(), withFilters.ID())

	other := base
	other.CaseSensitive = false
	assert.NotEqual(t, base.ID(), other.ID())

	hexKind := base
	hexKind.Kind = KindHex
	assert.NotEqual(t, base.ID(), hexKind.ID())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("hex")
	assert.True(t, ok)
	assert.Equal(t, KindHex, k)

	k, ok = ParseKind("regex")
	assert.True(t, ok)
	assert.Equal(t, KindRegex, k)

	_, ok = ParseKind("bogus")
	assert.False(t, ok)
}
