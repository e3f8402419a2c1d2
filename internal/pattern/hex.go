package pattern

import (
	"fmt"
)

// hexByte is one position of a compiled hex pattern. A buffer byte b
// matches when b&Mask == Value. A full wildcard has Mask 0, a wildcard
// nibble masks out its half of the byte.
type hexByte struct {
	Value byte
	Mask  byte
}

// parseHex compiles the textual hex pattern into (value, mask) pairs.
// Spaces are ignored. Each byte is written as two tokens, where a token
// is a hex digit or '?': "DE AD ?? EF" matches any third byte, "3?"
// matches 0x30..0x3F, "?3" matches any byte whose low nibble is 3.
func parseHex(text string) ([]hexByte, error) {
	var tokens []byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\t' {
			continue
		}
		if c != '?' && !isHexDigit(c) {
			return nil, fmt.Errorf("invalid character %q at position %d", c, i)
		}
		tokens = append(tokens, c)
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty hex pattern")
	}
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits (%d); each byte needs two", len(tokens))
	}

	pat := make([]hexByte, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		hi, lo := tokens[i], tokens[i+1]
		var hb hexByte
		if hi != '?' {
			hb.Value |= hexDigitValue(hi) << 4
			hb.Mask |= 0xF0
		}
		if lo != '?' {
			hb.Value |= hexDigitValue(lo)
			hb.Mask |= 0x0F
		}
		pat = append(pat, hb)
	}
	return pat, nil
}

// findHex returns the next match of pat in buf at or after from, or
// (-1, false) when there is none. Non-overlapping stepping is the
// caller's concern (resume at the returned offset plus len(pat)).
func findHex(pat []hexByte, buf []byte, from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	n := len(pat)
	for i := from; i+n <= len(buf); i++ {
		// Fast skip on the first fully-specified byte.
		if pat[0].Mask == 0xFF && buf[i] != pat[0].Value {
			continue
		}
		if hexMatchesAt(pat, buf, i) {
			return i, true
		}
	}
	return -1, false
}

func hexMatchesAt(pat []hexByte, buf []byte, at int) bool {
	for j, hb := range pat {
		if buf[at+j]&hb.Mask != hb.Value {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexDigitValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
