package scanner

import (
	"fmt"
	"strings"

	"github.com/quersearch/quer/internal/pattern"
)

// matchPreview renders the matched bytes for display: space-separated
// lowercase hex pairs for hex matches, lossy UTF-8 for text matches.
func matchPreview(kind pattern.Kind, matched []byte) string {
	if kind == pattern.KindHex {
		var b strings.Builder
		b.Grow(len(matched) * 3)
		for i, c := range matched {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%02x", c)
		}
		return b.String()
	}
	return strings.ToValidUTF8(string(matched), "�")
}
