package display

import (
	"fmt"
	"strings"
)

const hexdumpWidth = 16

// Hexdump renders data as rows of 16 hex bytes with an ASCII gutter.
// Printable ASCII shows as itself; whitespace, NUL and non-ASCII bytes
// show as '.'.
func Hexdump(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	rows := (len(data) + hexdumpWidth - 1) / hexdumpWidth
	var sb strings.Builder
	sb.Grow(rows * (hexdumpWidth*3 + 4 + hexdumpWidth + 1))

	var ascii strings.Builder
	for pos, b := range data {
		sb.WriteString(fmt.Sprintf("%02X ", b))

		if b < 0x80 && b > 0x20 {
			ascii.WriteByte(b)
		} else {
			ascii.WriteByte('.')
		}

		if pos%hexdumpWidth == hexdumpWidth-1 {
			sb.WriteString("    ")
			sb.WriteString(ascii.String())
			ascii.Reset()
			sb.WriteByte('\n')
		}
	}

	// Flush the final partial row, padded so gutters line up.
	if rem := len(data) % hexdumpWidth; rem != 0 {
		sb.WriteString(strings.Repeat("   ", hexdumpWidth-rem))
		sb.WriteString("    ")
		sb.WriteString(ascii.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}

// HexdumpAt prefixes each row with its absolute offset.
func HexdumpAt(data []byte, base int64) string {
	if len(data) == 0 {
		return ""
	}

	var sb strings.Builder
	dump := Hexdump(data)
	for i, line := range strings.Split(strings.TrimRight(dump, "\n"), "\n") {
		sb.WriteString(fmt.Sprintf("%08x  %s\n", base+int64(i*hexdumpWidth), line))
	}
	return sb.String()
}
