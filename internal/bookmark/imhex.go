package bookmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quersearch/quer/internal/debug"
	"github.com/quersearch/quer/internal/searchtypes"
)

// DefaultColor is the bookmark highlight color ImHex shows for exported
// regions. The value matches what the bookmark consumer expects.
const DefaultColor = 1341756994

// Region is the byte range a bookmark covers.
type Region struct {
	Address uint64 `json:"address"`
	Size    uint64 `json:"size"`
}

// Entry is one bookmark in an .imhexbm file.
type Entry struct {
	Color   uint32 `json:"color"`
	Comment string `json:"comment"`
	ID      int    `json:"id"`
	Locked  bool   `json:"locked"`
	Name    string `json:"name"`
	Region  Region `json:"region"`
}

// File is the top-level .imhexbm document.
type File struct {
	Bookmarks []Entry `json:"bookmarks"`
}

// ErrorKind distinguishes export failures.
type ErrorKind int

const (
	// ErrorEmpty means there were no matches to export.
	ErrorEmpty ErrorKind = iota

	// ErrorIo means writing the destination failed.
	ErrorIo

	// ErrorAmbiguous means the result set spans several files and no
	// target was named.
	ErrorAmbiguous

	// ErrorUnknownTarget means the named target has no recorded matches.
	ErrorUnknownTarget
)

// ExportError is an export-time failure, distinct from compile and scan
// errors; it never affects scan state.
type ExportError struct {
	Kind       ErrorKind
	Path       string
	Underlying error
}

// Error implements the error interface
func (e *ExportError) Error() string {
	switch e.Kind {
	case ErrorEmpty:
		return "nothing to export: match set is empty"
	case ErrorIo:
		return fmt.Sprintf("bookmark export to %s failed: %v", e.Path, e.Underlying)
	case ErrorAmbiguous:
		return fmt.Sprintf("bookmark export needs one target file: %v", e.Underlying)
	case ErrorUnknownTarget:
		return fmt.Sprintf("no matches recorded for %s", e.Path)
	default:
		return fmt.Sprintf("bookmark export failed: %v", e.Underlying)
	}
}

// Unwrap returns the underlying error, if any
func (e *ExportError) Unwrap() error {
	return e.Underlying
}

// Export serializes a file's match set to the .imhexbm byte stream.
// Entries keep the match order; IDs are 1-based; each name carries the
// match preview and its offset in hex, the way the original bookmarks
// read. Fails with an ErrorEmpty ExportError when matches is empty.
func Export(matches []searchtypes.MatchRecord) ([]byte, error) {
	if len(matches) == 0 {
		return nil, &ExportError{Kind: ErrorEmpty}
	}

	doc := File{Bookmarks: make([]Entry, 0, len(matches))}
	for i, m := range matches {
		doc.Bookmarks = append(doc.Bookmarks, Entry{
			Color:   DefaultColor,
			Comment: "\n",
			ID:      i + 1,
			Locked:  true,
			Name:    fmt.Sprintf("%s @ 0x%x", m.Preview, m.Offset),
			Region: Region{
				Address: uint64(m.Offset),
				Size:    uint64(m.Length),
			},
		})
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, &ExportError{Kind: ErrorIo, Underlying: err}
	}
	return data, nil
}

// ExportToFile writes a file's match set to dest as .imhexbm.
func ExportToFile(dest string, matches []searchtypes.MatchRecord) error {
	data, err := Export(matches)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return &ExportError{Kind: ErrorIo, Path: dest, Underlying: err}
	}
	debug.LogExport("wrote %d bookmarks to %s\n", len(matches), dest)
	return nil
}

// Parse reads an .imhexbm byte stream back into its entries. Offsets and
// sizes round-trip exactly.
func Parse(data []byte) (*File, error) {
	var doc File
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed bookmark file: %w", err)
	}
	return &doc, nil
}
