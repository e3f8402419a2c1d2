package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quersearch/quer/internal/results"
	"github.com/quersearch/quer/internal/searchtypes"
	"github.com/quersearch/quer/pkg/pathutil"
)

// ResultFormatter formats scan results for display
type ResultFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls result formatting
type FormatterOptions struct {
	Format      string               // "text", "json", "compact"
	Root        string               // when set, paths render relative to it
	ShowContext bool                 // hexdump the context window under each row
	Sort        *searchtypes.SortKey // nil keeps natural order
}

// NewResultFormatter creates a new result formatter
func NewResultFormatter(options FormatterOptions) *ResultFormatter {
	return &ResultFormatter{options: options}
}

// Format renders a result set according to the configured options.
func (rf *ResultFormatter) Format(rs *results.ResultSet) string {
	switch rf.options.Format {
	case "json":
		return rf.formatJSON(rs)
	case "compact":
		return rf.formatCompact(rs)
	default:
		return rf.formatText(rs)
	}
}

func (rf *ResultFormatter) orderedRows(rs *results.ResultSet) []results.Row {
	rows := rs.Rows()
	if rf.options.Sort == nil {
		return rows
	}
	index := results.BuildSortIndex(rs, *rf.options.Sort)
	ordered := make([]results.Row, 0, len(rows))
	for _, id := range index {
		ordered = append(ordered, rows[id])
	}
	return ordered
}

func (rf *ResultFormatter) displayPath(path string) string {
	if rf.options.Root == "" {
		return path
	}
	return pathutil.ToRelative(path, rf.options.Root)
}

// formatText renders a fixed-width table, one row per match.
func (rf *ResultFormatter) formatText(rs *results.ResultSet) string {
	rows := rf.orderedRows(rs)
	if len(rows) == 0 {
		return "No matches found\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-12s  %-10s  %-6s  %s\n", "OFFSET", "DECIMAL", "LEN", "PATH"))

	for _, row := range rows {
		m := row.Match
		sb.WriteString(fmt.Sprintf("0x%010x  %-10d  %-6d  %s\n",
			m.Offset, m.Offset, m.Length, rf.displayPath(m.Path)))
		if m.Preview != "" {
			sb.WriteString(fmt.Sprintf("              %s\n", m.Preview))
		}
		if rf.options.ShowContext && len(m.Context) > 0 {
			sb.WriteString(indent(Hexdump(m.Context), "              "))
		}
	}

	sb.WriteString(fmt.Sprintf("\n%d matches in %d files", len(rows), len(rs.Paths())))
	for _, path := range rs.Paths() {
		if fm, ok := rs.File(path); ok && fm.Truncated {
			sb.WriteString(fmt.Sprintf("\n%s: hit cap reached, results truncated", rf.displayPath(path)))
		}
	}
	sb.WriteString("\n")

	return sb.String()
}

// formatCompact emits one grep-style line per match.
func (rf *ResultFormatter) formatCompact(rs *results.ResultSet) string {
	var sb strings.Builder
	for _, row := range rf.orderedRows(rs) {
		m := row.Match
		sb.WriteString(fmt.Sprintf("%s:0x%x:%s\n", rf.displayPath(m.Path), m.Offset, m.Preview))
	}
	return sb.String()
}

type jsonMatch struct {
	Path    string `json:"path"`
	Offset  int64  `json:"offset"`
	Length  int    `json:"length"`
	Preview string `json:"preview,omitempty"`
	Context []byte `json:"context,omitempty"`
}

type jsonFile struct {
	Path      string      `json:"path"`
	Truncated bool        `json:"truncated,omitempty"`
	Matches   []jsonMatch `json:"matches"`
}

type jsonReport struct {
	Files []jsonFile `json:"files"`
	Total int        `json:"total_matches"`
}

func (rf *ResultFormatter) formatJSON(rs *results.ResultSet) string {
	report := jsonReport{Files: []jsonFile{}}
	for _, path := range rs.Paths() {
		fm, ok := rs.File(path)
		if !ok {
			continue
		}
		jf := jsonFile{Path: rf.displayPath(path), Truncated: fm.Truncated}
		for _, m := range fm.Matches {
			jm := jsonMatch{
				Path:    rf.displayPath(m.Path),
				Offset:  m.Offset,
				Length:  m.Length,
				Preview: m.Preview,
			}
			if rf.options.ShowContext {
				jm.Context = m.Context
			}
			jf.Matches = append(jf.Matches, jm)
			report.Total++
		}
		report.Files = append(report.Files, jf)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data) + "\n"
}

func indent(s, prefix string) string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
