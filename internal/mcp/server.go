// Package mcp exposes the scan engine over the Model Context Protocol
// so agents can drive searches and bookmark exports through stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quersearch/quer/internal/bookmark"
	"github.com/quersearch/quer/internal/config"
	"github.com/quersearch/quer/internal/debug"
	"github.com/quersearch/quer/internal/engine"
	"github.com/quersearch/quer/internal/pattern"
	"github.com/quersearch/quer/internal/results"
	"github.com/quersearch/quer/internal/searchtypes"
	"github.com/quersearch/quer/internal/version"
	"github.com/quersearch/quer/pkg/pathutil"
)

// Server wires the scan engine into an MCP stdio server.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	server *mcp.Server
}

// NewServer creates an MCP server over a fresh engine configured from cfg.
func NewServer(cfg *config.Config, eng *engine.Engine) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "quer-mcp-server",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// Start runs the server over stdio until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	debug.LogMCP("starting MCP server with stdio transport\n")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "Scan files under the configured root for a regex or hex byte pattern. Returns byte offsets, match lengths and previews per file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern": {
					Type:        "string",
					Description: "Search pattern: a regular expression, or hex byte pairs like \"DE AD ?? EF\" when kind is \"hex\"",
				},
				"kind": {
					Type:        "string",
					Description: "Pattern kind: \"regex\" (default) or \"hex\"",
				},
				"case_sensitive": {
					Type:        "boolean",
					Description: "Case-sensitive regex matching (default true; ignored for hex)",
				},
				"alignment": {
					Type:        "integer",
					Description: "Keep only matches whose offset is a multiple of this value; 0 or 1 disables",
				},
				"max_hits_per_file": {
					Type:        "integer",
					Description: "Stop recording matches in a file after this many; 0 means unlimited",
				},
				"include_hidden": {
					Type:        "boolean",
					Description: "Scan dot-files and dot-directories too",
				},
				"append": {
					Type:        "boolean",
					Description: "Merge matches into the existing result set instead of replacing it",
				},
			},
			Required: []string{"pattern"},
		},
	}, s.handleSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        "export_bookmarks",
		Description: "Export the current result set as an ImHex bookmark file (.imhexbm).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Destination file path for the bookmark JSON",
				},
				"file": {
					Type:        "string",
					Description: "Scanned file whose matches to export, relative to the root; required when matches span several files",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleExportBookmarks)

	s.server.AddTool(&mcp.Tool{
		Name:        "history",
		Description: "List recent search patterns, most recent first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"similar_to": {
					Type:        "string",
					Description: "When set, rank entries by similarity to this text instead of recency",
				},
			},
		},
	}, s.handleHistory)
}

// SearchParams are the arguments of the search tool.
type SearchParams struct {
	Pattern        string `json:"pattern"`
	Kind           string `json:"kind"`
	CaseSensitive  *bool  `json:"case_sensitive"`
	Alignment      int    `json:"alignment"`
	MaxHitsPerFile int    `json:"max_hits_per_file"`
	IncludeHidden  bool   `json:"include_hidden"`
	Append         bool   `json:"append"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SearchParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("search", fmt.Errorf("invalid parameters: %w", err))
	}

	kind, ok := pattern.ParseKind(params.Kind)
	if !ok {
		return createErrorResponse("search", fmt.Errorf("unknown pattern kind %q", params.Kind))
	}

	caseSensitive := true
	if params.CaseSensitive != nil {
		caseSensitive = *params.CaseSensitive
	}

	spec := pattern.Spec{
		Text:           params.Pattern,
		Kind:           kind,
		CaseSensitive:  caseSensitive,
		Alignment:      params.Alignment,
		MaxHitsPerFile: params.MaxHitsPerFile,
		IncludeHidden:  params.IncludeHidden,
	}

	mode := results.Replace
	if params.Append {
		mode = results.Append
	}

	summary, err := s.engine.Run(ctx, spec, mode, nil)
	if err != nil {
		return createErrorResponse("search", err)
	}

	return createJSONResponse(s.buildSearchResponse(summary))
}

type searchResponseFile struct {
	Path      string                `json:"path"`
	Truncated bool                  `json:"truncated,omitempty"`
	Matches   []searchResponseMatch `json:"matches"`
}

type searchResponseMatch struct {
	Offset  int64  `json:"offset"`
	Length  int    `json:"length"`
	Preview string `json:"preview,omitempty"`
}

func (s *Server) buildSearchResponse(summary engine.Summary) map[string]interface{} {
	rs := s.engine.Snapshot()

	files := make([]searchResponseFile, 0, len(rs.Paths()))
	for _, path := range rs.Paths() {
		fm, ok := rs.File(path)
		if !ok {
			continue
		}
		f := searchResponseFile{
			Path:      pathutil.ToRelative(path, s.cfg.Project.Root),
			Truncated: fm.Truncated,
		}
		for _, m := range fm.Matches {
			f.Matches = append(f.Matches, searchResponseMatch{
				Offset:  m.Offset,
				Length:  m.Length,
				Preview: m.Preview,
			})
		}
		files = append(files, f)
	}

	diags := make([]string, 0, len(summary.Diagnostics))
	for _, d := range summary.Diagnostics {
		diags = append(diags, d.Err.Error())
	}

	return map[string]interface{}{
		"status":        statusString(summary.Status),
		"files_scanned": summary.FilesScanned,
		"files_matched": summary.FilesMatched,
		"total_matches": summary.Matches,
		"elapsed_ms":    summary.Elapsed.Milliseconds(),
		"files":         files,
		"diagnostics":   diags,
	}
}

func statusString(status searchtypes.ScanStatus) string {
	if status == searchtypes.StatusCancelled {
		return "cancelled"
	}
	return "completed"
}

// ExportParams are the arguments of the export_bookmarks tool.
type ExportParams struct {
	Path string `json:"path"`
	File string `json:"file"`
}

func (s *Server) handleExportBookmarks(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ExportParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("export_bookmarks", fmt.Errorf("invalid parameters: %w", err))
	}

	// Bookmark offsets only make sense inside one target file.
	matches, err := bookmark.TargetMatches(s.engine.Snapshot(), s.cfg.Project.Root, params.File)
	if err != nil {
		return createErrorResponse("export_bookmarks", err)
	}

	if err := bookmark.ExportToFile(params.Path, matches); err != nil {
		return createErrorResponse("export_bookmarks", err)
	}

	return createJSONResponse(map[string]interface{}{
		"success":   true,
		"path":      params.Path,
		"bookmarks": len(matches),
	})
}

// HistoryParams are the arguments of the history tool.
type HistoryParams struct {
	SimilarTo string `json:"similar_to"`
}

func (s *Server) handleHistory(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params HistoryParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("history", fmt.Errorf("invalid parameters: %w", err))
	}

	hist := s.engine.History()
	entries := hist.Entries()
	if params.SimilarTo != "" {
		entries = hist.Similar(params.SimilarTo, len(entries))
	}

	items := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]interface{}{
			"pattern":        e.Text,
			"kind":           e.Kind.String(),
			"case_sensitive": e.CaseSensitive,
			"last_used":      e.LastUsed,
		})
	}

	return createJSONResponse(map[string]interface{}{"entries": items})
}
