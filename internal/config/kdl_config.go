package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from a .quer.kdl file.
// A missing file returns (nil, nil) so the caller falls back to
// defaults.
func LoadKDL(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, err := parseKDL(filepath.Dir(path), string(content))
	if err != nil {
		return nil, err
	}

	// Resolve a relative root against the directory holding the config
	// file so behavior does not depend on the process working directory.
	if cfg.Project.Root == "" {
		cfg.Project.Root = filepath.Dir(path)
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(filepath.Dir(path), cfg.Project.Root)
	}
	cfg.Project.Root = filepath.Clean(cfg.Project.Root)

	return cfg, nil
}

func parseKDL(defaultRoot, content string) (*Config, error) {
	cfg := Default(defaultRoot)

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "walk":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "include_hidden":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Walk.IncludeHidden = b
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Walk.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Walk.MaxFileSize = sz
						}
					}
				case "queue_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Walk.QueueSize = v
					}
				}
			}
		case "scan":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scan.Workers = v
					}
				case "context_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scan.ContextBytes = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "alignment":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.Alignment = v
					}
				case "max_hits_per_file":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxHitsPerFile = v
					}
				case "case_sensitive":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.CaseSensitive = b
					}
				}
			}
		case "history":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "capacity":
					if v, ok := firstIntArg(cn); ok {
						cfg.History.Capacity = v
					}
				case "file":
					if s, ok := firstStringArg(cn); ok {
						cfg.History.File = s
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, collectStringArgs(n)...)
		}
	}

	return cfg, nil
}

// Helpers leveraging the kdl-go document model.
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude { "pattern" } puts the strings in children.
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
