package config

import (
	"os"
	"path/filepath"

	"github.com/quersearch/quer/internal/history"
	"github.com/quersearch/quer/internal/scanner"
	"github.com/quersearch/quer/internal/walker"
)

// DefaultConfigFile is the per-project config file name.
const DefaultConfigFile = ".quer.kdl"

// DefaultHistoryFile is where the CLI persists the pattern history.
const DefaultHistoryFile = ".quer-history.toml"

type Config struct {
	Version int
	Project Project
	Walk    Walk
	Scan    Scan
	Search  Search
	History History
	Include []string
	Exclude []string
}

type Project struct {
	Root string
	Name string
}

type Walk struct {
	IncludeHidden bool
	MaxFileSize   int64 // bytes; 0 disables the limit
	QueueSize     int   // file channel capacity; 0 = walker default
}

type Scan struct {
	Workers      int // 0 = hardware parallelism
	ContextBytes int // per-side context window around each match
}

type Search struct {
	Alignment      int // default offset alignment; 0/1 = unconstrained
	MaxHitsPerFile int // default per-file hit cap; 0 = unlimited
	CaseSensitive  bool
}

type History struct {
	Capacity int
	File     string // relative paths resolve against the project root
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	if root == "" {
		root, _ = os.Getwd()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	return &Config{
		Version: 1,
		Project: Project{
			Root: absRoot,
			Name: filepath.Base(absRoot),
		},
		Walk: Walk{
			IncludeHidden: false,
			MaxFileSize:   0,
			QueueSize:     walker.DefaultQueueSize,
		},
		Scan: Scan{
			Workers:      0,
			ContextBytes: scanner.DefaultContextBytes,
		},
		Search: Search{
			Alignment:      0,
			MaxHitsPerFile: 0,
			CaseSensitive:  true,
		},
		History: History{
			Capacity: history.DefaultCapacity,
			File:     DefaultHistoryFile,
		},
	}
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. The returned config is validated.
func Load(path string) (*Config, error) {
	root := filepath.Dir(path)

	cfg, err := LoadKDL(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default(root)
	}

	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HistoryPath resolves the history file location against the project
// root.
func (c *Config) HistoryPath() string {
	if filepath.IsAbs(c.History.File) {
		return c.History.File
	}
	return filepath.Join(c.Project.Root, c.History.File)
}
