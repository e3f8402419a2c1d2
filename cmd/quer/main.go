package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/quersearch/quer/internal/bookmark"
	"github.com/quersearch/quer/internal/config"
	"github.com/quersearch/quer/internal/debug"
	"github.com/quersearch/quer/internal/display"
	"github.com/quersearch/quer/internal/engine"
	"github.com/quersearch/quer/internal/history"
	"github.com/quersearch/quer/internal/mcp"
	"github.com/quersearch/quer/internal/pattern"
	"github.com/quersearch/quer/internal/results"
	"github.com/quersearch/quer/internal/searchtypes"
	"github.com/quersearch/quer/internal/version"
	"github.com/quersearch/quer/internal/watcher"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")

	// If root is specified and config path is default, look for config in root directory
	if rootFlag := c.String("root"); rootFlag != "" && configPath == config.DefaultConfigFile {
		configPath = filepath.Join(rootFlag, config.DefaultConfigFile)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// Apply CLI flag overrides
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}

	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "quer",
		Usage:                  "Find byte and text patterns in file trees",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   config.DefaultConfigFile,
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory to scan (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g., --include '**/*.bin')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/build/**')",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "search",
				Aliases: []string{"s"},
				Usage:   "Scan files under the root for a pattern",
				Flags:   searchFlags(),
				Action:  searchCommand,
			},
			{
				Name:    "export",
				Usage:   "Scan for a pattern and write the matches as an ImHex bookmark file",
				Flags: append(searchFlags(),
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Destination .imhexbm path",
						Required: true,
					},
				),
				Action: exportCommand,
			},
			{
				Name:  "history",
				Usage: "Show recent search patterns",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "similar",
						Usage: "Rank entries by similarity to this text instead of recency",
					},
				},
				Action: historyCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Start MCP (Model Context Protocol) server with stdio transport",
				Action: mcpCommand,
			},
			{
				Name:   "version",
				Usage:  "Print version information",
				Action: versionCommand,
			},
		},
		Action: func(c *cli.Context) error {
			// Bare pattern argument means search.
			if c.NArg() > 0 {
				return searchCommand(c)
			}
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "hex",
			Aliases: []string{"x"},
			Usage:   "Treat the pattern as hex byte pairs, '??' and nibble wildcards allowed (e.g., 'DE AD ?? EF')",
		},
		&cli.BoolFlag{
			Name:    "case-insensitive",
			Aliases: []string{"i"},
			Usage:   "Case-insensitive regex matching",
		},
		&cli.IntFlag{
			Name:    "align",
			Aliases: []string{"a"},
			Usage:   "Keep only matches at offsets that are a multiple of this value (0 disables)",
		},
		&cli.IntFlag{
			Name:    "max-count",
			Aliases: []string{"m"},
			Usage:   "Stop after this many matches per file (0 = unlimited)",
		},
		&cli.BoolFlag{
			Name:  "hidden",
			Usage: "Scan dot-files and dot-directories",
		},
		&cli.BoolFlag{
			Name:  "append",
			Usage: "Merge matches into the previous result set instead of replacing it",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of scan workers (0 = number of CPUs)",
		},
		&cli.IntFlag{
			Name:  "context",
			Usage: "Context bytes captured on each side of a match",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output as JSON",
		},
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "One line per match, grep style",
		},
		&cli.BoolFlag{
			Name:  "show-context",
			Usage: "Hexdump the context window under each match",
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Sort rows by column: path, offset, length, pattern",
		},
		&cli.BoolFlag{
			Name:  "desc",
			Usage: "Sort descending",
		},
		&cli.StringFlag{
			Name:  "bookmarks",
			Usage: "Also write matches to this .imhexbm file",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Target file whose matches the bookmark output covers (required when matches span several files)",
		},
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "Stay running and re-scan when files change",
		},
		&cli.StringFlag{
			Name:   "cpu-profile",
			Usage:  "Write CPU profile to file",
			Hidden: true,
		},
		&cli.StringFlag{
			Name:   "mem-profile",
			Usage:  "Write heap profile to file after the scan",
			Hidden: true,
		},
	}
}

// buildEngine assembles the engine and its persisted history for one
// command invocation.
func buildEngine(c *cli.Context, cfg *config.Config) (*engine.Engine, *history.History, error) {
	hist := history.New(cfg.History.Capacity)
	entries, err := history.Load(cfg.HistoryPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}
	hist.Restore(entries)

	workers := cfg.Scan.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	contextBytes := cfg.Scan.ContextBytes
	if c.IsSet("context") {
		contextBytes = c.Int("context")
	}

	eng := engine.New(engine.Config{
		Root:         cfg.Project.Root,
		Workers:      workers,
		ContextBytes: contextBytes,
		QueueSize:    cfg.Walk.QueueSize,
		Include:      cfg.Include,
		Exclude:      cfg.Exclude,
		MaxFileSize:  cfg.Walk.MaxFileSize,
	}, hist)

	return eng, hist, nil
}

// specFromFlags builds the pattern spec for one search invocation.
func specFromFlags(c *cli.Context, cfg *config.Config, text string) pattern.Spec {
	kind := pattern.KindRegex
	if c.Bool("hex") {
		kind = pattern.KindHex
	}

	alignment := cfg.Search.Alignment
	if c.IsSet("align") {
		alignment = c.Int("align")
	}
	maxHits := cfg.Search.MaxHitsPerFile
	if c.IsSet("max-count") {
		maxHits = c.Int("max-count")
	}
	caseSensitive := cfg.Search.CaseSensitive
	if c.Bool("case-insensitive") {
		caseSensitive = false
	}

	return pattern.Spec{
		Text:           text,
		Kind:           kind,
		CaseSensitive:  caseSensitive,
		Alignment:      alignment,
		MaxHitsPerFile: maxHits,
		IncludeHidden:  c.Bool("hidden") || cfg.Walk.IncludeHidden,
	}
}

func formatterOptions(c *cli.Context, cfg *config.Config) (display.FormatterOptions, error) {
	opts := display.FormatterOptions{
		Format:      "text",
		Root:        cfg.Project.Root,
		ShowContext: c.Bool("show-context"),
	}
	if c.Bool("json") {
		opts.Format = "json"
	} else if c.Bool("compact") {
		opts.Format = "compact"
	}

	if sortName := c.String("sort"); sortName != "" {
		column, err := parseSortColumn(sortName)
		if err != nil {
			return opts, err
		}
		opts.Sort = &searchtypes.SortKey{
			Column:     column,
			Descending: c.Bool("desc"),
		}
	}

	return opts, nil
}

func parseSortColumn(name string) (searchtypes.SortColumn, error) {
	switch name {
	case "path":
		return searchtypes.SortByPath, nil
	case "offset":
		return searchtypes.SortByOffset, nil
	case "length":
		return searchtypes.SortByLength, nil
	case "pattern":
		return searchtypes.SortBySpec, nil
	default:
		return searchtypes.SortByPath, fmt.Errorf("unknown sort column %q (want path, offset, length or pattern)", name)
	}
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: quer search <pattern>")
	}

	if cpuProfile := c.String("cpu-profile"); cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile file: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	eng, hist, err := buildEngine(c, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec := specFromFlags(c, cfg, c.Args().First())

	if err := runAndPrint(ctx, c, cfg, eng, spec); err != nil {
		return err
	}
	if err := history.Save(cfg.HistoryPath(), hist.Entries()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
	}

	if memProfile := c.String("mem-profile"); memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile file: %v", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %v", err)
		}
	}

	if c.Bool("watch") {
		return watchLoop(ctx, c, cfg, eng, spec)
	}
	return nil
}

// runAndPrint runs one scan, prints the formatted results and handles
// the optional bookmark side-output.
func runAndPrint(ctx context.Context, c *cli.Context, cfg *config.Config, eng *engine.Engine, spec pattern.Spec) error {
	mode := results.Replace
	if c.Bool("append") {
		mode = results.Append
	}

	summary, err := eng.Run(ctx, spec, mode, nil)
	if err != nil {
		return err
	}

	opts, err := formatterOptions(c, cfg)
	if err != nil {
		return err
	}
	fmt.Print(display.NewResultFormatter(opts).Format(eng.Snapshot()))

	if summary.Status == searchtypes.StatusCancelled {
		fmt.Fprintln(os.Stderr, "Scan cancelled; results are partial")
	}
	for _, d := range summary.Diagnostics {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", d.Err)
	}

	if dest := c.String("bookmarks"); dest != "" {
		if err := exportSnapshot(eng, cfg.Project.Root, c.String("file"), dest); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Bookmarks written to %s\n", dest)
	}

	return nil
}

// exportSnapshot writes one target file's matches to dest. Bookmark
// offsets are byte positions inside a single file, so when matches span
// several files the user has to name the target with --file.
func exportSnapshot(eng *engine.Engine, root, target, dest string) error {
	matches, err := bookmark.TargetMatches(eng.Snapshot(), root, target)
	if err != nil {
		return err
	}
	return bookmark.ExportToFile(dest, matches)
}

// watchLoop re-runs the query whenever files under the root change.
func watchLoop(ctx context.Context, c *cli.Context, cfg *config.Config, eng *engine.Engine, spec pattern.Spec) error {
	rescan := make(chan struct{}, 1)
	fw, err := watcher.NewFileWatcher(watcher.Options{
		Root:          cfg.Project.Root,
		IncludeHidden: spec.IncludeHidden,
		Include:       cfg.Include,
		Exclude:       cfg.Exclude,
	}, func(events map[string]watcher.FileEventType) {
		select {
		case rescan <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}
	defer fw.Stop()

	fmt.Fprintf(os.Stderr, "Watching %s for changes; press Ctrl-C to stop\n", cfg.Project.Root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rescan:
			if err := runAndPrint(ctx, c, cfg, eng, spec); err != nil {
				fmt.Fprintf(os.Stderr, "Re-scan failed: %v\n", err)
			}
		}
	}
}

func exportCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: quer export <pattern> -o <file.imhexbm>")
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	eng, hist, err := buildEngine(c, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec := specFromFlags(c, cfg, c.Args().First())
	if _, err := eng.Run(ctx, spec, results.Replace, nil); err != nil {
		return err
	}

	if err := history.Save(cfg.HistoryPath(), hist.Entries()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
	}

	matches, err := bookmark.TargetMatches(eng.Snapshot(), cfg.Project.Root, c.String("file"))
	if err != nil {
		return err
	}
	dest := c.String("output")
	if err := bookmark.ExportToFile(dest, matches); err != nil {
		return err
	}

	fmt.Printf("Exported %d bookmarks to %s\n", len(matches), dest)
	return nil
}

func historyCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	entries, err := history.Load(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if similar := c.String("similar"); similar != "" {
		hist := history.New(cfg.History.Capacity)
		hist.Restore(entries)
		entries = hist.Similar(similar, cfg.History.Capacity)
	}

	if len(entries) == 0 {
		fmt.Println("No search history")
		return nil
	}

	for _, e := range entries {
		flags := ""
		if e.Kind == pattern.KindHex {
			flags = "  [hex]"
		} else if !e.CaseSensitive {
			flags = "  [i]"
		}
		fmt.Printf("%s  %s%s\n", e.LastUsed.Format("2006-01-02 15:04"), e.Text, flags)
	}
	return nil
}

func mcpCommand(c *cli.Context) error {
	// MCP owns stdout; all diagnostics must stay off it.
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	hist := history.New(cfg.History.Capacity)
	if entries, err := history.Load(cfg.HistoryPath()); err == nil {
		hist.Restore(entries)
	}

	eng := engine.New(engine.Config{
		Root:         cfg.Project.Root,
		Workers:      cfg.Scan.Workers,
		ContextBytes: cfg.Scan.ContextBytes,
		QueueSize:    cfg.Walk.QueueSize,
		Include:      cfg.Include,
		Exclude:      cfg.Exclude,
		MaxFileSize:  cfg.Walk.MaxFileSize,
	}, hist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(cfg, eng)
	err = server.Start(ctx)

	if saveErr := history.Save(cfg.HistoryPath(), hist.Entries()); saveErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", saveErr)
	}
	return err
}

func versionCommand(c *cli.Context) error {
	fmt.Println(version.FullInfo())
	return nil
}
