package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quersearch/quer/internal/debug"
	"github.com/quersearch/quer/internal/history"
	"github.com/quersearch/quer/internal/pattern"
	"github.com/quersearch/quer/internal/results"
	"github.com/quersearch/quer/internal/scanner"
	"github.com/quersearch/quer/internal/searchtypes"
	"github.com/quersearch/quer/internal/walker"
)

// Config carries the per-engine scan settings supplied by the shell.
type Config struct {
	Root         string
	Workers      int
	ContextBytes int
	QueueSize    int
	Include      []string
	Exclude      []string
	MaxFileSize  int64
}

// Summary is the terminal report of one Run.
type Summary struct {
	Status          searchtypes.ScanStatus
	FilesEnumerated int64
	FilesScanned    int64
	FilesMatched    int64
	Matches         int64
	Diagnostics     []searchtypes.Diagnostic
	Elapsed         time.Duration
}

// Progress pairs the scan pool's counters with the walker-side running
// total, so a shell can render "scanned N of M" while M still grows.
type Progress struct {
	scanner.Progress
	FilesEnumerated int64
}

// ResultFunc observes per-file results as they stream in, for
// progressive display. Called from the aggregation goroutine.
type ResultFunc func(searchtypes.FileResult)

// Engine wires the walker, the scan worker pool and the aggregator into
// one query pipeline. Results accumulate across Runs according to the
// merge mode of each Run; the pattern history records every compiled
// spec.
type Engine struct {
	cfg  Config
	agg  *results.Aggregator
	hist *history.History

	// pool of the run in flight, for progress polling.
	active atomic.Pointer[scanner.Pool]

	// files the walker has yielded so far in the run in flight.
	enumerated atomic.Int64
}

// New creates an engine over an empty result set.
func New(cfg Config, hist *history.History) *Engine {
	if hist == nil {
		hist = history.New(0)
	}
	return &Engine{
		cfg:  cfg,
		agg:  results.NewAggregator(results.Replace),
		hist: hist,
	}
}

// Run compiles spec and scans the configured root. A compile failure is
// returned before any worker is spawned and leaves the result set
// untouched. With mode Replace the result set is discarded and rebuilt;
// with mode Append new matches union into it. onResult, when non-nil,
// receives each file's matches as soon as they are aggregated.
func (e *Engine) Run(ctx context.Context, spec pattern.Spec, mode results.MergeMode, onResult ResultFunc) (Summary, error) {
	matcher, err := pattern.Compile(spec)
	if err != nil {
		return Summary{}, err
	}

	e.hist.Record(spec)

	if mode == results.Replace {
		e.agg.Clear()
	}
	e.agg.SetMergeMode(mode)

	start := time.Now()
	debug.LogScan("query %q (%s) in %s\n", spec.Text, spec.Kind, e.cfg.Root)

	w := walker.New(walker.Options{
		IncludeHidden: spec.IncludeHidden,
		Include:       e.cfg.Include,
		Exclude:       e.cfg.Exclude,
		MaxFileSize:   e.cfg.MaxFileSize,
		QueueSize:     e.cfg.QueueSize,
	})
	walked := w.Walk(ctx, e.cfg.Root, e.agg.AddDiagnostic)

	// Count files as they come off the walker so progress can show a
	// running total alongside the scanned counter.
	e.enumerated.Store(0)
	files := make(chan searchtypes.FileDescriptor, 1)
	go func() {
		defer close(files)
		for fd := range walked {
			e.enumerated.Add(1)
			select {
			case files <- fd:
			case <-ctx.Done():
				return
			}
		}
	}()

	pool := scanner.NewPool(matcher, scanner.Options{
		Workers:      e.cfg.Workers,
		ContextBytes: e.cfg.ContextBytes,
	})
	e.active.Store(pool)
	defer e.active.Store(nil)

	out := make(chan searchtypes.FileResult, walker.DefaultQueueSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range out {
			e.agg.Submit(r)
			if onResult != nil {
				onResult(r)
			}
		}
	}()

	status := pool.Scan(ctx, files, out, e.agg.AddDiagnostic)
	wg.Wait()

	progress := pool.Progress()
	return Summary{
		Status:          status,
		FilesEnumerated: e.enumerated.Load(),
		FilesScanned:    progress.FilesScanned,
		FilesMatched:    progress.FilesMatched,
		Matches:         progress.Matches,
		Diagnostics:     e.agg.Diagnostics(),
		Elapsed:         time.Since(start),
	}, nil
}

// Progress reports the counters of the run in flight, or zeros when no
// scan is running.
func (e *Engine) Progress() Progress {
	p := Progress{FilesEnumerated: e.enumerated.Load()}
	if pool := e.active.Load(); pool != nil {
		p.Progress = pool.Progress()
	}
	return p
}

// Snapshot returns an immutable view of the aggregated results.
func (e *Engine) Snapshot() *results.ResultSet {
	return e.agg.Snapshot()
}

// Diagnostics returns the non-fatal walk/scan diagnostics collected so
// far.
func (e *Engine) Diagnostics() []searchtypes.Diagnostic {
	return e.agg.Diagnostics()
}

// History returns the pattern history shared with the shell.
func (e *Engine) History() *history.History {
	return e.hist
}
