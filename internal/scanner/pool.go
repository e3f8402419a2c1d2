package scanner

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/quersearch/quer/internal/debug"
	quererrors "github.com/quersearch/quer/internal/errors"
	"github.com/quersearch/quer/internal/pattern"
	"github.com/quersearch/quer/internal/searchtypes"
)

// DefaultContextBytes is how many bytes of surrounding context are
// captured on each side of a match.
const DefaultContextBytes = 16

// Options configure a scan worker pool.
type Options struct {
	// Workers is the number of parallel scan workers. 0 uses the
	// available hardware parallelism.
	Workers int

	// ContextBytes is the per-side context window captured around each
	// match, clamped at file boundaries. 0 uses DefaultContextBytes.
	ContextBytes int
}

// DiagFunc receives non-fatal per-file scan diagnostics. It must be safe
// for concurrent calls from multiple workers.
type DiagFunc func(searchtypes.Diagnostic)

// Progress is a point-in-time snapshot of scan counters, suitable for a
// progress display polling during a scan.
type Progress struct {
	FilesScanned int64
	FilesMatched int64
	Matches      int64
	Errors       int64
}

// Pool runs a fixed number of parallel workers that pull file
// descriptors from a shared channel and match them against one shared
// immutable matcher.
type Pool struct {
	matcher *pattern.Matcher
	opts    Options

	filesScanned atomic.Int64
	filesMatched atomic.Int64
	matches      atomic.Int64
	errorCount   atomic.Int64
}

// NewPool creates a pool for one compiled matcher. The matcher is shared
// read-only across all workers.
func NewPool(matcher *pattern.Matcher, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ContextBytes <= 0 {
		opts.ContextBytes = DefaultContextBytes
	}
	return &Pool{matcher: matcher, opts: opts}
}

// Progress returns the current scan counters.
func (p *Pool) Progress() Progress {
	return Progress{
		FilesScanned: p.filesScanned.Load(),
		FilesMatched: p.filesMatched.Load(),
		Matches:      p.matches.Load(),
		Errors:       p.errorCount.Load(),
	}
}

// Scan drains files, matching each against the pool's matcher, and
// streams one FileResult per file with matches to out. out is closed
// when the scan reaches a terminal state. Per-file read failures are
// reported through onDiag and never stop the scan. When ctx is
// cancelled workers stop between files (and mid-file for the file they
// are on) without emitting partial results; the returned status is then
// StatusCancelled.
func (p *Pool) Scan(ctx context.Context, files <-chan searchtypes.FileDescriptor, out chan<- searchtypes.FileResult, onDiag DiagFunc) searchtypes.ScanStatus {
	if onDiag == nil {
		onDiag = func(searchtypes.Diagnostic) {}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Workers; i++ {
		g.Go(func() error {
			return p.worker(gctx, files, out, onDiag)
		})
	}

	err := g.Wait()
	close(out)

	if err != nil || ctx.Err() != nil {
		debug.LogScan("scan cancelled after %d files\n", p.filesScanned.Load())
		return searchtypes.StatusCancelled
	}
	return searchtypes.StatusCompleted
}

func (p *Pool) worker(ctx context.Context, files <-chan searchtypes.FileDescriptor, out chan<- searchtypes.FileResult, onDiag DiagFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fd, ok := <-files:
			if !ok {
				return nil
			}

			result, err := p.scanFile(ctx, fd)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				p.errorCount.Add(1)
				serr := quererrors.NewFileScanError(fd.Path, "read", err)
				debug.LogScan("%v\n", serr)
				onDiag(searchtypes.Diagnostic{
					Stage: searchtypes.StageScan,
					Path:  fd.Path,
					Err:   serr,
					Msg:   serr.Error(),
				})
				continue
			}

			p.filesScanned.Add(1)
			if len(result.Matches) == 0 {
				continue
			}
			p.filesMatched.Add(1)
			p.matches.Add(int64(len(result.Matches)))

			select {
			case out <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// scanFile reads one file and collects its retained matches,
// offset-ascending. Alignment filtering and the per-file hit cap are
// applied here; Truncated is set only when a further retained match
// actually existed beyond the cap.
func (p *Pool) scanFile(ctx context.Context, fd searchtypes.FileDescriptor) (searchtypes.FileResult, error) {
	buf, err := os.ReadFile(fd.Path)
	if err != nil {
		return searchtypes.FileResult{}, err
	}

	result := searchtypes.FileResult{File: fd}
	alignment := p.matcher.Alignment()
	hitCap := p.matcher.Spec().MaxHitsPerFile
	specID := p.matcher.ID()

	from := 0
	for {
		select {
		case <-ctx.Done():
			return searchtypes.FileResult{}, ctx.Err()
		default:
		}

		span, ok := p.matcher.Find(buf, from)
		if !ok {
			break
		}
		from = span.End

		if alignment > 1 && span.Start%alignment != 0 {
			continue
		}

		if hitCap > 0 && len(result.Matches) >= hitCap {
			result.Truncated = true
			break
		}

		result.Matches = append(result.Matches, searchtypes.MatchRecord{
			Path:    fd.Path,
			Offset:  int64(span.Start),
			Length:  span.End - span.Start,
			Context: contextSlice(buf, span, p.opts.ContextBytes),
			Preview: matchPreview(p.matcher.Kind(), buf[span.Start:span.End]),
			Spec:    specID,
		})
	}

	return result, nil
}

// contextSlice copies the bytes around span, clamped to the buffer.
func contextSlice(buf []byte, span pattern.Span, window int) []byte {
	start := span.Start - window
	if start < 0 {
		start = 0
	}
	end := span.End + window
	if end > len(buf) {
		end = len(buf)
	}
	out := make([]byte, end-start)
	copy(out, buf[start:end])
	return out
}
