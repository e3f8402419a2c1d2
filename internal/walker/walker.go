package walker

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/quersearch/quer/internal/debug"
	quererrors "github.com/quersearch/quer/internal/errors"
	"github.com/quersearch/quer/internal/searchtypes"
)

// DefaultQueueSize bounds the file channel so enumeration is paced by
// the scan workers instead of materializing huge trees up front.
const DefaultQueueSize = 256

// Options control which entries a walk yields.
type Options struct {
	// IncludeHidden keeps dot-prefixed files and directories in the walk.
	IncludeHidden bool

	// Include and Exclude are doublestar glob patterns matched against
	// the slash-separated path relative to the walk root. An empty
	// Include list includes everything.
	Include []string
	Exclude []string

	// MaxFileSize skips files larger than this many bytes. 0 disables
	// the limit.
	MaxFileSize int64

	// QueueSize overrides the file channel capacity. 0 uses
	// DefaultQueueSize.
	QueueSize int
}

// DiagFunc receives non-fatal per-path diagnostics during a walk. It may
// be called from the walk goroutine only.
type DiagFunc func(searchtypes.Diagnostic)

// Walker enumerates candidate files under a root. Each Walk call is a
// fresh enumeration; no state is carried across calls.
type Walker struct {
	opts Options
}

// New creates a walker with the given options.
func New(opts Options) *Walker {
	return &Walker{opts: opts}
}

// Walk lazily enumerates files under root, depth-first, yielding them on
// the returned channel. The channel is closed when enumeration finishes
// or ctx is cancelled. Unreadable entries and broken links are reported
// through onDiag (one diagnostic per offending path) and never stop the
// walk. Symbolic links to directories are followed, with already-visited
// canonical directories skipped so cycles cannot recurse forever.
func (w *Walker) Walk(ctx context.Context, root string, onDiag DiagFunc) <-chan searchtypes.FileDescriptor {
	size := w.opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	out := make(chan searchtypes.FileDescriptor, size)

	if onDiag == nil {
		onDiag = func(searchtypes.Diagnostic) {}
	}

	go func() {
		defer close(out)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			w.reportWalkError(onDiag, root, err)
			return
		}

		info, err := os.Stat(absRoot)
		if err != nil {
			w.reportWalkError(onDiag, absRoot, err)
			return
		}

		// A root that is itself a file is yielded directly.
		if !info.IsDir() {
			w.yieldFile(ctx, out, absRoot, absRoot, info, onDiag)
			return
		}

		visited := make(map[string]bool)
		if canonical, err := filepath.EvalSymlinks(absRoot); err == nil {
			visited[canonical] = true
		}
		w.walkDir(ctx, absRoot, absRoot, visited, out, onDiag)
	}()

	return out
}

func (w *Walker) walkDir(ctx context.Context, root, dir string, visited map[string]bool, out chan<- searchtypes.FileDescriptor, onDiag DiagFunc) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.reportWalkError(onDiag, dir, err)
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		name := entry.Name()
		if !w.opts.IncludeHidden && isHidden(name) {
			continue
		}

		path := filepath.Join(dir, name)

		if entry.IsDir() || isDirLink(entry, path) {
			canonical, err := filepath.EvalSymlinks(path)
			if err != nil {
				w.reportWalkError(onDiag, path, err)
				continue
			}
			if visited[canonical] {
				debug.LogWalk("skipping already-visited directory %s\n", path)
				continue
			}
			visited[canonical] = true
			w.walkDir(ctx, root, path, visited, out, onDiag)
			continue
		}

		// os.Stat resolves file symlinks; a broken link errors here.
		info, err := os.Stat(path)
		if err != nil {
			w.reportWalkError(onDiag, path, err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if !w.matchesPatterns(root, path) {
			continue
		}
		w.yieldFile(ctx, out, root, path, info, onDiag)
	}
}

func (w *Walker) yieldFile(ctx context.Context, out chan<- searchtypes.FileDescriptor, root, path string, info os.FileInfo, onDiag DiagFunc) {
	if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
		debug.LogWalk("skipping %s: %d bytes over limit\n", path, info.Size())
		return
	}

	fd := searchtypes.FileDescriptor{
		Path:    path,
		Size:    info.Size(),
		Hidden:  isHidden(filepath.Base(path)),
		ModTime: info.ModTime(),
	}

	select {
	case out <- fd:
	case <-ctx.Done():
	}
}

// matchesPatterns applies include/exclude globs to the root-relative
// slash path. Exclusion wins over inclusion.
func (w *Walker) matchesPatterns(root, path string) bool {
	if len(w.opts.Include) == 0 && len(w.opts.Exclude) == 0 {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pat := range w.opts.Exclude {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return false
		}
	}
	if len(w.opts.Include) == 0 {
		return true
	}
	for _, pat := range w.opts.Include {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (w *Walker) reportWalkError(onDiag DiagFunc, path string, err error) {
	werr := quererrors.NewWalkError(path, err)
	debug.LogWalk("%v\n", werr)
	onDiag(searchtypes.Diagnostic{
		Stage: searchtypes.StageWalk,
		Path:  path,
		Err:   werr,
		Msg:   werr.Error(),
	})
}

// isHidden identifies unix hidden entries by their dot prefix.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isDirLink(entry os.DirEntry, path string) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
