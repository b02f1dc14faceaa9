package reflink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"reflinkcopy/internal/key"
	"reflinkcopy/internal/logger"
)

var (
	treePrometheusMetrics sync.Once
	treeFilesTotal        = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflinkcopy",
			Subsystem: "tree",
			Name:      "files_total",
			Help:      "Number of regular files placed by CloneTree, by method.",
		},
		[]string{"method"})
)

// TreeOptions configures CloneTree
type TreeOptions struct {
	// Workers bounds the number of files cloned at once. Defaults to the CPU
	// count.
	Workers int
	// NoFallback makes an unsupported reflink fail the whole clone instead
	// of copying the file.
	NoFallback bool
	// ForceCopy skips reflinking and copies every file
	ForceCopy bool
	// Exclude holds gitignore-style patterns relative to the source root
	Exclude []string
	// UseGitignore also applies the .gitignore files found in the source
	// tree and .git/info/exclude.
	UseGitignore bool
	// Progress, if set, is called every ProgressInterval and once at the end
	Progress         func(TreeStats)
	ProgressInterval time.Duration
}

// TreeStats counts what CloneTree did so far
type TreeStats struct {
	Directories int64
	Files       int64
	Symlinks    int64
	Reflinked   int64
	Copied      int64
	BytesCopied int64
	Skipped     int64
	Excluded    int64
	Elapsed     time.Duration
}

var errDestinationInsideSource = errors.New("destination is inside the source tree")

type treeTask struct {
	src string
	dst string
}

type treeDir struct {
	path string
	perm fs.FileMode
}

type treeCloner struct {
	opts    TreeOptions
	matcher gitignore.Matcher
	start   time.Time

	directories atomic.Int64
	files       atomic.Int64
	symlinks    atomic.Int64
	reflinked   atomic.Int64
	copied      atomic.Int64
	bytesCopied atomic.Int64
	skipped     atomic.Int64
	excluded    atomic.Int64
}

// CloneTree recreates the directory tree at src under dst, which must not
// exist yet and must not lie inside src. Regular files are reflinked and, unless opts.NoFallback is set,
// copied where reflinking is unsupported. Directories keep their permission
// bits, symlinks keep their targets, and other file types are skipped.
//
// The first error stops the walk; files already placed are left in dst.
func CloneTree(ctx context.Context, src, dst string, opts TreeOptions) (TreeStats, error) {
	treePrometheusMetrics.Do(func() {
		prometheus.MustRegister(treeFilesTotal)
	})

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 200 * time.Millisecond
	}

	c := &treeCloner{opts: opts, start: time.Now()}

	info, err := os.Stat(src)
	if err != nil {
		return c.stats(), fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.IsDir() {
		return c.stats(), fmt.Errorf("source %s is not a directory", src)
	}
	if err := checkTreePaths(src, dst); err != nil {
		return c.stats(), err
	}

	patterns, err := c.loadPatterns(src)
	if err != nil {
		return c.stats(), err
	}
	if len(patterns) > 0 {
		c.matcher = gitignore.NewMatcher(patterns)
	}

	ctx = logger.With(ctx, key.Source.Field(src), key.Destination.Field(dst))
	logger.Debug(ctx, "cloning tree", key.WorkerCount.Field(opts.Workers), key.Patterns.Field(opts.Exclude))

	done := make(chan struct{})
	var progressDone sync.WaitGroup
	if opts.Progress != nil {
		progressDone.Add(1)
		go func() {
			defer progressDone.Done()
			c.reportProgress(done)
		}()
	}

	err = c.run(ctx, src, dst, info.Mode().Perm())

	close(done)
	progressDone.Wait()

	stats := c.stats()
	if opts.Progress != nil {
		opts.Progress(stats)
	}
	if err != nil {
		return stats, err
	}

	logger.Debug(ctx, "cloned tree",
		key.DurationMS.Field(stats.Elapsed),
		key.Bytes.Field(stats.BytesCopied),
	)
	return stats, nil
}

func (c *treeCloner) run(ctx context.Context, src, dst string, rootPerm fs.FileMode) error {
	if err := os.Mkdir(dst, 0o700); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	// Directories stay writable until all their entries are in place
	dirs := []treeDir{{path: dst, perm: rootPerm}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		if path == src {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if c.isExcluded(rel, d.IsDir()) {
			c.excluded.Add(1)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.Mkdir(target, 0o700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			dirs = append(dirs, treeDir{path: target, perm: info.Mode().Perm()})
			c.directories.Add(1)

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil {
				return fmt.Errorf("failed to create symlink: %w", err)
			}
			c.symlinks.Add(1)

		case d.Type().IsRegular():
			task := treeTask{src: path, dst: target}
			g.Go(func() error {
				return c.cloneFile(gctx, task)
			})

		default:
			logger.Warn(ctx, "skipping special file", key.Path.Field(path))
			c.skipped.Add(1)
		}
		return nil
	})

	err := g.Wait()
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		err = walkErr
	} else if err == nil {
		err = walkErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return err
	}

	// Children first, so read-only parents are locked last
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].perm); err != nil {
			return fmt.Errorf("failed to set directory permissions: %w", err)
		}
	}
	return nil
}

// checkTreePaths rejects a dst that is src itself or lies below it; the walk
// would otherwise descend into its own output.
func checkTreePaths(src, dst string) error {
	realSrc, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("failed to resolve source: %w", err)
	}
	if realSrc, err = filepath.Abs(realSrc); err != nil {
		return fmt.Errorf("failed to resolve source: %w", err)
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	// dst does not exist yet, so only its parent can be resolved
	parent, err := filepath.EvalSymlinks(filepath.Dir(absDst))
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	realDst := filepath.Join(parent, filepath.Base(absDst))

	rel, err := filepath.Rel(realSrc, realDst)
	if err != nil {
		// different volumes
		return nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return fmt.Errorf("%w: %s is in %s", errDestinationInsideSource, dst, src)
}

func (c *treeCloner) cloneFile(ctx context.Context, task treeTask) error {
	c.files.Add(1)

	if c.opts.ForceCopy {
		n, err := Copy(task.src, task.dst)
		if err != nil {
			return err
		}
		c.placed(ctx, task, Result{Method: MethodCopy, Bytes: n})
		return nil
	}

	if c.opts.NoFallback {
		if err := Reflink(task.src, task.dst); err != nil {
			return err
		}
		c.placed(ctx, task, Result{Method: MethodReflink})
		return nil
	}

	res, err := ReflinkOrCopy(task.src, task.dst)
	if err != nil {
		return err
	}
	c.placed(ctx, task, res)
	return nil
}

func (c *treeCloner) placed(ctx context.Context, task treeTask, res Result) {
	switch res.Method {
	case MethodReflink:
		c.reflinked.Add(1)
	case MethodCopy:
		c.copied.Add(1)
		c.bytesCopied.Add(res.Bytes)
	}
	treeFilesTotal.WithLabelValues(res.Method.String()).Inc()

	logger.Debug(ctx, "placed file",
		key.Path.Field(task.dst),
		key.Method.Field(res.Method.String()),
		key.Bytes.Field(res.Bytes),
	)
}

func (c *treeCloner) loadPatterns(src string) ([]gitignore.Pattern, error) {
	var patterns []gitignore.Pattern
	if c.opts.UseGitignore {
		ps, err := gitignore.ReadPatterns(osfs.New(src), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read gitignore patterns: %w", err)
		}
		patterns = append(patterns, ps...)
	}
	for _, p := range c.opts.Exclude {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	return patterns, nil
}

func (c *treeCloner) isExcluded(rel string, isDir bool) bool {
	if c.matcher == nil {
		return false
	}
	return c.matcher.Match(strings.Split(filepath.ToSlash(rel), "/"), isDir)
}

func (c *treeCloner) reportProgress(done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.opts.Progress(c.stats())
		case <-done:
			return
		}
	}
}

func (c *treeCloner) stats() TreeStats {
	return TreeStats{
		Directories: c.directories.Load(),
		Files:       c.files.Load(),
		Symlinks:    c.symlinks.Load(),
		Reflinked:   c.reflinked.Load(),
		Copied:      c.copied.Load(),
		BytesCopied: c.bytesCopied.Load(),
		Skipped:     c.skipped.Load(),
		Excluded:    c.excluded.Load(),
		Elapsed:     time.Since(c.start),
	}
}
