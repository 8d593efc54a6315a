// Package watcher runs an update whenever source files of a repository
// change. It listens to fsnotify events and falls back to polling file
// mtimes when the platform watcher cannot be started.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DeusData/codegraph/internal/discover"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

// UpdateFunc runs one incremental update of the repository.
type UpdateFunc func(ctx context.Context) error

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// Watcher triggers updates for one repository root.
type Watcher struct {
	root     string
	opts     *discover.Options
	matcher  *discover.Matcher
	debounce time.Duration
	update   UpdateFunc

	// snapshot is the polling baseline; nil until the first poll.
	snapshot map[string]fileSnapshot
	interval time.Duration
}

// New creates a Watcher. update runs after debounce has passed without a
// further relevant change.
func New(root string, opts *discover.Options, debounce time.Duration, update UpdateFunc) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		root:     root,
		opts:     opts,
		matcher:  discover.NewMatcher(root, opts),
		debounce: debounce,
		update:   update,
		interval: baseInterval,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("watcher.fallback", "root", w.root, "err", err)
		return w.poll(ctx)
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	slog.Info("watcher.start", "root", w.root, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				pending = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher.event_err", "err", err)
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were dropped; an update covers whatever they were.
				pending = true
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			if !pending {
				continue
			}
			if err := w.update(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Warn("watcher.update", "root", w.root, "err", err)
				timer.Reset(w.interval)
				continue
			}
			pending = false
		}
	}
}

// handle reacts to one event and reports whether it should trigger an
// update.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	switch filepath.Base(rel) {
	case ".gitignore", discover.IgnoreFileName:
		w.matcher = discover.NewMatcher(w.root, w.opts)
		return true
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.matcher.IgnoredDir(rel) {
				return false
			}
			if err := w.addRecursive(fw, ev.Name); err != nil {
				slog.Warn("watcher.add", "path", rel, "err", err)
			}
			return true
		}
	}
	if ev.Op == fsnotify.Chmod || w.matcher.Ignored(rel) {
		return false
	}
	if _, ok := w.matcher.Classify(rel); ok {
		slog.Debug("watcher.changed", "path", rel, "op", ev.Op.String())
		return true
	}
	// A removed or renamed directory takes its files with it.
	return (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) &&
		filepath.Ext(rel) == "" && !w.matcher.IgnoredDir(rel)
}

// addRecursive watches dir and every directory below it that is not
// ignored.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != w.root {
			rel, relErr := filepath.Rel(w.root, p)
			if relErr == nil && w.matcher.IgnoredDir(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		if err := fw.Add(p); err != nil {
			if p == dir {
				return err
			}
			slog.Debug("watcher.add", "path", p, "err", err)
		}
		return nil
	})
}

// poll checks file mtimes at an interval that grows with the tree.
func (w *Watcher) poll(ctx context.Context) error {
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()
	next := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if now.Before(next) {
				continue
			}
			w.pollOnce(ctx)
			next = time.Now().Add(w.interval)
		}
	}
}

// pollOnce captures a snapshot and compares it with the previous one. The
// first call only records the baseline.
func (w *Watcher) pollOnce(ctx context.Context) {
	if _, err := os.Stat(w.root); err != nil {
		slog.Warn("watcher.root_gone", "path", w.root)
		w.interval = maxInterval
		return
	}

	snap, err := captureSnapshot(ctx, w.root, w.opts)
	if err != nil {
		slog.Warn("watcher.snapshot", "root", w.root, "err", err)
		return
	}
	interval := pollInterval(len(snap))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "root", w.root, "files", len(snap))
		w.snapshot = snap
		w.interval = interval
		return
	}
	if snapshotsEqual(w.snapshot, snap) {
		w.interval = interval
		return
	}

	slog.Info("watcher.changed", "root", w.root, "files", len(snap))
	if err := w.update(ctx); err != nil {
		// Keep the old snapshot so the next poll retries.
		slog.Warn("watcher.update", "root", w.root, "err", err)
		w.interval = interval
		return
	}
	w.snapshot = snap
	w.interval = interval
}

// captureSnapshot records mtime and size of every source file.
func captureSnapshot(ctx context.Context, root string, opts *discover.Options) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval is 1s plus 1s per 500 files, capped at 60s. It doubles as
// the retry delay after a failed update.
func pollInterval(fileCount int) time.Duration {
	d := baseInterval + time.Duration(fileCount/500)*time.Second
	return min(d, maxInterval)
}
