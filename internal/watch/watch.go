// Package watch notices tag changes in a local git repository so new
// releases can be built as soon as they are tagged.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the bursts of ref writes a push or fetch makes.
const DefaultDebounce = 2 * time.Second

// TagWatcher watches refs/tags (recursively, tag names may contain '/')
// and packed-refs of one .git directory.
type TagWatcher struct {
	fsw      *fsnotify.Watcher
	gitDir   string
	tagsDir  string
	debounce time.Duration
	logger   *log.Logger
}

// Option configures a TagWatcher.
type Option func(*TagWatcher)

// WithDebounce sets the quiet period before changes are reported.
func WithDebounce(d time.Duration) Option {
	return func(w *TagWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(w *TagWatcher) { w.logger = l }
}

// New starts watching gitDir. refs/tags is created if missing so that the
// first tag of a fresh repository is seen.
func New(gitDir string, opts ...Option) (*TagWatcher, error) {
	w := &TagWatcher{
		gitDir:   filepath.Clean(gitDir),
		tagsDir:  filepath.Join(gitDir, "refs", "tags"),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logger.OrDiscard(w.logger)

	if err := os.MkdirAll(w.tagsDir, 0o755); err != nil {
		return nil, fmt.Errorf("preparing %s: %w", w.tagsDir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	// packed-refs is rewritten via rename, so its directory is watched
	// rather than the file.
	if err := fsw.Add(w.gitDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.gitDir, err)
	}
	if err := w.addTree(w.tagsDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *TagWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
		return nil
	})
}

// Run calls onChange with the changed ref paths after each burst of tag
// changes settles, until ctx is done. Callbacks run on the watcher's
// goroutine, one at a time; changes seen during a callback are reported in
// the next one.
func (w *TagWatcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	pending := make(map[string]bool)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	schedule := func(path string) {
		pending[path] = true
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(w.debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watching new tag directory", "path", event.Name, "err", err)
					}
				}
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug("tag ref changed", "path", event.Name, "op", event.Op.String())
				schedule(event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)

		case <-timerC:
			timerC = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			onChange(ctx, paths)
		}
	}
}

// relevant keeps packed-refs and anything under refs/tags. Lock files
// written during ref updates are ignored.
func (w *TagWatcher) relevant(path string) bool {
	if strings.HasSuffix(path, ".lock") {
		return false
	}
	if path == filepath.Join(w.gitDir, "packed-refs") {
		return true
	}
	return strings.HasPrefix(path, w.tagsDir+string(filepath.Separator))
}

// Close stops watching.
func (w *TagWatcher) Close() error {
	return w.fsw.Close()
}
