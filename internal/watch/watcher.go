// Package watch observes the application source tree and triggers debounced
// rebuild passes while the dev server is running.
//
// Events are coalesced: a burst of saves produces a single callback after the
// debounce window closes. Directories created after startup are added to the
// watch automatically, so generated source trees are picked up without a
// restart.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period after the last filesystem event before
// the callback fires. Editors often write a file several times per save.
const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are merged with user-supplied ignore globs. They cover the
// directories a bundler must never watch (its own output included) and the
// usual editor noise.
var defaultIgnores = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/.modfed/**",
	"**/dist/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Config describes what to watch and what to do when it changes.
type Config struct {
	// Dir is the root of the watched tree, normally the application source
	// directory. Required.
	Dir string

	// Patterns are doublestar globs, relative to Dir, that a changed path
	// must match to count. Empty means every file counts; for a dev server
	// that is usually right, since a stylesheet edit should trigger a pass
	// just like a source edit.
	Patterns []string

	// Ignore globs are merged with the built-in defaults.
	Ignore []string

	// Debounce overrides the default quiet period when positive.
	Debounce time.Duration

	// OnChange receives the batch of changed paths (relative to Dir) after
	// each debounce window. A returned error is logged, not fatal.
	OnChange func(ctx context.Context, changed []string) error

	// Logger receives watcher diagnostics. Nil means the default logger.
	Logger *log.Logger
}

// Watcher wraps fsnotify with recursive directory coverage, glob filtering
// and debounced dispatch.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	ignores  []string
	logger   *log.Logger
	debounce time.Duration
	dir      string
	started  atomic.Bool
}

// New builds a Watcher and registers every non-ignored directory under
// cfg.Dir. The watcher does not deliver events until Run is called.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch: Dir is required")
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %q: %w", cfg.Dir, err)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	ignores := make([]string, 0, len(defaultIgnores)+len(cfg.Ignore))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, cfg.Ignore...)

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  ignores,
		logger:   logger,
		debounce: debounce,
		dir:      dir,
	}

	if err := w.addDirectories(); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks as the
// tree changes. It returns nil on clean cancellation and an error only when
// the underlying watcher is beyond recovery. Run must be called exactly once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire drains the pending set and invokes OnChange. The timer may still
	// deliver after cancellation, so ctx is checked first. While a callback
	// is in flight further fires reschedule themselves instead of stacking,
	// so a build that outlasts the debounce window never runs twice at once.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Collect(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		slices.Sort(changed)
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("change handler failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		t := timer
		mu.Unlock()
		if t != nil && !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.dir, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			if w.isIgnored(rel) || !w.matchesPatterns(rel) {
				continue
			}

			// New directories are watched as soon as they appear so that
			// files written into them a moment later are not missed.
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: watcher broken: %w", err)
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

// addDirectories walks the tree once and registers every directory that is
// not ignored. Unreadable subtrees are skipped rather than failing startup.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.dir {
				return fmt.Errorf("watch: read %q: %w", path, err)
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(w.dir, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return fs.SkipDir
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir registers path if it turns out to be a new, non-ignored
// directory. Create events do not distinguish files from directories.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return
	}
	if w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("add new directory", "path", path, "err", err)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// matchesPatterns reports whether rel matches a configured watch pattern.
// With no patterns configured every path matches.
func (w *Watcher) matchesPatterns(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.cfg.Patterns {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// validatePatterns rejects malformed globs at construction time so they do
// not silently match nothing at runtime.
func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, err)
		}
	}
	return nil
}
