package dictionary

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrWong99/callmark/pkg/types"
)

const defaultDebounce = 100 * time.Millisecond

var errEmptyFile = errors.New("dictionary: file is empty")

// Watcher keeps the dictionaries of one file current. It watches the file's
// directory with fsnotify, so editors that save by renaming a temporary file
// are picked up, and reloads after events settle for the debounce interval.
//
// An invalid file is logged and ignored; the previous dictionaries stay
// active.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(old, new []types.Dictionary, diff Diff)
	onError  func(err error)

	fw       *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	current  []types.Dictionary
	lastHash [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithDebounce sets how long file events must settle before a reload.
// Default: 100ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler is called with every failed reload.
func WithErrorHandler(fn func(err error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// NewWatcher loads the dictionaries at path and starts watching it. onChange
// runs on the watcher goroutine after every successful reload that changed
// the file's content.
func NewWatcher(path string, onChange func(old, new []types.Dictionary, diff Diff), opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: watcher: %w", err)
	}
	w := &Watcher{
		path:     abs,
		debounce: defaultDebounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	dicts, hash, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("dictionary: watcher initial load: %w", err)
	}
	w.current = dicts
	w.lastHash = hash

	w.fw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dictionary: watcher: %w", err)
	}
	if err := w.fw.Add(filepath.Dir(abs)); err != nil {
		w.fw.Close()
		return nil, fmt.Errorf("dictionary: watch %q: %w", filepath.Dir(abs), err)
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Current returns the most recently loaded valid dictionaries.
func (w *Watcher) Current() []types.Dictionary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops watching and waits for the watcher goroutine to exit. Safe to
// call multiple times.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("dictionary watcher: fsnotify error", "path", w.path, "err", err)
		case <-timer.C:
			w.check()
		}
	}
}

// check reloads the file and reports a change when its content differs from
// the last successful load.
func (w *Watcher) check() {
	dicts, hash, err := w.loadAndHash()
	if err != nil {
		slog.Warn("dictionary watcher: reload failed, keeping previous dictionaries", "path", w.path, "err", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = dicts
	w.lastHash = hash
	w.mu.Unlock()

	diff := Compare(old, dicts)
	slog.Info("dictionary watcher: dictionaries reloaded",
		"path", w.path,
		"count", len(dicts),
		"added", diff.Added,
		"removed", diff.Removed,
		"changed", diff.Changed,
	)

	// Outside the lock so the callback can call Current.
	if w.onChange != nil {
		w.onChange(old, dicts, diff)
	}
}

func (w *Watcher) loadAndHash() ([]types.Dictionary, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	// A truncated file is usually a save in progress.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, [sha256.Size]byte{}, errEmptyFile
	}
	dicts, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return dicts, sha256.Sum256(data), nil
}
