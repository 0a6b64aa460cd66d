package swarm

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchedExtensions are the file types whose changes trigger a publish.
var watchedExtensions = map[string]bool{".md": true, ".json": true}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce coalesces events arriving within this window into one
	// notification. Zero notifies on every event.
	Debounce time.Duration

	// OnChange is called from the watcher's goroutine after relevant changes.
	OnChange func()

	Logger *log.Logger
}

// Watcher reports changes to task documents and coordination files in a
// set of directories. Directories that do not exist yet are picked up when
// they are created in their parent.
type Watcher struct {
	fs       *fsnotify.Watcher
	dirs     map[string]bool
	debounce time.Duration
	onChange func()
	logger   *log.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatcher starts watching dirs.
func NewWatcher(dirs []string, opts WatcherOptions) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		dirs:     make(map[string]bool, len(dirs)),
		debounce: opts.Debounce,
		onChange: opts.OnChange,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}
	parents := map[string]bool{}
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		w.dirs[dir] = true
		if err := w.add(dir); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				_ = fsw.Close()
				return nil, err
			}
			w.logf("skipping missing directory %s", dir)
			parents[filepath.Dir(dir)] = true
		}
	}
	for parent := range parents {
		if err := w.add(parent); err != nil {
			w.logf("cannot watch %s: %v", parent, err)
		}
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) add(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", dir)
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

// Close stops the watcher and waits for its goroutine to exit. It is safe to
// call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if w.debounce <= 0 {
				w.notify()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.notify()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logf("watch error: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	if w.dirs[path] && event.Has(fsnotify.Create) {
		if err := w.add(path); err != nil {
			w.logf("cannot watch %s: %v", path, err)
			return false
		}
		w.logf("watching %s", path)
		return true
	}
	if !w.dirs[filepath.Dir(path)] {
		return false
	}
	if !watchedExtensions[filepath.Ext(path)] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) notify() {
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *Watcher) logf(format string, args ...any) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
