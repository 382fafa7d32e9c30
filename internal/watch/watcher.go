package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reacts to files landing in the drop tree. Events are
// debounced per path so a file still being copied in is read only
// after it has gone quiet.
type Watcher struct {
	root     string
	debounce time.Duration
	service  *Service
	logger   *logrus.Logger
	fsw      *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher watches the drop root and every existing program
// directory beneath it. Directories created later are picked up from
// their create events.
func NewWatcher(root string, debounce time.Duration, service *Service, logger *logrus.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	root = filepath.Clean(root)
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		service:  service,
		logger:   logger,
		fsw:      fsw,
		timers:   make(map[string]*time.Timer),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to read drop root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := fsw.Add(filepath.Join(root, entry.Name())); err != nil {
			w.logger.WithError(err).WithField("dir", entry.Name()).Warn("Failed to watch program inbox")
		}
	}

	return w, nil
}

// Run blocks handling events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	// A new directory directly under the root is a program inbox.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		name := filepath.Base(event.Name)
		if filepath.Dir(event.Name) == w.root && !strings.HasPrefix(name, ".") {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.WithError(err).WithField("dir", name).Warn("Failed to watch program inbox")
			}
		}
		return
	}

	programID, ok := w.programFor(event.Name)
	if !ok || !IsScheduleFile(event.Name) {
		return
	}
	w.schedule(ctx, programID, event.Name)
}

// schedule (re)arms the debounce timer for one path.
func (w *Watcher) schedule(ctx context.Context, programID, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := w.service.HandleFile(ctx, programID, path); err != nil {
			w.logger.WithError(err).WithField("path", path).Error("Failed to import dropped file")
		}
	})
}

// programFor maps a path under the drop root to its program id. Only
// files exactly one directory below the root belong to a program.
func (w *Watcher) programFor(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 || strings.HasPrefix(parts[0], ".") || parts[0] == ".." {
		return "", false
	}
	return parts[0], true
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
