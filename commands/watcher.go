package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the workspace command and skill directories and invokes
// a callback when their contents change, so the bridge can re-announce its
// available commands. Watch failures degrade silently: commands still load,
// they just stop refreshing.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
}

// WatchWorkspace starts watching cwd's command/skill directories. onChange
// is called from the watcher goroutine; callers serialize their own state.
func WatchWorkspace(cwd string, logger *slog.Logger, onChange func()) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("command watcher unavailable", "error", err)
		return nil
	}

	watched := 0
	for _, dir := range []string{
		filepath.Join(cwd, ".cursor", "commands"),
		filepath.Join(cwd, ".cursor", "skills"),
	} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fw.Add(dir); err != nil {
			logger.Warn("cannot watch command directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}

	if watched == 0 {
		_ = fw.Close()
		return nil
	}

	w := &Watcher{watcher: fw, logger: logger, done: make(chan struct{})}
	go w.loop(onChange)
	return w
}

func (w *Watcher) loop(onChange func()) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("command watcher error", "error", err)
		}
	}
}

// Close stops the watcher. Safe on a nil receiver so callers need not check
// whether watching ever started.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	close(w.done)
	_ = w.watcher.Close()
}
