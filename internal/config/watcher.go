package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"axe/internal/logging"
)

// Watcher reloads the user config when the file changes on disk, so edits
// made outside the TUI (or by another axe process) take effect without a
// restart. Reload results are delivered on Changes.
type Watcher struct {
	path    string
	fw      *fsnotify.Watcher
	changes chan *UserConfig
	done    chan struct{}
}

// WatchConfig starts watching the config file's directory. The file itself
// may not exist yet; watching the directory catches creation and the
// write-then-rename pattern editors use.
func WatchConfig(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		fw:      fw,
		changes: make(chan *UserConfig, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes delivers freshly loaded configs. The channel is closed on Close.
func (w *Watcher) Changes() <-chan *UserConfig { return w.changes }

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.changes)

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logging.Get(logging.CategoryBoot).Warnf("config reload failed: %v", err)
				continue
			}
			// Drop a stale pending reload; only the latest matters.
			select {
			case <-w.changes:
			default:
			}
			w.changes <- cfg
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warnf("config watcher error: %v", err)
		}
	}
}
