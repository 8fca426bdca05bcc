// Package watch reports edits to shader source files.
package watch

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"render-pipeline/internal/logx"
)

// Extensions lists the file suffixes that count as shader sources.
var Extensions = []string{".vert", ".geom", ".frag", ".glsl"}

// Watcher watches a directory tree. Edits are coalesced: at most one
// notification is pending on Changes at a time, carrying the first path
// changed since the previous receive.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan string
	done    chan struct{}
	wg      sync.WaitGroup
	log     *slog.Logger
}

// New starts watching root and every directory below it.
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		changes: make(chan string, 1),
		done:    make(chan struct{}),
		log:     logx.For("watch"),
	}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changes delivers the path of a changed shader file.
func (w *Watcher) Changes() <-chan string { return w.changes }

// Close stops watching. Changes is not closed.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.log.Warn("cannot watch new directory", "path", ev.Name, "err", err)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	if !IsShader(ev.Name) {
		return
	}
	select {
	case w.changes <- ev.Name:
		w.log.Debug("shader changed", "path", ev.Name)
	default:
	}
}

// IsShader reports whether path has one of Extensions.
func IsShader(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
