// Package moduleload resolves startup-module paths against the
// CONFIGPATH/MODULEPATH-style colon-separated search roots spec.md §6
// describes, and optionally watches those roots for changes when
// --watch-modules is set, reloading the affected module.
package moduleload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// SearchPath is a colon-separated, LD_LIBRARY_PATH-style ordered list
// of directories searched for a named module.
type SearchPath []string

// ParseSearchPath splits a colon-separated environment value (e.g.
// MODULEPATH) into a SearchPath, dropping empty segments.
func ParseSearchPath(env string) SearchPath {
	var out SearchPath
	for _, seg := range strings.Split(env, ":") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Resolve finds name's first match across the search path, trying the
// bare name and name+".scpim" in each root in order.
func (sp SearchPath) Resolve(name string) (string, error) {
	candidates := []string{name, name + ".scpim"}
	for _, root := range sp {
		for _, c := range candidates {
			full := filepath.Join(root, c)
			if _, err := os.Stat(full); err == nil {
				return full, nil
			}
		}
	}
	return "", fmt.Errorf("moduleload: %q not found in search path %v", name, sp)
}

// Loader loads and, optionally, hot-reloads modules found via a
// SearchPath. LoadFunc is supplied by the caller (the CLI entrypoint):
// it reads and executes the module's command script against a
// dedicated Module-kind session.
type Loader struct {
	Path     SearchPath
	LoadFunc func(path string) error

	watcher *fsnotify.Watcher
}

// NewLoader constructs a Loader over path.
func NewLoader(path SearchPath, loadFunc func(path string) error) *Loader {
	return &Loader{Path: path, LoadFunc: loadFunc}
}

// LoadByName resolves name and runs it through LoadFunc.
func (l *Loader) LoadByName(name string) error {
	full, err := l.Path.Resolve(name)
	if err != nil {
		return err
	}
	return l.LoadFunc(full)
}

// Watch starts an fsnotify watch over every directory in the search
// path, reloading a module through LoadFunc whenever its file is
// written. Call Close to stop watching.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("moduleload: starting watcher: %w", err)
	}
	for _, root := range l.Path {
		if err := w.Add(root); err != nil {
			continue // a missing search root is not fatal to watching the rest
		}
	}
	l.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					_ = l.LoadFunc(ev.Name)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one was started.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}
