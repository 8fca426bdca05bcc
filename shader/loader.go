package shader

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Loader resolves shader file names against a file system and an ordered
// list of search paths. Names are slash-separated, as in io/fs.
type Loader struct {
	fsys  fs.FS
	paths []string
}

func NewLoader(fsys fs.FS, searchPaths ...string) *Loader {
	l := &Loader{fsys: fsys}
	for _, p := range searchPaths {
		l.AddPath(p)
	}
	return l
}

func (l *Loader) AddPath(p string) {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	for _, existing := range l.paths {
		if existing == p {
			return
		}
	}
	l.paths = append(l.paths, p)
}

func (l *Loader) SearchPaths() []string {
	return append([]string(nil), l.paths...)
}

func (l *Loader) exists(name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	st, err := fs.Stat(l.fsys, name)
	return err == nil && !st.IsDir()
}

// CompletePath returns the first existing candidate of name: name itself,
// then name joined to each search path in order.
func (l *Loader) CompletePath(name string) (string, bool) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if l.exists(name) {
		return name, true
	}
	for _, p := range l.paths {
		candidate := path.Join(p, name)
		if l.exists(candidate) {
			return candidate, true
		}
	}
	return name, false
}

func (l *Loader) Exists(name string) bool {
	_, ok := l.CompletePath(name)
	return ok
}

// ReadFile reads name after completing it and returns the completed path.
func (l *Loader) ReadFile(name string) (string, string, error) {
	full, ok := l.CompletePath(name)
	if !ok {
		return full, "", fmt.Errorf("shader file %q not found in %v: %w", name, l.paths, fs.ErrNotExist)
	}
	b, err := fs.ReadFile(l.fsys, full)
	if err != nil {
		return full, "", fmt.Errorf("read shader %s: %w", full, err)
	}
	return full, string(b), nil
}

// resolveInclude looks next to the including file first, then on the
// search paths.
func (l *Loader) resolveInclude(from, name string) (string, bool) {
	local := path.Join(path.Dir(from), name)
	if l.exists(local) {
		return local, true
	}
	return l.CompletePath(name)
}
