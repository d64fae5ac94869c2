// Package fsys is the filesystem capability consumed by the generator driver.
//
// Everything above this package talks to the disk through FS so the
// staleness and reconciliation logic can be exercised against real temp
// directories in tests without special casing.
package fsys

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// SkipDir can be returned by a VisitFunc for a directory entry to prevent
// the walk from descending into it.
var SkipDir = errors.New("skip this directory")

// VisitFunc is invoked once per walked entry. dir is the containing
// directory and name the entry's base name.
type VisitFunc func(dir, name string, isDir bool) error

// DirErrorFunc is called when a directory below the walk root cannot be
// read. Returning nil skips that directory and the walk goes on; any other
// error stops it.
type DirErrorFunc func(dir string, err error) error

// FS is the set of primitives the driver needs.
type FS interface {
	Exists(path string) bool
	IsFile(path string) bool
	IsDir(path string) bool
	// ModTime returns the last modification time and whether path exists.
	ModTime(path string) (time.Time, bool)
	Open(path string) (io.ReadCloser, error)
	MkdirAll(path string) error
	Remove(path string) error
	// ListFiles returns the sorted names of non-hidden, non-directory
	// entries directly under dir.
	ListFiles(dir string) ([]string, error)
	// Walk visits root recursively, depth first, in lexicographic order.
	// Hidden entries are never visited. An unreadable root is an error; an
	// unreadable subdirectory goes to onDirError, or stops the walk when
	// onDirError is nil.
	Walk(root string, visit VisitFunc, onDirError DirErrorFunc) error
}

// Local is the FS backed by the host operating system.
type Local struct {
	// Ignore filters walked entries by their slash-separated path relative
	// to the walk root. Nil disables filtering.
	Ignore *ignore.GitIgnore
}

var _ FS = Local{}

// IsHidden reports whether name follows the dot-file convention.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (Local) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (Local) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (Local) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (Local) ModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (Local) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (Local) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (Local) Remove(path string) error {
	return os.Remove(path)
}

func (Local) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if IsHidden(e.Name()) {
			continue
		}
		// Follow symlinks so a linked directory is not mistaken for a file.
		if info, err := os.Stat(filepath.Join(dir, e.Name())); err != nil || info.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (l Local) Walk(root string, visit VisitFunc, onDirError DirErrorFunc) error {
	if visit == nil {
		return errors.New("nil visit func")
	}
	return l.walk(root, "", visit, onDirError)
}

func (l Local) walk(root, rel string, visit VisitFunc, onDirError DirErrorFunc) error {
	dir := root
	if rel != "" {
		dir = filepath.Join(root, filepath.FromSlash(rel))
	}
	// os.ReadDir sorts by filename, which keeps the visit order stable.
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" || onDirError == nil {
			return err
		}
		return onDirError(dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if IsHidden(name) {
			continue
		}
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		isDir := l.IsDir(filepath.Join(dir, name))
		if l.ignored(childRel, isDir) {
			continue
		}
		if err := visit(dir, name, isDir); err != nil {
			if isDir && errors.Is(err, SkipDir) {
				continue
			}
			return err
		}
		if isDir {
			if err := l.walk(root, childRel, visit, onDirError); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l Local) ignored(rel string, isDir bool) bool {
	if l.Ignore == nil {
		return false
	}
	if l.Ignore.MatchesPath(rel) {
		return true
	}
	return isDir && l.Ignore.MatchesPath(rel+"/")
}
