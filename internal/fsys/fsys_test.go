package fsys

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type visit struct {
	Rel   string
	IsDir bool
}

func collect(t *testing.T, l Local, root string) []visit {
	t.Helper()
	var got []visit
	err := l.Walk(root, func(dir, name string, isDir bool) error {
		rel, err := filepath.Rel(root, filepath.Join(dir, name))
		require.NoError(t, err)
		got = append(got, visit{Rel: filepath.ToSlash(rel), IsDir: isDir})
		return nil
	}, nil)
	require.NoError(t, err)
	return got
}

func TestWalk_DepthFirstSortedSkipsHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.ui"), "")
	writeFile(t, filepath.Join(root, "a", "z.h"), "")
	writeFile(t, filepath.Join(root, "a", ".hidden.h"), "")
	writeFile(t, filepath.Join(root, ".git", "config"), "")
	writeFile(t, filepath.Join(root, "c", ".deep", "x.qrc"), "")

	got := collect(t, Local{}, root)
	want := []visit{
		{Rel: "a", IsDir: true},
		{Rel: "a/z.h"},
		{Rel: "b.ui"},
		{Rel: "c", IsDir: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalk_SkipDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gen", "mo_a.cc"), "")
	writeFile(t, filepath.Join(root, "src", "a.h"), "")

	var files []string
	err := Local{}.Walk(root, func(dir, name string, isDir bool) error {
		if isDir && name == "gen" {
			return SkipDir
		}
		if !isDir {
			files = append(files, name)
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.h"}, files)
}

func TestWalk_UnreadableSubdirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs unix permissions enforced for the current user")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.ui"), "")
	writeFile(t, filepath.Join(root, "locked", "b.ui"), "")
	writeFile(t, filepath.Join(root, "z", "c.h"), "")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var files []string
	record := func(dir, name string, isDir bool) error {
		if !isDir {
			files = append(files, name)
		}
		return nil
	}

	var skipped []string
	err := Local{}.Walk(root, record, func(dir string, err error) error {
		assert.ErrorIs(t, err, fs.ErrPermission)
		skipped = append(skipped, dir)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ui", "c.h"}, files)
	assert.Equal(t, []string{locked}, skipped)

	files = nil
	err = Local{}.Walk(root, record, nil)
	assert.ErrorIs(t, err, fs.ErrPermission)

	err = Local{}.Walk(filepath.Join(root, "missing"), record, func(string, error) error { return nil })
	assert.Error(t, err, "an unreadable root is never skipped")
}

func TestWalk_IgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFileName), "third_party/\n*.bak\n")
	writeFile(t, filepath.Join(root, "third_party", "w.h"), "")
	writeFile(t, filepath.Join(root, "src", "old.ui.bak"), "")
	writeFile(t, filepath.Join(root, "src", "keep.ui"), "")
	writeFile(t, filepath.Join(root, "tmp", "scratch.qrc"), "")

	ign, err := LoadIgnore(root, []string{"tmp/"})
	require.NoError(t, err)
	require.NotNil(t, ign)

	got := collect(t, Local{Ignore: ign}, root)
	want := []visit{
		{Rel: "src", IsDir: true},
		{Rel: "src/keep.ui"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("walk mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadIgnore_NoRules(t *testing.T) {
	ign, err := LoadIgnore(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Nil(t, ign)
}

func TestListFiles_NonRecursiveFilesOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ui_b.h"), "")
	writeFile(t, filepath.Join(dir, "mo_a.cc"), "")
	writeFile(t, filepath.Join(dir, ".keep"), "")
	writeFile(t, filepath.Join(dir, "sub", "rc_x.cc"), "")

	names, err := Local{}.ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"mo_a.cc", "ui_b.h"}, names)
}

func TestPredicatesAndModTime(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	writeFile(t, file, "x")
	stamp := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(file, stamp, stamp))

	l := Local{}
	assert.True(t, l.Exists(file))
	assert.True(t, l.IsFile(file))
	assert.False(t, l.IsDir(file))
	assert.True(t, l.IsDir(dir))
	assert.False(t, l.IsFile(dir))
	assert.False(t, l.Exists(filepath.Join(dir, "missing")))

	mt, ok := l.ModTime(file)
	require.True(t, ok)
	assert.True(t, mt.Equal(stamp))

	_, ok = l.ModTime(filepath.Join(dir, "missing"))
	assert.False(t, ok)

	require.NoError(t, l.Remove(file))
	assert.False(t, l.Exists(file))

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, l.MkdirAll(nested))
	assert.True(t, l.IsDir(nested))
}
