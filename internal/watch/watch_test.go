package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWatcher struct {
	mu    sync.Mutex
	added []string
}

func (f *fakeWatcher) Add(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, name)
	return nil
}

func (f *fakeWatcher) paths(root string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.added {
		rel, _ := filepath.Rel(root, p)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}
}

func TestAddTree_SkipsHiddenIgnoredAndOutput(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b", ".git/objects", "gen", "build/x", "c")

	fw := &fakeWatcher{}
	s, err := newSession(Options{
		Root:      root,
		OutputDir: filepath.Join(root, "gen"),
		Ignore:    ignore.CompileIgnoreLines("build/"),
		Logger:    zaptest.NewLogger(t),
	}, fw)
	require.NoError(t, err)
	require.NoError(t, s.addTree(s.root))

	assert.Equal(t, []string{".", "a", "a/b", "c"}, fw.paths(s.root))
}

func startLoop(t *testing.T, s *session, run RunFunc) (chan fsnotify.Event, chan error, func()) {
	t.Helper()
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.loop(ctx, events, errs, run) }()
	return events, errs, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestLoop_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	s, err := newSession(Options{Root: root, Debounce: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)}, &fakeWatcher{})
	require.NoError(t, err)

	var runs atomic.Int32
	events, _, stop := startLoop(t, s, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	defer stop()

	for i := 0; i < 5; i++ {
		events <- fsnotify.Event{Name: filepath.Join(s.root, "form.ui"), Op: fsnotify.Write}
	}
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	// No further run without further changes.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	events <- fsnotify.Event{Name: filepath.Join(s.root, "form.ui"), Op: fsnotify.Chmod}
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestLoop_IgnoresIrrelevantEvents(t *testing.T) {
	root := t.TempDir()
	s, err := newSession(Options{
		Root:      root,
		OutputDir: filepath.Join(root, "gen"),
		Debounce:  20 * time.Millisecond,
		Logger:    zaptest.NewLogger(t),
	}, &fakeWatcher{})
	require.NoError(t, err)

	var runs atomic.Int32
	events, errs, stop := startLoop(t, s, func(context.Context) error {
		runs.Add(1)
		return errors.New("rerun failures are logged, not fatal")
	})
	defer stop()

	events <- fsnotify.Event{Name: filepath.Join(s.root, ".swp"), Op: fsnotify.Write}
	events <- fsnotify.Event{Name: filepath.Join(s.root, "gen", "ui_form.h"), Op: fsnotify.Create}
	events <- fsnotify.Event{Name: filepath.Join(filepath.Dir(s.root), "elsewhere.ui"), Op: fsnotify.Write}
	errs <- errors.New("queue overflow")
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, runs.Load())

	events <- fsnotify.Event{Name: filepath.Join(s.root, "x.qrc"), Op: fsnotify.Remove}
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestLoop_WatchesCreatedDirectories(t *testing.T) {
	root := t.TempDir()
	fw := &fakeWatcher{}
	s, err := newSession(Options{Root: root, Debounce: 20 * time.Millisecond, Logger: zaptest.NewLogger(t)}, fw)
	require.NoError(t, err)

	events, _, stop := startLoop(t, s, func(context.Context) error { return nil })
	defer stop()

	mkdirs(t, s.root, "new/inner")
	events <- fsnotify.Event{Name: filepath.Join(s.root, "new"), Op: fsnotify.Create}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"new", "new/inner"}, fw.paths(s.root))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoop_ClosedChannelIsAnError(t *testing.T) {
	s, err := newSession(Options{Root: t.TempDir()}, &fakeWatcher{})
	require.NoError(t, err)
	events := make(chan fsnotify.Event)
	close(events)
	err = s.loop(context.Background(), events, make(chan error), func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestWatch_RealFilesystem(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fsnotify goroutines on windows are not tracked reliably")
	}
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, Options{Root: root, Debounce: 20 * time.Millisecond, Logger: zaptest.NewLogger(t)}, func(context.Context) error {
			ran <- struct{}{}
			return nil
		})
	}()

	// The watch set is registered asynchronously; keep touching until a run
	// is observed.
	path := filepath.Join(root, "dialog.ui")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for observed := false; !observed; {
		select {
		case <-ran:
			observed = true
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("<ui/>"), 0o644))
		case <-deadline:
			t.Fatal("no rerun after a change")
		}
	}

	cancel()
	require.NoError(t, <-done)
}
