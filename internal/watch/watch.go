// Package watch reruns reconciliation when the input tree changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"qtgen/internal/fsys"
)

// DefaultDebounce is the quiet period after the last change before a rerun.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc performs one reconciliation.
type RunFunc func(ctx context.Context) error

// Options configures Watch.
type Options struct {
	Root      string
	OutputDir string
	Ignore    *ignore.GitIgnore
	Debounce  time.Duration
	Logger    *zap.Logger
}

// Watch blocks until ctx is done, calling run after every burst of changes
// under opts.Root. Runs never overlap. Errors from run are logged and
// watching continues.
func Watch(ctx context.Context, opts Options, run RunFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	s, err := newSession(opts, w)
	if err != nil {
		return err
	}
	if err := s.addTree(s.root); err != nil {
		return err
	}
	s.logger.Info("watching input tree", zap.String("root", s.root), zap.Int("dirs", s.dirs))
	return s.loop(ctx, w.Events, w.Errors, run)
}

type adder interface {
	Add(name string) error
}

type session struct {
	root      string
	outputDir string
	ignore    *ignore.GitIgnore
	debounce  time.Duration
	logger    *zap.Logger
	watcher   adder
	dirs      int
}

func newSession(opts Options, w adder) (*session, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.Root, err)
	}
	s := &session{
		root:     root,
		ignore:   opts.Ignore,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		watcher:  w,
	}
	if opts.OutputDir != "" {
		if s.outputDir, err = filepath.Abs(opts.OutputDir); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", opts.OutputDir, err)
		}
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// skipped reports whether path is outside the watched set: hidden at any
// depth below root, inside the output directory, or matched by an ignore
// rule.
func (s *session) skipped(path string, isDir bool) bool {
	if s.outputDir != "" && (path == s.outputDir || strings.HasPrefix(path, s.outputDir+string(filepath.Separator))) {
		return true
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	if rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if fsys.IsHidden(part) {
			return true
		}
	}
	if s.ignore == nil {
		return false
	}
	return s.ignore.MatchesPath(rel) || (isDir && s.ignore.MatchesPath(rel+"/"))
}

func (s *session) addTree(dir string) error {
	if s.skipped(dir, true) {
		return nil
	}
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.dirs++
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := s.addTree(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) relevant(ev fsnotify.Event) bool {
	path := ev.Name
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	isDir := false
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			isDir = true
			if err := s.addTree(path); err != nil {
				s.logger.Warn("cannot watch new directory", zap.String("dir", path), zap.Error(err))
			}
		}
	}
	return !s.skipped(path, isDir)
}

func (s *session) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, run RunFunc) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if !s.relevant(ev) {
				continue
			}
			s.logger.Debug("change detected", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case err, ok := <-errs:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			s.logger.Warn("watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			if err := run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("rerun failed", zap.Error(err))
			}
		}
	}
}
