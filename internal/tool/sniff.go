package tool

import (
	"bufio"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"qtgen/internal/fsys"
)

const defaultSniffCacheSize = 4096

type sniffEntry struct {
	modTime time.Time
	found   bool
}

// sniffer reports whether a file contains a marker on some line. Results
// are remembered per path until the file's mtime changes.
type sniffer struct {
	fs     fsys.FS
	marker string
	cache  *lru.Cache[string, sniffEntry]
}

func newSniffer(fs fsys.FS, marker string, size int) (*sniffer, error) {
	if size <= 0 {
		size = defaultSniffCacheSize
	}
	cache, err := lru.New[string, sniffEntry](size)
	if err != nil {
		return nil, err
	}
	return &sniffer{fs: fs, marker: marker, cache: cache}, nil
}

func (s *sniffer) contains(path string) bool {
	mt, ok := s.fs.ModTime(path)
	if !ok {
		return false
	}
	if e, hit := s.cache.Get(path); hit && e.modTime.Equal(mt) {
		return e.found
	}
	found := s.scan(path)
	s.cache.Add(path, sniffEntry{modTime: mt, found: found})
	return found
}

func (s *sniffer) scan(path string) bool {
	f, err := s.fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	// Lines are read whole whatever their length; a generated header can
	// carry a single huge initializer line before the marker.
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if strings.Contains(line, s.marker) {
			return true
		}
		if err != nil {
			return false
		}
	}
}
