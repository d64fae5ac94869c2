// Package stale decides whether a generated output must be rebuilt.
//
// Decisions are based purely on modification times; nothing is cached
// between runs.
package stale

import (
	"bytes"
	"io"
	"path/filepath"

	"qtgen/internal/fsys"
)

// Oracle compares inputs against outputs on a filesystem.
type Oracle struct {
	FS fsys.FS
}

// New returns an Oracle over fs.
func New(fs fsys.FS) Oracle {
	return Oracle{FS: fs}
}

// Default reports whether out must be regenerated from in.
//
// A missing input never needs work. A missing output always does.
// Otherwise the input must be strictly newer than the output; equal
// timestamps count as up to date.
func (o Oracle) Default(in, out string) bool {
	if !o.FS.IsFile(in) {
		return false
	}
	if !o.FS.IsFile(out) {
		return true
	}
	inTime, ok := o.FS.ModTime(in)
	if !ok {
		return false
	}
	outTime, ok := o.FS.ModTime(out)
	if !ok {
		return true
	}
	return inTime.After(outTime)
}

// Manifest extends Default for resource manifests: out is also stale when
// any file referenced by the manifest is newer than it.
func (o Oracle) Manifest(manifest, out string) bool {
	if o.Default(manifest, out) {
		return true
	}
	resources, err := o.resources(manifest)
	if err != nil {
		return false
	}
	base := filepath.Dir(manifest)
	for _, res := range resources {
		if o.Default(filepath.Join(base, filepath.FromSlash(res)), out) {
			return true
		}
	}
	return false
}

func (o Oracle) resources(manifest string) ([]string, error) {
	f, err := o.FS.Open(manifest)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ManifestResources(f)
}

var (
	openTag  = []byte("<file>")
	closeTag = []byte("</file>")
)

// ManifestResources returns every entry enclosed by <file> and </file> in
// r, in document order, trimmed. Empty entries are dropped.
func ManifestResources(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var out []string
	for {
		start := bytes.Index(data, openTag)
		if start < 0 {
			break
		}
		data = data[start+len(openTag):]
		end := bytes.Index(data, closeTag)
		if end < 0 {
			break
		}
		entry := bytes.TrimSpace(data[:end])
		data = data[end+len(closeTag):]
		if len(entry) == 0 {
			continue
		}
		out = append(out, string(entry))
	}
	return out, nil
}
