package tool

import (
	"strings"

	"qtgen/internal/stale"
)

const mocMarker = "Q_OBJECT"

var headerExts = []string{".h", ".hpp", ".hh", ".hxx"}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// newMoc handles headers declaring a Q_OBJECT class.
func newMoc(opts Options, sniff *sniffer, oracle stale.Oracle) *Tool {
	t := newTool(KindMoc, opts, opts.MocArgs)
	t.IsInput = func(path string) bool {
		return hasAnySuffix(path, headerExts...) && sniff.contains(path)
	}
	t.OutputName = func(filename string) string {
		return "mo_" + splitExt(filename) + ".cc"
	}
	t.NeedsRegeneration = oracle.Default
	return t
}

// newUic handles Designer forms.
func newUic(opts Options, oracle stale.Oracle) *Tool {
	t := newTool(KindUic, opts, opts.UicArgs)
	t.IsInput = func(path string) bool {
		return strings.HasSuffix(path, ".ui")
	}
	t.OutputName = func(filename string) string {
		return "ui_" + splitExt(filename) + ".h"
	}
	t.NeedsRegeneration = oracle.Default
	return t
}

// newRcc handles resource manifests, whose output also depends on every
// file the manifest lists.
func newRcc(opts Options, oracle stale.Oracle) *Tool {
	t := newTool(KindRcc, opts, opts.RccArgs)
	t.IsInput = func(path string) bool {
		return strings.HasSuffix(path, ".qrc")
	}
	t.OutputName = func(filename string) string {
		return "rc_" + splitExt(filename) + ".cc"
	}
	t.NeedsRegeneration = oracle.Manifest
	return t
}
