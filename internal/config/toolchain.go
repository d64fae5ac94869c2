package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LocateToolchain returns the directory holding the Qt generators.
//
// An explicit Qt root wins, then the QT5 variable; both name the install
// root and resolve to its bin directory. Otherwise the directory of qmake
// on PATH is used. The resolved directory must exist. isDir defaults to an
// os.Stat check.
func LocateToolchain(qtRoot string, getenv func(string) string, lookPath func(string) (string, error), isDir func(string) bool) (string, error) {
	if isDir == nil {
		isDir = dirExists
	}
	bin, source := "", ""
	switch {
	case strings.TrimSpace(qtRoot) != "":
		bin, source = filepath.Join(strings.TrimSpace(qtRoot), "bin"), "--qt"
	case getenv != nil && strings.TrimSpace(getenv(EnvQtRoot)) != "":
		bin, source = filepath.Join(strings.TrimSpace(getenv(EnvQtRoot)), "bin"), EnvQtRoot
	case lookPath != nil:
		if qmake, err := lookPath("qmake"); err == nil && qmake != "" {
			bin, source = filepath.Dir(qmake), "qmake on PATH"
		}
	}
	if bin == "" {
		return "", &Error{
			Field:   "qt",
			Message: "cannot locate the Qt toolchain; pass --qt, set " + EnvQtRoot + " or put qmake on PATH",
		}
	}
	if !isDir(bin) {
		return "", &Error{
			Field:   "qt",
			Message: "qt bin directory " + bin + " (from " + source + ") is not valid",
		}
	}
	return bin, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
