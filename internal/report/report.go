// Package report renders the outcome of a reconciliation run.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileError is a per-input failure recorded during the walk.
type FileError struct {
	// File is the input file name (not the full path).
	File    string `json:"file"`
	Message string `json:"message"`
}

func (e FileError) String() string {
	return e.File + ": " + e.Message
}

// Report is the read-only view over one run's classification.
//
// Every output path appears in at most one of Generated, Updated,
// Untouched and Deleted. Slices are in the order the driver produced them,
// which is the deterministic walk order.
type Report struct {
	InputDir  string
	OutputDir string

	Generated []string
	Updated   []string
	Untouched []string
	Deleted   []string

	Errors []FileError
}

// HasErrors reports whether any input failed.
func (r *Report) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

var separator = strings.Repeat("-", 79)

// WriteText prints the human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	dir := r.InputDir
	if !strings.HasSuffix(dir, string(os.PathSeparator)) {
		dir += string(os.PathSeparator)
	}
	fmt.Fprintln(bw, separator)
	fmt.Fprintf(bw, " %s\n", dir)
	fmt.Fprintln(bw, separator)

	writeBlock(bw, "generated", r.Generated)
	writeBlock(bw, "updated", r.Updated)
	writeBlock(bw, "deleted", r.Deleted)

	fmt.Fprintf(bw, "%d file(s) were already up-to-date\n", len(r.Untouched))
	fmt.Fprintf(bw, "%d file(s) have been generated\n", len(r.Generated))
	fmt.Fprintf(bw, "%d file(s) have been updated\n", len(r.Updated))
	fmt.Fprintf(bw, "%d file(s) have been deleted\n", len(r.Deleted))

	if len(r.Errors) > 0 {
		fmt.Fprintln(bw, separator)
		fmt.Fprintln(bw, "error occured when processing the following file(s):")
		for _, e := range r.Errors {
			fmt.Fprintln(bw, e.String())
		}
	}
	return bw.Flush()
}

func writeBlock(w io.Writer, label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	for _, p := range paths {
		fmt.Fprintf(w, "%s: %s\n", label, p)
	}
	fmt.Fprintln(w, separator)
}

// Summary is the machine-readable form of a Report.
type Summary struct {
	InputDir  string      `json:"input_dir"`
	OutputDir string      `json:"output_dir"`
	Counts    Counts      `json:"counts"`
	Generated []string    `json:"generated,omitempty"`
	Updated   []string    `json:"updated,omitempty"`
	Untouched []string    `json:"untouched,omitempty"`
	Deleted   []string    `json:"deleted,omitempty"`
	Errors    []FileError `json:"errors,omitempty"`
}

type Counts struct {
	Untouched int `json:"untouched"`
	Generated int `json:"generated"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Errors    int `json:"errors"`
}

func (r *Report) Summary() Summary {
	return Summary{
		InputDir:  r.InputDir,
		OutputDir: r.OutputDir,
		Counts: Counts{
			Untouched: len(r.Untouched),
			Generated: len(r.Generated),
			Updated:   len(r.Updated),
			Deleted:   len(r.Deleted),
			Errors:    len(r.Errors),
		},
		Generated: r.Generated,
		Updated:   r.Updated,
		Untouched: r.Untouched,
		Deleted:   r.Deleted,
		Errors:    r.Errors,
	}
}

// WriteJSON prints the Summary as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Summary())
}
