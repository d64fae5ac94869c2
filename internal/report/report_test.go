package report

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sep = strings.Repeat("-", 79)

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func TestWriteText_Full(t *testing.T) {
	ps := string(os.PathSeparator)
	r := &Report{
		InputDir:  "src",
		Generated: []string{"gen/mo_widget.cc", "gen/ui_dialog.h"},
		Updated:   []string{"gen/rc_res.cc"},
		Untouched: []string{"gen/mo_a.cc", "gen/mo_b.cc"},
		Deleted:   []string{"gen/ui_old.h"},
		Errors:    []FileError{{File: "broken.ui", Message: "cannot start process: boom"}},
	}
	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))

	want := lines(
		sep,
		" src"+ps,
		sep,
		"generated: gen/mo_widget.cc",
		"generated: gen/ui_dialog.h",
		sep,
		"updated: gen/rc_res.cc",
		sep,
		"deleted: gen/ui_old.h",
		sep,
		"2 file(s) were already up-to-date",
		"2 file(s) have been generated",
		"1 file(s) have been updated",
		"1 file(s) have been deleted",
		sep,
		"error occured when processing the following file(s):",
		"broken.ui: cannot start process: boom",
	)
	assert.Equal(t, want, buf.String())
}

func TestWriteText_EmptyBlocksOmitted(t *testing.T) {
	ps := string(os.PathSeparator)
	r := &Report{InputDir: "src" + ps, Untouched: []string{"gen/mo_a.cc"}}
	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))

	want := lines(
		sep,
		" src"+ps,
		sep,
		"1 file(s) were already up-to-date",
		"0 file(s) have been generated",
		"0 file(s) have been updated",
		"0 file(s) have been deleted",
	)
	assert.Equal(t, want, buf.String())
	assert.False(t, r.HasErrors())
}

func TestWriteJSON(t *testing.T) {
	r := &Report{
		InputDir:  "in",
		OutputDir: "out",
		Generated: []string{"out/ui_a.h"},
		Errors:    []FileError{{File: "b.ui", Message: "x"}},
	}
	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var got Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, Counts{Generated: 1, Errors: 1}, got.Counts)
	assert.Equal(t, []string{"out/ui_a.h"}, got.Generated)
	assert.Equal(t, "b.ui", got.Errors[0].File)
	assert.NotContains(t, buf.String(), `"deleted"`)
}
