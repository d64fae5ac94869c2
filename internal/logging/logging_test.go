package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qtgen/internal/config"
)

func TestNew_ConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn := New(Options{Console: &buf})
	logger.Debug("hidden")
	logger.Info("shown", zap.String("tool", "uic"))
	require.NoError(t, CloseQuietly(closeFn))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, `"tool": "uic"`)
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn := New(Options{LoggingConfig: config.LoggingConfig{Verbose: true}, Console: &buf})
	logger.Debug("detail")
	require.NoError(t, CloseQuietly(closeFn))
	assert.Contains(t, buf.String(), "detail")
}

func TestNew_FileIsJSON(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "qtgen.log")
	logger, closeFn := New(Options{
		LoggingConfig: config.LoggingConfig{File: path, MaxSizeMB: 1},
		Console:       &buf,
	})
	logger.Warn("cannot delete orphan output", zap.String("output", "gen/x.h"))
	require.NoError(t, CloseQuietly(closeFn))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "cannot delete orphan output", entry["msg"])
	assert.Equal(t, "gen/x.h", entry["output"])
}

func TestCloseQuietly_Nil(t *testing.T) {
	assert.NoError(t, CloseQuietly(nil))
}
