package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "scheduler"))

	log.Warn("behavior rejected", String("behavior", "arm.raise"), Uint64("tick", 7), Err(errors.New("boom")))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "behavior rejected", m["message"])
	assert.Equal(t, "scheduler", m["comp"])
	assert.Equal(t, "arm.raise", m["behavior"])
	assert.EqualValues(t, 7, m["tick"])
	assert.Equal(t, "boom", m["err"])
	assert.Contains(t, m["caller"], "logging_test.go")
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Debug("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, log.Enabled(LevelDebug))
	assert.True(t, log.Enabled(LevelError))
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	assert.True(t, log.IsZero())
	log.Info("dropped")
	assert.False(t, Nop().IsZero())
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel(" Warning ")
	require.True(t, ok)
	assert.Equal(t, LevelWarn, lvl)

	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestServiceApplyKeepsFileAcrossLevelChange(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "cadence.log")
	svc, log := newService(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, &stderr)
	defer svc.Close()

	log.Debug("hidden")
	log.Info("first")
	f := svc.file
	require.NotNil(t, f)

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	assert.Same(t, f, svc.file, "same path keeps the handle")
	log.Debug("second")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"first"`)
	assert.Contains(t, lines[1], `"message":"second"`)
	assert.Zero(t, stderr.Len(), "no console sink when a file is configured")
}

func TestServiceJSONConsoleAndClose(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "cadence.log")
	svc, log := newService(Config{Level: "info", Console: true, Format: FormatJSON, File: FileConfig{Enabled: true, Path: path}}, &stderr)

	log.Info("tick overrun", Uint64("overruns", 3))
	var m map[string]any
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &m))
	assert.EqualValues(t, 3, m["overruns"])

	require.NoError(t, svc.Close())
	stderr.Reset()
	log.Info("after close")
	assert.Contains(t, stderr.String(), "after close")
}
