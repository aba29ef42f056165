package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelWarn)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown 2", entry["message"])
}

func TestComponentUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewWithWriter(&buf, LevelDebug))
	t.Cleanup(func() { SetDefault(nil) })

	Component("blist").Debug("moved %s", "bob")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "blist", entry["component"])
	assert.Equal(t, "moved bob", entry["message"])
}

func TestComponentWithoutDefaultIsSilent(t *testing.T) {
	SetDefault(nil)
	assert.NotPanics(t, func() {
		Component("status").Error("nothing configured")
		Info("nothing configured")
	})
}

func TestNewCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "buddylist.log")
	l, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	l.Info("hello")
	require.NoError(t, l.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}
