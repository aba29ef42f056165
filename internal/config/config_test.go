package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(filepath.Join(dir, "config.toml"), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.General.DataDir)
	assert.Equal(t, "buddylist", cfg.General.UI)
	assert.Equal(t, filepath.Join(dir, "icons"), cfg.BuddyIcons.CacheDir)
	assert.Equal(t, filepath.Join(dir, "buddylist.log"), cfg.Logging.File)
	assert.Equal(t, 100, cfg.Status.Available)
	assert.Equal(t, -5, cfg.Status.IdleTime)
	assert.True(t, cfg.BuddyIcons.Caching)
	assert.Equal(t, 5*time.Second, cfg.Persistence.SaveDelay())
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[general]
data_dir = "/srv/roster"
ui = "test-ui"

[status]
away = -150

[contact]
last_match = true

[buddyicons]
caching = false

[persistence]
save_delay_seconds = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFile(path, dir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/roster", cfg.General.DataDir)
	assert.Equal(t, "test-ui", cfg.General.UI)
	assert.Equal(t, -150, cfg.Status.Away)
	assert.Equal(t, 100, cfg.Status.Available, "unset keys keep their defaults")
	assert.True(t, cfg.Contact.LastMatch)
	assert.False(t, cfg.BuddyIcons.Caching)
	assert.Equal(t, "/srv/roster/icons", cfg.BuddyIcons.CacheDir)
	assert.Equal(t, 2*time.Second, cfg.Persistence.SaveDelay())
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general\n"), 0600))

	_, err := LoadFile(path, dir)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.toml")

	cfg := DefaultConfig()
	cfg.Contact.LastMatch = true
	cfg.Status.Mobile = -300
	require.NoError(t, Save(cfg, path))

	got, err := LoadFile(path, dir)
	require.NoError(t, err)
	assert.True(t, got.Contact.LastMatch)
	assert.Equal(t, -300, got.Status.Mobile)
}

func TestGetPathsHonoursXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "cfg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(base, "cache"))

	paths, err := GetPaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "cfg", "buddylist"), paths.ConfigDir)
	assert.Equal(t, filepath.Join(base, "data", "buddylist"), paths.DataDir)
	assert.Equal(t, filepath.Join(paths.ConfigDir, "config.toml"), paths.ConfigFile())

	require.NoError(t, paths.EnsureDirectories())
	assert.DirExists(t, paths.CacheDir)
}

func TestSetDataDirMovesDerivedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve("/var/lib/old")
	cfg.Logging.File = "/var/log/buddylist.log"

	cfg.SetDataDir("/srv/new")
	assert.Equal(t, "/srv/new", cfg.General.DataDir)
	assert.Equal(t, "/srv/new/icons", cfg.BuddyIcons.CacheDir)
	assert.Equal(t, "/var/log/buddylist.log", cfg.Logging.File)
}
