package blist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/buddylist/internal/buddyicon"
	"github.com/meszmate/buddylist/internal/events"
)

var pngIcon = []byte("\x89PNG\r\n\x1a\nicon")

func TestIconSharedBetweenBuddies(t *testing.T) {
	dir := t.TempDir()
	icons := buddyicon.NewCache(dir)
	f := newFixture(t, WithIcons(icons))
	a := f.account("alice", fakeID)

	var changed int
	f.bus.Subscribe(events.BuddyIconChanged, func(events.EventMsg) { changed++ })

	home := f.group("Home")
	work := f.group("Work")
	first := f.buddy(a, "bob", nil, home)
	second := f.buddy(a, "bob", nil, work)

	icon := icons.New(a, "bob", pngIcon)
	assert.Same(t, icon, first.Icon())
	assert.Same(t, icon, second.Icon())
	assert.Equal(t, 3, icon.Refs())
	assert.Equal(t, 2, changed)
	icon.Unref()

	firstFile := first.GetString(buddyicon.SettingKey, "")
	secondFile := second.GetString(buddyicon.SettingKey, "")
	require.NotEmpty(t, firstFile)
	require.NotEmpty(t, secondFile)
	assert.True(t, strings.HasSuffix(firstFile, ".png"))
	assert.FileExists(t, filepath.Join(dir, firstFile))
	assert.FileExists(t, filepath.Join(dir, secondFile))

	f.list.RemoveBuddy(first)
	assert.NoFileExists(t, filepath.Join(dir, firstFile))
	assert.Equal(t, 1, icon.Refs())
	assert.Same(t, icon, icons.Lookup(a, "bob"))

	f.list.RemoveBuddy(second)
	assert.Nil(t, icons.Lookup(a, "bob"))
	assert.Zero(t, icons.Len())
	assert.Nil(t, icon.Data())
}

func TestClearBuddyIcon(t *testing.T) {
	dir := t.TempDir()
	icons := buddyicon.NewCache(dir)
	f := newFixture(t, WithIcons(icons))
	a := f.account("alice", fakeID)
	bob := f.buddy(a, "bob", nil, f.group("Home"))

	icon := icons.New(a, "bob", pngIcon)
	file := bob.GetString(buddyicon.SettingKey, "")
	require.NotEmpty(t, file)

	bob.SetIcon(nil)
	assert.Nil(t, bob.Icon())
	assert.Empty(t, bob.GetString(buddyicon.SettingKey, ""))
	assert.NoFileExists(t, filepath.Join(dir, file))
	assert.Equal(t, 1, icon.Refs())
	icon.Unref()
	assert.Zero(t, icons.Len())
}

func TestLoadBuddyIconFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saved.png"), pngIcon, 0600))

	icons := buddyicon.NewCache(dir)
	f := newFixture(t, WithIcons(icons))
	a := f.account("alice", fakeID)
	bob := f.buddy(a, "bob", nil, f.group("Home"))
	bob.SetString(buddyicon.SettingKey, "saved.png")

	icon := f.list.LoadBuddyIcon(bob)
	require.NotNil(t, icon)
	assert.Equal(t, pngIcon, icon.Data())
	assert.Equal(t, 1, icon.Refs())
	assert.Equal(t, "saved.png", bob.GetString(buddyicon.SettingKey, ""))
	assert.True(t, icons.CachingEnabled())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Same(t, icon, f.list.LoadBuddyIcon(bob))
	assert.Equal(t, 1, icon.Refs())
}
