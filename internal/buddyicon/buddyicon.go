// Package buddyicon keeps buddy icons in memory, shared by every buddy that
// shows the same person, and caches their bytes on disk.
package buddyicon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/notify"
)

// SettingKey is the node setting holding a buddy's cache filename
const SettingKey = "buddy_icon"

var logger = logging.Component("buddyicon")

// Holder is what an icon is cached for: a node with string settings
type Holder interface {
	GetString(name, def string) string
	SetString(name, v string)
	RemoveSetting(name string)
}

// Observer is told when an icon's data changes and when an icon is freed
type Observer interface {
	IconUpdated(icon *Icon)
	IconFreed(icon *Icon)
}

// Icon is the in-memory handle for one (account, username) pair
type Icon struct {
	cache      *Cache
	account    *account.Account
	username   string
	data       []byte
	refs       int
	destroying bool
}

// Account returns the account the icon belongs to
func (i *Icon) Account() *account.Account { return i.account }

// Username returns the name of the buddy the icon is for
func (i *Icon) Username() string { return i.username }

// Data returns the icon bytes
func (i *Icon) Data() []byte { return i.data }

// Len returns the size of the icon data
func (i *Icon) Len() int { return len(i.data) }

// Refs returns the current reference count
func (i *Icon) Refs() int { return i.refs }

// Extension returns the file extension for the icon's image type
func (i *Icon) Extension() string { return Extension(i.data) }

// Ref takes a reference
func (i *Icon) Ref() *Icon {
	i.refs++
	return i
}

// Unref drops a reference. The last one takes the icon out of the index
// and frees its data. Calls made while the icon is being freed are
// ignored.
func (i *Icon) Unref() {
	if i == nil || i.destroying {
		return
	}
	i.refs--
	if i.refs > 0 {
		return
	}

	i.destroying = true
	c := i.cache
	k := key{i.account, i.account.Normalize(i.username)}
	if c.icons[k] == i {
		delete(c.icons, k)
	}
	if c.observer != nil {
		c.observer.IconFreed(i)
	}
	i.data = nil
}

// SetData replaces the icon bytes and tells the observer, which hands the
// icon to every buddy of that person
func (i *Icon) SetData(data []byte) {
	i.data = slices.Clone(data)
	if len(i.data) > 0 && i.cache.observer != nil {
		i.cache.observer.IconUpdated(i)
	}
}

type key struct {
	account  *account.Account
	username string
}

// Cache indexes live icons and manages the on-disk cache directory
type Cache struct {
	dir      string
	enabled  bool
	icons    map[key]*Icon
	observer Observer
	notifier notify.Notifier
}

// Option configures a Cache
type Option func(*Cache)

// WithObserver sets the observer of icon updates
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// WithNotifier sets the collaborator disk failures are reported to
func WithNotifier(n notify.Notifier) Option {
	return func(c *Cache) { c.notifier = n }
}

// WithCaching turns disk caching on or off
func WithCaching(enabled bool) Option {
	return func(c *Cache) { c.enabled = enabled }
}

// NewCache creates a cache writing into dir
func NewCache(dir string, opts ...Option) *Cache {
	c := &Cache{
		dir:     dir,
		enabled: true,
		icons:   make(map[key]*Icon),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache directory
func (c *Cache) Dir() string { return c.dir }

// SetObserver replaces the observer
func (c *Cache) SetObserver(o Observer) { c.observer = o }

// CachingEnabled reports whether icons are written to disk
func (c *Cache) CachingEnabled() bool { return c.enabled }

// SetCachingEnabled turns disk caching on or off
func (c *Cache) SetCachingEnabled(enabled bool) { c.enabled = enabled }

// Len returns the number of live icons
func (c *Cache) Len() int { return len(c.icons) }

// New returns the icon for (a, username) with data. A live icon for that
// pair gets the new data instead of a second icon being made. The caller
// owns one reference to the result.
func (c *Cache) New(a *account.Account, username string, data []byte) *Icon {
	if icon := c.Lookup(a, username); icon != nil {
		icon.Ref()
		icon.SetData(data)
		return icon
	}

	icon := &Icon{cache: c, account: a, username: username, refs: 1}
	c.icons[key{a, a.Normalize(username)}] = icon
	icon.SetData(data)
	return icon
}

// Lookup returns the live icon for (a, username), or nil
func (c *Cache) Lookup(a *account.Account, username string) *Icon {
	return c.icons[key{a, a.Normalize(username)}]
}

// Find returns the icon for (a, username), reading it from the file named
// by h's cache setting if it is not live. The caller owns one reference to
// the result.
func (c *Cache) Find(a *account.Account, username string, h Holder) *Icon {
	if icon := c.Lookup(a, username); icon != nil {
		return icon.Ref()
	}
	if h == nil {
		return nil
	}
	file := h.GetString(SettingKey, "")
	if file == "" {
		return nil
	}

	data, err := os.ReadFile(c.Path(file))
	if err != nil {
		logger.Warn("Failed to read cached icon %s: %v", file, err)
		return nil
	}

	// the file is already on disk, so building the icon must not write it
	// again
	enabled := c.enabled
	c.enabled = false
	defer func() { c.enabled = enabled }()
	return c.New(a, username, data)
}

// Path resolves a cache filename. Absolute names are returned unchanged.
func (c *Cache) Path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.dir, file)
}

// inDir reports whether path names a file directly inside the cache
// directory
func (c *Cache) inDir(path string) bool {
	dir, err := filepath.Abs(c.dir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == dir
}

// Cache writes the icon bytes to a fresh file in the cache directory,
// records its name on h, and deletes the file h named before. A previous
// file outside the cache directory is left alone. Nothing happens while
// caching is disabled.
func (c *Cache) Cache(icon *Icon, h Holder) error {
	if !c.enabled || icon == nil || len(icon.data) == 0 {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0700); err != nil {
		c.report(icon, fmt.Sprintf("Unable to create directory %s: %v", c.dir, err))
		return fmt.Errorf("failed to create icon cache dir: %w", err)
	}

	name := ulid.Make().String() + "." + icon.Extension()
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, icon.data, 0600); err != nil {
		c.report(icon, fmt.Sprintf("Unable to write to %s: %v", path, err))
		return fmt.Errorf("failed to write icon: %w", err)
	}

	old := h.GetString(SettingKey, "")
	h.SetString(SettingKey, name)
	if old != "" && old != name {
		c.remove(old)
	}
	return nil
}

// Uncache deletes the file h's cache setting names and clears the setting
func (c *Cache) Uncache(h Holder) {
	file := h.GetString(SettingKey, "")
	if file == "" {
		return
	}
	c.remove(file)
	h.RemoveSetting(SettingKey)
}

func (c *Cache) remove(file string) {
	path := c.Path(file)
	if !c.inDir(path) {
		logger.Warn("Refusing to delete %s outside the icon cache", path)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error("Failed to delete cached icon %s: %v", path, err)
	}
}

func (c *Cache) report(icon *Icon, msg string) {
	logger.Error("%s", msg)
	if c.notifier != nil {
		c.notifier.Error(icon.account, "Buddy icon", msg, "")
	}
}

// Extension guesses the image type of data from its magic bytes
func Extension(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("BM")):
		return "bmp"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "gif"
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff\xe0")):
		return "jpg"
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "png"
	default:
		return "icon"
	}
}
