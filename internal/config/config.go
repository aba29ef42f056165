package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "buddylist"

// Config represents the main application configuration
type Config struct {
	General     GeneralConfig     `toml:"general"`
	Status      StatusConfig      `toml:"status"`
	Contact     ContactConfig     `toml:"contact"`
	BuddyIcons  BuddyIconsConfig  `toml:"buddyicons"`
	Persistence PersistenceConfig `toml:"persistence"`
	Logging     LoggingConfig     `toml:"logging"`
	Storage     StorageConfig     `toml:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	DataDir string `toml:"data_dir"`

	// UI is the namespace for per-UI account settings such as auto-login
	UI string `toml:"ui"`
}

// StatusConfig is the score table used to rank presences
type StatusConfig struct {
	Offline      int `toml:"offline"`
	Available    int `toml:"available"`
	Unavailable  int `toml:"unavailable"`
	Invisible    int `toml:"invisible"`
	Away         int `toml:"away"`
	ExtendedAway int `toml:"extended_away"`
	Mobile       int `toml:"mobile"`
	Idle         int `toml:"idle"`
	IdleTime     int `toml:"idle_time"`
}

// ContactConfig contains contact settings
type ContactConfig struct {
	// LastMatch makes the later of two equally ranked buddies the
	// contact's priority buddy
	LastMatch bool `toml:"last_match"`
}

// BuddyIconsConfig contains buddy icon cache settings
type BuddyIconsConfig struct {
	Caching  bool   `toml:"caching"`
	CacheDir string `toml:"cache_dir"`
}

// PersistenceConfig contains settings for accounts.xml and blist.xml
type PersistenceConfig struct {
	SaveDelaySeconds int `toml:"save_delay_seconds"`
}

// SaveDelay returns the debounce delay for saves
func (p PersistenceConfig) SaveDelay() time.Duration {
	if p.SaveDelaySeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.SaveDelaySeconds) * time.Second
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level   string `toml:"level"`
	File    string `toml:"file"`
	Console bool   `toml:"console"`
}

// StorageConfig contains sqlite storage settings
type StorageConfig struct {
	// Database enables the sqlite store for pounces and the system log
	Database bool `toml:"database"`

	// LogSystem records buddy sign-on, sign-off, status and idle changes
	LogSystem bool `toml:"log_system"`
}

// Paths holds the XDG-compliant paths for the application
type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir: "",
			UI:      appName,
		},
		Status: StatusConfig{
			Offline:      -500,
			Available:    100,
			Unavailable:  -75,
			Invisible:    -50,
			Away:         -100,
			ExtendedAway: -200,
			Mobile:       -400,
			Idle:         -10,
			IdleTime:     -5,
		},
		Contact: ContactConfig{
			LastMatch: false,
		},
		BuddyIcons: BuddyIconsConfig{
			Caching:  true,
			CacheDir: "",
		},
		Persistence: PersistenceConfig{
			SaveDelaySeconds: 5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    "",
			Console: false,
		},
		Storage: StorageConfig{
			Database:  true,
			LogSystem: false,
		},
	}
}

// GetPaths returns XDG-compliant paths for the application
func GetPaths() (*Paths, error) {
	configDir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return nil, err
	}
	dataDir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return nil, err
	}
	cacheDir, err := xdgDir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return nil, err
	}

	return &Paths{
		ConfigDir: filepath.Join(configDir, appName),
		DataDir:   filepath.Join(dataDir, appName),
		CacheDir:  filepath.Join(cacheDir, appName),
	}, nil
}

func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, fallback), nil
}

// EnsureDirectories creates the necessary directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.ConfigDir, p.DataDir, p.CacheDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ConfigFile returns the default location of config.toml
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.toml")
}

// Load loads the configuration from the default config file
func Load() (*Config, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}

	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	return LoadFile(paths.ConfigFile(), paths.DataDir)
}

// LoadFile loads the configuration at path. A missing file yields the
// defaults. Relative data paths are resolved against defaultDataDir.
func LoadFile(path, defaultDataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Resolve(defaultDataDir)
	return cfg, nil
}

// Resolve fills in derived paths and expands ~ in configured ones
func (c *Config) Resolve(defaultDataDir string) {
	if c.General.DataDir == "" {
		c.General.DataDir = defaultDataDir
	} else {
		c.General.DataDir = expandPath(c.General.DataDir)
	}

	if c.General.UI == "" {
		c.General.UI = appName
	}

	if c.BuddyIcons.CacheDir == "" {
		c.BuddyIcons.CacheDir = filepath.Join(c.General.DataDir, "icons")
	} else {
		c.BuddyIcons.CacheDir = expandPath(c.BuddyIcons.CacheDir)
	}

	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.General.DataDir, appName+".log")
	} else {
		c.Logging.File = expandPath(c.Logging.File)
	}
}

// SetDataDir moves the data directory to dir. Paths that were derived from
// the old data directory follow it.
func (c *Config) SetDataDir(dir string) {
	old := c.General.DataDir
	dir = expandPath(dir)
	if c.BuddyIcons.CacheDir == filepath.Join(old, "icons") {
		c.BuddyIcons.CacheDir = filepath.Join(dir, "icons")
	}
	if c.Logging.File == filepath.Join(old, appName+".log") {
		c.Logging.File = filepath.Join(dir, appName+".log")
	}
	c.General.DataDir = dir
}

// Save writes the configuration to path
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
