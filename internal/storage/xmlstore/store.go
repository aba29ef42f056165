// Package xmlstore persists accounts and the buddy list as accounts.xml and
// blist.xml. Changes are written by debounced saves, so a burst of edits
// costs one write per file.
package xmlstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/blist"
	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/notify"
	"github.com/meszmate/buddylist/internal/xmlnode"
)

var logger = logging.Component("xmlstore")

// ErrNotLoaded is returned when saving a file that was never read, which
// would overwrite it with an empty model
var ErrNotLoaded = errors.New("file was not loaded")

const (
	AccountsFile = "accounts.xml"
	BlistFile    = "blist.xml"

	// DefaultDelay is how long a save waits for further changes
	DefaultDelay = 5 * time.Second
)

// Store reads and writes the two documents of a data directory
type Store struct {
	dir      string
	accounts *account.Store
	list     *blist.List
	notifier notify.Notifier

	delay  time.Duration
	after  AfterFunc
	locker sync.Locker

	accountsLoaded bool
	blistLoaded    bool
	accountsSave   *Debouncer
	blistSave      *Debouncer
}

// Option configures a Store
type Option func(*Store)

// WithDelay sets the debounce delay
func WithDelay(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

// WithAfterFunc replaces time.AfterFunc for the save timers
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Store) { s.after = f }
}

// WithLocker sets the lock held while a timer writes
func WithLocker(l sync.Locker) Option {
	return func(s *Store) { s.locker = l }
}

// WithNotifier sets the collaborator read and write failures go to
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// New creates a store for dir and attaches its savers to accounts and list
func New(dir string, accounts *account.Store, list *blist.List, opts ...Option) *Store {
	s := &Store{
		dir:      dir,
		accounts: accounts,
		list:     list,
		delay:    DefaultDelay,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.accountsSave = NewDebouncer(s.delay, s.flushAccounts, s.after, s.locker)
	s.blistSave = NewDebouncer(s.delay, s.flushBlist, s.after, s.locker)
	s.attach()
	return s
}

// accountSaver schedules both files: privacy lists live in blist.xml
type accountSaver struct{ s *Store }

func (a accountSaver) Schedule() {
	a.s.accountsSave.Schedule()
	a.s.blistSave.Schedule()
}

func (s *Store) attach() {
	s.accounts.SetSaver(accountSaver{s})
	s.list.SetSaver(s.blistSave)
}

func (s *Store) detach() {
	s.accounts.SetSaver(nil)
	s.list.SetSaver(nil)
}

// Dir returns the data directory
func (s *Store) Dir() string { return s.dir }

// AccountsPath returns the path of accounts.xml
func (s *Store) AccountsPath() string { return filepath.Join(s.dir, AccountsFile) }

// BlistPath returns the path of blist.xml
func (s *Store) BlistPath() string { return filepath.Join(s.dir, BlistFile) }

// Loaded reports whether both files have been read
func (s *Store) Loaded() bool { return s.accountsLoaded && s.blistLoaded }

// Pending reports whether a save is scheduled
func (s *Store) Pending() bool { return s.accountsSave.Pending() || s.blistSave.Pending() }

// Load reads accounts.xml and then blist.xml. Missing files leave the
// model empty. A file that cannot be parsed is moved aside to "<file>~"
// and reported. Either way the file counts as loaded afterwards.
func (s *Store) Load() error {
	s.detach()
	defer s.attach()

	var errs []error
	s.accounts.Restore(func() {
		errs = append(errs, s.load(s.AccountsPath(), "account", func(root *xmlnode.Node) {
			decodeAccounts(root, s.accounts)
		}))
		s.accountsLoaded = true

		errs = append(errs, s.load(s.BlistPath(), "", func(root *xmlnode.Node) {
			decodeBlist(root, s.list, s.accounts)
		}))
		s.blistLoaded = true
	})
	return errors.Join(errs...)
}

func (s *Store) load(path, rootName string, decode func(*xmlnode.Node)) error {
	root, err := xmlnode.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("%s does not exist, starting empty", path)
		return nil
	}
	if err == nil && rootName != "" && root.Name != rootName {
		err = fmt.Errorf("unexpected root element <%s> in %s", root.Name, path)
	}
	if err != nil {
		backup := path + "~"
		if rerr := os.Rename(path, backup); rerr != nil {
			logger.Error("Failed to move %s aside: %v", path, rerr)
		}
		msg := fmt.Sprintf("An error was encountered parsing %s. It has been renamed to %s.", filepath.Base(path), filepath.Base(backup))
		s.report("Error reading file", msg, err)
		return err
	}

	logger.Info("Reading %s", path)
	decode(root)
	return nil
}

// SaveAccounts writes accounts.xml now
func (s *Store) SaveAccounts() error {
	if !s.accountsLoaded {
		logger.Error("Attempted to save accounts before they were read")
		return fmt.Errorf("%w: %s", ErrNotLoaded, AccountsFile)
	}
	return s.write(s.AccountsPath(), encodeAccounts(s.accounts))
}

// SaveBlist writes blist.xml now
func (s *Store) SaveBlist() error {
	if !s.blistLoaded {
		logger.Error("Attempted to save the buddy list before it was read")
		return fmt.Errorf("%w: %s", ErrNotLoaded, BlistFile)
	}
	return s.write(s.BlistPath(), encodeBlist(s.list, s.accounts))
}

func (s *Store) write(path string, root *xmlnode.Node) error {
	logger.Debug("Writing %s", path)
	if err := xmlnode.WriteFile(path, root); err != nil {
		s.report("Error writing file", fmt.Sprintf("Unable to save %s", filepath.Base(path)), err)
		return err
	}
	return nil
}

func (s *Store) flushAccounts() {
	if err := s.SaveAccounts(); err != nil {
		logger.Warn("Accounts not saved: %v", err)
	}
}

func (s *Store) flushBlist() {
	if err := s.SaveBlist(); err != nil {
		logger.Warn("Buddy list not saved: %v", err)
	}
}

func (s *Store) report(title, primary string, err error) {
	logger.Error("%s: %v", primary, err)
	if s.notifier != nil {
		s.notifier.Error(s, title, primary, err.Error())
	}
}

// Close cancels pending saves and performs them synchronously. The caller
// must hold the store's locker.
func (s *Store) Close() error {
	var errs []error
	if s.accountsSave.Stop() {
		errs = append(errs, s.SaveAccounts())
	}
	if s.blistSave.Stop() {
		errs = append(errs, s.SaveBlist())
	}
	return errors.Join(errs...)
}
