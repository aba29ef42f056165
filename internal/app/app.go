// Package app wires the roster context: one event bus, one account store,
// one buddy list and the stores behind them. Every access to the model goes
// through Do, which holds the lock the debounced saves take as well.
package app

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/blist"
	"github.com/meszmate/buddylist/internal/buddyicon"
	"github.com/meszmate/buddylist/internal/config"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/notify"
	"github.com/meszmate/buddylist/internal/pounce"
	"github.com/meszmate/buddylist/internal/prpl"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/storage/sqlite"
	"github.com/meszmate/buddylist/internal/storage/xmlstore"
	"github.com/meszmate/buddylist/internal/value"
)

var logger = logging.Component("app")

// App is the roster context
type App struct {
	cfg *config.Config

	mu sync.Mutex

	bus       *events.EventBus
	notes     *notify.Log
	notifier  notify.Notifier
	jabber    *prpl.Jabber
	protocols *account.Registry
	accounts  *account.Store
	list      *blist.List
	icons     *buddyicon.Cache
	xml       *xmlstore.Store
	pounces   *pounce.Manager

	// SQLite storage for pounces and the system log
	storage *sqlite.DB
}

type options struct {
	after     xmlstore.AfterFunc
	notifier  notify.Notifier
	protocols []account.Protocol
	now       func() time.Time
}

// Option configures New
type Option func(*options)

// WithAfterFunc replaces the timer used by debounced saves
func WithAfterFunc(f xmlstore.AfterFunc) Option {
	return func(o *options) { o.after = f }
}

// WithNotifier sends errors to n as well as to the notification log
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithProtocols registers extra protocols next to the built-in ones
func WithProtocols(p ...account.Protocol) Option {
	return func(o *options) { o.protocols = append(o.protocols, p...) }
}

// WithClock replaces time.Now for the list and the pounces
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a roster context from cfg. Nothing is read from disk until
// Load.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	dataDir := cfg.General.DataDir
	if dataDir == "" {
		return nil, errors.New("no data directory configured")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	app := &App{
		cfg:   cfg,
		bus:   events.NewEventBus(),
		notes: notify.NewLog(),
	}
	app.notifier = app.notes
	if o.notifier != nil {
		app.notifier = fanout{app.notes, o.notifier}
	}

	app.jabber = prpl.NewJabber(prpl.WithPresenceHandler(app.receivePresence))
	app.protocols = account.NewRegistry(append([]account.Protocol{app.jabber, prpl.NewGeneric("", "")}, o.protocols...)...)
	app.accounts = account.NewStore(app.protocols,
		account.WithUI(cfg.General.UI),
		account.WithNotifier(app.notifier),
		account.WithBus(app.bus),
	)

	app.icons = buddyicon.NewCache(cfg.BuddyIcons.CacheDir,
		buddyicon.WithCaching(cfg.BuddyIcons.Caching),
		buddyicon.WithNotifier(app.notifier),
	)
	app.list = blist.New(
		blist.WithAccounts(app.accounts),
		blist.WithBus(app.bus),
		blist.WithNotifier(app.notifier),
		blist.WithRanker(status.NewRanker(Scores(cfg.Status))),
		blist.WithLastMatch(cfg.Contact.LastMatch),
		blist.WithIcons(app.icons),
		blist.WithClock(o.now),
	)

	xmlOpts := []xmlstore.Option{
		xmlstore.WithDelay(cfg.Persistence.SaveDelay()),
		xmlstore.WithLocker(&app.mu),
		xmlstore.WithNotifier(app.notifier),
	}
	if o.after != nil {
		xmlOpts = append(xmlOpts, xmlstore.WithAfterFunc(o.after))
	}
	app.xml = xmlstore.New(dataDir, app.accounts, app.list, xmlOpts...)

	pounceOpts := []pounce.Option{pounce.WithClock(o.now)}
	if cfg.Storage.Database {
		storage, err := sqlite.New(dataDir)
		if err != nil {
			logger.Warn("Failed to initialize storage, pounces will not persist: %v", err)
		} else {
			app.storage = storage
			pounceOpts = append(pounceOpts, pounce.WithStore(storage))
		}
	}
	app.pounces = pounce.NewManager(app.accounts, app.bus, pounceOpts...)
	app.pounces.Attach()

	app.wire(o.now)
	return app, nil
}

// Scores converts the configured score table
func Scores(c config.StatusConfig) status.Scores {
	s := status.DefaultScores()
	s.Primitive[status.PrimitiveOffline] = c.Offline
	s.Primitive[status.PrimitiveAvailable] = c.Available
	s.Primitive[status.PrimitiveUnavailable] = c.Unavailable
	s.Primitive[status.PrimitiveInvisible] = c.Invisible
	s.Primitive[status.PrimitiveAway] = c.Away
	s.Primitive[status.PrimitiveExtendedAway] = c.ExtendedAway
	s.Primitive[status.PrimitiveMobile] = c.Mobile
	s.Idle = c.Idle
	s.IdleTime = c.IdleTime
	return s
}

func (a *App) wire(now func() time.Time) {
	a.bus.Subscribe(events.AccountConnected, func(e events.EventMsg) {
		if acct, ok := e.Data.(*account.Account); ok {
			a.list.AddAccount(acct)
		}
	})
	a.bus.Subscribe(events.AccountDisconnected, func(e events.EventMsg) {
		if acct, ok := e.Data.(*account.Account); ok {
			a.list.RemoveAccount(acct)
		}
	})

	a.accounts.OnDelete(a.list.RemoveAccountNodes)
	a.accounts.OnDelete(func(acct *account.Account) {
		if err := a.pounces.DestroyAllByAccount(acct); err != nil {
			logger.Error("%v", err)
		}
	})

	if a.storage == nil {
		return
	}
	a.accounts.OnDelete(func(acct *account.Account) {
		if err := a.storage.DeleteLog(acct.ProtocolID(), acct.Username()); err != nil {
			logger.Error("Failed to delete system log of %s: %v", acct.Username(), err)
		}
	})
	if a.cfg.Storage.LogSystem {
		newSystemLog(a.storage, now).attach(a.bus)
	}
}

func (a *App) receivePresence(acct *account.Account, who, statusID string, attrs map[string]value.Value) {
	b := a.list.FindBuddy(acct, who)
	if b == nil {
		logger.Debug("Presence of %s, who is not on the list of %s", who, acct.Username())
		return
	}
	if err := b.Presence().SetStatusActive(statusID, true, attrs); err != nil {
		logger.Warn("Presence %s of %s not applied: %v", statusID, who, err)
	}
}

// Load reads accounts.xml, blist.xml and the stored pounces
func (a *App) Load() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return errors.Join(a.xml.Load(), a.pounces.Load())
}

// Do runs fn with the model locked
func (a *App) Do(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn()
}

// Config returns the resolved configuration
func (a *App) Config() *config.Config { return a.cfg }

// Bus returns the event bus every component emits on
func (a *App) Bus() *events.EventBus { return a.bus }

// Notifications returns the recorded error notifications
func (a *App) Notifications() *notify.Log { return a.notes }

// Accounts returns the account store
func (a *App) Accounts() *account.Store { return a.accounts }

// List returns the buddy list
func (a *App) List() *blist.List { return a.list }

// Icons returns the buddy icon cache
func (a *App) Icons() *buddyicon.Cache { return a.icons }

// Pounces returns the pounce manager
func (a *App) Pounces() *pounce.Manager { return a.pounces }

// Jabber returns the built-in XMPP protocol
func (a *App) Jabber() *prpl.Jabber { return a.jabber }

// XML returns the accounts.xml and blist.xml store
func (a *App) XML() *xmlstore.Store { return a.xml }

// Storage returns the sqlite store, or nil when it is disabled
func (a *App) Storage() *sqlite.DB { return a.storage }

// FindAccount looks an account up by name, trying every protocol when
// protocolID is empty
func (a *App) FindAccount(username, protocolID string) *account.Account {
	if protocolID != "" {
		return a.accounts.Find(username, protocolID)
	}
	for _, p := range a.protocols.List() {
		if acct := a.accounts.Find(username, p.ID()); acct != nil {
			return acct
		}
	}
	return nil
}

// AddGroup returns the group called name, appending it to the list when
// it does not exist yet
func (a *App) AddGroup(name string) *blist.Group {
	if g := a.list.FindGroup(name); g != nil {
		return g
	}
	var last *blist.Group
	if groups := a.list.Groups(); len(groups) > 0 {
		last = groups[len(groups)-1]
	}
	g := a.list.NewGroup(name)
	a.list.AddGroup(g, last)
	return g
}

// AddBuddy puts name on the list in group, creating the group if needed,
// and tells a connected account's server
func (a *App) AddBuddy(acct *account.Account, name, alias, group string) *blist.Buddy {
	var g *blist.Group
	if group != "" {
		g = a.AddGroup(group)
	}

	b := a.list.NewBuddy(acct, name, alias)
	a.list.AddBuddy(b, nil, g, nil)

	if acct.IsConnected() {
		if adder, ok := acct.Protocol().(blist.BuddyAdder); ok {
			adder.AddBuddy(acct, b, b.Group())
		}
	}
	return b
}

// RemoveBuddy takes b off the list and off a connected account's server
func (a *App) RemoveBuddy(b *blist.Buddy) {
	acct := b.Account()
	if acct.IsConnected() {
		if remover, ok := acct.Protocol().(blist.BuddyRemover); ok {
			remover.RemoveBuddy(acct, b, b.Group())
		}
	}
	a.list.RemoveBuddy(b)
}

// DeleteAccount removes an account and everything that refers to it
func (a *App) DeleteAccount(acct *account.Account) {
	logger.Info("Deleting account %s (%s)", acct.Username(), acct.ProtocolID())
	a.accounts.Delete(acct)
}

// SystemLog returns the newest limit system log entries of acct
func (a *App) SystemLog(acct *account.Account, limit int) ([]sqlite.LogEntry, error) {
	if a.storage == nil {
		return nil, nil
	}
	return a.storage.GetLog(acct.ProtocolID(), acct.Username(), limit)
}

// Close writes pending saves and closes the database
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	errs := []error{a.xml.Close()}
	a.pounces.Detach()
	if a.storage != nil {
		errs = append(errs, a.storage.Close())
		a.storage = nil
	}
	return errors.Join(errs...)
}

// fanout sends notifications to several notifiers
type fanout []notify.Notifier

func (f fanout) Error(handle any, title, primary, secondary string) {
	for _, n := range f {
		n.Error(handle, title, primary, secondary)
	}
}

func (f fanout) CloseWithHandle(handle any) {
	for _, n := range f {
		n.CloseWithHandle(handle)
	}
}
