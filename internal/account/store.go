package account

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/notify"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/value"
)

var (
	// ErrDisabled is returned when connecting an account that is not
	// enabled for the current UI
	ErrDisabled = errors.New("account is not enabled")

	// ErrMissingProtocol is returned when an account's protocol is not
	// registered
	ErrMissingProtocol = errors.New("missing protocol plugin")

	// ErrPasswordRequired is returned when a password request was answered
	// with an empty password
	ErrPasswordRequired = errors.New("password is required to sign on")

	// ErrNotConnected is returned by operations that need a signed-on
	// account
	ErrNotConnected = errors.New("account is not connected")

	// ErrUnsupported is returned when the protocol lacks a capability
	ErrUnsupported = errors.New("not supported by the protocol")
)

// Saver is scheduled whenever persisted account state changes
type Saver interface {
	Schedule()
}

// Requester asks the user for credentials. Answer must be called at most
// once, with the entered password and whether to remember it.
type Requester interface {
	RequestPassword(a *Account, answer func(password string, remember bool))
	CloseWithHandle(handle any)
}

// Store is the ordered list of accounts plus what is needed to connect
// them
type Store struct {
	accounts    []*Account
	protocols   *Registry
	ui          string
	saver       Saver
	notifier    notify.Notifier
	requester   Requester
	bus         *events.EventBus
	deleteHooks []func(*Account)
	autoConnect bool
	now         func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithUI sets the UI namespace whose "auto-login" setting enables accounts
func WithUI(ui string) Option {
	return func(s *Store) { s.ui = ui }
}

// WithSaver sets the saver scheduled on every change
func WithSaver(saver Saver) Option {
	return func(s *Store) { s.saver = saver }
}

// WithNotifier sets the collaborator connection errors are reported to
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithRequester sets the collaborator asked for passwords
func WithRequester(r Requester) Option {
	return func(s *Store) { s.requester = r }
}

// WithBus sets the bus account events are published on
func WithBus(bus *events.EventBus) Option {
	return func(s *Store) { s.bus = bus }
}

// NewStore creates an empty account store
func NewStore(protocols *Registry, opts ...Option) *Store {
	if protocols == nil {
		protocols = NewRegistry()
	}
	s := &Store{
		protocols:   protocols,
		ui:          "buddylist",
		autoConnect: true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSaver replaces the saver
func (s *Store) SetSaver(saver Saver) { s.saver = saver }

// UI returns the UI namespace of the store
func (s *Store) UI() string { return s.ui }

// Protocols returns the protocol registry
func (s *Store) Protocols() *Registry { return s.protocols }

// OnDelete registers a hook run by Delete after the account left the list.
// Hooks run in registration order.
func (s *Store) OnDelete(hook func(*Account)) {
	s.deleteHooks = append(s.deleteHooks, hook)
}

// Restore runs fn with presence-driven connects turned off, so statuses
// read from disk do not sign accounts on.
func (s *Store) Restore(fn func()) {
	prev := s.autoConnect
	s.autoConnect = false
	defer func() { s.autoConnect = prev }()
	fn()
}

func (s *Store) scheduleSave() {
	if s.saver != nil {
		s.saver.Schedule()
	}
}

func (s *Store) normalize(a *Account, name string) string {
	if p := s.protocols.Find(a.protocolID); p != nil {
		return p.Normalize(a, name)
	}
	return DefaultNormalize(name)
}

// Accounts returns the accounts in order
func (s *Store) Accounts() []*Account { return slices.Clone(s.accounts) }

// Find returns the account with the given username and protocol id, or
// nil. Usernames are compared normalized.
func (s *Store) Find(username, protocolID string) *Account {
	for _, a := range s.accounts {
		if a.protocolID != protocolID {
			continue
		}
		if a.Normalize(a.username) == s.normalize(a, username) {
			return a
		}
	}
	return nil
}

// NewAccount returns the account for (username, protocolID), creating a
// detached one if it does not exist yet. A new account gets the status
// catalog of its protocol and starts in the protocol's available status,
// or offline when there is none.
func (s *Store) NewAccount(username, protocolID string) *Account {
	if a := s.Find(username, protocolID); a != nil {
		return a
	}

	a := New(username, protocolID)
	a.store = s

	p := s.protocols.Find(protocolID)
	if p == nil {
		return a
	}
	a.SetStatusTypes(p.StatusTypes(a))

	s.Restore(func() {
		if t := status.FindTypeByPrimitive(a.statusTypes, status.PrimitiveAvailable); t != nil {
			_ = a.presence.SwitchStatus(t.ID)
		} else {
			_ = a.presence.SwitchStatus(status.PrimitiveOffline.ID())
		}
	})
	return a
}

// Add appends an account to the list
func (s *Store) Add(a *Account) {
	if slices.Contains(s.accounts, a) {
		return
	}
	a.store = s
	s.accounts = append(s.accounts, a)
	s.scheduleSave()
	logger.Info("Adding account %s (%s)", a.username, a.protocolID)
	s.bus.Emit(events.AccountAdded, a)
}

// Remove takes an account out of the list without tearing it down
func (s *Store) Remove(a *Account) {
	i := slices.Index(s.accounts, a)
	if i < 0 {
		return
	}
	s.accounts = slices.Delete(s.accounts, i, i+1)
	s.scheduleSave()
	s.bus.Emit(events.AccountRemoved, a)
}

// Reorder moves an account to a new position in the list
func (s *Store) Reorder(a *Account, index int) {
	i := slices.Index(s.accounts, a)
	if i < 0 {
		logger.Error("Unregistered account (%s) discovered during reorder", a.username)
		return
	}
	if index > len(s.accounts) {
		index = len(s.accounts)
	}
	if index > i {
		index--
	}
	s.accounts = slices.Delete(s.accounts, i, i+1)
	s.accounts = slices.Insert(s.accounts, index, a)
	s.scheduleSave()
}

// SetStatusList activates or deactivates an account status. Exclusive
// statuses are only ever activated here. A save is scheduled either way
// so the current status survives a restart.
func (s *Store) SetStatusList(a *Account, id string, active bool, attrs map[string]value.Value) error {
	defer s.scheduleSave()

	st := a.presence.Status(id)
	if st == nil {
		logger.Error("Invalid status ID %s for account %s (%s)", id, a.username, a.protocolID)
		return fmt.Errorf("%w: %s", status.ErrUnknownStatus, id)
	}
	if active || st.IsIndependent() {
		return st.SetActive(active, attrs)
	}
	return nil
}

// SetEnabled enables or disables the account for a UI. An enabled account
// with an online presence connects; a disabled one disconnects.
func (s *Store) SetEnabled(a *Account, ui string, enabled bool) {
	was := a.Enabled(ui)
	a.SetUIBool(ui, "auto-login", enabled)

	switch {
	case was && !enabled:
		s.bus.Emit(events.AccountDisabled, a)
	case !was && enabled:
		s.bus.Emit(events.AccountEnabled, a)
	}

	if ui != s.ui {
		return
	}
	if enabled && a.presence.IsOnline() && a.IsDisconnected() {
		if err := s.Connect(a); err != nil {
			logger.Debug("Enabling %s did not connect: %v", a.username, err)
		}
	} else if !enabled && !a.IsDisconnected() {
		s.Disconnect(a)
	}
}

// Connect signs the account on. Without a usable password the Requester
// is asked for one and the sign-on continues when it answers.
func (s *Store) Connect(a *Account) error {
	logger.Info("Connecting to account %s", a.username)

	if !a.Enabled(s.ui) {
		return ErrDisabled
	}

	p := s.protocols.Find(a.protocolID)
	if p == nil {
		s.notifyError(a, "Connection Error", fmt.Sprintf("Missing protocol plugin for %s", a.username))
		return fmt.Errorf("%w: %s", ErrMissingProtocol, a.protocolID)
	}

	if a.password == "" && p.Capabilities()&(OptNoPassword|OptPasswordOptional) == 0 {
		s.requestPassword(a, p)
		return nil
	}
	return s.login(a, p)
}

func (s *Store) requestPassword(a *Account, p Protocol) {
	if s.requester == nil {
		s.notifyError(a, "Connection Error", "Password is required to sign on.")
		return
	}
	s.requester.CloseWithHandle(a)
	s.requester.RequestPassword(a, func(password string, remember bool) {
		if password == "" {
			s.notifyError(a, "", "Password is required to sign on.")
			return
		}
		if remember {
			a.SetRememberPassword(true)
		}
		a.SetPassword(password)
		if err := s.login(a, p); err != nil {
			logger.Warn("Sign-on of %s failed: %v", a.username, err)
		}
	})
}

func (s *Store) login(a *Account, p Protocol) error {
	a.state = StateConnecting
	if err := p.Login(a); err != nil {
		a.state = StateDisconnected
		s.notifyError(a, "Connection Error", err.Error())
		return fmt.Errorf("failed to sign on %s: %w", a.username, err)
	}
	a.state = StateConnected
	a.presence.SetLoginTime(s.now())
	logger.Info("Account %s connected", a.username)
	s.bus.Emit(events.AccountConnected, a)
	return nil
}

// Disconnect signs the account off. An unremembered password is
// forgotten.
func (s *Store) Disconnect(a *Account) {
	if a.IsDisconnected() {
		return
	}
	logger.Info("Disconnecting account %s", a.username)

	if p := s.protocols.Find(a.protocolID); p != nil {
		p.Close(a)
	}
	if !a.remember {
		a.password = ""
	}
	a.state = StateDisconnected
	a.presence.SetLoginTime(time.Time{})
	s.bus.Emit(events.AccountDisconnected, a)
}

// ChangePassword changes the server password of a connected account
func (s *Store) ChangePassword(a *Account, old, new string) error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	changer, ok := a.Protocol().(PasswordChanger)
	if !ok {
		return ErrUnsupported
	}
	if err := changer.ChangePassword(a, old, new); err != nil {
		s.notifyError(a, "", err.Error())
		return fmt.Errorf("failed to change password: %w", err)
	}
	a.SetPassword(new)
	return nil
}

// Delete tears an account down: it is disabled, its pending dialogs are
// closed, it leaves the list, the delete hooks drop everything that
// refers to it, and its icon is released.
func (s *Store) Delete(a *Account) {
	s.SetEnabled(a, s.ui, false)

	if s.notifier != nil {
		s.notifier.CloseWithHandle(a)
	}
	if s.requester != nil {
		s.requester.CloseWithHandle(a)
	}

	s.Remove(a)

	for _, hook := range s.deleteHooks {
		hook(a)
	}

	a.SetBuddyIconPath("")
	a.presence.SetObserver(nil)
	a.store = nil
}

func (s *Store) notifyError(a *Account, title, primary string) {
	logger.Error("%s: %s", a.username, primary)
	if s.notifier != nil {
		s.notifier.Error(a, title, primary, "")
	}
}
