// Package account holds the accounts known to the roster: identity,
// credentials, typed settings, privacy lists, proxy configuration and the
// account presence.
package account

import (
	"sort"
	"time"

	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/value"
)

var logger = logging.Component("account")

// State is the connection state of an account
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Account is one login on one protocol
type Account struct {
	username   string
	protocolID string
	password   string
	remember   bool
	alias      string
	userInfo   string
	iconPath   string

	settings   map[string]value.Value
	uiSettings map[string]map[string]value.Value

	proxy   *ProxyInfo
	permit  []string
	deny    []string
	privacy PrivacyMode

	statusTypes []*status.Type
	presence    *status.Presence
	state       State

	store *Store
}

// New creates a detached account with empty settings and an account
// presence. Use Store.NewAccount to create accounts the roster manages.
func New(username, protocolID string) *Account {
	a := &Account{
		username:   username,
		protocolID: protocolID,
		settings:   make(map[string]value.Value),
		uiSettings: make(map[string]map[string]value.Value),
		privacy:    PrivacyAllowAll,
	}
	a.presence = status.NewAccountPresence(a)
	a.presence.SetObserver(a)
	return a
}

func (a *Account) schedule() {
	if a.store != nil {
		a.store.scheduleSave()
	}
}

// Username returns the account's login name
func (a *Account) Username() string { return a.username }

// ProtocolID returns the id of the protocol the account logs in with
func (a *Account) ProtocolID() string { return a.protocolID }

// Password returns the stored password, "" when there is none
func (a *Account) Password() string { return a.password }

// RememberPassword reports whether the password is persisted
func (a *Account) RememberPassword() bool { return a.remember }

// Alias returns the account's local alias
func (a *Account) Alias() string { return a.alias }

// UserInfo returns the user info blob
func (a *Account) UserInfo() string { return a.userInfo }

// BuddyIconPath returns the path of the account's own icon
func (a *Account) BuddyIconPath() string { return a.iconPath }

// ProxyInfo returns the account proxy, nil when the global proxy is used
func (a *Account) ProxyInfo() *ProxyInfo { return a.proxy }

// State returns the connection state
func (a *Account) State() State { return a.state }

// IsConnected reports whether the account is signed on
func (a *Account) IsConnected() bool { return a.state == StateConnected }

// IsConnecting reports whether a sign-on is in progress
func (a *Account) IsConnecting() bool { return a.state == StateConnecting }

// IsDisconnected reports whether the account is signed off
func (a *Account) IsDisconnected() bool { return a.state == StateDisconnected }

// Presence returns the account presence
func (a *Account) Presence() *status.Presence { return a.presence }

// StatusTypes returns the status catalog of the account
func (a *Account) StatusTypes() []*status.Type { return a.statusTypes }

// SetStatusTypes replaces the status catalog and instantiates every type on
// the account presence
func (a *Account) SetStatusTypes(types []*status.Type) {
	a.statusTypes = types
	a.presence.AddStatuses(types)
}

// Status returns the account status with the given id, or nil
func (a *Account) Status(id string) *status.Status { return a.presence.Status(id) }

// ActiveStatus returns the active exclusive status of the account
func (a *Account) ActiveStatus() *status.Status { return a.presence.ActiveStatus() }

// SetUsername renames the account
func (a *Account) SetUsername(name string) {
	a.username = name
	a.schedule()
}

// SetProtocolID changes the protocol id
func (a *Account) SetProtocolID(id string) {
	a.protocolID = id
	a.schedule()
}

// SetPassword stores the password
func (a *Account) SetPassword(password string) {
	a.password = password
	a.schedule()
}

// SetRememberPassword sets whether the password is persisted
func (a *Account) SetRememberPassword(remember bool) {
	a.remember = remember
	a.schedule()
}

// SetAlias sets the account alias
func (a *Account) SetAlias(alias string) {
	a.alias = alias
	a.schedule()
}

// SetUserInfo sets the user info blob
func (a *Account) SetUserInfo(info string) {
	a.userInfo = info
	a.schedule()
}

// SetBuddyIconPath sets the path of the account's own icon
func (a *Account) SetBuddyIconPath(path string) {
	a.iconPath = path
	a.schedule()
}

// SetProxyInfo replaces the proxy configuration; nil means global
func (a *Account) SetProxyInfo(info *ProxyInfo) {
	a.proxy = info
	a.schedule()
}

// Normalize returns the canonical form of a buddy name on this account
func (a *Account) Normalize(name string) string {
	if a.store != nil {
		return a.store.normalize(a, name)
	}
	return DefaultNormalize(name)
}

// Protocol returns the protocol the account logs in with, nil when it is
// not registered
func (a *Account) Protocol() Protocol {
	if a.store == nil {
		return nil
	}
	return a.store.protocols.Find(a.protocolID)
}

// Setting returns the raw core setting
func (a *Account) Setting(name string) (value.Value, bool) {
	v, ok := a.settings[name]
	return v, ok
}

// SettingNames returns the names of the core settings, sorted
func (a *Account) SettingNames() []string { return sortedKeys(a.settings) }

// SetSetting stores a raw core setting
func (a *Account) SetSetting(name string, v value.Value) {
	a.settings[name] = v
	a.schedule()
}

// RemoveSetting deletes a core setting
func (a *Account) RemoveSetting(name string) {
	delete(a.settings, name)
	a.schedule()
}

// GetInt returns an int setting or def when it is absent. It panics when
// the setting holds another kind.
func (a *Account) GetInt(name string, def int) int {
	v, ok := a.settings[name]
	if !ok {
		return def
	}
	return v.AsInt()
}

// GetString returns a string setting or def when it is absent
func (a *Account) GetString(name, def string) string {
	v, ok := a.settings[name]
	if !ok {
		return def
	}
	return v.AsString()
}

// GetBool returns a bool setting or def when it is absent
func (a *Account) GetBool(name string, def bool) bool {
	v, ok := a.settings[name]
	if !ok {
		return def
	}
	return v.AsBool()
}

// SetInt stores an int setting
func (a *Account) SetInt(name string, v int) { a.SetSetting(name, value.Int(v)) }

// SetString stores a string setting
func (a *Account) SetString(name, v string) { a.SetSetting(name, value.String(v)) }

// SetBool stores a bool setting
func (a *Account) SetBool(name string, v bool) { a.SetSetting(name, value.Bool(v)) }

// UISetting returns the raw setting of a UI namespace
func (a *Account) UISetting(ui, name string) (value.Value, bool) {
	v, ok := a.uiSettings[ui][name]
	return v, ok
}

// UINamespaces returns the UI namespaces that have settings, sorted
func (a *Account) UINamespaces() []string { return sortedKeys(a.uiSettings) }

// UISettingNames returns the setting names of a UI namespace, sorted
func (a *Account) UISettingNames(ui string) []string { return sortedKeys(a.uiSettings[ui]) }

// SetUISetting stores a raw setting in a UI namespace
func (a *Account) SetUISetting(ui, name string, v value.Value) {
	table, ok := a.uiSettings[ui]
	if !ok {
		table = make(map[string]value.Value)
		a.uiSettings[ui] = table
	}
	table[name] = v
	a.schedule()
}

// GetUIInt returns an int setting of a UI namespace or def
func (a *Account) GetUIInt(ui, name string, def int) int {
	v, ok := a.UISetting(ui, name)
	if !ok {
		return def
	}
	return v.AsInt()
}

// GetUIString returns a string setting of a UI namespace or def
func (a *Account) GetUIString(ui, name, def string) string {
	v, ok := a.UISetting(ui, name)
	if !ok {
		return def
	}
	return v.AsString()
}

// GetUIBool returns a bool setting of a UI namespace or def
func (a *Account) GetUIBool(ui, name string, def bool) bool {
	v, ok := a.UISetting(ui, name)
	if !ok {
		return def
	}
	return v.AsBool()
}

// SetUIInt stores an int setting in a UI namespace
func (a *Account) SetUIInt(ui, name string, v int) { a.SetUISetting(ui, name, value.Int(v)) }

// SetUIString stores a string setting in a UI namespace
func (a *Account) SetUIString(ui, name, v string) { a.SetUISetting(ui, name, value.String(v)) }

// SetUIBool stores a bool setting in a UI namespace
func (a *Account) SetUIBool(ui, name string, v bool) { a.SetUISetting(ui, name, value.Bool(v)) }

// Enabled reports whether the account signs on in the given UI
func (a *Account) Enabled(ui string) bool {
	return a.GetUIBool(ui, "auto-login", false)
}

// StatusChanged reacts to a change of the account presence
func (a *Account) StatusChanged(_ *status.Presence, old, new *status.Status) {
	if a.store == nil {
		return
	}
	a.store.accountStatusChanged(a, old, new)
}

// IdleChanged forwards idleness to the protocol when connected
func (a *Account) IdleChanged(p *status.Presence, _, idle bool) {
	if a.store == nil || !a.IsConnected() {
		return
	}
	if setter, ok := a.Protocol().(IdleSetter); ok {
		since := time.Time{}
		if idle {
			since = p.IdleTime()
		}
		setter.SetIdle(a, since)
	}
}

// StatusChange is the payload of events.AccountStatusChanged
type StatusChange struct {
	Account *Account
	Old     *status.Status
	New     *status.Status
}

func (s *Store) accountStatusChanged(a *Account, old, new *status.Status) {
	if a.Enabled(s.ui) && s.autoConnect {
		s.changeProtocolStatus(a, new)
	}
	s.bus.Emit(events.AccountStatusChanged, StatusChange{Account: a, Old: old, New: new})
}

func (s *Store) changeProtocolStatus(a *Account, new *status.Status) {
	if new.IsOnline() && a.IsDisconnected() {
		if err := s.Connect(a); err != nil {
			logger.Debug("Status change did not connect %s: %v", a.username, err)
		}
		return
	}

	if !new.IsOnline() {
		if !a.IsDisconnected() {
			s.Disconnect(a)
		}
		if !a.remember {
			a.password = ""
		}
		return
	}

	if a.IsConnecting() {
		return
	}
	if setter, ok := a.Protocol().(StatusSetter); ok && a.IsConnected() {
		setter.SetStatus(a, new)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
