// Package prpl holds the protocols built into the roster: XMPP and a
// generic protocol for networks without naming rules of their own.
package prpl

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mellium.im/xmpp/jid"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/blist"
	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/value"
)

// JabberID is the protocol id of XMPP accounts
const JabberID = "prpl-jabber"

var logger = logging.Component("prpl")

var (
	// ErrNotConnected is returned for calls on an account without a session
	ErrNotConnected = errors.New("account is not connected")
	// ErrWrongPassword is returned by ChangePassword for a bad old password
	ErrWrongPassword = errors.New("old password does not match")
)

// PresenceHandler receives the status a contact's best resource maps to
type PresenceHandler func(a *account.Account, who, statusID string, attrs map[string]value.Value)

// Session is the state of one signed-on XMPP account
type Session struct {
	JID       jid.JID
	Roster    *Roster
	resources *resources
	status    string
	idleSince time.Time
}

// Status returns the id of the status last published for the account
func (s *Session) Status() string { return s.status }

// IdleSince returns when the account went idle, zero if it is not idle
func (s *Session) IdleSince() time.Time { return s.idleSince }

// Best returns the highest priority resource of a contact, or nil
func (s *Session) Best(who jid.JID) *Resource { return s.resources.best(who) }

// Jabber is the XMPP protocol. The stream is driven elsewhere; Jabber
// keeps the server roster and the contact resources it reports.
type Jabber struct {
	mu       sync.RWMutex
	sessions map[*account.Account]*Session
	handler  PresenceHandler
}

// JabberOption configures Jabber
type JabberOption func(*Jabber)

// WithPresenceHandler sets where contact presence changes are reported
func WithPresenceHandler(h PresenceHandler) JabberOption {
	return func(j *Jabber) { j.handler = h }
}

// NewJabber creates the XMPP protocol
func NewJabber(opts ...JabberOption) *Jabber {
	j := &Jabber{sessions: make(map[*account.Account]*Session)}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// SetPresenceHandler replaces the presence handler
func (j *Jabber) SetPresenceHandler(h PresenceHandler) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.handler = h
}

func (j *Jabber) ID() string                       { return JabberID }
func (j *Jabber) Name() string                     { return "XMPP" }
func (j *Jabber) Capabilities() account.Capability { return 0 }
func (j *Jabber) ChatKey() string                  { return "room" }

// StatusTypes returns the XMPP status catalog
func (j *Jabber) StatusTypes(*account.Account) []*status.Type {
	return []*status.Type{
		status.NewType(status.PrimitiveOffline, "", "", true, true, false),
		status.NewType(status.PrimitiveAvailable, "", "", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		status.NewType(status.PrimitiveAway, "", "", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		status.NewType(status.PrimitiveExtendedAway, "xa", "", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		status.NewType(status.PrimitiveUnavailable, "dnd", "Do Not Disturb", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		status.NewType(status.PrimitiveTune, "", "", false, false, true).
			WithAttr("artist", "Artist", value.String("")).
			WithAttr("title", "Title", value.String("")),
	}
}

// Normalize returns the bare JID of name. Names that are not JIDs fall
// back to case folding.
func (j *Jabber) Normalize(_ *account.Account, name string) string {
	addr, err := jid.Parse(name)
	if err != nil {
		return account.DefaultNormalize(name)
	}
	return addr.Bare().String()
}

// Login starts a session for a. The username must be a JID with a
// localpart.
func (j *Jabber) Login(a *account.Account) error {
	addr, err := jid.Parse(a.Username())
	if err != nil {
		return fmt.Errorf("failed to parse JID %q: %w", a.Username(), err)
	}
	if addr.Localpart() == "" {
		return fmt.Errorf("JID %q has no username", a.Username())
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions[a] = &Session{
		JID:       addr,
		Roster:    NewRoster(),
		resources: newResources(),
		status:    "available",
	}
	logger.Info("Session started for %s", addr)
	return nil
}

// Close ends a's session
func (j *Jabber) Close(a *account.Account) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if s := j.sessions[a]; s != nil {
		s.resources.clear()
		delete(j.sessions, a)
	}
}

// Session returns a's session, or nil
func (j *Jabber) Session(a *account.Account) *Session {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sessions[a]
}

// ChangePassword checks old against the account password
func (j *Jabber) ChangePassword(a *account.Account, old, _ string) error {
	if j.Session(a) == nil {
		return ErrNotConnected
	}
	if old != a.Password() {
		return ErrWrongPassword
	}
	return nil
}

// SetStatus records the status published for a
func (j *Jabber) SetStatus(a *account.Account, s *status.Status) {
	if sess := j.Session(a); sess != nil && s != nil {
		sess.status = s.ID()
	}
}

// SetIdle records a's idle time
func (j *Jabber) SetIdle(a *account.Account, since time.Time) {
	if sess := j.Session(a); sess != nil {
		sess.idleSince = since
	}
}

func (j *Jabber) contact(a *account.Account, name string) (*Session, jid.JID, bool) {
	sess := j.Session(a)
	if sess == nil {
		return nil, jid.JID{}, false
	}
	addr, err := jid.Parse(name)
	if err != nil {
		logger.Warn("Ignoring %q on %s: %v", name, a.Username(), err)
		return sess, jid.JID{}, false
	}
	return sess, addr, true
}

// AddBuddy puts b into g on the server roster
func (j *Jabber) AddBuddy(a *account.Account, b *blist.Buddy, g *blist.Group) {
	if sess, addr, ok := j.contact(a, b.Name()); ok {
		sess.Roster.AddToGroup(addr, b.Alias(), g.Name())
	}
}

// RemoveBuddy takes b out of g on the server roster
func (j *Jabber) RemoveBuddy(a *account.Account, b *blist.Buddy, g *blist.Group) {
	if sess, addr, ok := j.contact(a, b.Name()); ok {
		sess.Roster.RemoveFromGroup(addr, g.Name())
	}
}

// MoveBuddy moves who between groups on the server roster
func (j *Jabber) MoveBuddy(a *account.Account, who, oldGroup, newGroup string) {
	if sess, addr, ok := j.contact(a, who); ok {
		sess.Roster.MoveGroup(addr, oldGroup, newGroup)
	}
}

// RenameGroup moves the given buddies from oldName to g on the server
// roster
func (j *Jabber) RenameGroup(a *account.Account, oldName string, g *blist.Group, moved []*blist.Buddy) {
	for _, b := range moved {
		j.MoveBuddy(a, b.Name(), oldName, g.Name())
	}
}

// RemoveGroup takes every item out of g on the server roster
func (j *Jabber) RemoveGroup(a *account.Account, g *blist.Group) {
	sess := j.Session(a)
	if sess == nil {
		return
	}
	for _, item := range sess.Roster.ByGroup(g.Name()) {
		sess.Roster.RemoveFromGroup(item.JID, g.Name())
	}
}

// ReceivePresence records an available resource of a contact and reports
// the contact's resulting status
func (j *Jabber) ReceivePresence(a *account.Account, from string, show Show, text string, priority int) error {
	sess, addr, ok := j.contact(a, from)
	if !ok {
		if sess == nil {
			return ErrNotConnected
		}
		return fmt.Errorf("failed to parse JID %q", from)
	}
	sess.resources.set(Resource{JID: addr, Show: show, Status: text, Priority: priority})
	j.report(a, sess, addr)
	return nil
}

// ReceiveUnavailable drops a resource of a contact, or every resource for
// a bare JID, and reports the contact's resulting status
func (j *Jabber) ReceiveUnavailable(a *account.Account, from string) error {
	sess, addr, ok := j.contact(a, from)
	if !ok {
		if sess == nil {
			return ErrNotConnected
		}
		return fmt.Errorf("failed to parse JID %q", from)
	}
	sess.resources.remove(addr)
	j.report(a, sess, addr)
	return nil
}

func (j *Jabber) report(a *account.Account, sess *Session, addr jid.JID) {
	j.mu.RLock()
	h := j.handler
	j.mu.RUnlock()
	if h == nil {
		return
	}

	who := addr.Bare().String()
	best := sess.resources.best(addr)
	if best == nil {
		h(a, who, status.PrimitiveOffline.ID(), nil)
		return
	}
	h(a, who, StatusID(best.Show), map[string]value.Value{"message": value.String(best.Status)})
}
