package status

import (
	"fmt"
	"time"

	"github.com/meszmate/buddylist/internal/value"
)

// Context says what kind of entity a presence belongs to
type Context int

const (
	ContextUnset Context = iota
	ContextAccount
	ContextConversation
	ContextBuddy
)

// Owner is the account a presence is scored against. Its integer "score"
// setting biases every presence of that account.
type Owner interface {
	GetInt(name string, def int) int
}

// Observer is told about changes to a presence. For an exclusive status,
// old is the status that was active before; it equals new when only
// attributes changed. For an independent status old is nil.
type Observer interface {
	StatusChanged(p *Presence, old, new *Status)
	IdleChanged(p *Presence, wasIdle, idle bool)
}

// Presence is the set of statuses and idle state of an account, a buddy or
// a conversation.
type Presence struct {
	context  Context
	owner    Owner
	name     string
	statuses []*Status
	byID     map[string]*Status
	active   *Status
	idle     bool
	idleTime time.Time
	login    time.Time
	observer Observer
}

func newPresence(ctx Context, owner Owner, name string) *Presence {
	return &Presence{
		context: ctx,
		owner:   owner,
		name:    name,
		byID:    make(map[string]*Status),
	}
}

// NewAccountPresence creates the presence of an account
func NewAccountPresence(owner Owner) *Presence {
	return newPresence(ContextAccount, owner, "")
}

// NewBuddyPresence creates the presence shared by every buddy entry for
// name on the owner account
func NewBuddyPresence(owner Owner, name string) *Presence {
	return newPresence(ContextBuddy, owner, name)
}

// NewConversationPresence creates the presence of a conversation
func NewConversationPresence(owner Owner, name string) *Presence {
	return newPresence(ContextConversation, owner, name)
}

// Context returns what the presence belongs to
func (p *Presence) Context() Context { return p.context }

// Owner returns the account the presence is scored against
func (p *Presence) Owner() Owner { return p.owner }

// Name returns the buddy or conversation name, "" for accounts
func (p *Presence) Name() string { return p.name }

// SetObserver installs the observer notified of changes
func (p *Presence) SetObserver(o Observer) { p.observer = o }

// AddStatus instantiates t in the presence. Adding a type whose id is
// already present returns the existing status.
func (p *Presence) AddStatus(t *Type) *Status {
	if s, ok := p.byID[t.ID]; ok {
		return s
	}
	s := newStatus(t, p)
	p.statuses = append(p.statuses, s)
	p.byID[t.ID] = s
	return s
}

// AddStatuses instantiates every type in order
func (p *Presence) AddStatuses(types []*Type) {
	for _, t := range types {
		p.AddStatus(t)
	}
}

// Statuses returns the statuses in catalog order
func (p *Presence) Statuses() []*Status { return p.statuses }

// Status returns the status with the given id, or nil
func (p *Presence) Status(id string) *Status { return p.byID[id] }

// StatusByPrimitive returns the first status of the given primitive
func (p *Presence) StatusByPrimitive(prim Primitive) *Status {
	for _, s := range p.statuses {
		if s.Primitive() == prim {
			return s
		}
	}
	return nil
}

// ActiveStatus returns the active exclusive status
func (p *Presence) ActiveStatus() *Status { return p.active }

// IsStatusActive reports whether the status with the given id is active
func (p *Presence) IsStatusActive(id string) bool {
	s := p.byID[id]
	return s != nil && s.active
}

// IsStatusPrimitiveActive reports whether any active status has the
// given primitive
func (p *Presence) IsStatusPrimitiveActive(prim Primitive) bool {
	for _, s := range p.statuses {
		if s.active && s.Primitive() == prim {
			return true
		}
	}
	return false
}

// IsOnline reports whether the active status is an online one
func (p *Presence) IsOnline() bool { return p.active.IsOnline() }

// IsAvailable reports whether the active status is available and the
// presence is not idle
func (p *Presence) IsAvailable() bool {
	return p.active != nil && p.active.IsAvailable() && !p.IsIdle()
}

// IsIdle reports whether the presence is online and idle
func (p *Presence) IsIdle() bool { return p.IsOnline() && p.idle }

// IdleTime returns when the presence became idle, zero when not idle
func (p *Presence) IdleTime() time.Time { return p.idleTime }

// LoginTime returns when the presence came online, zero when offline
func (p *Presence) LoginTime() time.Time {
	if !p.IsOnline() {
		return time.Time{}
	}
	return p.login
}

// SetLoginTime records when the presence came online
func (p *Presence) SetLoginTime(t time.Time) { p.login = t }

// SetStatusActive activates or deactivates the status with the given id.
// See Status.SetActive.
func (p *Presence) SetStatusActive(id string, active bool, attrs map[string]value.Value) error {
	s := p.byID[id]
	if s == nil {
		logger.Error("Invalid status ID %q for presence %q", id, p.name)
		return fmt.Errorf("%w: %s", ErrUnknownStatus, id)
	}
	return s.SetActive(active, attrs)
}

// SwitchStatus activates the status with the given id using default
// attributes
func (p *Presence) SwitchStatus(id string) error {
	return p.SetStatusActive(id, true, nil)
}

// SetIdle sets the idle flag and the time idleness started. It notifies
// the observer only if either actually changed.
func (p *Presence) SetIdle(idle bool, since time.Time) {
	if !idle {
		since = time.Time{}
	}
	if p.idle == idle && p.idleTime.Equal(since) {
		return
	}

	wasIdle := p.idle
	p.idle = idle
	p.idleTime = since

	if p.observer != nil {
		p.observer.IdleChanged(p, wasIdle, idle)
	}
}

func (p *Presence) statusChanged(s *Status) {
	var old *Status
	if s.IsExclusive() {
		old = p.active
		if old != nil && old != s {
			old.active = false
		}
		p.active = s
	}

	if p.observer != nil {
		p.observer.StatusChanged(p, old, s)
	}
}
