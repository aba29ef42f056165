package blist

import (
	"time"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/status"
)

// BuddyStatus is the payload of the buddy sign-on, sign-off and status
// events
type BuddyStatus struct {
	Buddy *Buddy
	Old   *status.Status
	New   *status.Status
}

// BuddyIdle is the payload of events.BuddyIdleChanged
type BuddyIdle struct {
	Buddy   *Buddy
	WasIdle bool
	Idle    bool
}

func (l *List) acquirePresence(a *account.Account, name string) *status.Presence {
	k := presenceKey{a, a.Normalize(name)}
	if e := l.presences[k]; e != nil {
		e.refs++
		return e.presence
	}

	p := status.NewBuddyPresence(a, name)
	types := a.StatusTypes()
	if len(types) == 0 {
		types = status.DefaultTypes()
	}
	p.AddStatuses(types)
	if s := p.StatusByPrimitive(status.PrimitiveOffline); s != nil {
		_ = p.SwitchStatus(s.ID())
	}
	p.SetObserver(l)

	e := &presenceEntry{key: k, presence: p, refs: 1}
	l.presences[k] = e
	l.byPresence[p] = e
	return p
}

func (l *List) releasePresence(b *Buddy) {
	e := l.byPresence[b.presence]
	if e == nil {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	delete(l.presences, e.key)
	delete(l.byPresence, e.presence)
	e.presence.SetObserver(nil)
}

// renamePresence moves b to the presence shared under its new name. A
// presence b does not share is re-keyed in place and keeps its state.
func (l *List) renamePresence(b *Buddy, name string) {
	e := l.byPresence[b.presence]
	k := presenceKey{b.account, b.account.Normalize(name)}
	if e == nil || e.key == k {
		return
	}
	if e.refs == 1 && l.presences[k] == nil {
		delete(l.presences, e.key)
		e.key = k
		l.presences[k] = e
		return
	}
	l.releasePresence(b)
	b.presence = l.acquirePresence(b.account, name)
	b.online = b.presence.IsOnline()
}

// PresenceCount returns the number of live shared buddy presences
func (l *List) PresenceCount() int { return len(l.presences) }

func (c *counters) addCounts(o *counters, sign int) {
	c.total += sign * o.total
	c.current += sign * o.current
	c.online += sign * o.online
}

func (c *counters) add(total, current, online int) {
	c.total += total
	c.current += current
	c.online += online
}

func (l *List) buddyState(b *Buddy) (current, online bool) {
	current = b.account.IsConnected()
	online = current && b.presence.IsOnline()
	return current, online
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func (l *List) applyCounts(b *Buddy, total, current, online int) {
	c := b.Contact()
	c.add(total, current, online)
	if g := c.Group(); g != nil {
		g.add(total, current, online)
	}
}

// attachCounts adds a freshly linked buddy to its contact and group
func (l *List) attachCounts(b *Buddy) {
	b.countedCurrent, b.countedOnline = l.buddyState(b)
	l.applyCounts(b, 1, boolInt(b.countedCurrent), boolInt(b.countedOnline))
}

// detachCounts takes a buddy about to be unlinked out of its contact and
// group
func (l *List) detachCounts(b *Buddy) {
	l.applyCounts(b, -1, -boolInt(b.countedCurrent), -boolInt(b.countedOnline))
	b.countedCurrent, b.countedOnline = false, false
}

// refreshCounts brings a linked buddy's contribution in line with its
// account and presence
func (l *List) refreshCounts(b *Buddy) {
	if !l.linked(b) {
		return
	}
	current, online := l.buddyState(b)
	dc := boolInt(current) - boolInt(b.countedCurrent)
	do := boolInt(online) - boolInt(b.countedOnline)
	if dc == 0 && do == 0 {
		return
	}
	b.countedCurrent, b.countedOnline = current, online
	l.applyCounts(b, 0, dc, do)
}

// StatusChanged updates every buddy sharing p
func (l *List) StatusChanged(p *status.Presence, old, _ *status.Status) {
	e := l.byPresence[p]
	if e == nil {
		return
	}
	for _, b := range l.FindBuddies(e.key.account, e.key.name) {
		if b.presence == p {
			l.UpdateBuddyStatus(b, old)
		}
	}
}

// IdleChanged updates every buddy sharing p
func (l *List) IdleChanged(p *status.Presence, wasIdle, idle bool) {
	e := l.byPresence[p]
	if e == nil {
		return
	}
	for _, b := range l.FindBuddies(e.key.account, e.key.name) {
		if b.presence == p {
			l.UpdateBuddyIdle(b, wasIdle, idle)
		}
	}
}

// UpdateBuddyStatus reacts to a status change of b's presence. It emits
// buddy-signed-on or buddy-signed-off when b crossed the online line,
// stamping "last_seen" on sign-off, and buddy-status-changed otherwise.
func (l *List) UpdateBuddyStatus(b *Buddy, old *status.Status) {
	p := b.presence
	ev := BuddyStatus{Buddy: b, Old: old, New: p.ActiveStatus()}

	online := p.IsOnline()
	switch {
	case online && !b.online:
		b.online = true
		if p.LoginTime().IsZero() {
			p.SetLoginTime(l.now())
		}
		l.bus.Emit(events.BuddySignedOn, ev)
	case !online && b.online:
		b.online = false
		p.SetLoginTime(time.Time{})
		b.SetInt("last_seen", int(l.now().Unix()))
		l.bus.Emit(events.BuddySignedOff, ev)
	default:
		l.bus.Emit(events.BuddyStatusChanged, ev)
	}

	l.refreshCounts(b)
	if c := b.Contact(); c != nil {
		l.InvalidatePriority(c)
		l.uiUpdate(c)
	}
	l.uiUpdate(b)
}

// UpdateBuddyIdle reacts to an idle change of b's presence
func (l *List) UpdateBuddyIdle(b *Buddy, wasIdle, idle bool) {
	if c := b.Contact(); c != nil {
		l.InvalidatePriority(c)
	}
	l.uiUpdate(b)
	l.bus.Emit(events.BuddyIdleChanged, BuddyIdle{Buddy: b, WasIdle: wasIdle, Idle: idle})
}
