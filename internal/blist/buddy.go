package blist

import (
	"fmt"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/buddyicon"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/status"
)

// Buddy is one account's entry for a person
type Buddy struct {
	node
	account     *account.Account
	name        string
	alias       string
	serverAlias string
	presence    *status.Presence
	icon        *buddyicon.Icon

	// what the buddy currently contributes to its contact and group
	countedCurrent bool
	countedOnline  bool

	// last presence state reported through UpdateBuddyStatus
	online bool
}

func (b *Buddy) base() *node {
	if b == nil {
		return nil
	}
	return &b.node
}

// Account returns the account the buddy is on
func (b *Buddy) Account() *account.Account { return b.account }

// Name returns the buddy's name as given by the protocol
func (b *Buddy) Name() string { return b.name }

// Alias returns the local alias
func (b *Buddy) Alias() string { return b.alias }

// ServerAlias returns the alias the server supplied
func (b *Buddy) ServerAlias() string { return b.serverAlias }

// Presence returns the presence shared by every entry for this person on
// the account
func (b *Buddy) Presence() *status.Presence { return b.presence }

// Icon returns the buddy's icon, nil if it has none loaded
func (b *Buddy) Icon() *buddyicon.Icon { return b.icon }

// SetIcon replaces the buddy's icon. See List.SetBuddyIcon.
func (b *Buddy) SetIcon(icon *buddyicon.Icon) { b.list.SetBuddyIcon(b, icon) }

// Contact returns the contact holding the buddy
func (b *Buddy) Contact() *Contact {
	c, _ := b.Parent().(*Contact)
	return c
}

// Group returns the group holding the buddy's contact
func (b *Buddy) Group() *Group {
	if c := b.Contact(); c != nil {
		return c.Group()
	}
	return nil
}

// DisplayName returns the local alias, the contact alias, the server
// alias or the name, whichever is set first
func (b *Buddy) DisplayName() string {
	if b.alias != "" {
		return b.alias
	}
	if c := b.Contact(); c != nil && c.alias != "" {
		return c.alias
	}
	if b.serverAlias != "" {
		return b.serverAlias
	}
	return b.name
}

func (b *Buddy) String() string {
	return fmt.Sprintf("buddy %s (%s)", b.name, b.account.Username())
}

// NewBuddy creates an unlinked buddy for name on a. It shares the presence
// of every other entry for that person on a.
func (l *List) NewBuddy(a *account.Account, name, alias string) *Buddy {
	if a == nil {
		panic("blist: NewBuddy with nil account")
	}
	b := &Buddy{account: a, name: name, alias: alias}
	l.initNode(&b.node, KindBuddy)
	b.presence = l.acquirePresence(a, name)
	b.online = b.presence.IsOnline()
	l.uiNewNode(b)
	return b
}

// AddBuddy links b into c after the buddy after, or first when after is
// nil. A non-nil after decides the contact. Without a contact, b gets a
// new contact at the end of g, or of the default group when g is nil.
func (l *List) AddBuddy(b *Buddy, c *Contact, g *Group, after *Buddy) {
	if b == nil {
		panic("blist: AddBuddy with nil buddy")
	}
	if b == after {
		return
	}
	if after == nil && c != nil && l.linked(b) && b.parent == c.id && c.child == b.id {
		return
	}

	switch {
	case after != nil && l.linked(after):
		c = after.Contact()
	case c != nil:
		after = nil
		if !l.linked(c) {
			l.addToGroupEnd(c, g)
		}
	default:
		after = nil
		c = l.NewContact()
		l.addToGroupEnd(c, g)
	}
	g = c.Group()

	if l.linked(b) {
		oldC := b.Contact()
		oldG := oldC.Group()

		l.detachCounts(b)
		l.removeHash(b, oldG.id)
		if oldG != g {
			l.moveOnServer(b, oldG, g)
		}
		l.unlinkSiblings(&b.node)
		l.uiRemove(b)

		if oldC.child == 0 {
			l.RemoveContact(oldC)
		} else {
			l.InvalidatePriority(oldC)
			l.uiUpdate(oldC)
		}
	} else {
		l.nodes[b.id] = b
	}

	var afterID NodeID
	if after != nil {
		afterID = after.id
	}
	l.linkAfter(&b.node, c.id, afterID)
	l.attachCounts(b)
	l.addHash(b, g.id)
	l.InvalidatePriority(c)

	l.scheduleSave()
	l.uiUpdate(b)
	l.bus.Emit(events.BuddyAdded, b)
}

func (l *List) addToGroupEnd(c *Contact, g *Group) {
	if g == nil {
		g = l.NewGroup(DefaultGroup)
	}
	l.ensureGroup(g)
	l.AddContact(c, g, l.lookup(g.lastChild()))
}

// RemoveBuddy takes b out of the list. Its icon is uncached, its contact
// is removed once empty and its presence is released.
func (l *List) RemoveBuddy(b *Buddy) {
	if !l.linked(b) {
		return
	}
	c := b.Contact()
	g := c.Group()

	if l.icons != nil {
		l.icons.Uncache(b)
	}

	l.detachCounts(b)
	l.removeHash(b, g.id)
	l.unlinkSiblings(&b.node)
	delete(l.nodes, b.id)
	if c.priority == b.id {
		l.InvalidatePriority(c)
	}

	l.scheduleSave()
	l.uiRemove(b)
	l.bus.Emit(events.BuddyRemoved, b)

	if b.icon != nil {
		icon := b.icon
		b.icon = nil
		icon.Unref()
	}
	l.releasePresence(b)

	if c.child == 0 {
		l.RemoveContact(c)
	} else {
		l.uiUpdate(c)
	}
}

// RenameBuddy changes the name of b and re-keys it in the index
func (l *List) RenameBuddy(b *Buddy, name string) {
	if b.name == name {
		return
	}

	g := b.Group()
	if g != nil && l.linked(b) {
		l.removeHash(b, g.id)
	}
	l.renamePresence(b, name)
	b.name = name
	if g != nil && l.linked(b) {
		l.addHash(b, g.id)
		l.refreshCounts(b)
		l.InvalidatePriority(b.Contact())
	}

	l.scheduleSave()
	l.uiUpdate(b)
}

// Aliased is the payload of events.NodeAliased
type Aliased struct {
	Node     Node
	OldAlias string
}

// AliasBuddy sets the local alias of b
func (l *List) AliasBuddy(b *Buddy, alias string) {
	if b.alias == alias {
		return
	}
	old := b.alias
	b.alias = alias
	l.scheduleSave()
	l.uiUpdate(b)
	l.bus.Emit(events.NodeAliased, Aliased{Node: b, OldAlias: old})
}

// ServerAliasBuddy sets the alias the server supplied for b
func (l *List) ServerAliasBuddy(b *Buddy, alias string) {
	if b.serverAlias == alias {
		return
	}
	old := b.serverAlias
	b.serverAlias = alias
	l.scheduleSave()
	l.uiUpdate(b)
	l.bus.Emit(events.NodeAliased, Aliased{Node: b, OldAlias: old})
}

// SetBuddyIcon gives b the icon, caching it on disk for b, or clears and
// uncaches it when icon is nil
func (l *List) SetBuddyIcon(b *Buddy, icon *buddyicon.Icon) {
	old := b.icon
	if icon != old {
		if icon != nil {
			icon.Ref()
		}
		b.icon = icon
	}

	if l.icons != nil {
		if icon != nil {
			if err := l.icons.Cache(icon, b); err != nil {
				logger.Warn("Icon of %s not cached: %v", b.name, err)
			}
		} else {
			l.icons.Uncache(b)
		}
	}

	if old != nil && old != icon {
		old.Unref()
	}

	l.uiUpdate(b)
	l.bus.Emit(events.BuddyIconChanged, b)
}

// LoadBuddyIcon returns b's icon, reading it from the disk cache when it
// is not loaded yet
func (l *List) LoadBuddyIcon(b *Buddy) *buddyicon.Icon {
	if b.icon != nil || l.icons == nil {
		return b.icon
	}
	icon := l.icons.Find(b.account, b.name, b)
	if icon == nil {
		return nil
	}
	if b.icon != icon {
		l.SetBuddyIcon(b, icon)
	}
	icon.Unref()
	return b.icon
}

// IconUpdated hands a changed icon to every buddy of its person
func (l *List) IconUpdated(icon *buddyicon.Icon) {
	for _, b := range l.FindBuddies(icon.Account(), icon.Username()) {
		l.SetBuddyIcon(b, icon)
	}
}

// IconFreed drops the handles buddies still hold on a freed icon
func (l *List) IconFreed(icon *buddyicon.Icon) {
	for _, b := range l.FindBuddies(icon.Account(), icon.Username()) {
		if b.icon == icon {
			b.icon = nil
		}
	}
}
