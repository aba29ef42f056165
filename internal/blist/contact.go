package blist

import (
	"fmt"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/events"
)

// Contact is one person, shown as a single entry that holds every buddy
// known for them
type Contact struct {
	node
	alias string
	counters
	priority      NodeID
	priorityValid bool
}

func (c *Contact) base() *node {
	if c == nil {
		return nil
	}
	return &c.node
}

// Alias returns the contact alias
func (c *Contact) Alias() string { return c.alias }

// Group returns the group holding the contact
func (c *Contact) Group() *Group {
	g, _ := c.Parent().(*Group)
	return g
}

// Buddies returns the buddies of the contact in order
func (c *Contact) Buddies() []*Buddy {
	var out []*Buddy
	for _, n := range c.Children() {
		out = append(out, n.(*Buddy))
	}
	return out
}

// DisplayName returns the alias, or else the priority buddy's name
func (c *Contact) DisplayName() string {
	if c.alias != "" {
		return c.alias
	}
	if b := c.list.PriorityBuddy(c); b != nil {
		return b.DisplayName()
	}
	return ""
}

func (c *Contact) String() string { return fmt.Sprintf("contact %d", c.id) }

// NewContact creates an empty, unlinked contact
func (l *List) NewContact() *Contact {
	c := &Contact{}
	l.initNode(&c.node, KindContact)
	l.uiNewNode(c)
	return c
}

// AddContact links c into g after the contact or chat after, or first
// when after is nil. A non-nil after decides the group. Without either, c
// goes to the default group. Moving c to another group re-keys its
// buddies there; a buddy the destination group already has is removed
// instead.
func (l *List) AddContact(c *Contact, g *Group, after Node) {
	if c == nil {
		panic("blist: AddContact with nil contact")
	}
	if Node(c) == after {
		return
	}

	switch a := after.(type) {
	case *Contact, *Chat:
		if l.linked(a) {
			g = a.Parent().(*Group)
		} else {
			after = nil
		}
	case nil:
	default:
		after = nil
	}
	if g == nil {
		g = l.NewGroup(DefaultGroup)
	}
	l.ensureGroup(g)

	if l.linked(c) && c.parent == g.id {
		if after == nil && g.child == c.id {
			return
		}
		if after != nil && c.prev == after.ID() {
			return
		}
	}

	if l.linked(c) {
		old := c.Group()
		if old != g {
			for id := c.child; id != 0; {
				b := l.lookup(id).(*Buddy)
				id = b.next

				if l.FindBuddyInGroup(b.account, b.name, g) == nil {
					l.removeHash(b, old.id)
					l.addHash(b, g.id)
					l.moveOnServer(b, old, g)
					continue
				}

				if b.account.IsConnected() {
					if remover, ok := b.account.Protocol().(BuddyRemover); ok {
						remover.RemoveBuddy(b.account, b, old)
					}
				}
				last := c.child == b.id && b.next == 0
				l.RemoveBuddy(b)
				if last {
					return
				}
			}
		}

		old.addCounts(&c.counters, -1)
		l.unlinkSiblings(&c.node)
		l.uiRemove(c)
	} else {
		l.nodes[c.id] = c
	}

	var afterID NodeID
	if after != nil {
		afterID = after.ID()
	}
	l.linkAfter(&c.node, g.id, afterID)
	g.addCounts(&c.counters, 1)

	l.scheduleSave()
	if c.child != 0 {
		l.uiUpdate(c)
	}
	for _, b := range c.Children() {
		l.uiUpdate(b)
	}
}

// MergeContact moves every buddy of source into the contact target, or
// after target when it is a buddy. Source disappears once empty.
func (l *List) MergeContact(source *Contact, target Node) {
	if source == nil || isNil(target) {
		return
	}

	var dest *Contact
	var prev *Buddy
	switch t := target.(type) {
	case *Contact:
		dest = t
		if id := t.lastChild(); id != 0 {
			prev = l.lookup(id).(*Buddy)
		}
	case *Buddy:
		dest = t.Contact()
		prev = t
	default:
		return
	}
	if dest == nil || dest == source {
		return
	}

	for id := source.child; id != 0; {
		b := l.lookup(id).(*Buddy)
		id = b.next
		l.AddBuddy(b, dest, nil, prev)
		prev = b
	}
}

// RemoveContact removes every buddy of c one at a time. Removing the last
// one removes c.
func (l *List) RemoveContact(c *Contact) {
	if !l.linked(c) {
		return
	}

	for c.child != 0 {
		l.RemoveBuddy(l.lookup(c.child).(*Buddy))
		if !l.linked(c) {
			return
		}
	}

	g := c.Group()
	g.addCounts(&c.counters, -1)
	l.unlinkSiblings(&c.node)
	delete(l.nodes, c.id)
	l.scheduleSave()
	l.uiRemove(c)
}

// AliasContact sets the contact alias
func (l *List) AliasContact(c *Contact, alias string) {
	if c.alias == alias {
		return
	}
	old := c.alias
	c.alias = alias
	l.scheduleSave()
	l.uiUpdate(c)
	l.bus.Emit(events.NodeAliased, Aliased{Node: c, OldAlias: old})
}

// ContactOnAccount reports whether c has a buddy on a
func (l *List) ContactOnAccount(c *Contact, a *account.Account) bool {
	for _, b := range c.Buddies() {
		if b.account == a {
			return true
		}
	}
	return false
}

// InvalidatePriority makes the next PriorityBuddy call recompute
func (l *List) InvalidatePriority(c *Contact) {
	if c != nil {
		c.priorityValid = false
	}
}

// PriorityBuddy returns the buddy that best represents c: the best ranked
// presence among buddies on connected accounts, or among all buddies when
// none is connected. Ties go to the earlier buddy unless the list was
// made with WithLastMatch.
func (l *List) PriorityBuddy(c *Contact) *Buddy {
	if c == nil {
		return nil
	}
	if !c.priorityValid {
		l.computePriority(c)
	}
	b, _ := l.lookup(c.priority).(*Buddy)
	return b
}

func (l *List) computePriority(c *Contact) {
	var best *Buddy
	pick := func(connectedOnly bool) {
		for _, b := range c.Buddies() {
			if connectedOnly && !b.account.IsConnected() {
				continue
			}
			if best == nil {
				best = b
				continue
			}
			cmp := l.ranker.ComparePresence(b.presence, best.presence)
			if cmp < 0 || (cmp == 0 && l.lastMatch) {
				best = b
			}
		}
	}
	pick(true)
	if best == nil {
		pick(false)
	}

	c.priority = 0
	if best != nil {
		c.priority = best.id
	}
	c.priorityValid = true
}
