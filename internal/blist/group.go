package blist

import (
	"fmt"
	"slices"

	"github.com/meszmate/buddylist/internal/account"
)

// Group is a named top-level node holding contacts and chats
type Group struct {
	node
	name string
	counters
}

// counters are the membership sizes kept on groups and contacts
type counters struct {
	total   int
	current int
	online  int
}

// TotalSize returns the number of buddies below the node
func (c *counters) TotalSize() int { return c.total }

// CurrentSize returns the number of buddies whose account is connected
func (c *counters) CurrentSize() int { return c.current }

// OnlineSize returns the number of buddies that are online on a connected
// account
func (c *counters) OnlineSize() int { return c.online }

func (g *Group) base() *node {
	if g == nil {
		return nil
	}
	return &g.node
}

// Name returns the group name
func (g *Group) Name() string { return g.name }

// Contacts returns the contacts of the group in order
func (g *Group) Contacts() []*Contact {
	var out []*Contact
	for _, n := range g.Children() {
		if c, ok := n.(*Contact); ok {
			out = append(out, c)
		}
	}
	return out
}

// Chats returns the chats of the group in order
func (g *Group) Chats() []*Chat {
	var out []*Chat
	for _, n := range g.Children() {
		if c, ok := n.(*Chat); ok {
			out = append(out, c)
		}
	}
	return out
}

// Buddies returns every buddy of every contact in the group
func (g *Group) Buddies() []*Buddy {
	var out []*Buddy
	for _, c := range g.Contacts() {
		out = append(out, c.Buddies()...)
	}
	return out
}

func (g *Group) String() string { return fmt.Sprintf("group %q", g.name) }

// NewGroup returns the group called name, creating an unlinked one if the
// list has none. It returns nil for an empty name.
func (l *List) NewGroup(name string) *Group {
	if name == "" {
		return nil
	}
	if g := l.FindGroup(name); g != nil {
		return g
	}
	g := &Group{name: name}
	l.initNode(&g.node, KindGroup)
	l.uiNewNode(g)
	return g
}

// AddGroup links g into the list after the group after, or first when
// after is nil. A group already linked is moved.
func (l *List) AddGroup(g *Group, after *Group) {
	if g == nil {
		panic("blist: AddGroup with nil group")
	}
	if g == after {
		return
	}

	if l.linked(g) {
		if after == nil && l.root == g.id {
			return
		}
		if after != nil && g.prev == after.id {
			return
		}
		l.uiRemove(g)
		l.unlinkSiblings(&g.node)
	} else {
		l.nodes[g.id] = g
		l.groups[g.name] = g.id
	}

	var afterID NodeID
	if after != nil && l.linked(after) {
		afterID = after.id
	}
	l.linkAfter(&g.node, 0, afterID)

	l.scheduleSave()
	l.uiUpdate(g)
	for _, n := range g.Children() {
		l.uiUpdate(n)
	}
}

// ensureGroup links g at the end of the list if it is not linked yet
func (l *List) ensureGroup(g *Group) {
	if !l.linked(g) {
		l.AddGroup(g, l.lastGroup())
	}
}

// defaultGroup returns the group called name, linking it at the end of the
// list if needed
func (l *List) defaultGroup(name string) *Group {
	g := l.NewGroup(name)
	l.ensureGroup(g)
	return g
}

// RemoveGroup deletes a group with everything in it. It refuses, and tells
// the notifier, while any member belongs to a connected account.
func (l *List) RemoveGroup(g *Group) error {
	if !l.linked(g) {
		return nil
	}

	inUse := 0
	for _, n := range g.Children() {
		switch n := n.(type) {
		case *Contact:
			for _, b := range n.Buddies() {
				if b.account.IsConnected() {
					inUse++
				}
			}
		case *Chat:
			if n.account.IsConnected() {
				inUse++
			}
		}
	}
	if inUse > 0 {
		msg := fmt.Sprintf("%d members of group %s belong to connected accounts. The group was not removed.", inUse, g.name)
		logger.Warn("%s", msg)
		if l.notifier != nil {
			l.notifier.Error(g, "", "Group not removed", msg)
		}
		return fmt.Errorf("%w: %s", ErrGroupInUse, g.name)
	}

	for g.child != 0 {
		switch n := l.lookup(g.child).(type) {
		case *Contact:
			l.RemoveContact(n)
		case *Chat:
			l.RemoveChat(n)
		default:
			logger.Error("Unknown child type in group %s", g.name)
			l.unlinkSiblings(n.base())
		}
	}

	l.unlinkSiblings(&g.node)
	delete(l.nodes, g.id)
	delete(l.groups, g.name)
	l.scheduleSave()
	l.uiRemove(g)

	for _, a := range l.connectedAccounts() {
		if remover, ok := a.Protocol().(GroupRemover); ok {
			remover.RemoveGroup(a, g)
		}
	}
	return nil
}

// RenameGroup renames g. When another group already has the new name the
// two are merged: g's contacts and chats move one at a time into that
// group and g is removed. Connected accounts with buddies in the result
// are told, through GroupRenamer when the protocol has it, or else by
// removing and re-adding the moved buddies.
func (l *List) RenameGroup(g *Group, name string) {
	if g == nil || name == "" || name == g.name {
		return
	}

	var moved []*Buddy
	oldName := g.name

	if dest := l.FindGroup(name); dest != nil && dest != g {
		prev := Node(nil)
		if id := dest.lastChild(); id != 0 {
			prev = l.lookup(id)
		}
		for id := g.child; id != 0; {
			child := l.lookup(id)
			next := child.base().next
			switch c := child.(type) {
			case *Contact:
				l.AddContact(c, dest, prev)
				if l.linked(c) {
					moved = append(moved, c.Buddies()...)
					prev = c
				}
			case *Chat:
				l.AddChat(c, dest, prev)
				prev = c
			default:
				logger.Error("Unknown child type in group %s", g.name)
			}
			id = next
		}
		if err := l.RemoveGroup(g); err != nil {
			logger.Warn("Merged group %s could not be removed: %v", oldName, err)
		}
		g = dest
	} else {
		moved = g.Buddies()
		delete(l.groups, g.name)
		g.name = name
		if l.linked(g) {
			l.groups[name] = g.id
		}
	}

	l.scheduleSave()
	l.uiUpdate(g)

	for _, a := range l.GroupAccounts(g) {
		if !a.IsConnected() {
			continue
		}
		var buddies []*Buddy
		for _, b := range moved {
			if b.account == a && l.linked(b) {
				buddies = append(buddies, b)
			}
		}

		proto := a.Protocol()
		if renamer, ok := proto.(GroupRenamer); ok {
			renamer.RenameGroup(a, oldName, g, buddies)
			continue
		}
		remover, canRemove := proto.(BuddyRemover)
		adder, canAdd := proto.(BuddyAdder)
		if !canRemove || !canAdd {
			continue
		}
		for _, b := range buddies {
			remover.RemoveBuddy(a, b, b.Group())
		}
		for _, b := range buddies {
			adder.AddBuddy(a, b, b.Group())
		}
	}
}

// GroupAccounts returns the accounts that have a buddy or chat in g, in
// order of first appearance
func (l *List) GroupAccounts(g *Group) []*account.Account {
	var out []*account.Account
	for _, n := range g.Children() {
		switch n := n.(type) {
		case *Chat:
			if !slices.Contains(out, n.account) {
				out = append(out, n.account)
			}
		case *Contact:
			for _, b := range n.Buddies() {
				if !slices.Contains(out, b.account) {
					out = append(out, b.account)
				}
			}
		}
	}
	return out
}

// GroupOnAccount reports whether g has a buddy or chat on a. With a nil
// account it reports whether g has anything on a connected account.
func (l *List) GroupOnAccount(g *Group, a *account.Account) bool {
	for _, n := range g.Children() {
		switch n := n.(type) {
		case *Contact:
			if a == nil {
				for _, b := range n.Buddies() {
					if b.account.IsConnected() {
						return true
					}
				}
			} else if l.ContactOnAccount(n, a) {
				return true
			}
		case *Chat:
			if (a == nil && n.account.IsConnected()) || n.account == a {
				return true
			}
		}
	}
	return false
}
