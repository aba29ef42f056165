package blist

import (
	"slices"

	"github.com/meszmate/buddylist/internal/account"
)

func (l *List) hashKey(b *Buddy, group NodeID) hashKey {
	return hashKey{name: b.account.Normalize(b.name), account: b.account, group: group}
}

func (l *List) addHash(b *Buddy, group NodeID) {
	k := l.hashKey(b, group)
	l.buddies[k] = append(l.buddies[k], b.id)
}

func (l *List) removeHash(b *Buddy, group NodeID) {
	k := l.hashKey(b, group)
	ids := slices.DeleteFunc(l.buddies[k], func(id NodeID) bool { return id == b.id })
	if len(ids) == 0 {
		delete(l.buddies, k)
		return
	}
	l.buddies[k] = ids
}

func (l *List) moveOnServer(b *Buddy, from, to *Group) {
	if !b.account.IsConnected() {
		return
	}
	if mover, ok := b.account.Protocol().(BuddyMover); ok {
		mover.MoveBuddy(b.account, b.name, from.name, to.name)
	}
}

// FindGroup returns the linked group called name, or nil
func (l *List) FindGroup(name string) *Group {
	g, _ := l.lookup(l.groups[name]).(*Group)
	return g
}

// FindBuddy returns a buddy for name on a, from the first group that has
// one
func (l *List) FindBuddy(a *account.Account, name string) *Buddy {
	if a == nil || name == "" {
		return nil
	}
	n := a.Normalize(name)
	for id := l.root; id != 0; {
		g := l.lookup(id).(*Group)
		if ids := l.buddies[hashKey{name: n, account: a, group: g.id}]; len(ids) > 0 {
			return l.lookup(ids[0]).(*Buddy)
		}
		id = g.next
	}
	return nil
}

// FindBuddyInGroup returns a buddy for name on a in g. A nil group
// searches the whole list.
func (l *List) FindBuddyInGroup(a *account.Account, name string, g *Group) *Buddy {
	if g == nil {
		return l.FindBuddy(a, name)
	}
	if a == nil || name == "" {
		return nil
	}
	ids := l.buddies[hashKey{name: a.Normalize(name), account: a, group: g.id}]
	if len(ids) == 0 {
		return nil
	}
	return l.lookup(ids[0]).(*Buddy)
}

// FindBuddies returns every buddy for name on a, in list order. An empty
// name returns every buddy on a.
func (l *List) FindBuddies(a *account.Account, name string) []*Buddy {
	if a == nil {
		return nil
	}
	var out []*Buddy
	if name == "" {
		for _, g := range l.Groups() {
			for _, b := range g.Buddies() {
				if b.account == a {
					out = append(out, b)
				}
			}
		}
		return out
	}

	n := a.Normalize(name)
	for _, g := range l.Groups() {
		for _, id := range l.buddies[hashKey{name: n, account: a, group: g.id}] {
			out = append(out, l.lookup(id).(*Buddy))
		}
	}
	return out
}
