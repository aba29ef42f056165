package blist

import (
	"slices"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/status"
)

// AddAccount counts a's buddies as current now that a is connected
func (l *List) AddAccount(a *account.Account) {
	for _, g := range l.Groups() {
		for _, n := range g.Children() {
			switch n := n.(type) {
			case *Contact:
				recount := false
				for _, b := range n.Buddies() {
					if b.account != a {
						continue
					}
					l.refreshCounts(b)
					l.uiUpdate(b)
					recount = true
				}
				if recount {
					l.InvalidatePriority(n)
					l.uiUpdate(n)
				}
			case *Chat:
				if n.account == a {
					l.uiUpdate(n)
				}
			}
		}
		l.uiUpdate(g)
	}
}

// RemoveAccount takes a's buddies out of the current and online counts
// now that a is disconnected. Buddies that were online get "last_seen"
// and their presences go offline.
func (l *List) RemoveAccount(a *account.Account) {
	var presences []*status.Presence
	now := int(l.now().Unix())

	for _, g := range l.Groups() {
		for _, n := range g.Children() {
			switch n := n.(type) {
			case *Contact:
				recount := false
				for _, b := range n.Buddies() {
					if b.account != a {
						continue
					}
					if b.presence.IsOnline() {
						b.SetInt("last_seen", now)
					}
					l.refreshCounts(b)
					if !slices.Contains(presences, b.presence) {
						presences = append(presences, b.presence)
					}
					recount = true
				}
				if recount {
					l.InvalidatePriority(n)
					l.uiUpdate(n)
				}
			case *Chat:
				if n.account == a {
					l.uiUpdate(n)
				}
			}
		}
		l.uiUpdate(g)
	}

	for _, p := range presences {
		if s := p.StatusByPrimitive(status.PrimitiveOffline); s != nil {
			_ = p.SwitchStatus(s.ID())
		}
	}
}

// RemoveAccountNodes removes every buddy and chat on a, for when a is
// deleted
func (l *List) RemoveAccountNodes(a *account.Account) {
	for _, g := range l.Groups() {
		for _, n := range g.Children() {
			switch n := n.(type) {
			case *Contact:
				for _, b := range n.Buddies() {
					if b.account == a {
						l.RemoveBuddy(b)
					}
				}
			case *Chat:
				if n.account == a {
					l.RemoveChat(n)
				}
			}
		}
	}
}
