package prpl

import (
	"slices"
	"sort"
	"sync"

	"mellium.im/xmpp/jid"
)

// Subscription represents the subscription state
type Subscription string

const (
	SubscriptionNone Subscription = "none"
	SubscriptionTo   Subscription = "to"
	SubscriptionFrom Subscription = "from"
	SubscriptionBoth Subscription = "both"
)

// Item represents a server-side roster item
type Item struct {
	JID          jid.JID
	Name         string
	Subscription Subscription
	Groups       []string
}

// Roster mirrors the server-side roster of one account
type Roster struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{
		items: make(map[string]*Item),
	}
}

// Set sets or updates a roster item
func (r *Roster) Set(item Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.Groups = slices.Clone(item.Groups)
	r.items[item.JID.Bare().String()] = &item
}

// Get returns a copy of the roster item for a JID, or nil
func (r *Roster) Get(j jid.JID) *Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item := r.items[j.Bare().String()]
	if item == nil {
		return nil
	}
	cp := *item
	cp.Groups = slices.Clone(item.Groups)
	return &cp
}

// Remove removes a roster item
func (r *Roster) Remove(j jid.JID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, j.Bare().String())
}

// AddToGroup puts j into group, creating the item if needed
func (r *Roster) AddToGroup(j jid.JID, name, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bare := j.Bare()
	item := r.items[bare.String()]
	if item == nil {
		item = &Item{JID: bare, Name: name, Subscription: SubscriptionNone}
		r.items[bare.String()] = item
	}
	if !slices.Contains(item.Groups, group) {
		item.Groups = append(item.Groups, group)
	}
}

// RemoveFromGroup takes j out of group. An item left without groups is
// removed.
func (r *Roster) RemoveFromGroup(j jid.JID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := j.Bare().String()
	item := r.items[key]
	if item == nil {
		return
	}
	item.Groups = slices.DeleteFunc(item.Groups, func(g string) bool { return g == group })
	if len(item.Groups) == 0 {
		delete(r.items, key)
	}
}

// MoveGroup replaces oldGroup with newGroup in j's groups
func (r *Roster) MoveGroup(j jid.JID, oldGroup, newGroup string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.items[j.Bare().String()]
	if item == nil {
		return
	}
	item.Groups = slices.DeleteFunc(item.Groups, func(g string) bool { return g == oldGroup })
	if !slices.Contains(item.Groups, newGroup) {
		item.Groups = append(item.Groups, newGroup)
	}
}

// All returns all roster items sorted by JID
func (r *Roster) All() []*Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].JID.String() < items[j].JID.String() })
	return items
}

// Count returns the number of roster items
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Groups returns all unique groups, sorted
func (r *Roster) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groupSet := make(map[string]bool)
	for _, item := range r.items {
		for _, group := range item.Groups {
			groupSet[group] = true
		}
	}

	groups := make([]string, 0, len(groupSet))
	for group := range groupSet {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// ByGroup returns items in a specific group
func (r *Roster) ByGroup(group string) []*Item {
	var items []*Item
	for _, item := range r.All() {
		if slices.Contains(item.Groups, group) {
			items = append(items, item)
		}
	}
	return items
}
