package prpl

import (
	"sync"

	"mellium.im/xmpp/jid"
)

// Show represents the presence show state
type Show string

const (
	ShowOnline Show = ""
	ShowAway   Show = "away"
	ShowChat   Show = "chat"
	ShowDND    Show = "dnd"
	ShowXA     Show = "xa"
)

// StatusID returns the id of the status type a show maps to
func StatusID(show Show) string {
	switch show {
	case ShowAway:
		return "away"
	case ShowXA:
		return "xa"
	case ShowDND:
		return "dnd"
	default:
		return "available"
	}
}

// Resource is the presence of one connected resource of a contact
type Resource struct {
	JID      jid.JID
	Show     Show
	Status   string
	Priority int
}

// resources tracks the online resources of every contact, by bare JID
type resources struct {
	mu       sync.RWMutex
	statuses map[string]map[string]*Resource
}

func newResources() *resources {
	return &resources{
		statuses: make(map[string]map[string]*Resource),
	}
}

func (r *resources) set(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bare := res.JID.Bare().String()
	if r.statuses[bare] == nil {
		r.statuses[bare] = make(map[string]*Resource)
	}
	r.statuses[bare][res.JID.Resourcepart()] = &res
}

// remove drops one resource, or all of them for a bare JID
func (r *resources) remove(j jid.JID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bare := j.Bare().String()
	resource := j.Resourcepart()

	if resource == "" {
		delete(r.statuses, bare)
	} else if r.statuses[bare] != nil {
		delete(r.statuses[bare], resource)
		if len(r.statuses[bare]) == 0 {
			delete(r.statuses, bare)
		}
	}
}

// best returns the highest priority resource of a bare JID. Equal
// priorities go to the resource that sorts first.
func (r *resources) best(j jid.JID) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Resource
	for name, res := range r.statuses[j.Bare().String()] {
		if best == nil || res.Priority > best.Priority ||
			(res.Priority == best.Priority && name < best.JID.Resourcepart()) {
			best = res
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

func (r *resources) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = make(map[string]map[string]*Resource)
}
