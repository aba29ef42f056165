package account

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/meszmate/buddylist/internal/status"
)

// Capability is a protocol capability flag
type Capability int

const (
	// OptNoPassword means the protocol never asks for a password
	OptNoPassword Capability = 1 << iota
	// OptPasswordOptional means a password may be left empty
	OptPasswordOptional
)

// Protocol is the part of a protocol implementation the roster talks to.
// Network I/O happens behind Login and Close.
type Protocol interface {
	ID() string
	Name() string
	Capabilities() Capability
	StatusTypes(a *Account) []*status.Type
	Normalize(a *Account, name string) string
	Login(a *Account) error
	Close(a *Account)
}

// PasswordChanger is implemented by protocols that can change the server
// password
type PasswordChanger interface {
	ChangePassword(a *Account, old, new string) error
}

// IdleSetter is implemented by protocols that publish idleness. A zero
// time means not idle.
type IdleSetter interface {
	SetIdle(a *Account, since time.Time)
}

// StatusSetter is implemented by protocols that publish status changes of
// a connected account
type StatusSetter interface {
	SetStatus(a *Account, s *status.Status)
}

// DefaultNormalize canonicalizes a name for protocols that have no rules
// of their own: NFC composition followed by Unicode case folding.
func DefaultNormalize(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}

// Registry maps protocol ids to implementations
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Protocol
}

// NewRegistry creates a registry holding the given protocols
func NewRegistry(protocols ...Protocol) *Registry {
	r := &Registry{protocols: make(map[string]Protocol)}
	for _, p := range protocols {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a protocol
func (r *Registry) Register(p Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protocols[p.ID()] = p
}

// Find returns the protocol with the given id, or nil
func (r *Registry) Find(id string) Protocol {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.protocols[id]
}

// List returns every registered protocol sorted by id
func (r *Registry) List() []Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
