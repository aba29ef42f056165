package prpl

import (
	"errors"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/status"
)

// GenericID is the protocol id of the generic protocol
const GenericID = "prpl-generic"

// Generic is a protocol for networks whose names only need case folding.
// It has no server roster, so the list keeps everything locally.
type Generic struct {
	id   string
	name string
}

// NewGeneric creates a generic protocol. Empty id and name default to
// GenericID and "Generic".
func NewGeneric(id, name string) *Generic {
	if id == "" {
		id = GenericID
	}
	if name == "" {
		name = "Generic"
	}
	return &Generic{id: id, name: name}
}

func (g *Generic) ID() string                       { return g.id }
func (g *Generic) Name() string                     { return g.name }
func (g *Generic) Capabilities() account.Capability { return account.OptPasswordOptional }

func (g *Generic) StatusTypes(*account.Account) []*status.Type { return status.DefaultTypes() }

func (g *Generic) Normalize(_ *account.Account, name string) string {
	return account.DefaultNormalize(name)
}

// Login accepts any account with a username
func (g *Generic) Login(a *account.Account) error {
	if a.Username() == "" {
		return errors.New("empty username")
	}
	return nil
}

func (g *Generic) Close(*account.Account) {}

// Builtin returns the protocols every roster registers
func Builtin(opts ...JabberOption) []account.Protocol {
	return []account.Protocol{NewJabber(opts...), NewGeneric("", "")}
}
