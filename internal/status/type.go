// Package status models the statuses a protocol supports, the statuses an
// account, buddy or conversation currently has, and how two presences rank
// against each other.
package status

import (
	"github.com/meszmate/buddylist/internal/value"
)

// Primitive is the protocol-independent category of a status
type Primitive int

const (
	PrimitiveUnset Primitive = iota
	PrimitiveOffline
	PrimitiveAvailable
	PrimitiveUnavailable
	PrimitiveInvisible
	PrimitiveAway
	PrimitiveExtendedAway
	PrimitiveMobile
	PrimitiveTune

	numPrimitives
)

var primitives = [numPrimitives]struct{ id, name string }{
	PrimitiveUnset:        {"unset", "Unset"},
	PrimitiveOffline:      {"offline", "Offline"},
	PrimitiveAvailable:    {"available", "Available"},
	PrimitiveUnavailable:  {"unavailable", "Do not disturb"},
	PrimitiveInvisible:    {"invisible", "Invisible"},
	PrimitiveAway:         {"away", "Away"},
	PrimitiveExtendedAway: {"extended_away", "Extended away"},
	PrimitiveMobile:       {"mobile", "Mobile"},
	PrimitiveTune:         {"tune", "Listening to music"},
}

// ID returns the stable identifier of the primitive
func (p Primitive) ID() string {
	if p < 0 || p >= numPrimitives {
		return primitives[PrimitiveUnset].id
	}
	return primitives[p].id
}

// Name returns the display name of the primitive
func (p Primitive) Name() string {
	if p < 0 || p >= numPrimitives {
		return primitives[PrimitiveUnset].name
	}
	return primitives[p].name
}

// PrimitiveFromID looks a primitive up by its identifier
func PrimitiveFromID(id string) Primitive {
	for p := range numPrimitives {
		if primitives[p].id == id {
			return p
		}
	}
	return PrimitiveUnset
}

// Attr describes one attribute a status of some type carries
type Attr struct {
	ID      string
	Name    string
	Default value.Value
}

// Type is a status a protocol supports, e.g. "away" with a message
type Type struct {
	Primitive    Primitive
	ID           string
	Name         string
	PrimaryAttr  string
	Saveable     bool
	UserSettable bool
	Independent  bool
	Attrs        []*Attr
}

// NewType creates a status type. Empty id or name fall back to those of
// the primitive.
func NewType(primitive Primitive, id, name string, saveable, userSettable, independent bool) *Type {
	if id == "" {
		id = primitive.ID()
	}
	if name == "" {
		name = primitive.Name()
	}
	return &Type{
		Primitive:    primitive,
		ID:           id,
		Name:         name,
		Saveable:     saveable,
		UserSettable: userSettable,
		Independent:  independent,
	}
}

// WithAttr appends an attribute and returns t for chaining
func (t *Type) WithAttr(id, name string, def value.Value) *Type {
	t.Attrs = append(t.Attrs, &Attr{ID: id, Name: name, Default: def})
	return t
}

// WithPrimary sets the primary attribute id and returns t
func (t *Type) WithPrimary(id string) *Type {
	t.PrimaryAttr = id
	return t
}

// Attr returns the attribute with the given id, or nil
func (t *Type) Attr(id string) *Attr {
	for _, a := range t.Attrs {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// IsExclusive reports whether statuses of this type exclude each other
func (t *Type) IsExclusive() bool { return !t.Independent }

// IsAvailable reports whether the type means "available"
func (t *Type) IsAvailable() bool { return t.Primitive == PrimitiveAvailable }

// FindTypeByID returns the type with the given id, or nil
func FindTypeByID(types []*Type, id string) *Type {
	for _, t := range types {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// FindTypeByPrimitive returns the first type with the given primitive
func FindTypeByPrimitive(types []*Type, p Primitive) *Type {
	for _, t := range types {
		if t.Primitive == p {
			return t
		}
	}
	return nil
}

// DefaultTypes returns the catalog used by protocols that have no special
// needs.
func DefaultTypes() []*Type {
	return []*Type{
		NewType(PrimitiveOffline, "", "", true, true, false),
		NewType(PrimitiveAvailable, "", "", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		NewType(PrimitiveAway, "", "", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		NewType(PrimitiveExtendedAway, "", "", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		NewType(PrimitiveUnavailable, "", "", true, true, false).
			WithAttr("message", "Message", value.String("")).WithPrimary("message"),
		NewType(PrimitiveInvisible, "", "", true, true, false),
		NewType(PrimitiveMobile, "", "", false, false, true),
		NewType(PrimitiveTune, "", "", false, false, true).
			WithAttr("artist", "Artist", value.String("")).
			WithAttr("title", "Title", value.String("")),
	}
}
