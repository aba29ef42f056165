package status

import (
	"errors"
	"fmt"

	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/value"
)

var logger = logging.Component("status")

var (
	// ErrUnknownStatus is returned when a presence has no status with the
	// requested id
	ErrUnknownStatus = errors.New("unknown status")

	// ErrExclusiveDeactivate is returned when an exclusive status is
	// deactivated directly instead of by activating a sibling
	ErrExclusiveDeactivate = errors.New("cannot deactivate an exclusive status")
)

// Status is a Type instantiated within one presence
type Status struct {
	typ      *Type
	presence *Presence
	active   bool
	attrs    map[string]value.Value
}

func newStatus(t *Type, p *Presence) *Status {
	s := &Status{
		typ:      t,
		presence: p,
		attrs:    make(map[string]value.Value, len(t.Attrs)),
	}
	for _, a := range t.Attrs {
		s.attrs[a.ID] = a.Default
	}
	return s
}

// Type returns the status type
func (s *Status) Type() *Type { return s.typ }

// Presence returns the presence the status belongs to
func (s *Status) Presence() *Presence { return s.presence }

// ID returns the status type id
func (s *Status) ID() string { return s.typ.ID }

// Name returns the status type name
func (s *Status) Name() string { return s.typ.Name }

// Primitive returns the status type primitive
func (s *Status) Primitive() Primitive { return s.typ.Primitive }

// IsActive reports whether the status is active
func (s *Status) IsActive() bool { return s.active }

// IsExclusive reports whether the status excludes its siblings
func (s *Status) IsExclusive() bool { return s.typ.IsExclusive() }

// IsIndependent reports whether the status can be toggled on its own
func (s *Status) IsIndependent() bool { return s.typ.Independent }

// IsAvailable reports whether the status is of the available primitive
func (s *Status) IsAvailable() bool { return s.typ.IsAvailable() }

// IsOnline reports whether the status means the entity is signed on. A nil
// status is offline.
func (s *Status) IsOnline() bool {
	if s == nil {
		return false
	}
	p := s.typ.Primitive
	return p != PrimitiveUnset && p != PrimitiveOffline
}

// Attr returns the current value of an attribute. The zero Value is
// returned for ids the type does not define.
func (s *Status) Attr(id string) value.Value { return s.attrs[id] }

// AttrString returns a string attribute, or "" when it is not set
func (s *Status) AttrString(id string) string {
	v, ok := s.attrs[id]
	if !ok || v.Kind() != value.KindString {
		return ""
	}
	return v.AsString()
}

// AttrInt returns an int attribute, or 0 when it is not set
func (s *Status) AttrInt(id string) int {
	v, ok := s.attrs[id]
	if !ok || v.Kind() != value.KindInt {
		return 0
	}
	return v.AsInt()
}

// AttrBool returns a bool attribute, or false when it is not set
func (s *Status) AttrBool(id string) bool {
	v, ok := s.attrs[id]
	if !ok || v.Kind() != value.KindBool {
		return false
	}
	return v.AsBool()
}

// Attrs returns a copy of the current attribute values
func (s *Status) Attrs() map[string]value.Value {
	out := make(map[string]value.Value, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// SetActive changes the active flag and attributes of the status. Supplied
// attributes are applied when their kind matches the declaration; every
// declared attribute that is not supplied is reset to its default. Nothing
// is notified when nothing changed.
func (s *Status) SetActive(active bool, attrs map[string]value.Value) error {
	if !active && s.IsExclusive() {
		logger.Error("Cannot deactivate an exclusive status (%s)", s.ID())
		return fmt.Errorf("%w: %s", ErrExclusiveDeactivate, s.ID())
	}

	changed := s.active != active
	s.active = active

	for id, v := range attrs {
		attr := s.typ.Attr(id)
		if attr == nil {
			logger.Warn("The attribute %q on the status %q is not supported", id, s.typ.Name)
			continue
		}
		if v.Kind() != attr.Default.Kind() {
			logger.Warn("The attribute %q on the status %q wants %s, got %s", id, s.typ.Name, attr.Default.Kind(), v.Kind())
			continue
		}
		if !s.attrs[id].Equal(v) {
			s.attrs[id] = v
			changed = true
		}
	}

	for _, attr := range s.typ.Attrs {
		if v, ok := attrs[attr.ID]; ok && v.Kind() == attr.Default.Kind() {
			continue
		}
		if !s.attrs[attr.ID].Equal(attr.Default) {
			s.attrs[attr.ID] = attr.Default
			changed = true
		}
	}

	if !changed {
		return nil
	}

	s.presence.statusChanged(s)
	return nil
}
