package blist

import (
	"sort"

	"github.com/meszmate/buddylist/internal/value"
)

// NodeID addresses a node in the list arena. Zero means "no node".
type NodeID uint64

// Kind is the variant of a node
type Kind int

const (
	KindGroup Kind = iota + 1
	KindContact
	KindChat
	KindBuddy
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindContact:
		return "contact"
	case KindChat:
		return "chat"
	case KindBuddy:
		return "buddy"
	default:
		return "unknown"
	}
}

// Flags are per-node behaviour bits
type Flags int

// FlagNoSave keeps a node out of blist.xml
const FlagNoSave Flags = 1

// Node is a group, contact, chat or buddy
type Node interface {
	ID() NodeID
	Kind() Kind
	Parent() Node
	Next() Node
	Prev() Node
	FirstChild() Node
	Children() []Node
	Flags() Flags
	SetFlags(f Flags)

	Setting(name string) (value.Value, bool)
	SettingNames() []string
	SetSetting(name string, v value.Value)
	RemoveSetting(name string)
	GetInt(name string, def int) int
	GetString(name, def string) string
	GetBool(name string, def bool) bool
	SetInt(name string, v int)
	SetString(name, v string)
	SetBool(name string, v bool)

	base() *node
}

// node holds what every variant shares: its place in the tree and its
// settings
type node struct {
	id       NodeID
	kind     Kind
	list     *List
	parent   NodeID
	prev     NodeID
	next     NodeID
	child    NodeID
	flags    Flags
	settings map[string]value.Value
}

func (l *List) initNode(n *node, kind Kind) {
	l.nextID++
	n.id = l.nextID
	n.kind = kind
	n.list = l
	n.settings = make(map[string]value.Value)
}

// ID returns the arena id of the node
func (n *node) ID() NodeID { return n.id }

// Kind returns the variant of the node
func (n *node) Kind() Kind { return n.kind }

// Parent returns the parent node, nil for groups and unlinked nodes
func (n *node) Parent() Node { return n.list.lookup(n.parent) }

// Next returns the next sibling
func (n *node) Next() Node { return n.list.lookup(n.next) }

// Prev returns the previous sibling
func (n *node) Prev() Node { return n.list.lookup(n.prev) }

// FirstChild returns the first child
func (n *node) FirstChild() Node { return n.list.lookup(n.child) }

// Children returns the children in order
func (n *node) Children() []Node {
	var out []Node
	for id := n.child; id != 0; {
		c := n.list.lookup(id)
		if c == nil {
			break
		}
		out = append(out, c)
		id = c.base().next
	}
	return out
}

func (n *node) lastChild() NodeID {
	id := n.child
	for id != 0 {
		next := n.list.lookup(id).base().next
		if next == 0 {
			return id
		}
		id = next
	}
	return 0
}

// Flags returns the node flags
func (n *node) Flags() Flags { return n.flags }

// SetFlags replaces the node flags
func (n *node) SetFlags(f Flags) { n.flags = f }

// Setting returns a raw node setting
func (n *node) Setting(name string) (value.Value, bool) {
	v, ok := n.settings[name]
	return v, ok
}

// SettingNames returns the setting names, sorted
func (n *node) SettingNames() []string {
	names := make([]string, 0, len(n.settings))
	for k := range n.settings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetSetting stores a raw setting and schedules a save
func (n *node) SetSetting(name string, v value.Value) {
	n.settings[name] = v
	n.list.scheduleSave()
}

// RemoveSetting deletes a setting and schedules a save
func (n *node) RemoveSetting(name string) {
	if _, ok := n.settings[name]; !ok {
		return
	}
	delete(n.settings, name)
	n.list.scheduleSave()
}

// GetInt returns an int setting or def. It panics when the setting holds
// another kind.
func (n *node) GetInt(name string, def int) int {
	v, ok := n.settings[name]
	if !ok {
		return def
	}
	return v.AsInt()
}

// GetString returns a string setting or def
func (n *node) GetString(name, def string) string {
	v, ok := n.settings[name]
	if !ok {
		return def
	}
	return v.AsString()
}

// GetBool returns a bool setting or def
func (n *node) GetBool(name string, def bool) bool {
	v, ok := n.settings[name]
	if !ok {
		return def
	}
	return v.AsBool()
}

// SetInt stores an int setting
func (n *node) SetInt(name string, v int) { n.SetSetting(name, value.Int(v)) }

// SetString stores a string setting
func (n *node) SetString(name, v string) { n.SetSetting(name, value.String(v)) }

// SetBool stores a bool setting
func (n *node) SetBool(name string, v bool) { n.SetSetting(name, value.Bool(v)) }

func isNil(n Node) bool {
	return n == nil || n.base() == nil
}

// unlinkSiblings takes n out of its parent's child chain, or out of the
// group chain when it is a group
func (l *List) unlinkSiblings(n *node) {
	if n.prev != 0 {
		l.lookup(n.prev).base().next = n.next
	}
	if n.next != 0 {
		l.lookup(n.next).base().prev = n.prev
	}
	if n.parent != 0 {
		if p := l.lookup(n.parent).base(); p.child == n.id {
			p.child = n.next
		}
	} else if l.root == n.id {
		l.root = n.next
	}
	n.parent, n.prev, n.next = 0, 0, 0
}

// linkAfter inserts n under parent after sibling, or first when after is 0
func (l *List) linkAfter(n *node, parent, after NodeID) {
	n.parent = parent
	if after != 0 {
		a := l.lookup(after).base()
		n.prev = after
		n.next = a.next
		if a.next != 0 {
			l.lookup(a.next).base().prev = n.id
		}
		a.next = n.id
		return
	}

	n.prev = 0
	if parent != 0 {
		p := l.lookup(parent).base()
		n.next = p.child
		p.child = n.id
	} else {
		n.next = l.root
		l.root = n.id
	}
	if n.next != 0 {
		l.lookup(n.next).base().prev = n.id
	}
}
