package blist

import (
	"fmt"
	"maps"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/events"
)

// Chat is a saved room on one account. Components are whatever the
// protocol needs to join it.
type Chat struct {
	node
	account    *account.Account
	alias      string
	components map[string]string
}

func (ch *Chat) base() *node {
	if ch == nil {
		return nil
	}
	return &ch.node
}

// Account returns the account the chat is on
func (ch *Chat) Account() *account.Account { return ch.account }

// Alias returns the chat alias
func (ch *Chat) Alias() string { return ch.alias }

// Components returns a copy of the join components
func (ch *Chat) Components() map[string]string { return maps.Clone(ch.components) }

// Component returns one join component
func (ch *Chat) Component(name string) string { return ch.components[name] }

// Group returns the group holding the chat
func (ch *Chat) Group() *Group {
	g, _ := ch.Parent().(*Group)
	return g
}

// Name returns the component that identifies the room
func (ch *Chat) Name() string { return ch.components[chatKey(ch.account)] }

// DisplayName returns the alias, or else the room name
func (ch *Chat) DisplayName() string {
	if ch.alias != "" {
		return ch.alias
	}
	return ch.Name()
}

func (ch *Chat) String() string { return fmt.Sprintf("chat %q", ch.Name()) }

func chatKey(a *account.Account) string {
	if k, ok := a.Protocol().(ChatKeyer); ok {
		return k.ChatKey()
	}
	return "name"
}

// NewChat creates an unlinked chat on a
func (l *List) NewChat(a *account.Account, alias string, components map[string]string) *Chat {
	if a == nil {
		panic("blist: NewChat with nil account")
	}
	if components == nil {
		components = make(map[string]string)
	}
	ch := &Chat{account: a, alias: alias, components: components}
	l.initNode(&ch.node, KindChat)
	l.uiNewNode(ch)
	return ch
}

// AddChat links ch into g after the contact or chat after, or first when
// after is nil. A non-nil after decides the group. Without either, ch goes
// to the chats group.
func (l *List) AddChat(ch *Chat, g *Group, after Node) {
	if ch == nil {
		panic("blist: AddChat with nil chat")
	}
	if Node(ch) == after {
		return
	}

	switch a := after.(type) {
	case *Contact, *Chat:
		if l.linked(a) {
			g = a.Parent().(*Group)
		} else {
			after = nil
		}
	case nil:
	default:
		after = nil
	}
	if g == nil {
		g = l.NewGroup(ChatsGroup)
	}
	l.ensureGroup(g)

	if l.linked(ch) {
		if ch.parent == g.id {
			if after == nil && g.child == ch.id {
				return
			}
			if after != nil && ch.prev == after.ID() {
				return
			}
		}
		l.unlinkSiblings(&ch.node)
		l.uiRemove(ch)
		l.uiNewNode(ch)
	} else {
		l.nodes[ch.id] = ch
	}

	var afterID NodeID
	if after != nil {
		afterID = after.ID()
	}
	l.linkAfter(&ch.node, g.id, afterID)

	l.scheduleSave()
	l.uiUpdate(ch)
}

// RemoveChat takes ch out of the list
func (l *List) RemoveChat(ch *Chat) {
	if !l.linked(ch) {
		return
	}
	l.unlinkSiblings(&ch.node)
	delete(l.nodes, ch.id)
	l.scheduleSave()
	l.uiRemove(ch)
}

// AliasChat sets the chat alias
func (l *List) AliasChat(ch *Chat, alias string) {
	if ch.alias == alias {
		return
	}
	old := ch.alias
	ch.alias = alias
	l.scheduleSave()
	l.uiUpdate(ch)
	l.bus.Emit(events.NodeAliased, Aliased{Node: ch, OldAlias: old})
}

// FindChat returns the chat on a connected account whose room name
// matches name, searching groups in order
func (l *List) FindChat(a *account.Account, name string) *Chat {
	if a == nil || !a.IsConnected() {
		return nil
	}
	want := a.Normalize(name)
	for _, g := range l.Groups() {
		for _, ch := range g.Chats() {
			if ch.account == a && a.Normalize(ch.Name()) == want {
				return ch
			}
		}
	}
	return nil
}
