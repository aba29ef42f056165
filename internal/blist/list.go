// Package blist is the buddy list: groups holding contacts and chats,
// contacts holding buddies, plus the index and counters kept in step with
// every change to that tree.
package blist

import (
	"errors"
	"time"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/buddyicon"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/notify"
	"github.com/meszmate/buddylist/internal/status"
)

var logger = logging.Component("blist")

// ErrGroupInUse is returned when removing a group that still has members
// on connected accounts
var ErrGroupInUse = errors.New("group has members on connected accounts")

const (
	// DefaultGroup receives buddies added without a group
	DefaultGroup = "Buddies"
	// ChatsGroup receives chats added without a group
	ChatsGroup = "Chats"
)

// Saver is scheduled whenever persisted list state changes
type Saver interface {
	Schedule()
}

// UIOps are the optional callbacks of a rendering layer
type UIOps struct {
	NewList func(l *List)
	NewNode func(n Node)
	Update  func(n Node)
	Remove  func(n Node)
}

// AccountSource lists the known accounts
type AccountSource interface {
	Accounts() []*account.Account
}

// Protocol capabilities the list uses on connected accounts. A protocol
// implements the ones it supports.
type (
	BuddyAdder interface {
		AddBuddy(a *account.Account, b *Buddy, g *Group)
	}
	BuddyRemover interface {
		RemoveBuddy(a *account.Account, b *Buddy, g *Group)
	}
	BuddyMover interface {
		MoveBuddy(a *account.Account, who, oldGroup, newGroup string)
	}
	GroupRenamer interface {
		RenameGroup(a *account.Account, oldName string, g *Group, moved []*Buddy)
	}
	GroupRemover interface {
		RemoveGroup(a *account.Account, g *Group)
	}
	// ChatKeyer names the chat component that identifies a room
	ChatKeyer interface {
		ChatKey() string
	}
)

type hashKey struct {
	name    string
	account *account.Account
	group   NodeID
}

type presenceKey struct {
	account *account.Account
	name    string
}

type presenceEntry struct {
	key      presenceKey
	presence *status.Presence
	refs     int
}

// List is the buddy list tree. It is not safe for concurrent use.
type List struct {
	nextID NodeID
	nodes  map[NodeID]Node
	root   NodeID
	groups map[string]NodeID

	buddies    map[hashKey][]NodeID
	presences  map[presenceKey]*presenceEntry
	byPresence map[*status.Presence]*presenceEntry

	ranker    *status.Ranker
	lastMatch bool

	saver    Saver
	ui       *UIOps
	bus      *events.EventBus
	notifier notify.Notifier
	icons    *buddyicon.Cache
	accounts AccountSource
	now      func() time.Time
}

// Option configures a List
type Option func(*List)

// WithSaver sets the saver scheduled on every change
func WithSaver(s Saver) Option { return func(l *List) { l.saver = s } }

// WithUIOps sets the rendering callbacks
func WithUIOps(ops *UIOps) Option { return func(l *List) { l.ui = ops } }

// WithBus sets the bus list events are published on
func WithBus(bus *events.EventBus) Option { return func(l *List) { l.bus = bus } }

// WithNotifier sets the collaborator refusals are reported to
func WithNotifier(n notify.Notifier) Option { return func(l *List) { l.notifier = n } }

// WithRanker sets the presence ranking used to pick priority buddies
func WithRanker(r *status.Ranker) Option { return func(l *List) { l.ranker = r } }

// WithLastMatch makes the later of two equally ranked buddies the
// priority buddy
func WithLastMatch(lastMatch bool) Option { return func(l *List) { l.lastMatch = lastMatch } }

// WithIcons sets the icon cache buddies share icons through
func WithIcons(c *buddyicon.Cache) Option { return func(l *List) { l.icons = c } }

// WithAccounts sets where the list finds the known accounts
func WithAccounts(src AccountSource) Option { return func(l *List) { l.accounts = src } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option { return func(l *List) { l.now = now } }

// New creates an empty list
func New(opts ...Option) *List {
	l := &List{
		nodes:      make(map[NodeID]Node),
		groups:     make(map[string]NodeID),
		buddies:    make(map[hashKey][]NodeID),
		presences:  make(map[presenceKey]*presenceEntry),
		byPresence: make(map[*status.Presence]*presenceEntry),
		ranker:     status.NewRanker(status.DefaultScores()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.icons != nil {
		l.icons.SetObserver(l)
	}
	if l.ui != nil && l.ui.NewList != nil {
		l.ui.NewList(l)
	}
	return l
}

// SetSaver replaces the saver
func (l *List) SetSaver(s Saver) { l.saver = s }

// Ranker returns the presence ranking in use
func (l *List) Ranker() *status.Ranker { return l.ranker }

// Icons returns the icon cache, nil if the list has none
func (l *List) Icons() *buddyicon.Cache { return l.icons }

func (l *List) lookup(id NodeID) Node {
	if id == 0 {
		return nil
	}
	return l.nodes[id]
}

// linked reports whether n is part of the tree
func (l *List) linked(n Node) bool {
	if isNil(n) {
		return false
	}
	return l.nodes[n.ID()] == n
}

func (l *List) scheduleSave() {
	if l != nil && l.saver != nil {
		l.saver.Schedule()
	}
}

func (l *List) uiNewNode(n Node) {
	if l.ui != nil && l.ui.NewNode != nil {
		l.ui.NewNode(n)
	}
}

func (l *List) uiUpdate(n Node) {
	if l.ui != nil && l.ui.Update != nil {
		l.ui.Update(n)
	}
}

func (l *List) uiRemove(n Node) {
	if l.ui != nil && l.ui.Remove != nil {
		l.ui.Remove(n)
	}
}

func (l *List) connectedAccounts() []*account.Account {
	if l.accounts == nil {
		return nil
	}
	var out []*account.Account
	for _, a := range l.accounts.Accounts() {
		if a.IsConnected() {
			out = append(out, a)
		}
	}
	return out
}

// Root returns the first group
func (l *List) Root() *Group {
	g, _ := l.lookup(l.root).(*Group)
	return g
}

// Groups returns the groups in order
func (l *List) Groups() []*Group {
	var out []*Group
	for id := l.root; id != 0; {
		g := l.lookup(id).(*Group)
		out = append(out, g)
		id = g.next
	}
	return out
}

func (l *List) lastGroup() *Group {
	var last *Group
	for id := l.root; id != 0; {
		last = l.lookup(id).(*Group)
		id = last.next
	}
	return last
}

// Node returns the linked node with the given id, or nil
func (l *List) Node(id NodeID) Node { return l.lookup(id) }

// NextNode returns the node after n in a depth-first walk of the tree.
// Unless offline is set, buddies that are not online are skipped, as are
// contacts and groups with nothing online and chats on disconnected
// accounts.
func (l *List) NextNode(n Node, offline bool) Node {
	for {
		n = l.walk(n)
		if isNil(n) {
			return nil
		}
		if offline || l.visible(n) {
			return n
		}
	}
}

func (l *List) walk(n Node) Node {
	if isNil(n) {
		return l.lookup(l.root)
	}
	b := n.base()
	if b.child != 0 {
		return l.lookup(b.child)
	}
	for {
		if b.next != 0 {
			return l.lookup(b.next)
		}
		p := l.lookup(b.parent)
		if p == nil {
			return nil
		}
		b = p.base()
	}
}

func (l *List) visible(n Node) bool {
	switch n := n.(type) {
	case *Group:
		return n.online > 0 || (len(n.Chats()) > 0 && l.GroupOnAccount(n, nil))
	case *Contact:
		return n.online > 0
	case *Buddy:
		return n.account.IsConnected() && n.presence.IsOnline()
	case *Chat:
		return n.account.IsConnected()
	}
	return false
}

// Walk calls fn for every node in depth-first order
func (l *List) Walk(fn func(Node)) {
	for n := l.walk(nil); !isNil(n); n = l.walk(n) {
		fn(n)
	}
}
