package xmlstore

import (
	"sort"
	"strconv"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/blist"
	"github.com/meszmate/buddylist/internal/xmlnode"
)

// serverAliasSetting carries a buddy's server alias in blist.xml
const serverAliasSetting = "servernick"

func isServerAlias(name string) bool { return name == serverAliasSetting }

func saved(n blist.Node) bool { return n.Flags()&blist.FlagNoSave == 0 }

func encodeBlist(l *blist.List, store *account.Store) *xmlnode.Node {
	root := xmlnode.New("gaim")
	root.SetAttr("version", "1.0")

	bn := root.NewChild("blist")
	for _, g := range l.Groups() {
		if saved(g) {
			bn.AddChild(encodeGroup(g))
		}
	}

	pn := root.NewChild("privacy")
	for _, a := range store.Accounts() {
		pn.AddChild(encodePrivacy(a))
	}
	return root
}

func encodeGroup(g *blist.Group) *xmlnode.Node {
	n := xmlnode.New("group")
	n.SetAttr("name", g.Name())
	encodeSettings(n, g, nil)

	for _, child := range g.Children() {
		if !saved(child) {
			continue
		}
		switch c := child.(type) {
		case *blist.Contact:
			if cn := encodeContact(c); cn != nil {
				n.AddChild(cn)
			}
		case *blist.Chat:
			n.AddChild(encodeChat(c))
		}
	}
	return n
}

// encodeContact returns nil for a contact with no saved buddies
func encodeContact(c *blist.Contact) *xmlnode.Node {
	n := xmlnode.New("contact")
	if c.Alias() != "" {
		n.SetAttr("alias", c.Alias())
	}

	buddies := 0
	for _, b := range c.Buddies() {
		if !saved(b) {
			continue
		}
		n.AddChild(encodeBuddy(b))
		buddies++
	}
	if buddies == 0 {
		return nil
	}
	encodeSettings(n, c, nil)
	return n
}

func encodeBuddy(b *blist.Buddy) *xmlnode.Node {
	n := xmlnode.New("buddy")
	n.SetAttr("account", b.Account().Username())
	n.SetAttr("proto", b.Account().ProtocolID())
	n.NewChild("name").InsertData(b.Name())
	if b.Alias() != "" {
		n.NewChild("alias").InsertData(b.Alias())
	}
	encodeSettings(n, b, isServerAlias)
	if b.ServerAlias() != "" {
		sn := n.NewChild("setting")
		sn.SetAttr("name", serverAliasSetting)
		sn.SetAttr("type", "string")
		sn.InsertData(b.ServerAlias())
	}
	return n
}

func encodeChat(ch *blist.Chat) *xmlnode.Node {
	n := xmlnode.New("chat")
	n.SetAttr("proto", ch.Account().ProtocolID())
	n.SetAttr("account", ch.Account().Username())
	if ch.Alias() != "" {
		n.NewChild("alias").InsertData(ch.Alias())
	}

	components := ch.Components()
	names := make([]string, 0, len(components))
	for k := range components {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		cn := n.NewChild("component")
		cn.SetAttr("name", k)
		cn.InsertData(components[k])
	}

	encodeSettings(n, ch, nil)
	return n
}

func encodePrivacy(a *account.Account) *xmlnode.Node {
	n := xmlnode.New("account")
	n.SetAttr("proto", a.ProtocolID())
	n.SetAttr("name", a.Username())
	n.SetAttr("mode", strconv.Itoa(int(a.PrivacyMode())))
	for _, who := range a.Permit() {
		n.NewChild("permit").InsertData(who)
	}
	for _, who := range a.Deny() {
		n.NewChild("block").InsertData(who)
	}
	return n
}

// decodeBlist rebuilds the tree and the privacy lists from root. Buddies
// and chats of unknown accounts are dropped.
func decodeBlist(root *xmlnode.Node, l *blist.List, store *account.Store) {
	if bn := root.Child("blist"); bn != nil {
		for _, gn := range bn.ChildrenNamed("group") {
			decodeGroup(gn, l, store)
		}
	}
	if pn := root.Child("privacy"); pn != nil {
		for _, an := range pn.ChildrenNamed("account") {
			decodePrivacy(an, store)
		}
	}
}

func decodeGroup(n *xmlnode.Node, l *blist.List, store *account.Store) {
	name := n.Attr("name")
	if name == "" {
		name = blist.DefaultGroup
	}
	g := l.NewGroup(name)
	var last *blist.Group
	if groups := l.Groups(); len(groups) > 0 {
		last = groups[len(groups)-1]
	}
	l.AddGroup(g, last)

	for _, c := range n.Elements() {
		switch c.Name {
		case "setting":
			if key, v, ok := decodeSetting(c); ok {
				g.SetSetting(key, v)
			}
		case "contact", "person":
			decodeContact(c, g, l, store)
		case "chat":
			decodeChat(c, g, l, store)
		}
	}
}

func decodeContact(n *xmlnode.Node, g *blist.Group, l *blist.List, store *account.Store) {
	c := l.NewContact()
	if alias := n.Attr("alias"); alias != "" {
		l.AliasContact(c, alias)
	}

	var last *blist.Buddy
	for _, bn := range n.ChildrenNamed("buddy") {
		b := decodeBuddy(bn, l, store)
		if b == nil {
			continue
		}
		if last == nil {
			l.AddBuddy(b, c, g, nil)
		} else {
			l.AddBuddy(b, nil, nil, last)
		}
		last = b
	}
	if last == nil {
		return
	}

	for _, sn := range n.ChildrenNamed("setting") {
		if key, v, ok := decodeSetting(sn); ok {
			c.SetSetting(key, v)
		}
	}
}

func decodeBuddy(n *xmlnode.Node, l *blist.List, store *account.Store) *blist.Buddy {
	acct := n.Attr("account")
	proto := n.Attr("proto")
	if proto == "" {
		proto = n.Attr("protocol")
	}
	name := n.ChildData("name")
	if acct == "" || proto == "" || name == "" {
		logger.Warn("Skipping buddy without account, protocol or name")
		return nil
	}
	a := store.Find(acct, proto)
	if a == nil {
		logger.Warn("Skipping buddy %s of unknown account %s (%s)", name, acct, proto)
		return nil
	}

	b := l.NewBuddy(a, name, n.ChildData("alias"))
	for _, sn := range n.ChildrenNamed("setting") {
		key, v, ok := decodeSetting(sn)
		if !ok {
			continue
		}
		if isServerAlias(key) {
			l.ServerAliasBuddy(b, v.Text())
			continue
		}
		b.SetSetting(key, v)
	}
	return b
}

func decodeChat(n *xmlnode.Node, g *blist.Group, l *blist.List, store *account.Store) {
	acct := n.Attr("account")
	proto := n.Attr("proto")
	if proto == "" {
		proto = n.Attr("protocol")
	}
	a := store.Find(acct, proto)
	if a == nil {
		logger.Warn("Skipping chat of unknown account %s (%s)", acct, proto)
		return
	}

	components := make(map[string]string)
	for _, cn := range n.ChildrenNamed("component") {
		if key := cn.Attr("name"); key != "" {
			components[key] = cn.Data()
		}
	}

	ch := l.NewChat(a, n.ChildData("alias"), components)
	for _, sn := range n.ChildrenNamed("setting") {
		if key, v, ok := decodeSetting(sn); ok {
			ch.SetSetting(key, v)
		}
	}

	var after blist.Node
	if children := g.Children(); len(children) > 0 {
		after = children[len(children)-1]
	}
	l.AddChat(ch, g, after)
}

func decodePrivacy(n *xmlnode.Node, store *account.Store) {
	a := store.Find(n.Attr("name"), n.Attr("proto"))
	if a == nil {
		logger.Warn("Skipping privacy of unknown account %s (%s)", n.Attr("name"), n.Attr("proto"))
		return
	}

	if raw := n.Attr("mode"); raw != "" {
		mode, err := strconv.Atoi(raw)
		if err != nil || !account.PrivacyMode(mode).Valid() {
			logger.Warn("Skipping privacy mode %q of %s", raw, a.Username())
		} else {
			a.SetPrivacyMode(account.PrivacyMode(mode))
		}
	}
	for _, c := range n.ChildrenNamed("permit") {
		a.AddPermit(c.Data())
	}
	for _, c := range n.ChildrenNamed("block") {
		a.AddDeny(c.Data())
	}
}
