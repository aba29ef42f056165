package xmlstore

import (
	"strconv"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/value"
	"github.com/meszmate/buddylist/internal/xmlnode"
)

// settingHolder is anything with named typed settings
type settingHolder interface {
	SettingNames() []string
	Setting(name string) (value.Value, bool)
}

func encodeSettings(parent *xmlnode.Node, h settingHolder, skip func(string) bool) {
	for _, name := range h.SettingNames() {
		if skip != nil && skip(name) {
			continue
		}
		v, _ := h.Setting(name)
		parent.AddChild(encodeSetting(name, v))
	}
}

func encodeSetting(name string, v value.Value) *xmlnode.Node {
	n := xmlnode.New("setting")
	n.SetAttr("name", name)
	n.SetAttr("type", v.Kind().String())
	n.InsertData(v.Text())
	return n
}

// decodeSetting reads one <setting>. Entries without a name, with an
// unknown type or with an unparsable value are skipped.
func decodeSetting(n *xmlnode.Node) (string, value.Value, bool) {
	name := n.Attr("name")
	if name == "" {
		logger.Warn("Skipping setting without a name")
		return "", value.Value{}, false
	}
	kind, ok := value.ParseKind(n.Attr("type"))
	if !ok {
		logger.Warn("Skipping setting %s of unknown type %q", name, n.Attr("type"))
		return "", value.Value{}, false
	}
	v, err := value.Parse(kind, n.Data())
	if err != nil {
		logger.Warn("Skipping setting %s: %v", name, err)
		return "", value.Value{}, false
	}
	return name, v, true
}

func encodeAccounts(store *account.Store) *xmlnode.Node {
	root := xmlnode.New("account")
	root.SetAttr("version", "1.0")
	for _, a := range store.Accounts() {
		root.AddChild(encodeAccount(a))
	}
	return root
}

func encodeAccount(a *account.Account) *xmlnode.Node {
	n := xmlnode.New("account")
	n.NewChild("protocol").InsertData(a.ProtocolID())
	n.NewChild("name").InsertData(a.Username())

	if a.RememberPassword() && a.Password() != "" {
		n.NewChild("password").InsertData(a.Password())
	}
	if a.Alias() != "" {
		n.NewChild("alias").InsertData(a.Alias())
	}

	if p := a.Presence(); p != nil && len(p.Statuses()) > 0 {
		statuses := n.NewChild("statuses")
		for _, s := range p.Statuses() {
			if !s.Type().Saveable {
				continue
			}
			sn := statuses.NewChild("status")
			sn.SetAttr("type", s.ID())
			if s.Name() != s.Primitive().Name() {
				sn.SetAttr("name", s.Name())
			}
			sn.SetAttr("active", strconv.FormatBool(s.IsActive()))

			attrs := sn.NewChild("attributes")
			for _, attr := range s.Type().Attrs {
				v := s.Attr(attr.ID)
				if v.IsZero() {
					continue
				}
				an := attrs.NewChild("attribute")
				an.SetAttr("id", attr.ID)
				an.SetAttr("value", v.Text())
			}
		}
	}

	if a.UserInfo() != "" {
		n.NewChild("userinfo").InsertData(a.UserInfo())
	}
	if a.BuddyIconPath() != "" {
		n.NewChild("buddyicon").InsertData(a.BuddyIconPath())
	}

	encodeSettings(n.NewChild("settings"), a, nil)
	for _, ui := range a.UINamespaces() {
		sn := n.NewChild("settings")
		sn.SetAttr("ui", ui)
		for _, name := range a.UISettingNames(ui) {
			v, _ := a.UISetting(ui, name)
			sn.AddChild(encodeSetting(name, v))
		}
	}

	if p := a.ProxyInfo(); !p.IsDefault() {
		pn := n.NewChild("proxy")
		pn.NewChild("type").InsertData(p.Type.String())
		if p.Host != "" {
			pn.NewChild("host").InsertData(p.Host)
		}
		if p.Port != 0 {
			pn.NewChild("port").InsertData(strconv.Itoa(p.Port))
		}
		if p.Username != "" {
			pn.NewChild("username").InsertData(p.Username)
		}
		if p.Password != "" {
			pn.NewChild("password").InsertData(p.Password)
		}
	}
	return n
}

// decodeAccounts adds every account in root to store. It must run inside
// store.Restore so restored statuses do not sign accounts on.
func decodeAccounts(root *xmlnode.Node, store *account.Store) {
	for _, n := range root.ChildrenNamed("account") {
		decodeAccount(n, store)
	}
}

func decodeAccount(n *xmlnode.Node, store *account.Store) {
	protocol := n.ChildData("protocol")
	name := n.ChildData("name")
	if protocol == "" || name == "" {
		logger.Warn("Skipping account without protocol or name")
		return
	}

	a := store.NewAccount(name, protocol)

	if pw := n.Child("password"); pw != nil {
		a.SetRememberPassword(true)
		a.SetPassword(pw.Data())
	}
	if alias := n.ChildData("alias"); alias != "" {
		a.SetAlias(alias)
	}
	if info := n.ChildData("userinfo"); info != "" {
		a.SetUserInfo(info)
	}
	if icon := n.ChildData("buddyicon"); icon != "" {
		a.SetBuddyIconPath(icon)
	}

	for _, sn := range n.ChildrenNamed("settings") {
		ui := sn.Attr("ui")
		for _, c := range sn.ChildrenNamed("setting") {
			key, v, ok := decodeSetting(c)
			if !ok {
				continue
			}
			if ui == "" {
				a.SetSetting(key, v)
			} else {
				a.SetUISetting(ui, key, v)
			}
		}
	}

	if pn := n.Child("proxy"); pn != nil {
		decodeProxy(pn, a)
	}

	store.Add(a)

	if sn := n.Child("statuses"); sn != nil {
		for _, c := range sn.ChildrenNamed("status") {
			decodeStatus(c, a, store)
		}
	}
}

func decodeStatus(n *xmlnode.Node, a *account.Account, store *account.Store) {
	id := n.Attr("type")
	if id == "" || n.Attr("active") != "true" {
		return
	}
	s := a.Status(id)
	if s == nil {
		logger.Warn("Skipping unknown status %s of %s", id, a.Username())
		return
	}

	attrs := make(map[string]value.Value)
	if an := n.Child("attributes"); an != nil {
		for _, c := range an.ChildrenNamed("attribute") {
			decl := s.Type().Attr(c.Attr("id"))
			if decl == nil {
				continue
			}
			raw, ok := c.LookupAttr("value")
			if !ok {
				continue
			}
			v, err := value.Parse(decl.Default.Kind(), raw)
			if err != nil {
				logger.Warn("Skipping attribute %s of status %s: %v", decl.ID, id, err)
				continue
			}
			attrs[decl.ID] = v
		}
	}
	if err := store.SetStatusList(a, id, true, attrs); err != nil {
		logger.Warn("Status %s of %s not restored: %v", id, a.Username(), err)
	}
}

func decodeProxy(n *xmlnode.Node, a *account.Account) {
	t, ok := account.ParseProxyType(n.ChildData("type"))
	if !ok {
		logger.Warn("Skipping proxy of %s with unknown type %q", a.Username(), n.ChildData("type"))
		return
	}
	info := &account.ProxyInfo{
		Type:     t,
		Host:     n.ChildData("host"),
		Username: n.ChildData("username"),
		Password: n.ChildData("password"),
	}
	if port := n.ChildData("port"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			logger.Warn("Skipping proxy port %q of %s", port, a.Username())
		} else {
			info.Port = p
		}
	}
	a.SetProxyInfo(info)
}
