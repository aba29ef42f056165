package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/buddylist/internal/value"
)

type countingSaver struct{ n int }

func (c *countingSaver) Schedule() { c.n++ }

func TestSettingsDefaultsAndKinds(t *testing.T) {
	a := New("alice", "prpl-test")

	assert.Equal(t, 7, a.GetInt("missing", 7))
	assert.Equal(t, "dflt", a.GetString("missing", "dflt"))
	assert.True(t, a.GetBool("missing", true))

	a.SetInt("port", 5222)
	a.SetString("server", "example.org")
	a.SetBool("check-mail", true)

	assert.Equal(t, 5222, a.GetInt("port", 0))
	assert.Equal(t, "example.org", a.GetString("server", ""))
	assert.True(t, a.GetBool("check-mail", false))
	assert.Equal(t, []string{"check-mail", "port", "server"}, a.SettingNames())

	a.RemoveSetting("port")
	assert.Equal(t, 1, a.GetInt("port", 1))
}

func TestSettingKindMismatchPanics(t *testing.T) {
	a := New("alice", "prpl-test")
	a.SetString("port", "5222")

	assert.PanicsWithError(t, "value: read as int, holds string", func() {
		a.GetInt("port", 0)
	})
	a.SetUIInt("gtk", "width", 80)
	assert.Panics(t, func() { a.GetUIBool("gtk", "width", false) })
}

func TestUISettingsAreNamespaced(t *testing.T) {
	a := New("alice", "prpl-test")
	a.SetUIBool("gtk", "auto-login", true)
	a.SetUIString("cli", "color", "blue")

	assert.True(t, a.Enabled("gtk"))
	assert.False(t, a.Enabled("cli"))
	assert.Equal(t, "blue", a.GetUIString("cli", "color", ""))
	assert.Equal(t, "", a.GetUIString("gtk", "color", ""))
	assert.Equal(t, 3, a.GetUIInt("gtk", "missing", 3))
	assert.Equal(t, []string{"cli", "gtk"}, a.UINamespaces())
	assert.Equal(t, []string{"auto-login"}, a.UISettingNames("gtk"))

	v, ok := a.UISetting("gtk", "auto-login")
	require.True(t, ok)
	assert.True(t, v.Equal(value.Bool(true)))
}

func TestPrivacyListsNormalizeAndDeduplicate(t *testing.T) {
	a := New("alice", "prpl-test")

	assert.Equal(t, PrivacyAllowAll, a.PrivacyMode())
	assert.True(t, a.AddPermit("Bob"))
	assert.False(t, a.AddPermit("BOB"))
	assert.True(t, a.AddDeny("Eve"))
	assert.Equal(t, []string{"bob"}, a.Permit())
	assert.True(t, a.IsPermitted("bOb"))
	assert.True(t, a.IsDenied("eve"))

	assert.True(t, a.RemovePermit("bob"))
	assert.False(t, a.RemovePermit("bob"))
	assert.Empty(t, a.Permit())
	assert.True(t, a.RemoveDeny("EVE"))

	a.SetPrivacyMode(PrivacyDenyUsers)
	assert.Equal(t, PrivacyDenyUsers, a.PrivacyMode())
	a.SetPrivacyMode(0)
	assert.Equal(t, PrivacyAllowAll, a.PrivacyMode())
	assert.Equal(t, "allow_buddylist", PrivacyAllowBuddyList.String())
}

func TestProxyTypes(t *testing.T) {
	for _, typ := range []ProxyType{ProxyUseGlobal, ProxyNone, ProxyHTTP, ProxySOCKS4, ProxySOCKS5, ProxyUseEnvVar} {
		got, ok := ParseProxyType(typ.String())
		require.True(t, ok, typ.String())
		assert.Equal(t, typ, got)
	}
	_, ok := ParseProxyType("carrier-pigeon")
	assert.False(t, ok)

	var nilInfo *ProxyInfo
	assert.True(t, nilInfo.IsDefault())
	assert.True(t, (&ProxyInfo{}).IsDefault())
	assert.False(t, (&ProxyInfo{Type: ProxyHTTP, Host: "proxy"}).IsDefault())
}

func TestDefaultNormalize(t *testing.T) {
	assert.Equal(t, "bob", DefaultNormalize("BoB"))
	assert.Equal(t, "strasse", DefaultNormalize("STRASSE"))
	// a decomposed E with combining acute folds to the same key as é
	assert.Equal(t, DefaultNormalize("caf\u00e9"), DefaultNormalize("CAFE\u0301"))
}

func TestSettersScheduleSaves(t *testing.T) {
	saver := &countingSaver{}
	s := NewStore(nil, WithSaver(saver))
	a := s.NewAccount("alice", "prpl-none")
	s.Add(a)
	before := saver.n

	a.SetAlias("Alice")
	a.SetInt("x", 1)
	a.SetUIBool("ui", "y", true)
	a.AddPermit("bob")

	assert.Equal(t, before+4, saver.n)
}
