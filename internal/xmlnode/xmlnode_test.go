package xmlnode

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndRender(t *testing.T) {
	root := New("account")
	root.SetAttr("version", "1.0")
	acct := root.NewChild("account")
	acct.NewChild("protocol").InsertData("prpl-jabber")
	acct.NewChild("name").InsertData("alice@example.com")

	assert.Equal(t,
		`<account version="1.0"><account><protocol>prpl-jabber</protocol><name>alice@example.com</name></account></account>`,
		root.String())
}

func TestAttrs(t *testing.T) {
	n := New("buddy")
	n.SetAttr("account", "a1")
	n.SetAttr("proto", "prpl-x")
	n.SetAttr("account", "a2")

	assert.Equal(t, "a2", n.Attr("account"))
	assert.Len(t, n.Attrs, 2)

	_, ok := n.LookupAttr("missing")
	assert.False(t, ok)

	n.RemoveAttr("account")
	_, ok = n.LookupAttr("account")
	assert.False(t, ok)
	assert.Equal(t, "prpl-x", n.Attr("proto"))
}

func TestParseDropsFormattingWhitespace(t *testing.T) {
	doc := `<?xml version='1.0' encoding='UTF-8' ?>
<gaim version="1.0">
	<blist>
		<group name="Friends">
			<contact>
				<buddy account="a1" proto="prpl-x">
					<name>bob</name>
					<alias>  Bobby  </alias>
				</buddy>
			</contact>
		</group>
	</blist>
</gaim>`

	root, err := ParseString(doc)
	require.NoError(t, err)
	assert.Equal(t, "gaim", root.Name)
	assert.Equal(t, "1.0", root.Attr("version"))

	groups := root.Child("blist").ChildrenNamed("group")
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Children, 1)

	buddy := root.Child("blist/group/contact/buddy")
	require.NotNil(t, buddy)
	assert.Equal(t, "bob", buddy.ChildData("name"))
	assert.Equal(t, "  Bobby  ", buddy.ChildData("alias"))
	assert.Equal(t, "", buddy.ChildData("missing"))
}

func TestLookupData(t *testing.T) {
	n := New("password")
	_, ok := n.LookupData()
	assert.False(t, ok)

	n.InsertData("se")
	n.InsertData("cret")
	got, ok := n.LookupData()
	assert.True(t, ok)
	assert.Equal(t, "secret", got)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "unclosed", doc: "<a><b></b>"},
		{name: "mismatched", doc: "<a></b>"},
		{name: "text only", doc: "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	root := New("gaim")
	root.SetAttr("version", "1.0")
	g := root.NewChild("blist").NewChild("group")
	g.SetAttr("name", `Friends & "Family"`)
	s := g.NewChild("setting")
	s.SetAttr("name", "collapsed")
	s.SetAttr("type", "bool")
	s.InsertData("1")
	g.NewChild("contact").NewChild("buddy").NewChild("name").InsertData("<bob>")

	data, err := root.Marshal(true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header))
	assert.Contains(t, string(data), "\n\t<blist>")

	parsed, err := ParseString(string(data))
	require.NoError(t, err)
	assert.Equal(t, root.String(), parsed.String())
	assert.Equal(t, `Friends & "Family"`, parsed.Child("blist/group").Attr("name"))
	assert.Equal(t, "<bob>", parsed.ChildData("blist/group/contact/buddy/name"))
}

func TestCopyIsDeep(t *testing.T) {
	n := New("a")
	n.SetAttr("x", "1")
	n.NewChild("b").InsertData("text")

	c := n.Copy()
	c.SetAttr("x", "2")
	c.Child("b").Children[0].Text = "changed"

	assert.Equal(t, "1", n.Attr("x"))
	assert.Equal(t, "text", n.ChildData("b"))
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "blist.xml")

	_, err := ReadFile(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	root := New("gaim")
	root.NewChild("blist")
	require.NoError(t, WriteFile(path, root))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, root.String(), got.String())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadFileRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.xml")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0600))

	_, err := ReadFile(path)
	assert.Error(t, err)
}
