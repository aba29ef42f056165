// Package xmlnode is a small document model for the XML files the roster
// is persisted to: element nodes carry attributes and child nodes, text
// nodes carry character data.
package xmlnode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind distinguishes element nodes from text nodes
type Kind int

const (
	KindElement Kind = iota
	KindText
)

// Attr is a single name="value" attribute
type Attr struct {
	Name  string
	Value string
}

// Header is the declaration written at the top of every document
const Header = "<?xml version='1.0' encoding='UTF-8' ?>\n\n"

// Node is an element or a run of character data
type Node struct {
	Kind     Kind
	Name     string
	Text     string
	Attrs    []Attr
	Children []*Node
}

// New creates an element node
func New(name string) *Node {
	return &Node{Kind: KindElement, Name: name}
}

// NewChild creates an element and appends it to n
func (n *Node) NewChild(name string) *Node {
	c := New(name)
	n.Children = append(n.Children, c)
	return c
}

// AddChild appends an existing node to n
func (n *Node) AddChild(c *Node) {
	n.Children = append(n.Children, c)
}

// InsertData appends character data to n
func (n *Node) InsertData(text string) {
	if text == "" {
		return
	}
	n.Children = append(n.Children, &Node{Kind: KindText, Text: text})
}

// SetAttr sets or replaces an attribute
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// LookupAttr returns an attribute value and whether it was present
func (n *Node) LookupAttr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attr returns an attribute value, or "" if absent
func (n *Node) Attr(name string) string {
	v, _ := n.LookupAttr(name)
	return v
}

// RemoveAttr deletes an attribute if present
func (n *Node) RemoveAttr(name string) {
	for i, a := range n.Attrs {
		if a.Name == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// Child returns the first element child with the given name. A name of
// the form "a/b" descends one level per segment.
func (n *Node) Child(path string) *Node {
	name, rest, nested := strings.Cut(path, "/")
	for _, c := range n.Children {
		if c.Kind != KindElement || c.Name != name {
			continue
		}
		if nested {
			return c.Child(rest)
		}
		return c
	}
	return nil
}

// ChildrenNamed returns every element child with the given name, in order
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == KindElement && c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Elements returns the element children of n
func (n *Node) Elements() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == KindElement {
			out = append(out, c)
		}
	}
	return out
}

// LookupData returns the concatenated character data directly under n and
// whether there was any.
func (n *Node) LookupData() (string, bool) {
	var sb strings.Builder
	found := false
	for _, c := range n.Children {
		if c.Kind == KindText {
			sb.WriteString(c.Text)
			found = true
		}
	}
	return sb.String(), found
}

// Data returns the concatenated character data directly under n
func (n *Node) Data() string {
	s, _ := n.LookupData()
	return s
}

// ChildData returns the data of the named child, or "" if it is absent
func (n *Node) ChildData(path string) string {
	if c := n.Child(path); c != nil {
		return c.Data()
	}
	return ""
}

// Copy returns a deep copy of n
func (n *Node) Copy() *Node {
	c := &Node{Kind: n.Kind, Name: n.Name, Text: n.Text}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.Copy())
	}
	return c
}

// Parse reads one XML document and returns its root element. Whitespace
// between elements is dropped.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var stack []*Node
	var root *Node

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := New(t.Name.Local)
			for _, a := range t.Attr {
				name := a.Name.Local
				if a.Name.Space == "xmlns" {
					name = "xmlns:" + name
				}
				n.Attrs = append(n.Attrs, Attr{Name: name, Value: a.Value})
			}
			if len(stack) > 0 {
				stack[len(stack)-1].AddChild(n)
			} else if root == nil {
				root = n
			} else {
				return nil, errors.New("failed to parse xml: multiple root elements")
			}
			stack = append(stack, n)
		case xml.EndElement:
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			trimWhitespace(n)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].InsertData(string(t))
			}
		}
	}

	if root == nil {
		return nil, errors.New("failed to parse xml: no root element")
	}
	if len(stack) > 0 {
		return nil, errors.New("failed to parse xml: unexpected end of document")
	}
	return root, nil
}

// ParseString parses a document held in a string
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// trimWhitespace drops whitespace-only text children of elements that
// also have element children, which is formatting rather than content.
func trimWhitespace(n *Node) {
	if len(n.Elements()) == 0 {
		return
	}
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.Kind == KindText && strings.TrimSpace(c.Text) == "" {
			continue
		}
		kept = append(kept, c)
	}
	n.Children = kept
}

// Encode writes n and its descendants as tokens to enc
func (n *Node) Encode(enc *xml.Encoder) error {
	if n.Kind == KindText {
		return enc.EncodeToken(xml.CharData(n.Text))
	}

	start := xml.StartElement{Name: xml.Name{Local: n.Name}}
	for _, a := range n.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.Encode(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// Marshal renders n as a complete document with an XML declaration. When
// formatted is true elements are indented with tabs.
func (n *Node) Marshal(formatted bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)
	enc := xml.NewEncoder(&buf)
	if formatted {
		enc.Indent("", "\t")
	}
	if err := n.Encode(enc); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	if formatted {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// String renders n without a declaration or indentation
func (n *Node) String() string {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := n.Encode(enc); err != nil {
		return ""
	}
	if err := enc.Flush(); err != nil {
		return ""
	}
	return buf.String()
}
