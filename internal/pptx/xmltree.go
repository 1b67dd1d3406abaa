package pptx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Namespace URIs used by slide parts.
const (
	NSPresentation = "http://schemas.openxmlformats.org/presentationml/2006/main"
	NSDrawing      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSDiagram      = "http://schemas.openxmlformats.org/drawingml/2006/diagram"
	NSRelationship = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSPackageRels  = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// Node is one element of a parsed part. Names are namespace resolved; the
// original bytes of the element are addressed through offsets so untouched
// markup is never re-serialized.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Parent   *Node
	Children []*Node

	text        string
	start, end  int
	innerStart  int
	innerEnd    int
	selfClosing bool
}

// Document is an opaque XML document whose edits are applied as byte splices.
type Document struct {
	raw   []byte
	Root  *Node
	edits map[*Node]string
}

// Parse builds a Document from raw part bytes.
func Parse(raw []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	doc := &Document{raw: raw, edits: map[*Node]string{}}

	var stack []*Node
	for {
		pre := int(dec.InputOffset())
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		post := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Name:       t.Name,
				Attrs:      append([]xml.Attr(nil), t.Attr...),
				start:      pre,
				innerStart: post,
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				n.Parent = parent
				parent.Children = append(parent.Children, n)
			} else if doc.Root == nil {
				doc.Root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("decode xml: unexpected end element %s", t.Name.Local)
			}
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if pre == post {
				n.selfClosing = true
				n.innerEnd = n.innerStart
				n.end = post
			} else {
				n.innerEnd = pre
				n.end = post
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("decode xml: no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("decode xml: unclosed element %s", stack[len(stack)-1].Name.Local)
	}
	return doc, nil
}

// Text returns the current character data of n, including pending edits.
func (d *Document) Text(n *Node) string {
	if n == nil {
		return ""
	}
	if v, ok := d.edits[n]; ok {
		return v
	}
	return n.text
}

// SetText replaces the character data of n. Only leaf text elements are
// meant to be edited.
func (d *Document) SetText(n *Node, text string) {
	if n == nil {
		return
	}
	d.edits[n] = text
}

func (d *Document) Modified() bool {
	return len(d.edits) > 0
}

// Bytes returns the document with every edit spliced into the original bytes.
func (d *Document) Bytes() []byte {
	if len(d.edits) == 0 {
		return append([]byte(nil), d.raw...)
	}
	nodes := make([]*Node, 0, len(d.edits))
	for n := range d.edits {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].start < nodes[j].start })

	var out bytes.Buffer
	out.Grow(len(d.raw) + 256)
	cursor := 0
	for _, n := range nodes {
		var escaped bytes.Buffer
		_ = xml.EscapeText(&escaped, []byte(d.edits[n]))
		if n.selfClosing {
			out.Write(d.raw[cursor:n.start])
			out.Write(openTagOf(d.raw[n.start:n.end]))
			out.Write(escaped.Bytes())
			out.WriteString("</" + qualifiedName(d.raw[n.start:n.end]) + ">")
			cursor = n.end
			continue
		}
		out.Write(d.raw[cursor:n.innerStart])
		out.Write(escaped.Bytes())
		cursor = n.innerEnd
	}
	out.Write(d.raw[cursor:])
	return out.Bytes()
}

// openTagOf turns a self-closing tag into its opening form, keeping attributes.
func openTagOf(tag []byte) []byte {
	trimmed := bytes.TrimSuffix(tag, []byte("/>"))
	trimmed = bytes.TrimRight(trimmed, " \t\r\n")
	return append(append([]byte(nil), trimmed...), '>')
}

func qualifiedName(tag []byte) string {
	s := strings.TrimPrefix(string(tag), "<")
	if i := strings.IndexAny(s, " \t\r\n/>"); i >= 0 {
		s = s[:i]
	}
	return s
}

// Is reports whether n has the given namespace and local name.
func (n *Node) Is(space, local string) bool {
	return n != nil && n.Name.Space == space && n.Name.Local == local
}

// Child returns the first direct child with the given name.
func (n *Node) Child(space, local string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Is(space, local) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the direct children with the given name.
func (n *Node) ChildrenNamed(space, local string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Is(space, local) {
			out = append(out, c)
		}
	}
	return out
}

// Path follows a chain of direct children, each given as namespace and local name.
func (n *Node) Path(steps ...xml.Name) *Node {
	cur := n
	for _, s := range steps {
		cur = cur.Child(s.Space, s.Local)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Find returns all descendants of n with the given name in document order.
func (n *Node) Find(space, local string) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c != n && c.Is(space, local) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// First returns the first descendant of n with the given name.
func (n *Node) First(space, local string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c != n && c.Is(space, local) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Attr returns the value of an unqualified attribute.
func (n *Node) Attr(local string) (string, bool) {
	return n.AttrNS("", local)
}

func (n *Node) AttrNS(space, local string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// P and A build names in the presentation and drawing namespaces for Path.
func P(local string) xml.Name { return xml.Name{Space: NSPresentation, Local: local} }
func A(local string) xml.Name { return xml.Name{Space: NSDrawing, Local: local} }
