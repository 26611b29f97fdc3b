package content

import "strings"

// Kind identifies the role of a node in a content tree.
type Kind int

const (
	KindDocument Kind = iota
	KindElement
	KindTable
	KindRow
	KindCell
	KindText
	KindImage
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindElement:
		return "element"
	case KindTable:
		return "table"
	case KindRow:
		return "row"
	case KindCell:
		return "cell"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

// Attr is a single element attribute.
type Attr struct {
	Key string
	Val string
}

// Image describes an embedded picture. Src is usually a data URI.
// Width and Height are in points; zero means natural size.
type Image struct {
	Src    string
	Alt    string
	Width  float64
	Height float64
}

// Node is one node of a template's structured content.
type Node struct {
	Kind  Kind
	Tag   string
	Attrs []Attr

	// Text holds the run content for KindText and the raw markup for KindRaw.
	Text string

	// Image is set for KindImage.
	Image *Image

	// SubPage names the optional page section this node starts.
	SubPage string

	Children []*Node
}

// Document is a parsed template.
type Document = Node

// NewText returns a text run node.
func NewText(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// NewImage returns an image node for img.
func NewImage(img Image) *Node {
	return &Node{Kind: KindImage, Tag: "img", Image: &img}
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr adds or replaces an attribute.
func (n *Node) SetAttr(key, val string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Val: val})
}

// Append adds children and returns n.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Kind:    n.Kind,
		Tag:     n.Tag,
		Text:    n.Text,
		SubPage: n.SubPage,
	}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	if n.Image != nil {
		img := *n.Image
		c.Image = &img
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return c
}

// PlainText concatenates every text run below n.
func (n *Node) PlainText() string {
	var b strings.Builder
	Walk(n, func(node *Node, _ Location) bool {
		if node.Kind == KindText {
			b.WriteString(node.Text)
		}
		return true
	})
	return b.String()
}

// CountKind returns the number of nodes of kind k below and including n.
func (n *Node) CountKind(k Kind) int {
	count := 0
	Walk(n, func(node *Node, _ Location) bool {
		if node.Kind == k {
			count++
		}
		return true
	})
	return count
}
