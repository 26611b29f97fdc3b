package content

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SubPageAttr marks an element as the start of a named optional sub-page.
const SubPageAttr = "data-subpage"

const (
	rawDoctype = "!doctype"
	rawComment = "!comment"
)

// HTMLParser handles HTML templates.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader) (*Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return fromHTML(doc), nil
}

// ParseHTML parses an HTML document into a content tree.
func ParseHTML(r io.Reader) (*Document, error) {
	return (&HTMLParser{}).Parse(r)
}

func fromHTML(h *html.Node) *Node {
	var n *Node
	switch h.Type {
	case html.DocumentNode:
		n = &Node{Kind: KindDocument}
	case html.TextNode:
		return NewText(h.Data)
	case html.DoctypeNode:
		return &Node{Kind: KindRaw, Tag: rawDoctype, Text: h.Data}
	case html.CommentNode:
		return &Node{Kind: KindRaw, Tag: rawComment, Text: h.Data}
	case html.ElementNode:
		n = &Node{Kind: elementKind(h.Data), Tag: h.Data}
		for _, a := range h.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			n.Attrs = append(n.Attrs, Attr{Key: key, Val: a.Val})
			if key == SubPageAttr {
				n.SubPage = a.Val
			}
		}
		if n.Kind == KindImage {
			src, _ := n.Attr("src")
			alt, _ := n.Attr("alt")
			n.Image = &Image{Src: src, Alt: alt}
		}
	default:
		return nil
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if child := fromHTML(c); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

func elementKind(tag string) Kind {
	switch tag {
	case "table":
		return KindTable
	case "tr":
		return KindRow
	case "td", "th":
		return KindCell
	case "img":
		return KindImage
	}
	return KindElement
}

// RenderHTML writes the tree as HTML.
func RenderHTML(w io.Writer, root *Node) error {
	h := toHTML(root)
	if h == nil {
		return nil
	}
	if err := html.Render(w, h); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// HTML renders the tree to a byte slice.
func HTML(root *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toHTML(n *Node) *html.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindDocument:
		h := &html.Node{Type: html.DocumentNode}
		appendChildren(h, n)
		return h
	case KindText:
		return &html.Node{Type: html.TextNode, Data: n.Text}
	case KindRaw:
		switch n.Tag {
		case rawDoctype:
			return &html.Node{Type: html.DoctypeNode, Data: n.Text}
		case rawComment:
			return &html.Node{Type: html.CommentNode, Data: n.Text}
		}
		return &html.Node{Type: html.RawNode, Data: n.Text}
	}

	tag := n.Tag
	if tag == "" {
		tag = defaultTag(n.Kind)
	}
	h := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, a := range n.Attrs {
		if n.Kind == KindImage && (a.Key == "src" || a.Key == "alt") {
			continue
		}
		if a.Key == SubPageAttr {
			continue
		}
		h.Attr = append(h.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	if n.SubPage != "" {
		h.Attr = append(h.Attr, html.Attribute{Key: SubPageAttr, Val: n.SubPage})
	}
	if n.Kind == KindImage && n.Image != nil {
		h.Attr = append(h.Attr, html.Attribute{Key: "src", Val: n.Image.Src})
		if n.Image.Alt != "" {
			h.Attr = append(h.Attr, html.Attribute{Key: "alt", Val: n.Image.Alt})
		}
		if style := imageStyle(n.Image); style != "" {
			setHTMLAttr(h, "style", style)
		}
	}
	appendChildren(h, n)
	return h
}

func appendChildren(h *html.Node, n *Node) {
	for _, c := range n.Children {
		if hc := toHTML(c); hc != nil {
			h.AppendChild(hc)
		}
	}
}

func defaultTag(k Kind) string {
	switch k {
	case KindTable:
		return "table"
	case KindRow:
		return "tr"
	case KindCell:
		return "td"
	case KindImage:
		return "img"
	}
	return "div"
}

func imageStyle(img *Image) string {
	var parts []string
	if img.Width > 0 {
		parts = append(parts, "width:"+formatPt(img.Width))
	}
	if img.Height > 0 {
		parts = append(parts, "height:"+formatPt(img.Height))
	}
	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, "object-fit:cover")
	return strings.Join(parts, ";")
}

func formatPt(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "pt"
}

func setHTMLAttr(h *html.Node, key, val string) {
	for i := range h.Attr {
		if h.Attr[i].Key == key {
			if h.Attr[i].Val != "" && !strings.HasSuffix(h.Attr[i].Val, ";") {
				h.Attr[i].Val += ";"
			}
			h.Attr[i].Val += val
			return
		}
	}
	h.Attr = append(h.Attr, html.Attribute{Key: key, Val: val})
}
