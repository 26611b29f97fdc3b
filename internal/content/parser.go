package content

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Parser converts raw template bytes into a content tree.
type Parser interface {
	Parse(r io.Reader) (*Document, error)
}

// SupportedExtensions lists template file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".html":     true,
	".htm":      true,
	".docx":     true,
	".md":       true,
	".markdown": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported template extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// skeleton builds an empty HTML document and returns it with its body.
func skeleton(title string) (*Document, *Node) {
	head := &Node{Kind: KindElement, Tag: "head"}
	head.Append(&Node{Kind: KindElement, Tag: "meta", Attrs: []Attr{{Key: "charset", Val: "utf-8"}}})
	if title != "" {
		head.Append((&Node{Kind: KindElement, Tag: "title"}).Append(NewText(title)))
	}
	head.Append((&Node{Kind: KindElement, Tag: "style"}).Append(NewText(pageCSS)))

	body := &Node{Kind: KindElement, Tag: "body"}
	htmlNode := (&Node{Kind: KindElement, Tag: "html"}).Append(head, body)
	doc := (&Node{Kind: KindDocument}).Append(
		&Node{Kind: KindRaw, Tag: rawDoctype, Text: "html"},
		htmlNode,
	)
	return doc, body
}

const pageCSS = `body{margin:0;font-family:"Noto Sans KR",sans-serif}
.page{page-break-after:always;padding:24pt}
.page:last-child{page-break-after:auto}
table{border-collapse:collapse}
td,th{border:1px solid #ccc;padding:4pt;vertical-align:top}`
