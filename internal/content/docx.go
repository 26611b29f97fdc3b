package content

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
)

// subPageMarker is a paragraph of its own that names the page section it
// appears in, e.g. "[subpage:floor-plan]".
var subPageMarker = regexp.MustCompile(`^\[subpage:([A-Za-z0-9_-]+)\]$`)

// DOCXParser handles .docx templates. Each page-break delimited section
// becomes a "page" element.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	root, body := skeleton("")
	section := newSection()

	flush := func() {
		if len(section.Children) > 0 || section.SubPage != "" {
			body.Append(section)
		}
		section = newSection()
	}

	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text, pageBreak := docxParagraphText(it)
			if m := subPageMarker.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
				section.SubPage = m[1]
				section.SetAttr(SubPageAttr, m[1])
			} else {
				section.Append(docxParagraph(it, text))
			}
			if pageBreak {
				flush()
			}
		case *docx.Table:
			section.Append(docxTable(it))
		}
	}
	flush()

	return root, nil
}

func newSection() *Node {
	return &Node{Kind: KindElement, Tag: "div", Attrs: []Attr{{Key: "class", Val: "page"}}}
}

func docxParagraph(para *docx.Paragraph, text string) *Node {
	tag := "p"
	if level := docxHeadingLevel(para); level > 0 {
		tag = fmt.Sprintf("h%d", level)
	}
	n := &Node{Kind: KindElement, Tag: tag}
	if text != "" {
		n.Append(NewText(text))
	}
	return n
}

func docxTable(tbl *docx.Table) *Node {
	t := &Node{Kind: KindTable, Tag: "table"}
	for _, row := range tbl.TableRows {
		tr := &Node{Kind: KindRow, Tag: "tr"}
		for _, cell := range row.TableCells {
			td := &Node{Kind: KindCell, Tag: "td"}
			if pr := cell.TableCellProperties; pr != nil && pr.GridSpan != nil && pr.GridSpan.Val > 1 {
				td.SetAttr("colspan", strconv.Itoa(pr.GridSpan.Val))
			}
			for _, para := range cell.Paragraphs {
				text, _ := docxParagraphText(para)
				td.Append(docxParagraph(para, text))
			}
			for _, nested := range cell.Tables {
				td.Append(docxTable(nested))
			}
			tr.Append(td)
		}
		t.Append(tr)
	}
	return t
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if strings.HasPrefix(style, "heading") && len(style) == len("heading")+1 {
		if lvl := int(style[len(style)-1] - '0'); lvl >= 1 && lvl <= 6 {
			return lvl
		}
	}
	return 0
}

// docxParagraphText merges all runs of a paragraph so placeholders split by
// formatting boundaries stay intact. It also reports a page break.
func docxParagraphText(para *docx.Paragraph) (string, bool) {
	var buf strings.Builder
	pageBreak := false
	addRun := func(run *docx.Run) {
		for _, rc := range run.Children {
			switch c := rc.(type) {
			case *docx.Text:
				buf.WriteString(c.Text)
			case *docx.Tab:
				buf.WriteByte('\t')
			case *docx.BarterRabbet:
				if c.Type == "page" {
					pageBreak = true
				} else {
					buf.WriteByte('\n')
				}
			}
		}
	}
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			addRun(c)
		case *docx.Hyperlink:
			addRun(&c.Run)
		}
	}
	return buf.String(), pageBreak
}
