// Package pdftest builds small valid PDFs for tests.
package pdftest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
)

// Minimal returns a PDF with n blank A4 landscape pages. label is written
// into the document info so outputs can be told apart.
func Minimal(n int, label string) []byte {
	widths := make([]int, max(1, n))
	for i := range widths {
		widths[i] = 842
	}
	return Sized(label, widths...)
}

// Sized returns a PDF with one 595pt-high page per width, in order.
func Sized(label string, widths ...int) []byte {
	if len(widths) == 0 {
		widths = []int{842}
	}
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 page tree, 3 info, 4.. pages.
	kids := make([]string, len(widths))
	for i := range widths {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(widths)))
	obj(fmt.Sprintf("<< /Title (%s) /Producer (pdftest) >>", label))
	for _, w := range widths {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 595] /Resources << >> >>", w))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Printer is a stand-in for a browser printer. Each element carrying
// class="page" becomes one PDF page; documents without one print as a
// single page.
type Printer struct {
	mu    sync.Mutex
	pages [][]byte

	// Fail, when set, is consulted before printing.
	Fail func(ctx context.Context, html []byte) error
}

func (p *Printer) Print(ctx context.Context, html []byte) ([]byte, error) {
	if p.Fail != nil {
		if err := p.Fail(ctx, html); err != nil {
			return nil, err
		}
	}
	p.mu.Lock()
	p.pages = append(p.pages, html)
	p.mu.Unlock()
	return Minimal(max(1, bytes.Count(html, []byte(`class="page"`))), "page"), nil
}

func (p *Printer) Close() error { return nil }

// Printed returns every HTML document printed so far.
func (p *Printer) Printed() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.pages...)
}
