// Package merge concatenates rendered PDF pages into one document.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrMerge   = errors.New("merge failed")
	ErrNoPages = fmt.Errorf("%w: no pages to merge", ErrMerge)
)

// Page is a rendered PDF and the number of physical pages it holds.
type Page struct {
	Data  []byte
	Pages int
}

var disableConfigDir sync.Once

// Merge concatenates pages in order. A single page is returned as is.
func Merge(ctx context.Context, pages []Page) (Page, error) {
	switch len(pages) {
	case 0:
		return Page{}, ErrNoPages
	case 1:
		return pages[0], nil
	}

	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	want := 0
	rs := make([]io.ReadSeeker, 0, len(pages))
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if len(p.Data) == 0 {
			return Page{}, fmt.Errorf("%w: page %d is empty", ErrMerge, i)
		}
		want += p.Pages
		rs = append(rs, bytes.NewReader(p.Data))
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(rs, &buf, false, conf); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMerge, err)
	}
	out := buf.Bytes()

	got, err := PageCount(out)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMerge, err)
	}
	if want > 0 && got != want {
		return Page{}, fmt.Errorf("%w: merged %d pages, inputs hold %d", ErrMerge, got, want)
	}
	return Page{Data: out, Pages: got}, nil
}

// PageCount reads the number of pages in a PDF.
func PageCount(data []byte) (n int, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return r.NumPage(), nil
}
