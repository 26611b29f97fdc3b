package merge

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/pdftest"
)

func TestPageCount(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		got, err := PageCount(pdftest.Minimal(n, "count"))
		if err != nil {
			t.Fatalf("PageCount(%d pages): %v", n, err)
		}
		if got != n {
			t.Errorf("PageCount = %d, want %d", got, n)
		}
	}
}

func TestPageCount_Invalid(t *testing.T) {
	if _, err := PageCount([]byte("not a pdf")); err == nil {
		t.Error("expected error for non-PDF input")
	}
}

func TestMerge_Empty(t *testing.T) {
	_, err := Merge(context.Background(), nil)
	if !errors.Is(err, ErrNoPages) || !errors.Is(err, ErrMerge) {
		t.Errorf("Merge(nil) = %v, want ErrNoPages", err)
	}
}

func TestMerge_SingleUnchanged(t *testing.T) {
	in := Page{Data: pdftest.Minimal(2, "only"), Pages: 2}
	out, err := Merge(context.Background(), []Page{in})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !bytes.Equal(out.Data, in.Data) || out.Pages != 2 {
		t.Error("single input was re-encoded")
	}
}

// pageWidths returns the MediaBox width of every page in order.
func pageWidths(t *testing.T, data []byte) []int {
	t.Helper()
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read merged pdf: %v", err)
	}
	widths := make([]int, r.NumPage())
	for i := range widths {
		widths[i] = int(r.Page(i + 1).MediaBox().Index(2).Float64())
	}
	return widths
}

func TestMerge_ConcatenatesInOrder(t *testing.T) {
	pages := []Page{
		{Data: pdftest.Sized("cover", 101), Pages: 1},
		{Data: pdftest.Sized("service", 202), Pages: 1},
		{Data: pdftest.Sized("detail", 301, 302, 303), Pages: 3},
	}
	out, err := Merge(context.Background(), pages)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if out.Pages != 5 {
		t.Errorf("Pages = %d, want 5", out.Pages)
	}
	want := []int{101, 202, 301, 302, 303}
	if got := pageWidths(t, out.Data); !slices.Equal(got, want) {
		t.Errorf("page widths = %v, want %v", got, want)
	}
}

func TestMerge_KeepsPagesOfEachInputTogether(t *testing.T) {
	a := Page{Data: pdftest.Sized("a", 101, 102), Pages: 2}
	b := Page{Data: pdftest.Sized("b", 203), Pages: 1}

	out, err := Merge(context.Background(), []Page{a, b})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got, want := pageWidths(t, out.Data), []int{101, 102, 203}; !slices.Equal(got, want) {
		t.Errorf("merge(A, B) widths = %v, want %v", got, want)
	}

	out, err = Merge(context.Background(), []Page{b, a})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got, want := pageWidths(t, out.Data), []int{203, 101, 102}; !slices.Equal(got, want) {
		t.Errorf("merge(B, A) widths = %v, want %v", got, want)
	}
}

func TestMerge_RejectsCorruptInput(t *testing.T) {
	pages := []Page{
		{Data: pdftest.Minimal(1, "ok"), Pages: 1},
		{Data: []byte("%PDF-1.4 garbage"), Pages: 1},
	}
	if _, err := Merge(context.Background(), pages); !errors.Is(err, ErrMerge) {
		t.Errorf("Merge = %v, want ErrMerge", err)
	}

	pages[1] = Page{}
	if _, err := Merge(context.Background(), pages); !errors.Is(err, ErrMerge) {
		t.Errorf("Merge with empty page = %v, want ErrMerge", err)
	}
}

func TestMerge_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pages := []Page{
		{Data: pdftest.Minimal(1, "a"), Pages: 1},
		{Data: pdftest.Minimal(1, "b"), Pages: 1},
	}
	if _, err := Merge(ctx, pages); !errors.Is(err, context.Canceled) {
		t.Errorf("Merge = %v, want context.Canceled", err)
	}
}
