package chunker

import (
	"testing"
)

func TestChunk_SevenItemsTwoPages(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	pages := Chunk(items, 5)

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if len(p) != 5 {
			t.Errorf("page %d: expected 5 slots, got %d", i, len(p))
		}
	}
	for i := 0; i < 5; i++ {
		if pages[0][i] == nil || *pages[0][i] != i+1 {
			t.Errorf("page 0 slot %d: expected %d", i, i+1)
		}
	}
	if *pages[1][0] != 6 || *pages[1][1] != 7 {
		t.Errorf("page 1: expected items 6 and 7 first")
	}
	for i := 2; i < 5; i++ {
		if pages[1][i] != nil {
			t.Errorf("page 1 slot %d: expected nil padding", i)
		}
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	pages := Chunk([]string{}, 5)
	if pages == nil {
		t.Fatal("expected empty, non-nil result")
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages, got %d", len(pages))
	}
	if got := Chunk[string](nil, 5); len(got) != 0 {
		t.Errorf("expected no pages for nil input, got %d", len(got))
	}
}

func TestChunk_ExactMultiple(t *testing.T) {
	items := make([]int, 10)
	pages := Chunk(items, 5)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	for _, slot := range pages[1] {
		if slot == nil {
			t.Error("expected no padding when items divide evenly")
		}
	}
}

func TestChunk_PreservesOrder(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	var got []string
	for _, p := range Chunk(items, 5) {
		for _, s := range p {
			if s != nil {
				got = append(got, *s)
			}
		}
	}
	if len(got) != len(items) {
		t.Fatalf("expected %d items, got %d", len(items), len(got))
	}
	for i := range items {
		if got[i] != items[i] {
			t.Errorf("position %d: expected %q, got %q", i, items[i], got[i])
		}
	}
}

func TestChunk_NonPositiveSizeUsesDefault(t *testing.T) {
	pages := Chunk([]int{1, 2, 3, 4, 5, 6}, 0)
	if len(pages) != 2 || len(pages[0]) != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d pages of %d", DefaultPageSize, len(pages), len(pages[0]))
	}
}

func TestChunk_SlotsPointIntoInput(t *testing.T) {
	items := []int{1, 2}
	pages := Chunk(items, 5)
	*pages[0][1] = 42
	if items[1] != 42 {
		t.Error("expected slots to alias the input items")
	}
}

func TestPages(t *testing.T) {
	cases := []struct {
		n, size, want int
	}{
		{0, 5, 0},
		{1, 5, 1},
		{5, 5, 1},
		{7, 5, 2},
		{12, 5, 3},
		{12, 0, 3},
	}
	for _, c := range cases {
		if got := Pages(c.n, c.size); got != c.want {
			t.Errorf("Pages(%d, %d): expected %d, got %d", c.n, c.size, c.want, got)
		}
	}
}
