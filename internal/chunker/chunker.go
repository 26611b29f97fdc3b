package chunker

// DefaultPageSize is the number of item slots on one comparison page.
const DefaultPageSize = 5

// Chunk splits items into consecutive pages of exactly size slots. The
// last page is right-padded with nil slots. An empty input yields no pages.
// A size <= 0 falls back to DefaultPageSize.
func Chunk[T any](items []T, size int) [][]*T {
	if size <= 0 {
		size = DefaultPageSize
	}
	if len(items) == 0 {
		return [][]*T{}
	}

	pages := make([][]*T, 0, Pages(len(items), size))
	for start := 0; start < len(items); start += size {
		page := make([]*T, size)
		for i := 0; i < size && start+i < len(items); i++ {
			page[i] = &items[start+i]
		}
		pages = append(pages, page)
	}
	return pages
}

// Pages returns how many pages n items occupy.
func Pages(n, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
