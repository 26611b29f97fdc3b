package placeholder

import (
	"sort"
	"strings"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
)

// Occurrence is one accepted match of a key inside a text run.
// Start and End are absolute byte offsets in the document.
type Occurrence struct {
	Key   string
	Kind  Kind
	Start int
	End   int
	Value Value

	Run content.Run
}

type span struct{ start, end int }

// Resolve returns the non-overlapping occurrences of the bound keys in
// text, ordered by start offset. base is the absolute offset of text[0].
//
// Keys are tried longest first and matched literally. A candidate that
// intersects an already accepted span is dropped, so a key never wins over
// a longer key covering the same bytes.
func Resolve(text string, base int, b Bindings) []Occurrence {
	if text == "" || len(b) == 0 || !strings.Contains(text, "{{") {
		return nil
	}

	var accepted []span
	var out []Occurrence
	for _, key := range b.sortedKeys() {
		from := 0
		for from <= len(text)-len(key) {
			i := strings.Index(text[from:], key)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(key)
			from = start + 1

			if overlaps(accepted, start, end) {
				continue
			}
			accepted = append(accepted, span{start, end})
			out = append(out, Occurrence{
				Key:   key,
				Kind:  KindOf(key),
				Start: base + start,
				End:   base + end,
				Value: b[key],
			})
			from = end
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// ResolveRun resolves a single run and tags each occurrence with it.
func ResolveRun(run content.Run, b Bindings) []Occurrence {
	occs := Resolve(run.Node.Text, run.Base, b)
	for i := range occs {
		occs[i].Run = run
	}
	return occs
}

func overlaps(accepted []span, start, end int) bool {
	for _, s := range accepted {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}
