package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
)

// Action is what an edit inserts after deleting its span.
type Action int

const (
	ActionText Action = iota
	ActionImage
)

func (a Action) String() string {
	if a == ActionImage {
		return "delete-and-insert-image"
	}
	return "delete-and-insert-text"
}

// Edit deletes [Start,End) and inserts Payload at Start.
type Edit struct {
	Start   int
	End     int
	Action  Action
	Payload Value
	Key     string

	run content.Run
}

var ErrEditOrder = errors.New("edits overlap or are not in descending order")

// Compile turns occurrences into edits sorted by strictly descending start.
func Compile(occs []Occurrence) []Edit {
	edits := make([]Edit, 0, len(occs))
	for _, o := range occs {
		action := ActionText
		if o.Kind == KindImage {
			action = ActionImage
		}
		edits = append(edits, Edit{
			Start:   o.Start,
			End:     o.End,
			Action:  action,
			Payload: o.Value,
			Key:     o.Key,
			run:     o.Run,
		})
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start > edits[j].Start
		}
		return edits[i].End > edits[j].End
	})
	return edits
}

// Apply performs the edits back to front. Since every edit lands after all
// edits still pending, the offsets of pending edits stay valid.
func Apply(edits []Edit) error {
	for i, e := range edits {
		if i > 0 && e.End > edits[i-1].Start {
			return fmt.Errorf("%w: %s at %d", ErrEditOrder, e.Key, e.Start)
		}
		if err := apply(e); err != nil {
			return err
		}
	}
	return nil
}

func apply(e Edit) error {
	n := e.run.Node
	if n == nil {
		return fmt.Errorf("edit %s at %d: no owning run", e.Key, e.Start)
	}
	text := n.Text
	start, end := e.Start-e.run.Base, e.End-e.run.Base
	if start < 0 || end < start || end > len(text) {
		return fmt.Errorf("edit %s [%d,%d) outside run [%d,%d)", e.Key, e.Start, e.End, e.run.Base, e.run.Base+len(text))
	}

	switch {
	case e.Action == ActionText:
		n.Text = text[:start] + e.Payload.Text + text[end:]
	case e.Payload.IsEmpty():
		n.Text = text[:start] + text[end:]
	default:
		img := imageOf(e.Payload)
		n.Text = text[:start]
		insertAfter(e.run, content.NewImage(img), content.NewText(text[end:]))
	}
	return nil
}

func imageOf(v Value) content.Image {
	if v.Image != nil {
		return *v.Image
	}
	return content.Image{Src: v.Text}
}

func insertAfter(run content.Run, nodes ...*content.Node) {
	p := run.Parent
	if p == nil {
		return
	}
	at := run.Index + 1
	children := make([]*content.Node, 0, len(p.Children)+len(nodes))
	children = append(children, p.Children[:at]...)
	children = append(children, nodes...)
	children = append(children, p.Children[at:]...)
	p.Children = children
}

// Result summarises one substitution pass.
type Result struct {
	Replaced   int
	Unresolved []string // unbound tokens removed, in document order
}

// Substitute resolves b against every run below root and applies the
// resulting edits.
func Substitute(root *content.Node, b Bindings) (Result, error) {
	return SubstituteColumns(root, b, nil)
}

// SubstituteColumns is Substitute for column-bound grids. Runs inside
// column c >= 1 of a table resolve columns[c-1] layered over common, so the
// same key in different columns binds to different items. Column 0 holds
// row labels and uses common only.
//
// Tokens of the template text that no binding claims are deleted in the
// same pass. Inserted values are never scanned for tokens.
func SubstituteColumns(root *content.Node, common Bindings, columns []Bindings) (Result, error) {
	layered := make([]Bindings, len(columns))
	for i, c := range columns {
		layered[i] = Merge(common, c)
	}

	var (
		res  Result
		occs []Occurrence
	)
	for _, run := range content.Runs(root) {
		b := common
		if c := run.Column; c >= 1 && c-1 < len(layered) {
			b = layered[c-1]
		}
		bound := ResolveRun(run, b)
		stray := Unbound(run, bound)
		res.Replaced += len(bound)
		for _, o := range stray {
			res.Unresolved = append(res.Unresolved, o.Key)
		}
		occs = append(occs, bound...)
		occs = append(occs, stray...)
	}
	if err := Apply(Compile(occs)); err != nil {
		return Result{}, err
	}
	return res, nil
}

var leftover = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// Unbound returns the tokens of run that no occurrence in bound touches,
// as occurrences that delete them.
func Unbound(run content.Run, bound []Occurrence) []Occurrence {
	text := run.Node.Text
	if !strings.Contains(text, "{{") {
		return nil
	}
	var out []Occurrence
	for _, loc := range leftover.FindAllStringIndex(text, -1) {
		start, end := run.Base+loc[0], run.Base+loc[1]
		if touches(bound, start, end) {
			continue
		}
		out = append(out, Occurrence{
			Key:   text[loc[0]:loc[1]],
			Kind:  KindText,
			Start: start,
			End:   end,
			Run:   run,
		})
	}
	return out
}

func touches(occs []Occurrence, start, end int) bool {
	for _, o := range occs {
		if start < o.End && end > o.Start {
			return true
		}
	}
	return false
}
