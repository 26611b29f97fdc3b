// Package placeholder finds {{KEY}} tokens in content trees and rewrites
// them with bound values.
package placeholder

import (
	"sort"
	"strings"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
)

// Kind distinguishes text placeholders from image slots.
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "text"
}

const imagePrefix = "{{IMAGE_"

// KindOf reports the kind of a placeholder key.
func KindOf(key string) Kind {
	if strings.HasPrefix(key, imagePrefix) {
		return KindImage
	}
	return KindText
}

// Key wraps a bare name in placeholder braces.
func Key(name string) string {
	return "{{" + name + "}}"
}

// Value is the replacement bound to one key in one rendering context.
type Value struct {
	Text  string
	Image *content.Image
}

// Text returns a text value.
func Text(s string) Value {
	return Value{Text: s}
}

// ImageValue returns an image value.
func ImageValue(img content.Image) Value {
	return Value{Image: &img}
}

// IsEmpty reports whether the value inserts nothing.
func (v Value) IsEmpty() bool {
	if v.Image != nil {
		return v.Image.Src == ""
	}
	return v.Text == ""
}

// Bindings maps placeholder keys, braces included, to their values.
type Bindings map[string]Value

// Set binds a text value and returns b.
func (b Bindings) Set(key, text string) Bindings {
	b[key] = Text(text)
	return b
}

// Merge returns a new map holding base overlaid with top.
func Merge(base, top Bindings) Bindings {
	out := make(Bindings, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

// Blank returns a copy of b with every value emptied.
func Blank(b Bindings) Bindings {
	out := make(Bindings, len(b))
	for k := range b {
		out[k] = Value{}
	}
	return out
}

// sortedKeys orders keys longest first so a key that contains another
// claims its span before the shorter one is considered.
func (b Bindings) sortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
