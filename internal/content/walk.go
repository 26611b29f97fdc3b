package content

import "strconv"

// Location describes where a visited node sits in the tree.
type Location struct {
	Parent *Node
	Index  int
	Depth  int

	// Column is the position of the enclosing cell in the outermost table
	// row, or -1. The leading label cell is column 0 whatever its colspan;
	// each later cell advances the count by its colspan. Cells of nested
	// tables inherit the column of the cell containing them.
	Column int

	// SubPage is the name of the innermost enclosing sub-page, if any.
	SubPage string

	tableDepth int
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the children of the visited node.
func Walk(n *Node, fn func(*Node, Location) bool) {
	if n == nil {
		return
	}
	walk(n, Location{Index: -1, Column: -1}, fn)
}

func walk(n *Node, loc Location, fn func(*Node, Location) bool) {
	if n.SubPage != "" {
		loc.SubPage = n.SubPage
	}
	if !fn(n, loc) {
		return
	}

	child := loc
	child.Parent = n
	child.Depth = loc.Depth + 1
	if n.Kind == KindTable {
		child.tableDepth = loc.tableDepth + 1
	}

	cell := 0
	for i, c := range n.Children {
		cl := child
		cl.Index = i
		if n.Kind == KindRow && c.Kind == KindCell {
			if child.tableDepth <= 1 {
				cl.Column = cell
			}
			if cell == 0 {
				cell = 1
			} else {
				cell += colspan(c)
			}
		}
		walk(c, cl, fn)
	}
}

// colspan returns the number of grid columns a cell covers.
func colspan(c *Node) int {
	v, ok := c.Attr("colspan")
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Run is a text run together with its position in the tree.
type Run struct {
	Node   *Node
	Parent *Node
	Index  int

	// Base is the document-wide byte offset of the run's first byte.
	Base int

	Column  int
	SubPage string
}

// End returns the offset one past the run's last byte.
func (r Run) End() int {
	return r.Base + len(r.Node.Text)
}

// Runs lists the text runs below root in document order.
func Runs(root *Node) []Run {
	var runs []Run
	offset := 0
	Walk(root, func(n *Node, loc Location) bool {
		if n.Kind == KindRaw {
			return false
		}
		if n.Kind != KindText {
			return true
		}
		runs = append(runs, Run{
			Node:    n,
			Parent:  loc.Parent,
			Index:   loc.Index,
			Base:    offset,
			Column:  loc.Column,
			SubPage: loc.SubPage,
		})
		offset += len(n.Text)
		return true
	})
	return runs
}

// RemoveSubPage removes every node that starts the named sub-page and
// reports how many were removed.
func RemoveSubPage(root *Node, name string) int {
	if root == nil || name == "" {
		return 0
	}
	removed := 0
	var prune func(*Node)
	prune = func(n *Node) {
		kept := n.Children[:0]
		for _, c := range n.Children {
			if c.SubPage == name {
				removed++
				continue
			}
			kept = append(kept, c)
		}
		for i := len(kept); i < len(n.Children); i++ {
			n.Children[i] = nil
		}
		n.Children = kept
		for _, c := range n.Children {
			prune(c)
		}
	}
	prune(root)
	return removed
}

// SubPages returns the distinct sub-page names declared below root.
func SubPages(root *Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(root, func(n *Node, _ Location) bool {
		if n.SubPage != "" && !seen[n.SubPage] {
			seen[n.SubPage] = true
			names = append(names, n.SubPage)
		}
		return true
	})
	return names
}
