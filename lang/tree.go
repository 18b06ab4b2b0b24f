// Package lang parses Zeek script source into a concrete syntax tree.
//
// The tree is immutable once built and addressed by node spans, never by
// persisted pointers: every edit reparses the whole file. Nodes carry dual
// byte and row/column addressing so LSP positions round-trip exactly.
package lang

import (
	"strconv"

	"go.lsp.dev/protocol"
)

// Point is a zero-based row/column source position.
type Point struct {
	Row    uint32
	Column uint32
}

// Span covers a source region in both byte and point coordinates. EndByte is
// exclusive.
type Span struct {
	StartByte uint32
	EndByte   uint32
	Start     Point
	End       Point
}

// Node is a single syntax-tree node. Anonymous nodes cover keywords and
// punctuation; named nodes cover language constructs.
type Node struct {
	kind     string
	named    bool
	span     Span
	parent   *Node
	children []*Node
}

// Kind returns the grammar production name, e.g. "id" or "field_access".
func (n *Node) Kind() string { return n.kind }

// IsNamed reports whether the node is a named production rather than a
// keyword or punctuation token.
func (n *Node) IsNamed() bool { return n.named }

// Span returns the source region covered by the node.
func (n *Node) Span() Span { return n.span }

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// ChildCount returns the number of children, named and anonymous.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the i-th child or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns all children in source order.
func (n *Node) Children() []*Node { return n.children }

// NamedChildren returns the named children in source order.
func (n *Node) NamedChildren() []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.named {
			out = append(out, c)
		}
	}
	return out
}

// NamedChild returns the first named child of the given kind, or nil.
func (n *Node) NamedChild(kind string) *Node {
	for _, c := range n.children {
		if c.named && c.kind == kind {
			return c
		}
	}
	return nil
}

// Content renders the node's source text.
func (n *Node) Content(source []byte) string {
	start, end := int(n.span.StartByte), int(n.span.EndByte)
	if start < 0 || end > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}

// Tree is an immutable parse result for one source snapshot.
type Tree struct {
	root  *Node
	lines []uint32 // byte offset of each line start
	size  uint32
}

// Root returns the source_file node.
func (t *Tree) Root() *Node { return t.root }

// OffsetForPoint maps a point to a byte offset. Points on rows outside the
// text yield false; columns past the line end clamp to it, which is where
// end-of-line completions land.
func (t *Tree) OffsetForPoint(p Point) (uint32, bool) {
	if int(p.Row) >= len(t.lines) {
		return 0, false
	}
	off := t.lines[p.Row] + p.Column
	lineEnd := t.size
	if int(p.Row)+1 < len(t.lines) {
		lineEnd = t.lines[p.Row+1] - 1 // before the newline
	}
	if off > lineEnd {
		off = lineEnd
	}
	return off, true
}

// descendantForOffset finds the deepest node whose span contains off, with
// end-inclusive containment so positions right after a token still hit it.
// Ties between adjacent siblings resolve to the later one.
func (t *Tree) descendantForOffset(off uint32, namedOnly bool) *Node {
	n := t.root
	best := n
	for {
		var next *Node
		for _, c := range n.children {
			if c.span.StartByte <= off && off <= c.span.EndByte {
				next = c
			}
		}
		if next == nil {
			return best
		}
		n = next
		if !namedOnly || n.named {
			best = n
		}
	}
}

// DescendantForPoint returns the smallest node covering the point, or nil for
// a point outside the text.
func (t *Tree) DescendantForPoint(p Point) *Node {
	off, ok := t.OffsetForPoint(p)
	if !ok {
		return nil
	}
	return t.descendantForOffset(off, false)
}

// NamedDescendantForPoint is DescendantForPoint restricted to named nodes.
func (t *Tree) NamedDescendantForPoint(p Point) *Node {
	off, ok := t.OffsetForPoint(p)
	if !ok {
		return nil
	}
	return t.descendantForOffset(off, true)
}

// NamedDescendantForSpan returns the smallest named node fully covering the
// byte span, or nil.
func (t *Tree) NamedDescendantForSpan(s Span) *Node {
	var walk func(n *Node) *Node
	walk = func(n *Node) *Node {
		for _, c := range n.children {
			if c.span.StartByte <= s.StartByte && s.EndByte <= c.span.EndByte {
				if got := walk(c); got != nil {
					return got
				}
				if c.named {
					return c
				}
			}
		}
		return nil
	}
	if got := walk(t.root); got != nil {
		return got
	}
	if t.root.span.StartByte <= s.StartByte && s.EndByte <= t.root.span.EndByte {
		return t.root
	}
	return nil
}

// Sexp renders the named structure of a node for debugging and hover output.
func (n *Node) Sexp(source []byte) string {
	if len(n.NamedChildren()) == 0 {
		return "(" + n.kind + " " + strconv.Quote(n.Content(source)) + ")"
	}
	out := "(" + n.kind
	for _, c := range n.NamedChildren() {
		out += " " + c.Sexp(source)
	}
	return out + ")"
}

// FromPosition converts an LSP position to a tree point.
func FromPosition(p protocol.Position) Point {
	return Point{Row: p.Line, Column: p.Character}
}

// ToPosition converts a tree point to an LSP position.
func ToPosition(p Point) protocol.Position {
	return protocol.Position{Line: p.Row, Character: p.Column}
}

// ToRange converts a span to an LSP range.
func ToRange(s Span) protocol.Range {
	return protocol.Range{Start: ToPosition(s.Start), End: ToPosition(s.End)}
}

// SpanForRange reconstructs a byte span for an LSP range against the tree's
// line index. The bool result is false when the range lies outside the text.
func (t *Tree) SpanForRange(r protocol.Range) (Span, bool) {
	start, ok := t.OffsetForPoint(FromPosition(r.Start))
	if !ok {
		return Span{}, false
	}
	end, ok := t.OffsetForPoint(FromPosition(r.End))
	if !ok {
		return Span{}, false
	}
	return Span{
		StartByte: start,
		EndByte:   end,
		Start:     FromPosition(r.Start),
		End:       FromPosition(r.End),
	}, true
}
