package ir

import "fmt"

// Kind is the closed set of operation shapes a front-end may emit.
// Raw input can carry any string; only the constants below are accepted
// by the walker.
type Kind string

const (
	MemoryDeref       Kind = "MemoryDeref"
	PointerArithmetic Kind = "PointerArithmetic"
	Cast              Kind = "Cast"
	Call              Kind = "Call"
	UnsafeRegionStart Kind = "UnsafeRegionStart"
	UnsafeRegionEnd   Kind = "UnsafeRegionEnd"
	ControlFlow       Kind = "ControlFlow"
	Other             Kind = "Other"
)

var kinds = []Kind{
	MemoryDeref,
	PointerArithmetic,
	Cast,
	Call,
	UnsafeRegionStart,
	UnsafeRegionEnd,
	ControlFlow,
	Other,
}

// Kinds returns every member of the enumeration in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Known reports whether k belongs to the closed enumeration.
func (k Kind) Known() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsMarker reports whether k is an unsafe-region boundary.
func (k Kind) IsMarker() bool {
	return k == UnsafeRegionStart || k == UnsafeRegionEnd
}

// Span is a 1-based line/column range in the analyzed source.
type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

func (s Span) IsZero() bool {
	return s == Span{}
}

// Cover returns the smallest span enclosing both s and o.
// A zero span is treated as empty.
func (s Span) Cover(o Span) Span {
	if s.IsZero() {
		return o
	}
	if o.IsZero() {
		return s
	}
	out := s
	if o.StartLine < out.StartLine || (o.StartLine == out.StartLine && o.StartCol < out.StartCol) {
		out.StartLine, out.StartCol = o.StartLine, o.StartCol
	}
	if o.EndLine > out.EndLine || (o.EndLine == out.EndLine && o.EndCol > out.EndCol) {
		out.EndLine, out.EndCol = o.EndLine, o.EndCol
	}
	return out
}

// String returns "line:col-line:col".
func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// Node is one operation in a function body. A node owns its Children;
// the IR is a tree.
type Node struct {
	Kind     Kind    `json:"kind"`
	Op       string  `json:"op,omitempty"` // operator, callee, cast target or keyword
	Span     Span    `json:"span"`
	Children []*Node `json:"children,omitempty"`
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Unit is the raw (function identifier, IR tree) pair handed over by a
// front-end. Root may contain unsafe markers in flat sibling form.
type Unit struct {
	Name     string `json:"name"`
	File     string `json:"file,omitempty"`
	Language string `json:"language,omitempty"`
	Root     *Node  `json:"root"`
}

// Function is a validated IR tree. It is built once by Build and never
// mutated afterwards.
type Function struct {
	Name     string
	File     string
	Language string

	root *Node
}

// Root returns the folded tree. Callers must treat it as read-only.
func (f *Function) Root() *Node {
	return f.root
}

// Walk visits the function body in pre-order.
func (f *Function) Walk(fn func(*Node) bool) {
	f.root.Walk(fn)
}
