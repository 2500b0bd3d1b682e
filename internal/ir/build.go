package ir

import "fmt"

// MalformedIRError reports a tree that cannot be analyzed, most often
// because unsafe-region markers do not balance.
type MalformedIRError struct {
	Function string
	Span     Span
	Reason   string
}

func (e *MalformedIRError) Error() string {
	if e.Span.IsZero() {
		return fmt.Sprintf("malformed IR in %s: %s", e.Function, e.Reason)
	}
	return fmt.Sprintf("malformed IR in %s at %s: %s", e.Function, e.Span, e.Reason)
}

// Build validates u and returns an immutable Function.
//
// Within every child list, UnsafeRegionStart and UnsafeRegionEnd markers
// must pair up like brackets. Each pair is folded so that the start node
// owns the siblings it encloses and is followed directly by its end node:
//
//	[Start, a, b, End, c]  =>  [Start{a, b}, End, c]
//
// A start node that already has children keeps them and absorbs any further
// siblings up to its end marker. Regions may nest; a marker pair split across
// two child lists is rejected.
func Build(u Unit) (*Function, error) {
	if u.Name == "" {
		return nil, &MalformedIRError{Function: "<anonymous>", Reason: "empty function identifier"}
	}
	if u.Root == nil {
		return nil, &MalformedIRError{Function: u.Name, Reason: "missing root node"}
	}
	if u.Root.Kind.IsMarker() {
		return nil, &MalformedIRError{Function: u.Name, Span: u.Root.Span, Reason: "root node cannot be a region marker"}
	}

	b := builder{function: u.Name}
	children, err := b.fold(u.Root.Children)
	if err != nil {
		return nil, err
	}
	root := &Node{Kind: u.Root.Kind, Op: u.Root.Op, Span: u.Root.Span, Children: children}

	return &Function{
		Name:     u.Name,
		File:     u.File,
		Language: u.Language,
		root:     root,
	}, nil
}

type builder struct {
	function string
}

type openRegion struct {
	start *Node
	body  []*Node
}

func (b *builder) fold(list []*Node) ([]*Node, error) {
	if len(list) == 0 {
		return nil, nil
	}

	var out []*Node
	var stack []*openRegion

	emit := func(n *Node) {
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			top.body = append(top.body, n)
			return
		}
		out = append(out, n)
	}

	for _, raw := range list {
		if raw == nil {
			return nil, &MalformedIRError{Function: b.function, Reason: "nil node in child list"}
		}

		switch raw.Kind {
		case UnsafeRegionStart:
			body, err := b.fold(raw.Children)
			if err != nil {
				return nil, err
			}
			stack = append(stack, &openRegion{start: raw, body: body})

		case UnsafeRegionEnd:
			if len(raw.Children) > 0 {
				return nil, &MalformedIRError{Function: b.function, Span: raw.Span, Reason: "region end marker has children"}
			}
			if len(stack) == 0 {
				return nil, &MalformedIRError{Function: b.function, Span: raw.Span, Reason: "region end without matching start"}
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			emit(&Node{Kind: UnsafeRegionStart, Op: open.start.Op, Span: open.start.Span, Children: open.body})
			emit(&Node{Kind: UnsafeRegionEnd, Op: raw.Op, Span: raw.Span})

		default:
			children, err := b.fold(raw.Children)
			if err != nil {
				return nil, err
			}
			emit(&Node{Kind: raw.Kind, Op: raw.Op, Span: raw.Span, Children: children})
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, &MalformedIRError{Function: b.function, Span: open.start.Span, Reason: "region start without matching end"}
	}
	return out, nil
}
