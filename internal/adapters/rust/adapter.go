// Package rustadapter lowers Rust source to essence IR using the tree-sitter
// Rust grammar.
package rustadapter

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	ts "github.com/1homsi/essence/internal/adapters/treesitter"
	"github.com/1homsi/essence/internal/ir"
)

// Adapter implements the analyzer front-end interface for Rust sources.
type Adapter struct{}

func (a *Adapter) Name() string { return "rust" }

// Load parses path (a .rs file or a directory of them) into IR units.
func (a *Adapter) Load(ctx context.Context, path string) ([]ir.Unit, error) {
	files, err := ts.CollectFiles(path, ".rs")
	if err != nil {
		return nil, err
	}
	var units []ir.Unit
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		fileUnits, err := a.ParseSource(ctx, f, src)
		if err != nil {
			return nil, err
		}
		units = append(units, fileUnits...)
	}
	return units, nil
}

// ParseSource lowers every function item in src, including methods
// (named "Type::method") and items nested in modules.
func (a *Adapter) ParseSource(ctx context.Context, filename string, src []byte) ([]ir.Unit, error) {
	root, err := ts.Parse(ctx, rust.GetLanguage(), src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	c := &converter{ctx: ctx, src: src}
	var units []ir.Unit
	var collect func(n *sitter.Node, prefix string)
	collect = func(n *sitter.Node, prefix string) {
		for _, child := range ts.NamedChildren(n) {
			switch child.Type() {
			case "function_item":
				nameNode := ts.Field(child, "name")
				if nameNode == nil {
					continue
				}
				name := nameNode.Content(src)
				units = append(units, ir.Unit{
					Name:     prefix + name,
					File:     filename,
					Language: "rust",
					Root:     c.function(child),
				})
				collect(child, prefix+name+"::")
			case "impl_item":
				typ := ts.Field(child, "type")
				p := prefix
				if typ != nil {
					p += typ.Content(src) + "::"
				}
				collect(child, p)
			case "mod_item", "trait_item":
				name := ts.Field(child, "name")
				p := prefix
				if name != nil {
					p += name.Content(src) + "::"
				}
				collect(child, p)
			default:
				collect(child, prefix)
			}
		}
	}
	collect(root, "")
	return units, nil
}

type converter struct {
	ctx context.Context
	src []byte
}

// function builds the root node for a function item. The body of an
// `unsafe fn` is one unsafe region.
func (c *converter) function(fn *sitter.Node) *ir.Node {
	root := &ir.Node{Kind: ir.Other, Op: "fn", Span: ts.Span(fn)}
	body := ts.Field(fn, "body")
	if body == nil {
		return root
	}

	children := c.children(body)
	if isUnsafeFn(fn, c.src) {
		root.Children = []*ir.Node{
			{Kind: ir.UnsafeRegionStart, Op: "unsafe fn", Span: ts.Span(body), Children: children},
			{Kind: ir.UnsafeRegionEnd, Span: ts.EndSpan(body)},
		}
		return root
	}
	root.Children = children
	return root
}

func isUnsafeFn(fn *sitter.Node, src []byte) bool {
	for _, child := range ts.NamedChildren(fn) {
		if child.Type() == "function_modifiers" && strings.Contains(child.Content(src), "unsafe") {
			return true
		}
	}
	return false
}

func (c *converter) children(n *sitter.Node) []*ir.Node {
	var out []*ir.Node
	for _, child := range ts.NamedChildren(n) {
		out = append(out, c.convert(child)...)
	}
	return out
}

// convert lowers one syntax node. Nodes with no IR meaning are transparent:
// their lowered children are returned in their place.
func (c *converter) convert(n *sitter.Node) []*ir.Node {
	span := ts.Span(n)

	switch n.Type() {
	case "function_item", "impl_item", "mod_item", "trait_item":
		// Lowered as separate units.
		return nil

	case "unsafe_block":
		return []*ir.Node{
			{Kind: ir.UnsafeRegionStart, Op: "unsafe", Span: span, Children: c.children(n)},
			{Kind: ir.UnsafeRegionEnd, Span: ts.EndSpan(n)},
		}

	case "unary_expression":
		if ts.Operator(n) == "*" {
			return []*ir.Node{{Kind: ir.MemoryDeref, Op: "*", Span: span, Children: c.children(n)}}
		}

	case "call_expression":
		op, recv := c.callee(ts.Field(n, "function"))
		var children []*ir.Node
		if recv != nil {
			children = append(children, c.convert(recv)...)
		}
		children = append(children, c.children(ts.Field(n, "arguments"))...)
		return []*ir.Node{{Kind: ir.Call, Op: op, Span: span, Children: children}}

	case "type_cast_expression":
		op := ""
		if typ := ts.Field(n, "type"); typ != nil {
			op = typ.Content(c.src)
		}
		var children []*ir.Node
		if v := ts.Field(n, "value"); v != nil {
			children = c.convert(v)
		}
		return []*ir.Node{{Kind: ir.Cast, Op: op, Span: span, Children: children}}

	case "macro_invocation":
		name := ""
		if m := ts.Field(n, "macro"); m != nil {
			name = lastSegment(m.Content(c.src))
		}
		switch name {
		case "asm", "global_asm", "llvm_asm", "naked_asm":
			return []*ir.Node{{Kind: ir.Call, Op: name, Span: span}}
		}
		for _, child := range ts.NamedChildren(n) {
			if child.Type() == "token_tree" {
				return c.macroArgs(child)
			}
		}
		return nil

	case "loop_expression":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "loop", Span: span, Children: c.children(n)}}
	case "for_expression":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "for", Span: span, Children: c.children(n)}}
	case "while_expression", "while_let_expression":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "while", Span: span, Children: c.children(n)}}
	case "if_expression", "if_let_expression":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "if", Span: span, Children: c.children(n)}}
	case "match_expression":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "match", Span: span, Children: c.children(n)}}
	}

	return c.children(n)
}

// macroPrefix opens the function a macro token tree is wrapped in before
// it is reparsed.
const macroPrefix = "fn __m(){"

// macroArgs lowers the token tree of a macro invocation. The grammar keeps
// macro arguments as raw tokens, so the tree (delimiters included) is
// reparsed as an expression statement and the resulting spans are moved
// back to where the tokens sit in the original source.
func (c *converter) macroArgs(tt *sitter.Node) []*ir.Node {
	wrapped := []byte(macroPrefix + tt.Content(c.src) + ";}")
	root, err := ts.Parse(c.ctx, rust.GetLanguage(), wrapped)
	if err != nil {
		return nil
	}
	var body *sitter.Node
	for _, child := range ts.NamedChildren(root) {
		if child.Type() == "function_item" {
			body = ts.Field(child, "body")
			break
		}
	}
	if body == nil {
		return nil
	}

	inner := &converter{ctx: c.ctx, src: wrapped}
	nodes := inner.children(body)
	origin := tt.StartPoint()
	for _, n := range nodes {
		n.Walk(func(n *ir.Node) bool {
			n.Span = shiftSpan(n.Span, origin)
			return true
		})
	}
	return nodes
}

// shiftSpan maps a span in the wrapped macro source back to the original
// file. Only the first wrapped line carries the prefix.
func shiftSpan(s ir.Span, origin sitter.Point) ir.Span {
	move := func(line, col int) (int, int) {
		if line == 1 {
			return int(origin.Row) + 1, col - len(macroPrefix) + int(origin.Column)
		}
		return line + int(origin.Row), col
	}
	s.StartLine, s.StartCol = move(s.StartLine, s.StartCol)
	s.EndLine, s.EndCol = move(s.EndLine, s.EndCol)
	return s
}

// callee returns the operation name of a call target and, for method calls,
// the receiver expression.
func (c *converter) callee(fn *sitter.Node) (string, *sitter.Node) {
	if fn == nil {
		return "", nil
	}
	switch fn.Type() {
	case "field_expression":
		field := ts.Field(fn, "field")
		if field == nil {
			return fn.Content(c.src), nil
		}
		return field.Content(c.src), ts.Field(fn, "value")
	case "generic_function":
		return c.callee(ts.Field(fn, "function"))
	case "identifier", "scoped_identifier":
		return fn.Content(c.src), nil
	}
	return fn.Content(c.src), fn
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}
