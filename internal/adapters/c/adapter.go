// Package cadapter lowers C source to essence IR using the tree-sitter C
// grammar. C has no unsafe regions, so the IR never carries markers.
//
// The converter also understands the C++ constructs the C++ front-end
// hands it (new, delete, named casts, range-for, std::thread objects).
package cadapter

import (
	"context"
	"fmt"
	"os"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
	tsc "github.com/smacker/go-tree-sitter/c"

	ts "github.com/1homsi/essence/internal/adapters/treesitter"
	"github.com/1homsi/essence/internal/ir"
)

// Adapter implements the analyzer front-end interface for C sources.
type Adapter struct{}

func (a *Adapter) Name() string { return "c" }

// Load parses path (a .c/.h file or a directory of them) into IR units.
func (a *Adapter) Load(ctx context.Context, path string) ([]ir.Unit, error) {
	files, err := ts.CollectFiles(path, ".c", ".h")
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

// ParseSource lowers every function definition in src.
func (a *Adapter) ParseSource(ctx context.Context, filename string, src []byte) ([]ir.Unit, error) {
	return Lower(ctx, tsc.GetLanguage(), "c", filename, src)
}

// Lower parses src with grammar and lowers every function definition,
// including definitions nested in preprocessor conditionals and, for C++,
// in namespaces, classes, templates and extern blocks. Nested scopes
// prefix the name ("ns::Class::method"). A name defined more than once in
// the file (overloads, #ifdef variants) gets a "#N" suffix from its second
// definition on.
func Lower(ctx context.Context, grammar *sitter.Language, language, filename string, src []byte) ([]ir.Unit, error) {
	root, err := ts.Parse(ctx, grammar, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	conv := &converter{src: src}
	seen := make(map[string]int)
	var units []ir.Unit
	var collect func(n *sitter.Node, prefix string)
	collect = func(n *sitter.Node, prefix string) {
		for _, child := range ts.NamedChildren(n) {
			switch child.Type() {
			case "function_definition":
				name := functionName(ts.Field(child, "declarator"), src)
				if name == "" {
					continue
				}
				name = prefix + name
				seen[name]++
				if c := seen[name]; c > 1 {
					name += "#" + strconv.Itoa(c)
				}
				fn := &ir.Node{Kind: ir.Other, Op: "fn", Span: ts.Span(child)}
				if body := ts.Field(child, "body"); body != nil {
					fn.Children = conv.children(body)
				}
				units = append(units, ir.Unit{Name: name, File: filename, Language: language, Root: fn})
			case "namespace_definition", "class_specifier", "struct_specifier", "union_specifier":
				p := prefix
				if nameNode := ts.Field(child, "name"); nameNode != nil {
					p += nameNode.Content(src) + "::"
				}
				collect(ts.Field(child, "body"), p)
			case "template_declaration", "linkage_specification", "declaration_list", "field_declaration_list",
				"preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
				collect(child, prefix)
			}
		}
	}
	collect(root, "")
	return units, nil
}

// functionName digs through pointer, reference and function declarators
// to the declared name.
func functionName(decl *sitter.Node, src []byte) string {
	for decl != nil {
		switch decl.Type() {
		case "identifier", "field_identifier", "qualified_identifier", "destructor_name",
			"operator_name", "template_function":
			return decl.Content(src)
		case "function_declarator", "pointer_declarator", "reference_declarator",
			"parenthesized_declarator", "attributed_declarator":
			next := ts.Field(decl, "declarator")
			if next == nil {
				children := ts.NamedChildren(decl)
				if len(children) == 0 {
					return ""
				}
				next = children[0]
			}
			decl = next
		default:
			return ""
		}
	}
	return ""
}

type converter struct {
	src []byte
}

func (c *converter) children(n *sitter.Node) []*ir.Node {
	var out []*ir.Node
	for _, child := range ts.NamedChildren(n) {
		out = append(out, c.convert(child)...)
	}
	return out
}

func (c *converter) convert(n *sitter.Node) []*ir.Node {
	if n == nil {
		return nil
	}
	span := ts.Span(n)

	switch n.Type() {
	case "pointer_expression":
		if ts.Operator(n) != "*" {
			break
		}
		arg := ts.Field(n, "argument")
		return []*ir.Node{{Kind: ir.MemoryDeref, Op: "*", Span: span, Children: c.derefOperand(arg)}}

	case "subscript_expression":
		// a[i] is *(a + i).
		var children []*ir.Node
		for _, child := range ts.NamedChildren(n) {
			children = append(children, c.convert(child)...)
		}
		return []*ir.Node{{
			Kind: ir.MemoryDeref, Op: "[]", Span: span,
			Children: []*ir.Node{{Kind: ir.PointerArithmetic, Op: "[]", Span: span, Children: children}},
		}}

	case "field_expression":
		if arg := ts.Field(n, "argument"); arg != nil && arg.Type() == "this" {
			break
		}
		if ts.Operator(n) == "->" {
			return []*ir.Node{{Kind: ir.MemoryDeref, Op: "->", Span: span, Children: c.children(n)}}
		}

	case "cast_expression":
		op := ""
		if typ := ts.Field(n, "type"); typ != nil {
			op = typ.Content(c.src)
		}
		return []*ir.Node{{Kind: ir.Cast, Op: op, Span: span, Children: c.convert(ts.Field(n, "value"))}}

	case "call_expression":
		op := ""
		var children []*ir.Node
		if fn := ts.Field(n, "function"); c.isNamedCast(fn) {
			return []*ir.Node{{Kind: ir.Cast, Op: fn.Content(c.src), Span: span, Children: c.children(ts.Field(n, "arguments"))}}
		}
		if fn := ts.Field(n, "function"); fn != nil {
			op = fn.Content(c.src)
			if fn.Type() != "identifier" {
				children = append(children, c.convert(fn)...)
			}
		}
		children = append(children, c.children(ts.Field(n, "arguments"))...)
		return []*ir.Node{{Kind: ir.Call, Op: op, Span: span, Children: children}}

	case "new_expression":
		return []*ir.Node{{Kind: ir.Call, Op: "new", Span: span, Children: c.children(n)}}
	case "delete_expression":
		return []*ir.Node{{Kind: ir.Call, Op: "delete", Span: span, Children: c.children(n)}}

	case "declaration":
		// std::thread t(fn) starts a thread by constructing an object.
		if typ := ts.Field(n, "type"); typ != nil && threadTypes[typ.Content(c.src)] {
			return []*ir.Node{{Kind: ir.Call, Op: typ.Content(c.src), Span: span, Children: c.children(n)}}
		}

	case "gnu_asm_expression", "asm_statement":
		return []*ir.Node{{Kind: ir.Call, Op: "asm", Span: span}}

	case "for_statement", "for_range_loop":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "for", Span: span, Children: c.children(n)}}
	case "while_statement":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "while", Span: span, Children: c.children(n)}}
	case "do_statement":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "do", Span: span, Children: c.children(n)}}
	case "if_statement":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "if", Span: span, Children: c.children(n)}}
	case "switch_statement":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "switch", Span: span, Children: c.children(n)}}
	case "goto_statement":
		return []*ir.Node{{Kind: ir.ControlFlow, Op: "goto", Span: span}}
	}

	return c.children(n)
}

var namedCasts = map[string]bool{
	"static_cast":      true,
	"dynamic_cast":     true,
	"const_cast":       true,
	"reinterpret_cast": true,
	"bit_cast":         true,
}

// isNamedCast reports whether fn is a C++ named cast such as
// reinterpret_cast<T*> or std::bit_cast<T>.
func (c *converter) isNamedCast(fn *sitter.Node) bool {
	for fn != nil && fn.Type() == "qualified_identifier" {
		fn = ts.Field(fn, "name")
	}
	if fn == nil || fn.Type() != "template_function" {
		return false
	}
	name := ts.Field(fn, "name")
	return name != nil && namedCasts[name.Content(c.src)]
}

var threadTypes = map[string]bool{
	"std::thread":  true,
	"std::jthread": true,
	"thread":       true,
	"jthread":      true,
}

// derefOperand lowers the operand of *expr, recognizing *(p + n) and
// *(p - n) as pointer arithmetic.
func (c *converter) derefOperand(arg *sitter.Node) []*ir.Node {
	inner := arg
	for inner != nil && inner.Type() == "parenthesized_expression" {
		children := ts.NamedChildren(inner)
		if len(children) != 1 {
			break
		}
		inner = children[0]
	}
	if inner != nil && inner.Type() == "binary_expression" {
		if op := ts.Operator(inner); op == "+" || op == "-" {
			return []*ir.Node{{Kind: ir.PointerArithmetic, Op: op, Span: ts.Span(inner), Children: c.children(inner)}}
		}
	}
	return c.convert(arg)
}
