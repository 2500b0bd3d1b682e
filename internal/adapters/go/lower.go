package goadapter

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/1homsi/essence/internal/ir"
)

type lowerer struct {
	fset       *token.FileSet
	unsafeName string
	// info is set when the package was type checked. Without it, type
	// positions are recognized from syntax alone.
	info *types.Info
}

// isType reports whether the type checker resolved e to a type.
func (l *lowerer) isType(e ast.Expr) bool {
	if l.info == nil {
		return false
	}
	tv, ok := l.info.Types[e]
	return ok && tv.IsType()
}

func (l *lowerer) span(n ast.Node) ir.Span {
	start, end := l.fset.Position(n.Pos()), l.fset.Position(n.End())
	return ir.Span{StartLine: start.Line, StartCol: start.Column, EndLine: end.Line, EndCol: end.Column}
}

// endSpan covers the last character of n.
func (l *lowerer) endSpan(n ast.Node) ir.Span {
	p := l.fset.Position(n.End() - 1)
	return ir.Span{StartLine: p.Line, StartCol: p.Column, EndLine: p.Line, EndCol: p.Column + 1}
}

func (l *lowerer) function(fn *ast.FuncDecl) *ir.Node {
	return &ir.Node{Kind: ir.Other, Op: "func", Span: l.span(fn), Children: l.children(fn.Body)}
}

// children lowers the direct children of n in source order.
func (l *lowerer) children(n ast.Node) []*ir.Node {
	var out []*ir.Node
	ast.Inspect(n, func(c ast.Node) bool {
		if c == nil {
			return false
		}
		if c == n {
			return true
		}
		out = append(out, l.lower(c)...)
		return false
	})
	return out
}

func (l *lowerer) list(exprs []ast.Expr) []*ir.Node {
	var out []*ir.Node
	for _, e := range exprs {
		out = append(out, l.lower(e)...)
	}
	return out
}

func (l *lowerer) control(op string, n ast.Node, children []*ir.Node) []*ir.Node {
	return []*ir.Node{{Kind: ir.ControlFlow, Op: op, Span: l.span(n), Children: children}}
}

// lower maps one syntax node to zero or more IR nodes. Nodes with no IR
// meaning are transparent and yield their lowered children.
func (l *lowerer) lower(n ast.Node) []*ir.Node {
	if n == nil {
		return nil
	}

	switch n := n.(type) {
	case *ast.BlockStmt, *ast.LabeledStmt, *ast.CaseClause, *ast.CommClause:
		return l.children(n)

	case *ast.IfStmt:
		var children []*ir.Node
		children = append(children, l.lower(n.Init)...)
		children = append(children, l.guarded(n.Cond)...)
		children = append(children, l.lower(n.Body)...)
		children = append(children, l.lower(n.Else)...)
		return l.control("if", n, children)

	case *ast.ForStmt:
		var children []*ir.Node
		children = append(children, l.lower(n.Init)...)
		children = append(children, l.guarded(n.Cond)...)
		children = append(children, l.lower(n.Post)...)
		children = append(children, l.lower(n.Body)...)
		return l.control("for", n, children)

	case *ast.RangeStmt:
		children := l.guarded(n.X)
		children = append(children, l.lower(n.Body)...)
		return l.control("range", n, children)

	case *ast.SwitchStmt:
		var children []*ir.Node
		children = append(children, l.lower(n.Init)...)
		children = append(children, l.guarded(n.Tag)...)
		children = append(children, l.lower(n.Body)...)
		return l.control("switch", n, children)

	case *ast.TypeSwitchStmt:
		var children []*ir.Node
		children = append(children, l.lower(n.Init)...)
		children = append(children, l.lower(n.Assign)...)
		// Case lists of a type switch are types.
		for _, s := range n.Body.List {
			if cc, ok := s.(*ast.CaseClause); ok {
				for _, st := range cc.Body {
					children = append(children, l.lower(st)...)
				}
			}
		}
		return l.control("switch", n, children)

	case *ast.SelectStmt:
		return l.control("select", n, l.lower(n.Body))

	case *ast.BranchStmt:
		if n.Tok == token.GOTO {
			return l.control("goto", n, nil)
		}
		return nil

	case *ast.GoStmt:
		return l.region(n, l.control("go", n, l.children(n)))

	case *ast.DeferStmt:
		return l.region(n, l.control("defer", n, l.children(n)))

	case ast.Stmt:
		return l.region(n, l.children(n))

	case *ast.FuncLit:
		return l.children(n.Body)

	case *ast.StarExpr:
		if l.isType(n) {
			return nil
		}
		return []*ir.Node{{Kind: ir.MemoryDeref, Op: "*", Span: l.span(n), Children: l.lower(n.X)}}

	case *ast.CallExpr:
		return l.call(n)

	case *ast.BinaryExpr:
		if (n.Op == token.ADD || n.Op == token.SUB) && (l.isUintptrConversion(n.X) || l.isUintptrConversion(n.Y)) {
			return []*ir.Node{{Kind: ir.PointerArithmetic, Op: n.Op.String(), Span: l.span(n), Children: l.children(n)}}
		}
		return l.children(n)

	case *ast.CompositeLit:
		return l.list(n.Elts)

	case *ast.TypeAssertExpr:
		return l.lower(n.X)

	case *ast.IndexExpr:
		if l.isType(n.Index) {
			return l.lower(n.X)
		}
		return append(l.lower(n.X), l.lower(n.Index)...)

	case *ast.IndexListExpr:
		// Only generic instantiations have several indices.
		return l.lower(n.X)

	case *ast.ValueSpec:
		return l.list(n.Values)

	case *ast.TypeSpec, *ast.FuncType, *ast.ArrayType, *ast.MapType, *ast.ChanType,
		*ast.StructType, *ast.InterfaceType, *ast.Field, *ast.FieldList, *ast.Ident, *ast.BasicLit:
		return nil
	}

	return l.children(n)
}

// call lowers conversions through package unsafe and uintptr to Cast,
// unsafe.Add to PointerArithmetic and everything else to Call.
func (l *lowerer) call(n *ast.CallExpr) []*ir.Node {
	span := l.span(n)
	args := l.list(l.valueArgs(n))

	switch fun := ast.Unparen(n.Fun).(type) {
	case *ast.StarExpr:
		if _, ok := n.Fun.(*ast.ParenExpr); ok {
			return []*ir.Node{{Kind: ir.Cast, Op: "*" + types.ExprString(fun.X), Span: span, Children: args}}
		}
	case *ast.Ident:
		if fun.Name == "uintptr" {
			return []*ir.Node{{Kind: ir.Cast, Op: "uintptr", Span: span, Children: args}}
		}
	case *ast.SelectorExpr:
		if l.isUnsafe(fun.X) {
			switch fun.Sel.Name {
			case "Pointer":
				return []*ir.Node{{Kind: ir.Cast, Op: "unsafe.Pointer", Span: span, Children: args}}
			case "Add":
				return []*ir.Node{{Kind: ir.PointerArithmetic, Op: "unsafe.Add", Span: span, Children: args}}
			}
			return []*ir.Node{{Kind: ir.Call, Op: "unsafe." + fun.Sel.Name, Span: span, Children: args}}
		}
	case *ast.FuncLit:
		return []*ir.Node{{Kind: ir.Call, Op: "func literal", Span: span, Children: append(l.lower(fun), args...)}}
	}

	fun := n.Fun
	if ix, ok := ast.Unparen(fun).(*ast.IndexExpr); ok && (l.info == nil || l.isType(ix.Index)) {
		// f[T](x) instantiates a generic function; T is a type.
		fun = ix.X
	}
	children := append(l.lower(fun), args...)
	return []*ir.Node{{Kind: ir.Call, Op: types.ExprString(n.Fun), Span: span, Children: children}}
}

// valueArgs drops the type arguments of the new and make builtins.
func (l *lowerer) valueArgs(n *ast.CallExpr) []ast.Expr {
	id, ok := ast.Unparen(n.Fun).(*ast.Ident)
	if !ok || len(n.Args) == 0 {
		return n.Args
	}
	switch id.Name {
	case "new":
		if l.info == nil || l.isType(n.Args[0]) {
			return nil
		}
	case "make":
		return n.Args[1:]
	}
	return n.Args
}

// guarded lowers an expression that sits in a compound statement header,
// bracketing it as a region when it refers to package unsafe.
func (l *lowerer) guarded(e ast.Expr) []*ir.Node {
	if e == nil {
		return nil
	}
	return l.region(e, l.lower(e))
}

// region brackets nodes with region markers when n refers to package
// unsafe outside of a function literal.
func (l *lowerer) region(n ast.Node, nodes []*ir.Node) []*ir.Node {
	if !l.refersToUnsafe(n) {
		return nodes
	}
	out := make([]*ir.Node, 0, len(nodes)+2)
	out = append(out, &ir.Node{Kind: ir.UnsafeRegionStart, Op: "unsafe", Span: l.span(n)})
	out = append(out, nodes...)
	return append(out, &ir.Node{Kind: ir.UnsafeRegionEnd, Span: l.endSpan(n)})
}

func (l *lowerer) refersToUnsafe(n ast.Node) bool {
	if l.unsafeName == "" {
		return false
	}
	found := false
	ast.Inspect(n, func(c ast.Node) bool {
		if found {
			return false
		}
		switch c := c.(type) {
		case *ast.FuncLit:
			return false
		case *ast.SelectorExpr:
			if l.isUnsafe(c.X) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func (l *lowerer) isUnsafe(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && l.unsafeName != "" && id.Name == l.unsafeName
}

func (l *lowerer) isUintptrConversion(e ast.Expr) bool {
	call, ok := ast.Unparen(e).(*ast.CallExpr)
	if !ok {
		return false
	}
	id, ok := ast.Unparen(call.Fun).(*ast.Ident)
	return ok && id.Name == "uintptr"
}
