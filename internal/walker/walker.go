// Package walker implements the single-pass essence traversal.
//
// Walk visits a function's IR in pre-order and keeps an explicit unsafe
// depth counter. UnsafeRegionStart increments the counter before its
// children are visited; the UnsafeRegionEnd that follows it decrements the
// counter. Every other node is offered to the catalog rules in declaration
// order. A rule that requires an unsafe context is skipped while the
// counter is zero, whatever its matcher says.
//
// All state lives in one Walk call, so concurrent walks over different
// functions may share a catalog.
package walker

import (
	"fmt"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/essence"
	"github.com/1homsi/essence/internal/ir"
)

// RegionRuleID is the rule name recorded on UnsafeBlockEntry findings.
const RegionRuleID = "unsafe-region"

// UnknownNodeKindError reports a node outside the closed ir.Kind set. The
// function it occurs in gets no signature.
type UnknownNodeKindError struct {
	Function string
	Kind     ir.Kind
	Span     ir.Span
}

func (e *UnknownNodeKindError) Error() string {
	return fmt.Sprintf("unknown node kind %q in %s at %s", e.Kind, e.Function, e.Span)
}

// Walk returns the findings for fn in the order their nodes were visited.
func Walk(cat *catalog.Catalog, fn *ir.Function) ([]essence.Finding, error) {
	w := &walk{
		function: fn.Name,
		rules:    cat.Rules(),
	}
	if err := w.visit(fn.Root()); err != nil {
		return nil, err
	}
	if w.depth != 0 {
		return nil, &ir.MalformedIRError{Function: fn.Name, Reason: fmt.Sprintf("unsafe depth %d at end of traversal", w.depth)}
	}
	return w.findings, nil
}

type walk struct {
	function  string
	rules     []catalog.Rule
	depth     int
	ancestors []ir.Kind
	findings  []essence.Finding
}

func (w *walk) visit(n *ir.Node) error {
	switch n.Kind {
	case ir.UnsafeRegionStart:
		w.depth++
		w.findings = append(w.findings, essence.Finding{
			Tag:   catalog.UnsafeBlockEntry,
			Rule:  RegionRuleID,
			Span:  n.Span,
			Depth: w.depth,
		})
		return w.visitChildren(n)

	case ir.UnsafeRegionEnd:
		if w.depth == 0 {
			return &ir.MalformedIRError{Function: w.function, Span: n.Span, Reason: "region end without matching start"}
		}
		w.depth--
		return nil
	}

	if !n.Kind.Known() {
		return &UnknownNodeKindError{Function: w.function, Kind: n.Kind, Span: n.Span}
	}

	w.apply(n)
	return w.visitChildren(n)
}

func (w *walk) visitChildren(n *ir.Node) error {
	if len(n.Children) == 0 {
		return nil
	}
	w.ancestors = append(w.ancestors, n.Kind)
	defer func() { w.ancestors = w.ancestors[:len(w.ancestors)-1] }()

	for _, c := range n.Children {
		if err := w.visit(c); err != nil {
			return err
		}
	}
	return nil
}

// apply evaluates every rule at n. When two rules emit the same tag for the
// same node, only the first one is kept.
func (w *walk) apply(n *ir.Node) {
	ctx := catalog.Context{Depth: w.depth, Ancestors: w.ancestors}
	var emitted []catalog.Tag

	for i := range w.rules {
		r := &w.rules[i]
		if r.RequiresUnsafe && w.depth == 0 {
			continue
		}
		if !r.Matches(n, ctx) {
			continue
		}
		if containsTag(emitted, r.Tag) {
			continue
		}
		emitted = append(emitted, r.Tag)
		w.findings = append(w.findings, essence.Finding{
			Tag:   r.Tag,
			Rule:  r.ID,
			Span:  n.Span,
			Depth: w.depth,
		})
	}
}

func containsTag(tags []catalog.Tag, t catalog.Tag) bool {
	for _, x := range tags {
		if x == t {
			return true
		}
	}
	return false
}
