package catalog

import (
	"regexp"
	"slices"

	"github.com/1homsi/essence/internal/ir"
)

// ContextReq constrains the unsafe depth at which a rule may match.
type ContextReq string

const (
	AnyContext    ContextReq = "any"
	UnsafeContext ContextReq = "unsafe" // depth > 0
	SafeContext   ContextReq = "safe"   // depth == 0
)

func (c ContextReq) valid() bool {
	return c == AnyContext || c == UnsafeContext || c == SafeContext
}

// Context is the walker state a rule sees at a node.
type Context struct {
	Depth     int
	Ancestors []ir.Kind // outermost first, excluding the node itself
}

// Rule matches IR node shapes and emits Tag.
type Rule struct {
	ID          string
	Tag         Tag
	Description string

	Kinds     []ir.Kind
	Ops       []string       // exact match on Node.Op; empty matches any op
	OpPattern *regexp.Regexp // optional, applied when Ops does not match
	Within    []ir.Kind      // some ancestor must have one of these kinds
	Context   ContextReq

	// RequiresUnsafe marks rules that the walker only evaluates at depth > 0.
	RequiresUnsafe bool
}

// Matches reports whether n in ctx satisfies the rule's matcher.
func (r *Rule) Matches(n *ir.Node, ctx Context) bool {
	if n == nil || !slices.Contains(r.Kinds, n.Kind) {
		return false
	}

	switch r.Context {
	case UnsafeContext:
		if ctx.Depth == 0 {
			return false
		}
	case SafeContext:
		if ctx.Depth > 0 {
			return false
		}
	}

	if !r.matchOp(n.Op) {
		return false
	}

	if len(r.Within) > 0 {
		found := false
		for _, a := range ctx.Ancestors {
			if slices.Contains(r.Within, a) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *Rule) matchOp(op string) bool {
	if len(r.Ops) == 0 && r.OpPattern == nil {
		return true
	}
	if slices.Contains(r.Ops, op) {
		return true
	}
	return r.OpPattern != nil && r.OpPattern.MatchString(op)
}
