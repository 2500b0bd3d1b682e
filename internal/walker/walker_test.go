package walker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/essence"
	"github.com/1homsi/essence/internal/ir"
)

func at(line, col int) ir.Span {
	return ir.Span{StartLine: line, StartCol: col, EndLine: line, EndCol: col + 10}
}

func node(k ir.Kind, op string, span ir.Span, children ...*ir.Node) *ir.Node {
	return &ir.Node{Kind: k, Op: op, Span: span, Children: children}
}

func build(t *testing.T, name string, root *ir.Node) *ir.Function {
	t.Helper()
	fn, err := ir.Build(ir.Unit{Name: name, Root: root})
	require.NoError(t, err)
	return fn
}

// unsafeReadFixture mirrors:
//
//	pub fn unsafe_read(ptr: *const i32, offset: isize) -> i32 {
//	    unsafe {
//	        *ptr.offset(offset)
//	    }
//	}
func unsafeReadFixture() *ir.Node {
	return node(ir.Other, "fn", ir.Span{StartLine: 4, StartCol: 1, EndLine: 8, EndCol: 2},
		node(ir.UnsafeRegionStart, "unsafe", at(5, 5),
			node(ir.MemoryDeref, "*", at(6, 9),
				node(ir.Call, "offset", at(6, 10)),
			),
		),
		node(ir.UnsafeRegionEnd, "", at(7, 5)),
	)
}

func tags(findings []essence.Finding) []catalog.Tag {
	out := make([]catalog.Tag, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Tag)
	}
	return out
}

func TestWalkUnsafeReadFixture(t *testing.T) {
	cat := catalog.MustForLanguage("rust")
	fn := build(t, "unsafe_read", unsafeReadFixture())

	findings, err := Walk(cat, fn)
	require.NoError(t, err)

	assert.Equal(t, []catalog.Tag{
		catalog.UnsafeBlockEntry,
		catalog.RawPointerDeref,
		catalog.PointerOffsetArithmetic,
	}, tags(findings))
	for _, f := range findings {
		assert.Equal(t, 1, f.Depth)
	}

	sig := essence.Aggregate(fn.Name, findings)
	assert.True(t, sig.Has(catalog.RawPointerDeref))
	assert.True(t, sig.Has(catalog.PointerOffsetArithmetic))
	assert.Equal(t, 1, sig.MaxDepth)
}

func TestWalkDerefOutsideUnsafe(t *testing.T) {
	cat := catalog.MustForLanguage("rust")
	root := node(ir.Other, "fn", at(1, 1),
		node(ir.MemoryDeref, "*", at(2, 5),
			node(ir.Call, "offset", at(2, 6)),
		),
	)

	findings, err := Walk(cat, build(t, "safe_read", root))
	require.NoError(t, err)

	assert.Equal(t, []catalog.Tag{
		catalog.UnguardedPointerDeref,
		catalog.PointerOffsetArithmetic,
	}, tags(findings))
	for _, f := range findings {
		assert.Equal(t, 0, f.Depth)
	}
}

func TestWalkNoRegionsNeverEmitsUnsafeOnlyTags(t *testing.T) {
	for _, lang := range catalog.Languages() {
		cat := catalog.MustForLanguage(lang)
		root := node(ir.Other, "fn", at(1, 1),
			node(ir.MemoryDeref, "*", at(2, 1), node(ir.Call, "read", at(2, 2))),
			node(ir.Cast, "*const u8", at(3, 1)),
			node(ir.Call, "unsafe.Slice", at(4, 1)),
			node(ir.ControlFlow, "for", at(5, 1), node(ir.MemoryDeref, "*", at(6, 1))),
		)

		findings, err := Walk(cat, build(t, "f", root))
		require.NoError(t, err, lang)

		unsafeOnly := map[string]bool{}
		for _, r := range cat.Rules() {
			if r.RequiresUnsafe {
				unsafeOnly[r.ID] = true
			}
		}
		for _, f := range findings {
			assert.False(t, unsafeOnly[f.Rule], "%s: rule %s fired outside unsafe", lang, f.Rule)
			assert.Equal(t, 0, f.Depth)
		}
		assert.Equal(t, 0, essence.Aggregate("f", findings).MaxDepth)
	}
}

func TestWalkEnforcesRequiresUnsafe(t *testing.T) {
	// The matcher accepts any depth; the flag alone must keep it silent.
	cat, err := catalog.New("inline", "test", []catalog.Rule{
		{ID: "deref", Tag: catalog.RawPointerDeref, Kinds: []ir.Kind{ir.MemoryDeref}, Context: catalog.AnyContext, RequiresUnsafe: true},
	})
	require.NoError(t, err)

	outside := node(ir.Other, "fn", at(1, 1), node(ir.MemoryDeref, "*", at(2, 1)))
	findings, err := Walk(cat, build(t, "f", outside))
	require.NoError(t, err)
	assert.Empty(t, findings)

	inside := node(ir.Other, "fn", at(1, 1),
		node(ir.UnsafeRegionStart, "", at(2, 1), node(ir.MemoryDeref, "*", at(3, 1))),
		node(ir.UnsafeRegionEnd, "", at(4, 1)),
	)
	findings, err = Walk(cat, build(t, "g", inside))
	require.NoError(t, err)
	assert.Equal(t, []catalog.Tag{catalog.UnsafeBlockEntry, catalog.RawPointerDeref}, tags(findings))
}

func TestWalkNestedRegions(t *testing.T) {
	cat := catalog.MustForLanguage("rust")
	root := node(ir.Other, "fn", at(1, 1),
		node(ir.UnsafeRegionStart, "", at(2, 1)),
		node(ir.MemoryDeref, "*", at(3, 1)),
		node(ir.UnsafeRegionStart, "", at(4, 1)),
		node(ir.MemoryDeref, "*", at(5, 1)),
		node(ir.UnsafeRegionEnd, "", at(6, 1)),
		node(ir.UnsafeRegionEnd, "", at(7, 1)),
		node(ir.ControlFlow, "loop", at(8, 1)),
	)

	findings, err := Walk(cat, build(t, "nested", root))
	require.NoError(t, err)

	depths := make([]int, 0, len(findings))
	for _, f := range findings {
		depths = append(depths, f.Depth)
	}
	assert.Equal(t, []catalog.Tag{
		catalog.UnsafeBlockEntry,
		catalog.RawPointerDeref,
		catalog.UnsafeBlockEntry,
		catalog.RawPointerDeref,
		catalog.HotLoop,
	}, tags(findings))
	assert.Equal(t, []int{1, 1, 2, 2, 0}, depths)
	assert.Equal(t, 2, essence.Aggregate("nested", findings).MaxDepth)
}

func TestWalkProgramOrder(t *testing.T) {
	cat := catalog.MustForLanguage("c")
	root := node(ir.Other, "fn", at(1, 1),
		node(ir.ControlFlow, "for", at(2, 1),
			node(ir.MemoryDeref, "[]", at(3, 5), node(ir.PointerArithmetic, "[]", at(3, 5))),
		),
		node(ir.Call, "free", at(5, 1)),
	)

	findings, err := Walk(cat, build(t, "f", root))
	require.NoError(t, err)
	assert.Equal(t, []catalog.Tag{
		catalog.HotLoop,
		catalog.UnguardedPointerDeref,
		catalog.PointerOffsetArithmetic,
		catalog.ManualMemoryManagement,
	}, tags(findings))
}

func TestWalkDeterministic(t *testing.T) {
	cat := catalog.MustForLanguage("rust")
	fn := build(t, "unsafe_read", unsafeReadFixture())

	first, err := Walk(cat, fn)
	require.NoError(t, err)
	second, err := Walk(cat, fn)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, essence.Aggregate("f", first).Digest(), essence.Aggregate("f", second).Digest())
}

func TestWalkTieBreakKeepsFirstRule(t *testing.T) {
	cat, err := catalog.New("inline", "test", []catalog.Rule{
		{ID: "first", Tag: catalog.PointerOffsetArithmetic, Kinds: []ir.Kind{ir.Call}, Ops: []string{"offset"}},
		{ID: "second", Tag: catalog.PointerOffsetArithmetic, Kinds: []ir.Kind{ir.Call}},
		{ID: "other-tag", Tag: catalog.UnsafeCall, Kinds: []ir.Kind{ir.Call}},
	})
	require.NoError(t, err)

	root := node(ir.Other, "fn", at(1, 1), node(ir.Call, "offset", at(2, 1)))
	findings, err := Walk(cat, build(t, "f", root))
	require.NoError(t, err)

	require.Len(t, findings, 2)
	assert.Equal(t, "first", findings[0].Rule)
	assert.Equal(t, catalog.UnsafeCall, findings[1].Tag)
}

func TestWalkUnknownNodeKind(t *testing.T) {
	cat := catalog.MustForLanguage("rust")
	root := node(ir.Other, "fn", at(1, 1),
		node(ir.MemoryDeref, "*", at(2, 1)),
		node(ir.Kind("Yield"), "", at(3, 1)),
	)

	findings, err := Walk(cat, build(t, "gen", root))
	assert.Nil(t, findings)

	var kErr *UnknownNodeKindError
	require.True(t, errors.As(err, &kErr))
	assert.Equal(t, "gen", kErr.Function)
	assert.Equal(t, ir.Kind("Yield"), kErr.Kind)
	assert.Equal(t, 3, kErr.Span.StartLine)
}

func TestWalkMarkersNotMatchedByRules(t *testing.T) {
	cat, err := catalog.New("inline", "test", []catalog.Rule{
		{ID: "anything", Tag: catalog.UnsafeCall, Kinds: []ir.Kind{ir.Other}},
	})
	require.NoError(t, err)

	root := node(ir.Other, "fn", at(1, 1),
		node(ir.UnsafeRegionStart, "", at(2, 1)),
		node(ir.UnsafeRegionEnd, "", at(3, 1)),
	)
	findings, err := Walk(cat, build(t, "f", root))
	require.NoError(t, err)
	assert.Equal(t, []string{"anything", RegionRuleID}, []string{findings[0].Rule, findings[1].Rule})
	assert.Len(t, findings, 2)
}
