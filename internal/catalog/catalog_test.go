package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1homsi/essence/internal/ir"
)

func TestEmbeddedCatalogsLoad(t *testing.T) {
	langs := Languages()
	require.ElementsMatch(t, []string{"c", "cpp", "go", "rust"}, langs)

	for _, lang := range langs {
		t.Run(lang, func(t *testing.T) {
			c, err := LoadLanguage(lang)
			require.NoError(t, err)
			assert.Equal(t, lang, c.Language())
			assert.Positive(t, c.Len())
			for _, r := range c.Rules() {
				assert.True(t, r.Tag.Known(), "rule %s", r.ID)
				assert.Equal(t, r.Context == UnsafeContext, r.RequiresUnsafe, "rule %s", r.ID)
			}
		})
	}
}

func TestForLanguageLoadsOnce(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]*Catalog, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := ForLanguage("rust")
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestForLanguageUnknown(t *testing.T) {
	_, err := ForLanguage("cobol")
	var lErr *CatalogLoadError
	require.True(t, errors.As(err, &lErr))
	assert.Equal(t, "cobol.yaml", lErr.Source)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "name: x\nrules: []\n", "no rules defined"},
		{"bad yaml", "rules: [", "invalid YAML"},
		{"unknown tag", "rules:\n  - id: a\n    tag: Teleport\n    kinds: [Call]\n", `unknown tag "Teleport"`},
		{"unknown kind", "rules:\n  - id: a\n    tag: HotLoop\n    kinds: [Loop]\n", `unknown node kind "Loop"`},
		{"marker kind", "rules:\n  - id: a\n    tag: HotLoop\n    kinds: [UnsafeRegionStart]\n", "region marker"},
		{"no kinds", "rules:\n  - id: a\n    tag: HotLoop\n", "no kinds"},
		{"bad context", "rules:\n  - id: a\n    tag: HotLoop\n    kinds: [ControlFlow]\n    context: sometimes\n", "unknown context"},
		{"bad regexp", "rules:\n  - id: a\n    tag: HotLoop\n    kinds: [ControlFlow]\n    op_pattern: '('\n", "invalid op_pattern"},
		{"duplicate id", "rules:\n  - id: a\n    tag: HotLoop\n    kinds: [ControlFlow]\n  - id: a\n    tag: HotLoop\n    kinds: [ControlFlow]\n", "duplicate rule id"},
		{"missing id", "rules:\n  - tag: HotLoop\n    kinds: [ControlFlow]\n", "has no id"},
		{"structural tag", "rules:\n  - id: a\n    tag: UnsafeBlockEntry\n    kinds: [Other]\n", "region markers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml), "test.yaml")
			assert.Nil(t, c)
			var lErr *CatalogLoadError
			require.True(t, errors.As(err, &lErr), "want CatalogLoadError, got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("rules:\n  - id: loop\n    tag: HotLoop\n    kinds: [ControlFlow]\n"), "dir/custom.yaml")
	require.NoError(t, err)
	assert.Equal(t, "custom", c.Name())

	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, AnyContext, rules[0].Context)
	assert.False(t, rules[0].RequiresUnsafe)
}

func TestRulesReturnsCopy(t *testing.T) {
	c := MustForLanguage("c")
	rules := c.Rules()
	rules[0].ID = "mutated"
	assert.NotEqual(t, "mutated", c.Rules()[0].ID)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("language: rust\nrules:\n  - id: asm\n    tag: InlineAssembly\n    kinds: [Call]\n    ops: [asm]\n"), 0600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rust", c.Language())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	var lErr *CatalogLoadError
	assert.True(t, errors.As(err, &lErr))
}

func TestRuleMatches(t *testing.T) {
	c, err := Parse([]byte(`rules:
  - id: deref-in-unsafe
    tag: RawPointerDeref
    kinds: [MemoryDeref]
    context: unsafe
  - id: deref-in-safe
    tag: UnguardedPointerDeref
    kinds: [MemoryDeref]
    context: safe
  - id: offset
    tag: PointerOffsetArithmetic
    kinds: [Call]
    ops: [offset]
    op_pattern: '(^|::)add$'
  - id: nested-call
    tag: UnsafeCall
    kinds: [Call]
    within: [MemoryDeref]
`), "t.yaml")
	require.NoError(t, err)
	rules := c.Rules()

	deref := &ir.Node{Kind: ir.MemoryDeref, Op: "*"}
	assert.True(t, rules[0].Matches(deref, Context{Depth: 1}))
	assert.False(t, rules[0].Matches(deref, Context{Depth: 0}))
	assert.True(t, rules[1].Matches(deref, Context{Depth: 0}))
	assert.False(t, rules[1].Matches(deref, Context{Depth: 2}))

	assert.True(t, rules[2].Matches(&ir.Node{Kind: ir.Call, Op: "offset"}, Context{}))
	assert.True(t, rules[2].Matches(&ir.Node{Kind: ir.Call, Op: "core::ptr::add"}, Context{}))
	assert.False(t, rules[2].Matches(&ir.Node{Kind: ir.Call, Op: "addr"}, Context{}))
	assert.False(t, rules[2].Matches(&ir.Node{Kind: ir.Cast, Op: "offset"}, Context{}))

	call := &ir.Node{Kind: ir.Call, Op: "f"}
	assert.False(t, rules[3].Matches(call, Context{Ancestors: []ir.Kind{ir.Other}}))
	assert.True(t, rules[3].Matches(call, Context{Ancestors: []ir.Kind{ir.Other, ir.MemoryDeref}}))
	assert.False(t, rules[3].Matches(nil, Context{}))
}

func TestTags(t *testing.T) {
	tags := Tags()
	assert.Contains(t, tags, RawPointerDeref)
	assert.Contains(t, tags, UnsafeBlockEntry)
	for _, tag := range tags {
		assert.NotEmpty(t, tag.Description(), "tag %s", tag)
	}
	assert.False(t, Tag("Teleport").Known())
	assert.Empty(t, Tag("Teleport").Description())
}

func TestNew(t *testing.T) {
	c, err := New("inline", "rust", []Rule{
		{ID: "deref", Tag: RawPointerDeref, Kinds: []ir.Kind{ir.MemoryDeref}, Context: UnsafeContext},
		{ID: "loop", Tag: HotLoop, Kinds: []ir.Kind{ir.ControlFlow}},
	})
	require.NoError(t, err)
	rules := c.Rules()
	assert.True(t, rules[0].RequiresUnsafe)
	assert.Equal(t, AnyContext, rules[1].Context)

	_, err = New("inline", "rust", []Rule{{ID: "x", Tag: HotLoop, Kinds: []ir.Kind{ir.UnsafeRegionEnd}}})
	assert.ErrorContains(t, err, "cannot match node kind")

	_, err = New("inline", "rust", nil)
	assert.ErrorContains(t, err, "no rules defined")
}
