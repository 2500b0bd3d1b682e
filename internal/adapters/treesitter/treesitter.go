// Package treesitter holds the helpers shared by the tree-sitter based
// front-ends.
package treesitter

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/1homsi/essence/internal/ir"
)

// Parse parses src with lang and returns the root node.
func Parse(ctx context.Context, lang *sitter.Language, src []byte) (*sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	return tree.RootNode(), nil
}

// Span converts a node's 0-based points to a 1-based ir.Span. EndCol is
// exclusive.
func Span(n *sitter.Node) ir.Span {
	start, end := n.StartPoint(), n.EndPoint()
	return ir.Span{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

// EndSpan is the span of the last character of n, used for region end
// markers.
func EndSpan(n *sitter.Node) ir.Span {
	end := n.EndPoint()
	return ir.Span{
		StartLine: int(end.Row) + 1,
		StartCol:  int(end.Column),
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

// Field returns the named field child of n, or nil.
func Field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	c := n.ChildByFieldName(name)
	if c == nil || c.IsNull() {
		return nil
	}
	return c
}

// NamedChildren returns the named children of n in source order.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// Operator returns the first anonymous child's type, which tree-sitter
// grammars use for the operator token of unary and binary expressions.
func Operator(n *sitter.Node) string {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			return c.Type()
		}
	}
	return ""
}

var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"target":       true,
	"testdata":     true,
}

// CollectFiles returns path itself when it is a file, or every file under
// it whose extension is in exts, sorted by walk order.
func CollectFiles(path string, exts ...string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(p)
		for _, want := range exts {
			if ext == want {
				files = append(files, p)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	return files, nil
}
