// Package cppadapter lowers C++ source to essence IR. It parses with the
// tree-sitter C++ grammar and shares the C lowering, which knows the C++
// node types.
package cppadapter

import (
	"context"
	"fmt"
	"os"

	"github.com/smacker/go-tree-sitter/cpp"

	cadapter "github.com/1homsi/essence/internal/adapters/c"
	ts "github.com/1homsi/essence/internal/adapters/treesitter"
	"github.com/1homsi/essence/internal/ir"
)

// Extensions are the file extensions loaded from a directory.
var Extensions = []string{".cpp", ".cc", ".cxx", ".c++", ".hpp", ".hh", ".hxx"}

// Adapter implements the analyzer front-end interface for C++ sources.
type Adapter struct{}

func (a *Adapter) Name() string { return "cpp" }

func (a *Adapter) Load(ctx context.Context, path string) ([]ir.Unit, error) {
	files, err := ts.CollectFiles(path, Extensions...)
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

// ParseSource lowers every function definition in src. Methods defined in
// a class body or out of line are both named "Class::method".
func (a *Adapter) ParseSource(ctx context.Context, filename string, src []byte) ([]ir.Unit, error) {
	return cadapter.Lower(ctx, cpp.GetLanguage(), "cpp", filename, src)
}
