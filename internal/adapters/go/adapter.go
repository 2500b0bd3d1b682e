// Package goadapter lowers Go source to essence IR.
//
// Go has no unsafe blocks. A statement that refers to package unsafe is
// treated as a single-statement unsafe region: its lowered operations are
// bracketed by UnsafeRegionStart and UnsafeRegionEnd markers.
package goadapter

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/packages"

	"github.com/1homsi/essence/internal/ir"
	"github.com/1homsi/essence/internal/logging"
)

// Adapter implements the analyzer front-end interface for Go sources.
type Adapter struct{}

func (a *Adapter) Name() string { return "go" }

// Load lowers a single .go file, or every package under a module
// directory.
func (a *Adapter) Load(ctx context.Context, path string) ([]ir.Unit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return a.ParseSource(ctx, path, src)
	}
	return a.loadPackages(ctx, path)
}

// ParseSource lowers every function declaration with a body in src.
// Functions are named "<package>.<name>" or "<package>.<Recv>.<name>".
func (a *Adapter) ParseSource(ctx context.Context, filename string, src []byte) ([]ir.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return lowerFiles(fset, []*ast.File{f}, func(f *ast.File) string { return f.Name.Name }, nil), nil
}

func (a *Adapter) loadPackages(ctx context.Context, dir string) ([]ir.Unit, error) {
	const mode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
		packages.NeedTypes | packages.NeedTypesInfo

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Fset:    fset,
		Mode:    mode,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })

	var units []ir.Unit
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			logging.Warnf("go: %s: %v", pkg.PkgPath, e)
		}
		if len(pkg.Syntax) == 0 {
			if len(pkg.Errors) > 0 {
				return nil, fmt.Errorf("load %s: %v", pkg.PkgPath, pkg.Errors[0])
			}
			continue
		}
		files := make([]*ast.File, len(pkg.Syntax))
		copy(files, pkg.Syntax)
		sort.Slice(files, func(i, j int) bool {
			return fset.Position(files[i].Pos()).Filename < fset.Position(files[j].Pos()).Filename
		})
		pkgPath := pkg.PkgPath
		units = append(units, lowerFiles(fset, files, func(*ast.File) string { return pkgPath }, pkg.TypesInfo)...)
	}
	return units, nil
}

// lowerFiles walks the function declarations of files in source order.
// qualify names the package prefix for functions declared in a file. info
// may be nil; when set it tells type expressions from value expressions.
func lowerFiles(fset *token.FileSet, files []*ast.File, qualify func(*ast.File) string, info *types.Info) []ir.Unit {
	var (
		units []ir.Unit
		l     *lowerer
		qual  string
		file  string
		inits = make(map[string]int)
	)

	ins := inspector.New(files)
	ins.Preorder([]ast.Node{(*ast.File)(nil), (*ast.FuncDecl)(nil)}, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.File:
			l = &lowerer{fset: fset, unsafeName: unsafeImportName(n), info: info}
			qual = qualify(n)
			file = fset.Position(n.Pos()).Filename
		case *ast.FuncDecl:
			if n.Body == nil {
				return
			}
			name := qual + "." + funcName(n)
			if n.Recv == nil && n.Name.Name == "init" {
				// A package may declare any number of init functions.
				inits[qual]++
				if c := inits[qual]; c > 1 {
					name += "#" + strconv.Itoa(c)
				}
			}
			units = append(units, ir.Unit{
				Name:     name,
				File:     filepath.Clean(file),
				Language: "go",
				Root:     l.function(n),
			})
		}
	})
	return units
}

// funcName returns Name or Recv.Name for a declaration.
func funcName(fn *ast.FuncDecl) string {
	name := fn.Name.Name
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return name
	}
	if recv := recvTypeName(fn.Recv.List[0].Type); recv != "" {
		return recv + "." + name
	}
	return name
}

func recvTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return recvTypeName(t.X)
	case *ast.ParenExpr:
		return recvTypeName(t.X)
	case *ast.IndexExpr:
		return recvTypeName(t.X)
	case *ast.IndexListExpr:
		return recvTypeName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

// unsafeImportName returns the local name package unsafe is imported under,
// or "" when the file does not import it by name.
func unsafeImportName(f *ast.File) string {
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != "unsafe" {
			continue
		}
		if imp.Name == nil {
			return "unsafe"
		}
		switch imp.Name.Name {
		case "_", ".":
			return ""
		}
		return imp.Name.Name
	}
	return ""
}
