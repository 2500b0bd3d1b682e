// Package irjson reads IR produced by an external parser. The input is a
// JSON array of units:
//
//	[{"name": "f", "file": "f.rs", "language": "rust",
//	  "root": {"kind": "Other", "span": {...}, "children": [...]}}]
//
// Region markers may appear as flat siblings; ir.Build folds them.
package irjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	ts "github.com/1homsi/essence/internal/adapters/treesitter"
	"github.com/1homsi/essence/internal/ir"
)

// Adapter implements the analyzer front-end interface for JSON IR files.
type Adapter struct{}

func (a *Adapter) Name() string { return "ir" }

// Load decodes path, or every .json file below it.
func (a *Adapter) Load(ctx context.Context, path string) ([]ir.Unit, error) {
	files, err := ts.CollectFiles(path, ".json")
	if err != nil {
		return nil, err
	}
	var units []ir.Unit
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileUnits, err := decodeFile(f)
		if err != nil {
			return nil, err
		}
		units = append(units, fileUnits...)
	}
	return units, nil
}

func decodeFile(path string) ([]ir.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	units, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i := range units {
		if units[i].File == "" {
			units[i].File = path
		}
	}
	return units, nil
}

// Decode reads one JSON array of units from r. Unknown node kinds are kept;
// the walker rejects them per function.
func Decode(r io.Reader) ([]ir.Unit, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var units []ir.Unit
	if err := dec.Decode(&units); err != nil {
		return nil, err
	}
	return units, nil
}
