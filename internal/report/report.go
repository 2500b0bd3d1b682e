// Package report is the boundary contract between the analyzer core and
// anything that consumes its results, plus the writers the CLI uses.
package report

import (
	"sort"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/essence"
)

// ErrorKind classifies a per-function failure.
type ErrorKind string

const (
	MalformedIR       ErrorKind = "MalformedIR"
	UnknownNodeKind   ErrorKind = "UnknownNodeKind"
	DuplicateFunction ErrorKind = "DuplicateFunction"
	Frontend          ErrorKind = "Frontend"
)

// Failure records a function that produced no signature.
type Failure struct {
	Function string    `json:"function"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// Report is the result of one analysis run. Every function identifier
// appears in Signatures or in Failures. A duplicated identifier is the
// exception: its first definition is in Signatures and every later one is a
// DuplicateFunction failure under the same name.
type Report struct {
	RunID      string                               `json:"run_id"`
	Language   string                               `json:"language"`
	Signatures map[string]essence.FunctionSignature `json:"signatures"`
	Files      map[string]string                    `json:"files,omitempty"` // function -> source file
	Failures   []Failure                            `json:"failures"`
}

// New returns an empty report ready to be filled.
func New(runID, language string) *Report {
	return &Report{
		RunID:      runID,
		Language:   language,
		Signatures: make(map[string]essence.FunctionSignature),
		Files:      make(map[string]string),
		Failures:   []Failure{},
	}
}

// Functions returns the analyzed function identifiers in sorted order.
func (r *Report) Functions() []string {
	names := make([]string, 0, len(r.Signatures))
	for name := range r.Signatures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Matching returns the sorted functions whose tag set intersects tags.
func (r *Report) Matching(tags []catalog.Tag) []string {
	var out []string
	for _, name := range r.Functions() {
		sig := r.Signatures[name]
		for _, t := range tags {
			if sig.Has(t) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// TagCounts returns how many functions carry each tag.
func (r *Report) TagCounts() map[catalog.Tag]int {
	counts := make(map[catalog.Tag]int)
	for _, sig := range r.Signatures {
		for _, t := range sig.Tags {
			counts[t]++
		}
	}
	return counts
}
