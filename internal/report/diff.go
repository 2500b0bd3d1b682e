package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/essence"
)

// DiffStatus says how a function changed between two runs.
type DiffStatus string

const (
	StatusAdded   DiffStatus = "added"
	StatusRemoved DiffStatus = "removed"
	StatusChanged DiffStatus = "changed"
)

type FunctionDiff struct {
	Function  string        `json:"function"`
	Status    DiffStatus    `json:"status"`
	Added     []catalog.Tag `json:"added,omitempty"`
	Removed   []catalog.Tag `json:"removed,omitempty"`
	OldDigest string        `json:"old_digest,omitempty"`
	NewDigest string        `json:"new_digest,omitempty"`
	OldDepth  int           `json:"old_max_depth,omitempty"`
	NewDepth  int           `json:"new_max_depth,omitempty"`
	Escalated bool          `json:"escalated"`
}

type DiffReport struct {
	OldRun    string         `json:"old_run"`
	NewRun    string         `json:"new_run"`
	Functions []FunctionDiff `json:"functions"`
	Escalated bool           `json:"escalated"` // some function gained a tag or nests deeper
}

// Diff compares the signatures of two reports. Functions whose findings are
// identical are omitted; a changed digest with an unchanged tag set is
// reported as changed without tag deltas. A function escalates when it
// gains a tag or its maximum unsafe depth grows.
func Diff(old, cur *Report) DiffReport {
	out := DiffReport{OldRun: old.RunID, NewRun: cur.RunID, Functions: []FunctionDiff{}}

	names := make(map[string]bool)
	for name := range old.Signatures {
		names[name] = true
	}
	for name := range cur.Signatures {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		o, inOld := old.Signatures[name]
		n, inNew := cur.Signatures[name]

		var d FunctionDiff
		switch {
		case !inOld:
			d = FunctionDiff{Function: name, Status: StatusAdded, Added: n.Tags, NewDigest: n.Digest()}
		case !inNew:
			d = FunctionDiff{Function: name, Status: StatusRemoved, Removed: o.Tags, OldDigest: o.Digest()}
		default:
			od, nd := o.Digest(), n.Digest()
			if od == nd {
				continue
			}
			d = FunctionDiff{
				Function:  name,
				Status:    StatusChanged,
				Added:     tagsMissing(n, o),
				Removed:   tagsMissing(o, n),
				OldDigest: od,
				NewDigest: nd,
				OldDepth:  o.MaxDepth,
				NewDepth:  n.MaxDepth,
			}
		}
		d.Escalated = len(d.Added) > 0 || d.NewDepth > d.OldDepth
		if d.Escalated {
			out.Escalated = true
		}
		out.Functions = append(out.Functions, d)
	}
	return out
}

// tagsMissing returns the tags of a that b lacks, in a's order.
func tagsMissing(a, b essence.FunctionSignature) []catalog.Tag {
	var out []catalog.Tag
	for _, t := range a.Tags {
		if !b.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func WriteDiff(w io.Writer, d DiffReport) {
	fmt.Fprintf(w, "%s%s=== Essence Diff ===%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s → %s\n\n", d.OldRun, d.NewRun)

	if len(d.Functions) == 0 {
		fmt.Fprintf(w, "%sNo signature changes.%s\n", colorGreen, colorReset)
		return
	}

	for _, f := range d.Functions {
		prefix := " "
		if f.Escalated {
			prefix = colorRed + "⚠" + colorReset
		}
		fmt.Fprintf(w, "%s %s%s%s [%s]\n", prefix, colorBold, f.Function, colorReset, f.Status)
		for _, t := range f.Added {
			fmt.Fprintf(w, "    %s+ %s%s\n", colorRed, t, colorReset)
		}
		for _, t := range f.Removed {
			fmt.Fprintf(w, "    %s- %s%s\n", colorGreen, t, colorReset)
		}
		if f.OldDepth != f.NewDepth {
			fmt.Fprintf(w, "    unsafe depth %d → %d\n", f.OldDepth, f.NewDepth)
		}
		if f.Status == StatusChanged && len(f.Added) == 0 && len(f.Removed) == 0 && f.OldDepth == f.NewDepth {
			fmt.Fprintf(w, "    findings moved or changed (%.12s → %.12s)\n", f.OldDigest, f.NewDigest)
		}
	}

	if d.Escalated {
		fmt.Fprintf(w, "\n%s%s⚠ NEW LOW-LEVEL OPERATIONS DETECTED%s\n", colorBold, colorRed, colorReset)
	}
}

func WriteDiffJSON(w io.Writer, d DiffReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
