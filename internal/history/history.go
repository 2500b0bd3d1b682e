// Package history keeps a capped log of scan snapshots next to the scanned
// project so successive runs can be compared without keeping full reports.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/report"
)

const (
	fileName     = ".essence-history.json"
	maxSnapshots = 100
)

type FunctionSnapshot struct {
	Function string        `json:"function"`
	Tags     []catalog.Tag `json:"tags,omitempty"`
	MaxDepth int           `json:"max_depth"`
	Digest   string        `json:"digest"`
}

type Snapshot struct {
	Timestamp string             `json:"timestamp"`
	RunID     string             `json:"run_id"`
	Language  string             `json:"language"`
	Commit    string             `json:"commit,omitempty"`
	Functions []FunctionSnapshot `json:"functions"`
	Failures  int                `json:"failures"`
}

type History struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// FromReport condenses a report into a snapshot ordered by function name.
func FromReport(r *report.Report) Snapshot {
	snap := Snapshot{
		RunID:     r.RunID,
		Language:  r.Language,
		Functions: make([]FunctionSnapshot, 0, len(r.Signatures)),
		Failures:  len(r.Failures),
	}
	for _, name := range r.Functions() {
		sig := r.Signatures[name]
		snap.Functions = append(snap.Functions, FunctionSnapshot{
			Function: name,
			Tags:     sig.Tags,
			MaxDepth: sig.MaxDepth,
			Digest:   sig.Digest(),
		})
	}
	return snap
}

func Load(dir string) (*History, error) {
	path := filepath.Join(dir, fileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &History{}, nil
	}
	if err != nil {
		return nil, err
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &h, nil
}

func (h *History) Save(dir string) error {
	path := filepath.Join(dir, fileName)
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (h *History) Record(snap Snapshot) {
	if snap.Timestamp == "" {
		snap.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	h.Snapshots = append(h.Snapshots, snap)
	if len(h.Snapshots) > maxSnapshots {
		h.Snapshots = h.Snapshots[len(h.Snapshots)-maxSnapshots:]
	}
}

// Latest returns the most recent snapshot, if any.
func (h *History) Latest() (Snapshot, bool) {
	if len(h.Snapshots) == 0 {
		return Snapshot{}, false
	}
	return h.Snapshots[len(h.Snapshots)-1], true
}

type FunctionDiff struct {
	Function string            `json:"function"`
	Old      *FunctionSnapshot `json:"old,omitempty"`
	New      *FunctionSnapshot `json:"new,omitempty"`
	Change   string            `json:"change"`
}

// Diff compares two snapshots. Change is one of added, removed, escalated
// (new tags or a deeper unsafe nesting), reduced, changed (same tags,
// different findings) or unchanged.
func Diff(old, cur Snapshot) []FunctionDiff {
	oldByFn := make(map[string]FunctionSnapshot, len(old.Functions))
	for _, f := range old.Functions {
		oldByFn[f.Function] = f
	}
	newByFn := make(map[string]FunctionSnapshot, len(cur.Functions))
	for _, f := range cur.Functions {
		newByFn[f.Function] = f
	}

	var diffs []FunctionDiff

	for _, nf := range cur.Functions {
		of, existed := oldByFn[nf.Function]
		nfCopy := nf
		if !existed {
			diffs = append(diffs, FunctionDiff{Function: nf.Function, New: &nfCopy, Change: "added"})
			continue
		}
		ofCopy := of
		change := "unchanged"
		switch {
		case gained(of.Tags, nf.Tags) || nf.MaxDepth > of.MaxDepth:
			change = "escalated"
		case gained(nf.Tags, of.Tags) || nf.MaxDepth < of.MaxDepth:
			change = "reduced"
		case nf.Digest != of.Digest:
			change = "changed"
		}
		diffs = append(diffs, FunctionDiff{Function: nf.Function, Old: &ofCopy, New: &nfCopy, Change: change})
	}

	for _, of := range old.Functions {
		if _, exists := newByFn[of.Function]; !exists {
			ofCopy := of
			diffs = append(diffs, FunctionDiff{Function: of.Function, Old: &ofCopy, Change: "removed"})
		}
	}

	return diffs
}

// gained reports whether cur holds a tag that old lacks.
func gained(old, cur []catalog.Tag) bool {
	have := make(map[catalog.Tag]bool, len(old))
	for _, t := range old {
		have[t] = true
	}
	for _, t := range cur {
		if !have[t] {
			return true
		}
	}
	return false
}
