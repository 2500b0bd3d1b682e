package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/essence"
	"github.com/1homsi/essence/internal/ir"
	"github.com/1homsi/essence/internal/report"
)

func TestRecordAndLoad(t *testing.T) {
	dir := t.TempDir()
	h, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, h.Snapshots)
	_, ok := h.Latest()
	assert.False(t, ok)

	h.Record(Snapshot{
		Commit:    "abc1234",
		Functions: []FunctionSnapshot{{Function: "unsafe_read", Tags: []catalog.Tag{catalog.RawPointerDeref}, MaxDepth: 1}},
	})
	require.NoError(t, h.Save(dir))

	h2, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, h2.Snapshots, 1)
	latest, ok := h2.Latest()
	require.True(t, ok)
	assert.Equal(t, "abc1234", latest.Commit)
	assert.NotEmpty(t, latest.Timestamp)
	assert.Equal(t, []catalog.Tag{catalog.RawPointerDeref}, latest.Functions[0].Tags)
}

func TestRecordCaps(t *testing.T) {
	h := &History{}
	for i := 0; i < maxSnapshots+10; i++ {
		h.Record(Snapshot{Failures: i})
	}
	require.Len(t, h.Snapshots, maxSnapshots)
	assert.Equal(t, 10, h.Snapshots[0].Failures)
	require.NoError(t, h.Save(t.TempDir()))
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("{"), 0600))
	_, err := Load(dir)
	assert.ErrorContains(t, err, fileName)
}

func TestFromReport(t *testing.T) {
	r := report.New("run-1", "rust")
	r.Signatures["b"] = essence.Aggregate("b", nil)
	r.Signatures["a"] = essence.Aggregate("a", []essence.Finding{
		{Tag: catalog.InlineAssembly, Rule: "inline-asm", Span: ir.Span{StartLine: 2, StartCol: 5, EndLine: 2, EndCol: 20}, Depth: 1},
	})
	r.Failures = append(r.Failures, report.Failure{Function: "c", Kind: report.MalformedIR})

	snap := FromReport(r)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, "rust", snap.Language)
	assert.Equal(t, 1, snap.Failures)
	require.Len(t, snap.Functions, 2)
	assert.Equal(t, "a", snap.Functions[0].Function)
	assert.Equal(t, r.Signatures["a"].Digest(), snap.Functions[0].Digest)
	assert.Equal(t, 1, snap.Functions[0].MaxDepth)
}

func TestDiff(t *testing.T) {
	old := Snapshot{Functions: []FunctionSnapshot{
		{Function: "same", Tags: []catalog.Tag{catalog.HotLoop}, Digest: "1"},
		{Function: "grows", Tags: []catalog.Tag{catalog.HotLoop}, Digest: "2"},
		{Function: "deeper", Tags: []catalog.Tag{catalog.UnsafeBlockEntry}, MaxDepth: 1, Digest: "3"},
		{Function: "shrinks", Tags: []catalog.Tag{catalog.HotLoop, catalog.UnsafeCall}, Digest: "4"},
		{Function: "moved", Tags: []catalog.Tag{catalog.HotLoop}, Digest: "5"},
		{Function: "gone", Digest: "6"},
	}}
	cur := Snapshot{Functions: []FunctionSnapshot{
		{Function: "same", Tags: []catalog.Tag{catalog.HotLoop}, Digest: "1"},
		{Function: "grows", Tags: []catalog.Tag{catalog.HotLoop, catalog.InlineAssembly}, Digest: "2b"},
		{Function: "deeper", Tags: []catalog.Tag{catalog.UnsafeBlockEntry}, MaxDepth: 2, Digest: "3b"},
		{Function: "shrinks", Tags: []catalog.Tag{catalog.HotLoop}, Digest: "4b"},
		{Function: "moved", Tags: []catalog.Tag{catalog.HotLoop}, Digest: "5b"},
		{Function: "fresh", Digest: "7"},
	}}

	changes := make(map[string]string)
	for _, d := range Diff(old, cur) {
		changes[d.Function] = d.Change
	}
	assert.Equal(t, map[string]string{
		"same":    "unchanged",
		"grows":   "escalated",
		"deeper":  "escalated",
		"shrinks": "reduced",
		"moved":   "changed",
		"fresh":   "added",
		"gone":    "removed",
	}, changes)
}
