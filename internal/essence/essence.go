// Package essence holds the findings produced by the walker and reduces them
// to per-function signatures.
package essence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/ir"
)

// Finding is one rule match. Values are never modified after creation.
type Finding struct {
	Tag   catalog.Tag `json:"tag"`
	Rule  string      `json:"rule"`
	Span  ir.Span     `json:"span"`
	Depth int         `json:"depth"`
}

// TagSummary aggregates every finding of one tag within a function.
type TagSummary struct {
	Tag      catalog.Tag `json:"tag"`
	Count    int         `json:"count"`
	MinDepth int         `json:"min_depth"`
	Span     ir.Span     `json:"span"` // smallest span enclosing all findings of Tag
}

// FunctionSignature is the read-only summary of one analyzed function.
type FunctionSignature struct {
	Function  string        `json:"function"`
	Findings  []Finding     `json:"findings"`
	Tags      []catalog.Tag `json:"tags"`
	Summaries []TagSummary  `json:"summaries"`
	MaxDepth  int           `json:"max_depth"`
}

// Aggregate reduces an ordered finding sequence to a signature. It never
// fails: no findings yields an empty tag set.
func Aggregate(function string, findings []Finding) FunctionSignature {
	sig := FunctionSignature{
		Function:  function,
		Findings:  make([]Finding, len(findings)),
		Tags:      []catalog.Tag{},
		Summaries: []TagSummary{},
	}
	copy(sig.Findings, findings)

	byTag := make(map[catalog.Tag]*TagSummary)
	for _, f := range findings {
		if f.Depth > sig.MaxDepth {
			sig.MaxDepth = f.Depth
		}
		s, ok := byTag[f.Tag]
		if !ok {
			byTag[f.Tag] = &TagSummary{Tag: f.Tag, Count: 1, MinDepth: f.Depth, Span: f.Span}
			continue
		}
		s.Count++
		if f.Depth < s.MinDepth {
			s.MinDepth = f.Depth
		}
		s.Span = s.Span.Cover(f.Span)
	}

	for tag, s := range byTag {
		sig.Tags = append(sig.Tags, tag)
		sig.Summaries = append(sig.Summaries, *s)
	}
	sort.Slice(sig.Tags, func(i, j int) bool { return sig.Tags[i] < sig.Tags[j] })
	sort.Slice(sig.Summaries, func(i, j int) bool { return sig.Summaries[i].Tag < sig.Summaries[j].Tag })

	return sig
}

// Has reports whether tag is in the signature's tag set.
func (s FunctionSignature) Has(tag catalog.Tag) bool {
	i := sort.Search(len(s.Tags), func(i int) bool { return s.Tags[i] >= tag })
	return i < len(s.Tags) && s.Tags[i] == tag
}

// Summary returns the per-tag aggregate for tag.
func (s FunctionSignature) Summary(tag catalog.Tag) (TagSummary, bool) {
	for _, ts := range s.Summaries {
		if ts.Tag == tag {
			return ts, true
		}
	}
	return TagSummary{}, false
}

const digestDomain = "essence/findings/v1"

// Digest is a content hash of the ordered findings. Two runs over the same
// source and catalog produce the same digest.
func (s FunctionSignature) Digest() string {
	data, err := json.Marshal(s.Findings)
	if err != nil {
		// Findings hold only strings and ints.
		panic(err)
	}
	h := sha256.New()
	h.Write([]byte(digestDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
