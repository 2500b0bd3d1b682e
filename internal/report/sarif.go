package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/1homsi/essence/internal/catalog"
)

type sarifOutput struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID     string            `json:"ruleId"`
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Locations  []sarifLocation   `json:"locations,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

const failureRuleID = "AnalysisFailure"

func sarifLevel(t catalog.Tag) string {
	switch t {
	case catalog.RawPointerDeref, catalog.UnguardedPointerDeref, catalog.InlineAssembly:
		return "warning"
	}
	return "note"
}

// WriteSARIF writes one SARIF result per finding. Tags are the SARIF rules.
func WriteSARIF(w io.Writer, r *Report, version string) error {
	rules := make([]sarifRule, 0, len(catalog.Tags())+1)
	for _, t := range catalog.Tags() {
		rules = append(rules, sarifRule{ID: string(t), Name: string(t), ShortDescription: sarifMessage{Text: t.Description()}})
	}
	rules = append(rules, sarifRule{ID: failureRuleID, Name: failureRuleID, ShortDescription: sarifMessage{Text: "Function could not be analyzed"}})

	results := []sarifResult{}
	for _, name := range r.Functions() {
		file := r.Files[name]
		for _, f := range r.Signatures[name].Findings {
			res := sarifResult{
				RuleID:     string(f.Tag),
				Level:      sarifLevel(f.Tag),
				Message:    sarifMessage{Text: fmt.Sprintf("%s: %s (rule %s, unsafe depth %d)", name, f.Tag, f.Rule, f.Depth)},
				Properties: map[string]string{"function": name, "rule": f.Rule},
			}
			if file != "" {
				loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: file}}}
				if !f.Span.IsZero() {
					loc.PhysicalLocation.Region = &sarifRegion{
						StartLine:   f.Span.StartLine,
						StartColumn: f.Span.StartCol,
						EndLine:     f.Span.EndLine,
						EndColumn:   f.Span.EndCol,
					}
				}
				res.Locations = []sarifLocation{loc}
			}
			results = append(results, res)
		}
	}
	for _, f := range r.Failures {
		results = append(results, sarifResult{
			RuleID:     failureRuleID,
			Level:      "error",
			Message:    sarifMessage{Text: fmt.Sprintf("%s: %s: %s", f.Function, f.Kind, f.Message)},
			Properties: map[string]string{"function": f.Function, "kind": string(f.Kind)},
		})
	}

	out := sarifOutput{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "essence",
						Version:        version,
						InformationURI: "https://github.com/1homsi/essence",
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
