// Package languages embeds the per-language essence rule tables.
// Each YAML file declares an ordered list of rules mapping IR node shapes to
// essence tags. Adding a tag for a language means editing its YAML file; the
// walker never changes.
package languages

import "embed"

// FS is an embed.FS containing every *.yaml file in this directory.
//
//go:embed *.yaml
var FS embed.FS
