package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1homsi/essence/internal/ir"
	"github.com/1homsi/essence/languages"
)

// Catalog is an ordered, immutable rule table. Rules are evaluated in
// declaration order.
type Catalog struct {
	name     string
	language string
	rules    []Rule
}

func (c *Catalog) Name() string     { return c.name }
func (c *Catalog) Language() string { return c.language }
func (c *Catalog) Len() int         { return len(c.rules) }

// Rules returns a copy of the rule table in declaration order.
func (c *Catalog) Rules() []Rule {
	return slices.Clone(c.rules)
}

// CatalogLoadError reports a rule table that cannot be trusted. Any such
// error must abort the run before analysis starts.
type CatalogLoadError struct {
	Source string
	Rule   string // rule id, "" when the problem is file-level
	Reason string
	Err    error
}

func (e *CatalogLoadError) Error() string {
	msg := "catalog " + e.Source
	if e.Rule != "" {
		msg += fmt.Sprintf(": rule %q", e.Rule)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// rawCatalog mirrors the YAML structure before names are resolved.
type rawCatalog struct {
	Name     string    `yaml:"name"`
	Language string    `yaml:"language"`
	Rules    []rawRule `yaml:"rules"`
}

type rawRule struct {
	ID          string   `yaml:"id"`
	Tag         string   `yaml:"tag"`
	Description string   `yaml:"description"`
	Kinds       []string `yaml:"kinds"`
	Ops         []string `yaml:"ops"`
	OpPattern   string   `yaml:"op_pattern"`
	Within      []string `yaml:"within"`
	Context     string   `yaml:"context"`
}

// Parse decodes and validates a YAML rule table. source names the table in
// error messages.
func Parse(data []byte, source string) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &CatalogLoadError{Source: source, Reason: "invalid YAML", Err: err}
	}
	if len(raw.Rules) == 0 {
		return nil, &CatalogLoadError{Source: source, Reason: "no rules defined"}
	}

	c := &Catalog{
		name:     raw.Name,
		language: raw.Language,
		rules:    make([]Rule, 0, len(raw.Rules)),
	}
	if c.name == "" {
		c.name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	seen := make(map[string]bool, len(raw.Rules))
	for i, rr := range raw.Rules {
		if rr.ID == "" {
			return nil, &CatalogLoadError{Source: source, Reason: fmt.Sprintf("rule #%d has no id", i+1)}
		}
		if seen[rr.ID] {
			return nil, &CatalogLoadError{Source: source, Rule: rr.ID, Reason: "duplicate rule id"}
		}
		seen[rr.ID] = true

		r, err := resolveRule(rr, source)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// resolveRule converts names to typed values, rejecting anything outside
// the closed tag and kind enumerations.
func resolveRule(rr rawRule, source string) (Rule, error) {
	fail := func(reason string, err error) (Rule, error) {
		return Rule{}, &CatalogLoadError{Source: source, Rule: rr.ID, Reason: reason, Err: err}
	}

	tag := Tag(rr.Tag)
	if !tag.Known() {
		return fail(fmt.Sprintf("unknown tag %q", rr.Tag), nil)
	}
	if tag == UnsafeBlockEntry {
		return fail("UnsafeBlockEntry is emitted by region markers and cannot be declared as a rule", nil)
	}

	if len(rr.Kinds) == 0 {
		return fail("no kinds to match", nil)
	}
	kinds, err := resolveKinds(rr.Kinds, "kinds")
	if err != nil {
		return fail(err.Error(), nil)
	}
	within, err := resolveKinds(rr.Within, "within")
	if err != nil {
		return fail(err.Error(), nil)
	}

	ctx := ContextReq(rr.Context)
	if ctx == "" {
		ctx = AnyContext
	}
	if !ctx.valid() {
		return fail(fmt.Sprintf("unknown context %q (want any|unsafe|safe)", rr.Context), nil)
	}

	var pattern *regexp.Regexp
	if rr.OpPattern != "" {
		pattern, err = regexp.Compile(rr.OpPattern)
		if err != nil {
			return fail("invalid op_pattern", err)
		}
	}

	return Rule{
		ID:             rr.ID,
		Tag:            tag,
		Description:    rr.Description,
		Kinds:          kinds,
		Ops:            slices.Clone(rr.Ops),
		OpPattern:      pattern,
		Within:         within,
		Context:        ctx,
		RequiresUnsafe: ctx == UnsafeContext,
	}, nil
}

func resolveKinds(names []string, field string) ([]ir.Kind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]ir.Kind, 0, len(names))
	for _, name := range names {
		k := ir.Kind(name)
		if !k.Known() {
			return nil, fmt.Errorf("unknown node kind %q in %s", name, field)
		}
		if k.IsMarker() {
			return nil, fmt.Errorf("region marker %q cannot be matched in %s", name, field)
		}
		out = append(out, k)
	}
	return out, nil
}

// New builds a catalog from rules already in typed form. It applies the
// same checks as Parse except for pattern compilation.
func New(name, language string, rules []Rule) (*Catalog, error) {
	source := name
	if source == "" {
		source = "<inline>"
	}
	if len(rules) == 0 {
		return nil, &CatalogLoadError{Source: source, Reason: "no rules defined"}
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		switch {
		case r.ID == "":
			return nil, &CatalogLoadError{Source: source, Reason: "rule without id"}
		case seen[r.ID]:
			return nil, &CatalogLoadError{Source: source, Rule: r.ID, Reason: "duplicate rule id"}
		case !r.Tag.Known():
			return nil, &CatalogLoadError{Source: source, Rule: r.ID, Reason: fmt.Sprintf("unknown tag %q", r.Tag)}
		case len(r.Kinds) == 0:
			return nil, &CatalogLoadError{Source: source, Rule: r.ID, Reason: "no kinds to match"}
		}
		seen[r.ID] = true
		for _, k := range append(slices.Clone(r.Kinds), r.Within...) {
			if !k.Known() || k.IsMarker() {
				return nil, &CatalogLoadError{Source: source, Rule: r.ID, Reason: fmt.Sprintf("cannot match node kind %q", k)}
			}
		}
		if r.Context != "" && !r.Context.valid() {
			return nil, &CatalogLoadError{Source: source, Rule: r.ID, Reason: fmt.Sprintf("unknown context %q", r.Context)}
		}
	}

	c := &Catalog{name: name, language: language, rules: make([]Rule, len(rules))}
	copy(c.rules, rules)
	for i := range c.rules {
		if c.rules[i].Context == "" {
			c.rules[i].Context = AnyContext
		}
		if c.rules[i].Context == UnsafeContext {
			c.rules[i].RequiresUnsafe = true
		}
	}
	return c, nil
}

// LoadLanguage reads and validates languages/<lang>.yaml from the embedded FS.
func LoadLanguage(lang string) (*Catalog, error) {
	data, err := languages.FS.ReadFile(lang + ".yaml")
	if err != nil {
		return nil, &CatalogLoadError{Source: lang + ".yaml", Reason: "not found", Err: err}
	}
	return Parse(data, lang+".yaml")
}

// LoadFile reads and validates a rule table from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CatalogLoadError{Source: path, Reason: "read failed", Err: err}
	}
	return Parse(data, path)
}
