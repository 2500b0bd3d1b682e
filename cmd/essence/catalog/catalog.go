package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/cli"
	"github.com/1homsi/essence/internal/logging"
)

// RuleView is the printable form of a catalog rule.
type RuleView struct {
	ID          string   `json:"id"`
	Tag         string   `json:"tag"`
	Kinds       []string `json:"kinds"`
	Ops         []string `json:"ops,omitempty"`
	OpPattern   string   `json:"op_pattern,omitempty"`
	Within      []string `json:"within,omitempty"`
	Context     string   `json:"context"`
	Description string   `json:"description,omitempty"`
}

type CatalogView struct {
	Name     string     `json:"name"`
	Language string     `json:"language"`
	Rules    []RuleView `json:"rules"`
}

// NewCommand creates the catalog command.
func NewCommand(_ *cli.RootOptions) *cobra.Command {
	var (
		lang    string
		file    string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:           "catalog",
		Short:         "Print the pattern catalog rules in evaluation order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cats []*catalog.Catalog
			switch {
			case file != "":
				c, err := catalog.LoadFile(file)
				if err != nil {
					logging.Errorf("%v", err)
					return cli.WrapExitError(cli.ExitCommandError, "load catalog", err)
				}
				cats = append(cats, c)
			default:
				langs := catalog.Languages()
				if lang != "" {
					langs = []string{lang}
				}
				for _, l := range langs {
					c, err := catalog.ForLanguage(l)
					if err != nil {
						logging.Errorf("%v", err)
						return cli.WrapExitError(cli.ExitCommandError, "load catalog", err)
					}
					cats = append(cats, c)
				}
			}

			views := make([]CatalogView, len(cats))
			for i, c := range cats {
				views[i] = View(c)
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(views); err != nil {
					return cli.WrapExitError(cli.ExitCommandError, "write output", err)
				}
				return nil
			}
			writeTable(cmd.OutOrStdout(), views)
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "only this language (default: all built-in catalogs)")
	cmd.Flags().StringVar(&file, "file", "", "validate and print a YAML catalog file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

// View converts a loaded catalog into its printable form.
func View(c *catalog.Catalog) CatalogView {
	v := CatalogView{Name: c.Name(), Language: c.Language(), Rules: []RuleView{}}
	for _, r := range c.Rules() {
		rv := RuleView{
			ID:          r.ID,
			Tag:         string(r.Tag),
			Ops:         r.Ops,
			Context:     string(r.Context),
			Description: r.Description,
		}
		for _, k := range r.Kinds {
			rv.Kinds = append(rv.Kinds, string(k))
		}
		for _, k := range r.Within {
			rv.Within = append(rv.Within, string(k))
		}
		if r.OpPattern != nil {
			rv.OpPattern = r.OpPattern.String()
		}
		v.Rules = append(v.Rules, rv)
	}
	return v
}

func writeTable(w io.Writer, views []CatalogView) {
	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s, %d rules)\n", v.Name, v.Language, len(v.Rules))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTAG\tKINDS\tMATCH\tCONTEXT")
		for _, r := range v.Rules {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Tag, strings.Join(r.Kinds, ","), match(r), r.Context)
		}
		tw.Flush()
	}
}

func match(r RuleView) string {
	var parts []string
	if len(r.Ops) > 0 {
		parts = append(parts, strings.Join(r.Ops, "|"))
	}
	if r.OpPattern != "" {
		parts = append(parts, "/"+r.OpPattern+"/")
	}
	if len(r.Within) > 0 {
		parts = append(parts, "within "+strings.Join(r.Within, ","))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}
