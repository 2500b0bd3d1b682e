package scan

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1homsi/essence/internal/analyzer"
	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/cli"
	"github.com/1homsi/essence/internal/history"
	"github.com/1homsi/essence/internal/logging"
	"github.com/1homsi/essence/internal/report"
)

type options struct {
	lang        string
	rules       string
	catalogFile string
	jsonOut     bool
	sarifOut    bool
	all         bool
	workers     int
	failOn      string
	record      bool
	historyDir  string
}

// NewCommand creates the scan command.
func NewCommand(root *cli.RootOptions) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "scan [flags] <path>...",
		Short: "Classify the low-level operations of every function under the given paths",
		Long: `Parse the given files or directories, lower each function to the
intermediate representation and report its essence signature: the set of
low-level operation tags found in it and how deeply they sit in unsafe
regions.

Exit status is 1 when a function matches --fail-on or could not be
analyzed, and 2 on usage or catalog errors.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.lang, "lang", "auto", "front-end: auto|rust|c|cpp|go|ir")
	f.StringVar(&opts.rules, "rules", "", "built-in catalog to apply (default: the front-end language; required for --lang ir)")
	f.StringVar(&opts.catalogFile, "catalog", "", "YAML catalog file to use instead of the built-in one")
	f.BoolVar(&opts.jsonOut, "json", false, "JSON output")
	f.BoolVar(&opts.sarifOut, "sarif", false, "SARIF 2.1.0 output")
	f.BoolVar(&opts.all, "all", false, "list functions without findings in text output")
	f.IntVar(&opts.workers, "workers", 0, "concurrent function analyses (0 = GOMAXPROCS)")
	f.StringVar(&opts.failOn, "fail-on", "", "comma separated tags that make the scan fail")
	f.BoolVar(&opts.record, "history", false, "record a snapshot in the history file")
	f.StringVar(&opts.historyDir, "history-dir", ".", "directory holding .essence-history.json")

	return cmd
}

// ParseTags parses a comma separated tag list.
func ParseTags(s string) ([]catalog.Tag, error) {
	var tags []catalog.Tag
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := catalog.Tag(part)
		if !t.Known() {
			return nil, fmt.Errorf("unknown tag %q", part)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func run(cmd *cobra.Command, root *cli.RootOptions, opts *options, paths []string) error {
	if opts.jsonOut && opts.sarifOut {
		return cli.NewExitError(cli.ExitCommandError, "--json and --sarif are mutually exclusive")
	}
	failOn, err := ParseTags(opts.failOn)
	if err != nil {
		return cli.WrapExitError(cli.ExitCommandError, "--fail-on", err)
	}

	fe, err := analyzer.ForLang(opts.lang, paths[0])
	if err != nil {
		return cli.WrapExitError(cli.ExitCommandError, "select front-end", err)
	}

	cat, err := loadCatalog(opts, fe.Name())
	if err != nil {
		logging.Errorf("%v", err)
		return cli.WrapExitError(cli.ExitCommandError, "load catalog", err)
	}
	logging.Infof("front-end %s, catalog %s (%d rules)", fe.Name(), cat.Name(), cat.Len())

	rep, err := analyzer.Scan(cmd.Context(), fe, cat, paths, analyzer.Options{
		Workers:  opts.workers,
		Language: fe.Name(),
	})
	if err != nil {
		return cli.WrapExitError(cli.ExitCommandError, "scan interrupted", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.jsonOut:
		err = report.WriteJSON(out, rep)
	case opts.sarifOut:
		err = report.WriteSARIF(out, rep, root.Version)
	default:
		report.WriteText(out, rep, opts.all)
	}
	if err != nil {
		return cli.WrapExitError(cli.ExitCommandError, "write output", err)
	}

	if opts.record {
		if err := recordHistory(opts.historyDir, rep); err != nil {
			return cli.WrapExitError(cli.ExitCommandError, "record history", err)
		}
	}

	if matched := rep.Matching(failOn); len(matched) > 0 {
		return cli.NewExitError(cli.ExitFailure, fmt.Sprintf("%d function(s) matched --fail-on: %s", len(matched), strings.Join(matched, ", ")))
	}
	if len(rep.Failures) > 0 {
		return cli.NewExitError(cli.ExitFailure, fmt.Sprintf("%d function(s) could not be analyzed", len(rep.Failures)))
	}
	return nil
}

func loadCatalog(opts *options, frontend string) (*catalog.Catalog, error) {
	if opts.catalogFile != "" {
		return catalog.LoadFile(opts.catalogFile)
	}
	lang := opts.rules
	if lang == "" {
		if frontend == "ir" {
			return nil, errors.New("--lang ir needs --rules <language> or --catalog <file>")
		}
		lang = frontend
	}
	return catalog.ForLanguage(lang)
}

func recordHistory(dir string, rep *report.Report) error {
	h, err := history.Load(dir)
	if err != nil {
		return err
	}
	snap := history.FromReport(rep)
	snap.Commit = currentCommit(dir)
	h.Record(snap)
	if err := h.Save(dir); err != nil {
		return err
	}
	logging.Infof("recorded snapshot %s (%d functions)", snap.RunID, len(snap.Functions))
	return nil
}

func currentCommit(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
