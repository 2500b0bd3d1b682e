package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cadapter "github.com/1homsi/essence/internal/adapters/c"
	cppadapter "github.com/1homsi/essence/internal/adapters/cpp"
	goadapter "github.com/1homsi/essence/internal/adapters/go"
	"github.com/1homsi/essence/internal/adapters/irjson"
	rustadapter "github.com/1homsi/essence/internal/adapters/rust"
	"github.com/1homsi/essence/internal/catalog"
	"github.com/1homsi/essence/internal/essence"
	"github.com/1homsi/essence/internal/ir"
	"github.com/1homsi/essence/internal/logging"
	"github.com/1homsi/essence/internal/report"
	"github.com/1homsi/essence/internal/walker"
)

// Frontend turns source at a path into raw IR units.
type Frontend interface {
	Name() string
	Load(ctx context.Context, path string) ([]ir.Unit, error)
}

// ForLang returns the front-end for lang, which may be "auto", "rust",
// "c", "cpp", "go" or "ir". "auto" detects the language from path.
func ForLang(lang, path string) (Frontend, error) {
	if lang == "auto" {
		lang = detect(path)
		if lang == "" {
			return nil, fmt.Errorf("cannot detect language of %s; pass --lang rust|c|cpp|go|ir", path)
		}
	}
	switch lang {
	case "rust":
		return &rustadapter.Adapter{}, nil
	case "c":
		return &cadapter.Adapter{}, nil
	case "cpp":
		return &cppadapter.Adapter{}, nil
	case "go":
		return &goadapter.Adapter{}, nil
	case "ir":
		return &irjson.Adapter{}, nil
	default:
		return nil, fmt.Errorf("unknown language %q; choose auto|rust|c|cpp|go|ir", lang)
	}
}

var extLanguages = map[string]string{
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".c++":  "cpp",
	".hpp":  "cpp",
	".hh":   "cpp",
	".hxx":  "cpp",
	".go":   "go",
	".json": "ir",
}

// detect picks a language from a file extension, a project marker file or
// the first recognized source file in a directory.
func detect(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if !info.IsDir() {
		return extLanguages[filepath.Ext(path)]
	}

	switch {
	case fileExists(filepath.Join(path, "Cargo.toml")):
		return "rust"
	case fileExists(filepath.Join(path, "go.mod")):
		return "go"
	}

	var found string
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if lang, ok := extLanguages[filepath.Ext(p)]; ok && lang != "ir" {
			found = lang
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Options controls one analysis run.
type Options struct {
	// Workers bounds concurrent function analyses. Zero means GOMAXPROCS.
	Workers int
	// Language labels the report. Empty means the catalog's language.
	Language string
	// RunID labels the report. Empty means a fresh UUID.
	RunID string
}

// DuplicateFunctionError reports a function identifier that was already
// analyzed in the same run.
type DuplicateFunctionError struct {
	Function  string
	File      string
	FirstFile string
}

func (e *DuplicateFunctionError) Error() string {
	if e.File == "" && e.FirstFile == "" {
		return fmt.Sprintf("function %q defined more than once", e.Function)
	}
	return fmt.Sprintf("function %q in %s already defined in %s", e.Function, e.File, e.FirstFile)
}

// ClassifyError maps a per-function error to its report kind.
func ClassifyError(err error) report.ErrorKind {
	var (
		malformed *ir.MalformedIRError
		unknown   *walker.UnknownNodeKindError
		dup       *DuplicateFunctionError
	)
	switch {
	case errors.As(err, &malformed):
		return report.MalformedIR
	case errors.As(err, &unknown):
		return report.UnknownNodeKind
	case errors.As(err, &dup):
		return report.DuplicateFunction
	}
	return report.Frontend
}

// AnalyzeFunction builds, walks and aggregates a single unit.
func AnalyzeFunction(cat *catalog.Catalog, u ir.Unit) (essence.FunctionSignature, error) {
	fn, err := ir.Build(u)
	if err != nil {
		return essence.FunctionSignature{}, err
	}
	findings, err := walker.Walk(cat, fn)
	if err != nil {
		return essence.FunctionSignature{}, err
	}
	return essence.Aggregate(fn.Name, findings), nil
}

type outcome struct {
	sig  essence.FunctionSignature
	err  error
	done bool
}

// Analyze classifies every unit independently. A unit that fails becomes a
// report.Failure and never affects the others. When ctx is cancelled the
// units not yet started are skipped and the partial report is returned with
// ctx.Err().
func Analyze(ctx context.Context, cat *catalog.Catalog, units []ir.Unit, opts Options) (*report.Report, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	lang := opts.Language
	if lang == "" {
		lang = cat.Language()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]outcome, len(units))

	// The first definition of a name wins.
	firstFile := make(map[string]string, len(units))
	for i, u := range units {
		if first, ok := firstFile[u.Name]; ok && u.Name != "" {
			results[i] = outcome{err: &DuplicateFunctionError{Function: u.Name, File: u.File, FirstFile: first}, done: true}
			continue
		}
		firstFile[u.Name] = u.File
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range units {
		if results[i].done {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			sig, err := AnalyzeFunction(cat, units[i])
			results[i] = outcome{sig: sig, err: err, done: true}
			return nil
		})
	}
	_ = g.Wait()

	rep := report.New(runID, lang)
	var skipped int
	for i, res := range results {
		u := units[i]
		if !res.done {
			skipped++
			continue
		}
		if res.err != nil {
			kind := ClassifyError(res.err)
			logging.Warnf("%s: %s: %v", u.Name, kind, res.err)
			rep.Failures = append(rep.Failures, report.Failure{Function: u.Name, Kind: kind, Message: res.err.Error()})
			continue
		}
		logging.Debugf("%s: %d findings, tags %v", u.Name, len(res.sig.Findings), res.sig.Tags)
		rep.Signatures[u.Name] = res.sig
		if u.File != "" {
			rep.Files[u.Name] = u.File
		}
	}

	logging.Infof("run %s: %d analyzed, %d failed, %d skipped", runID, len(rep.Signatures), len(rep.Failures), skipped)
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// Scan loads every path with fe and analyzes the combined units. A path
// that fails to load becomes a Frontend failure named after the path.
func Scan(ctx context.Context, fe Frontend, cat *catalog.Catalog, paths []string, opts Options) (*report.Report, error) {
	var (
		units     []ir.Unit
		loadFails []report.Failure
	)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := fe.Load(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Warnf("%s: load %s: %v", fe.Name(), p, err)
			loadFails = append(loadFails, report.Failure{Function: p, Kind: report.Frontend, Message: err.Error()})
			continue
		}
		logging.Debugf("%s: %s: %d functions", fe.Name(), p, len(loaded))
		units = append(units, loaded...)
	}

	rep, err := Analyze(ctx, cat, units, opts)
	if rep != nil && len(loadFails) > 0 {
		rep.Failures = append(loadFails, rep.Failures...)
	}
	return rep, err
}
