package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/1homsi/essence/internal/catalog"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
)

func tagColor(t catalog.Tag) string {
	switch t {
	case catalog.RawPointerDeref, catalog.UnguardedPointerDeref, catalog.InlineAssembly:
		return colorRed
	case catalog.PointerOffsetArithmetic, catalog.UncheckedCast, catalog.ManualMemoryManagement, catalog.UnsafeCall:
		return colorYellow
	default:
		return colorGreen
	}
}

func tagList(tags []catalog.Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = tagColor(t) + string(t) + colorReset
	}
	return strings.Join(parts, " ")
}

// WriteText writes a human readable report. Functions with an empty tag
// set are listed only when verbose is true.
func WriteText(w io.Writer, r *Report, verbose bool) {
	fmt.Fprintf(w, "%s%s=== Essence Report ===%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "run: %s  language: %s\n\n", r.RunID, r.Language)

	var clean int
	for _, name := range r.Functions() {
		sig := r.Signatures[name]
		if len(sig.Tags) == 0 {
			clean++
			if !verbose {
				continue
			}
		}
		fmt.Fprintf(w, "%s%s%s", colorBold, name, colorReset)
		if file := r.Files[name]; file != "" {
			fmt.Fprintf(w, "  (%s)", file)
		}
		fmt.Fprintln(w)
		if len(sig.Tags) == 0 {
			fmt.Fprintf(w, "  %sno low-level operations%s\n", colorGreen, colorReset)
			continue
		}
		fmt.Fprintf(w, "  tags: %s\n", tagList(sig.Tags))
		fmt.Fprintf(w, "  max unsafe depth: %d\n", sig.MaxDepth)
		for _, s := range sig.Summaries {
			fmt.Fprintf(w, "    %-24s x%-3d min depth %d  at %s\n", s.Tag, s.Count, s.MinDepth, s.Span)
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\n%sFailures:%s\n", colorBold, colorReset)
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s[%s]%s %s: %s\n", colorRed, f.Kind, colorReset, f.Function, f.Message)
		}
	}

	fmt.Fprintf(w, "\n%d functions analyzed, %d without findings, %d failed\n",
		len(r.Signatures), clean, len(r.Failures))
}
