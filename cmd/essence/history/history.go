package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1homsi/essence/internal/cli"
	"github.com/1homsi/essence/internal/history"
)

const (
	bold   = "\033[1m"
	reset  = "\033[0m"
	red    = "\033[31m"
	yellow = "\033[33m"
	green  = "\033[32m"
	gray   = "\033[90m"
)

// NewCommand creates the history command with its show and diff
// subcommands. Snapshots are recorded by "essence scan --history".
func NewCommand(_ *cli.RootOptions) *cobra.Command {
	var (
		dir     string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect scan snapshots recorded with scan --history",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", ".", "directory holding .essence-history.json")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON output")

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "List recorded snapshots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := history.Load(dir)
			if err != nil {
				return cli.WrapExitError(cli.ExitCommandError, "load history", err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), h.Snapshots)
			}
			writeShow(cmd.OutOrStdout(), h)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff [N [M]]",
		Short: "Compare two snapshots (default: the last two)",
		Long: `Compare snapshot N with snapshot M, numbered from 1 as listed by
"essence history show". With one argument the latest snapshot is compared
against N. Exit status is 1 when a function escalated.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := history.Load(dir)
			if err != nil {
				return cli.WrapExitError(cli.ExitCommandError, "load history", err)
			}
			oldIdx, curIdx, err := pickSnapshots(len(h.Snapshots), args)
			if err != nil {
				return err
			}
			old, cur := h.Snapshots[oldIdx], h.Snapshots[curIdx]
			diffs := history.Diff(old, cur)

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), diffs); err != nil {
					return err
				}
			} else {
				writeDiff(cmd.OutOrStdout(), old, cur, diffs)
			}
			for _, d := range diffs {
				if d.Change == "escalated" || (d.Change == "added" && len(d.New.Tags) > 0) {
					return cli.NewExitError(cli.ExitFailure, "functions escalated since the earlier snapshot")
				}
			}
			return nil
		},
	})

	return cmd
}

// pickSnapshots resolves 1-based snapshot arguments to indices.
func pickSnapshots(n int, args []string) (int, int, error) {
	if n < 2 {
		return 0, 0, cli.NewExitError(cli.ExitCommandError, "need at least 2 snapshots; run: essence scan --history")
	}
	parseIdx := func(s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > n {
			return 0, cli.NewExitError(cli.ExitCommandError, fmt.Sprintf("snapshot index %q out of range 1..%d", s, n))
		}
		return v - 1, nil
	}

	oldIdx, curIdx := n-2, n-1
	var err error
	switch len(args) {
	case 1:
		if oldIdx, err = parseIdx(args[0]); err != nil {
			return 0, 0, err
		}
	case 2:
		if oldIdx, err = parseIdx(args[0]); err != nil {
			return 0, 0, err
		}
		if curIdx, err = parseIdx(args[1]); err != nil {
			return 0, 0, err
		}
	}
	return oldIdx, curIdx, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return cli.WrapExitError(cli.ExitCommandError, "write output", err)
	}
	return nil
}

func tagged(snap history.Snapshot) int {
	n := 0
	for _, f := range snap.Functions {
		if len(f.Tags) > 0 {
			n++
		}
	}
	return n
}

func writeShow(w io.Writer, h *history.History) {
	if len(h.Snapshots) == 0 {
		fmt.Fprintln(w, "no history recorded; run: essence scan --history")
		return
	}

	fmt.Fprintf(w, "%s%-4s  %-25s  %-10s  %-8s  %9s  %6s  %8s  %-8s%s\n",
		bold, "#", "TIMESTAMP", "COMMIT", "LANG", "FUNCTIONS", "TAGGED", "FAILURES", "TREND", reset)
	fmt.Fprintln(w, strings.Repeat("─", 96))

	for i, snap := range h.Snapshots {
		commit := snap.Commit
		if commit == "" {
			commit = "—"
		}
		n := tagged(snap)

		trend := gray + "—" + reset
		if i > 0 {
			switch delta := n - tagged(h.Snapshots[i-1]); {
			case delta > 0:
				trend = fmt.Sprintf("%s↑ +%d%s", red, delta, reset)
			case delta < 0:
				trend = fmt.Sprintf("%s↓ %d%s", green, delta, reset)
			default:
				trend = gray + "→" + reset
			}
		}

		fmt.Fprintf(w, "%-4d  %-25s  %-10s  %-8s  %9d  %6d  %8d  %s\n",
			i+1, snap.Timestamp, commit, snap.Language, len(snap.Functions), n, snap.Failures, trend)
	}
}

func tagString(f *history.FunctionSnapshot) string {
	if f == nil || len(f.Tags) == 0 {
		return "-"
	}
	parts := make([]string, len(f.Tags))
	for i, t := range f.Tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func writeDiff(w io.Writer, old, cur history.Snapshot, diffs []history.FunctionDiff) {
	fmt.Fprintf(w, "%sdrift  %s → %s%s\n\n", bold, old.Timestamp, cur.Timestamp, reset)

	counts := make(map[string]int)
	for _, d := range diffs {
		counts[d.Change]++
		switch d.Change {
		case "added":
			fmt.Fprintf(w, "  %s+  %-50s  %s%s\n", yellow, d.Function, tagString(d.New), reset)
		case "removed":
			fmt.Fprintf(w, "  %s-  %-50s%s\n", green, d.Function, reset)
		case "escalated":
			fmt.Fprintf(w, "  %s↑  %-50s  %s → %s (depth %d → %d)%s\n", red, d.Function,
				tagString(d.Old), tagString(d.New), d.Old.MaxDepth, d.New.MaxDepth, reset)
		case "reduced":
			fmt.Fprintf(w, "  %s↓  %-50s  %s → %s%s\n", green, d.Function, tagString(d.Old), tagString(d.New), reset)
		case "changed":
			fmt.Fprintf(w, "  ~  %-50s  findings moved\n", d.Function)
		}
	}

	fmt.Fprintf(w, "\n  added=%d  removed=%d  escalated=%d  reduced=%d  changed=%d\n",
		counts["added"], counts["removed"], counts["escalated"], counts["reduced"], counts["changed"])
}
