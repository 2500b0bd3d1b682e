package diff

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1homsi/essence/internal/cli"
	"github.com/1homsi/essence/internal/report"
)

// NewCommand creates the diff command.
func NewCommand(_ *cli.RootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Compare two JSON scan reports function by function",
		Long: `Compare the signatures of two reports written by "essence scan --json".

Exit status is 1 when a function gained a tag or a new function with
findings appeared.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := readReport(args[0])
			if err != nil {
				return err
			}
			cur, err := readReport(args[1])
			if err != nil {
				return err
			}

			d := report.Diff(old, cur)
			if jsonOut {
				if err := report.WriteDiffJSON(cmd.OutOrStdout(), d); err != nil {
					return cli.WrapExitError(cli.ExitCommandError, "write output", err)
				}
			} else {
				report.WriteDiff(cmd.OutOrStdout(), d)
			}

			if d.Escalated {
				return cli.NewExitError(cli.ExitFailure, "new low-level operations detected")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

func readReport(path string) (*report.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cli.WrapExitError(cli.ExitCommandError, "open report", err)
	}
	defer f.Close()
	r, err := report.ReadJSON(f)
	if err != nil {
		return nil, cli.WrapExitError(cli.ExitCommandError, fmt.Sprintf("read %s", path), err)
	}
	return r, nil
}
