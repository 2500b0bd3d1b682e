package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1homsi/essence/cmd/essence/catalog"
	"github.com/1homsi/essence/cmd/essence/diff"
	"github.com/1homsi/essence/cmd/essence/history"
	"github.com/1homsi/essence/cmd/essence/scan"
	"github.com/1homsi/essence/internal/cli"
	"github.com/1homsi/essence/internal/logging"
)

func newRootCommand(version string) *cobra.Command {
	opts := &cli.RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "essence",
		Short: "Classify functions by the low-level operations they perform",
		Long: `essence lowers Rust, C and Go functions to a small intermediate
representation and classifies each one by the low-level operations it
performs: raw pointer dereferences, pointer arithmetic, unchecked casts,
inline assembly, manual memory management and unsafe region entry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Verbose {
				logging.SetVerbose(true)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging to stderr")

	cmd.AddCommand(scan.NewCommand(opts))
	cmd.AddCommand(diff.NewCommand(opts))
	cmd.AddCommand(catalog.NewCommand(opts))
	cmd.AddCommand(history.NewCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the essence version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), opts.Version)
		},
	})

	return cmd
}
