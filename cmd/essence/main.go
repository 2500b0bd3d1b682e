package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/1homsi/essence/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "essence:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
