// Command embedprep runs the batch steps of the embedding data pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/embedprep/internal/cli"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := root.ExecuteContext(ctx); err != nil {
		code := cli.ExitFailure
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		}
		fmt.Fprintln(os.Stderr, "command failed:", err)
		stop()
		os.Exit(code)
	}
}
