package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/buildrunner/cmd/commands"
	"github.com/aristath/buildrunner/internal/collate"
)

func main() {
	// Signal-aware context for graceful shutdown: cancellation reaches
	// every running task through its process group.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := commands.NewRootCommand()
	if err := cmd.Run(ctx, os.Args); err != nil {
		var buildErr *collate.BuildFailedError
		if errors.As(err, &buildErr) {
			// The per-task blocks were already flushed; end with the
			// composed verdict.
			fmt.Fprintln(os.Stderr, buildErr.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
