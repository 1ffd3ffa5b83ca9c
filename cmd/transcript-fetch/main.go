// Command transcript-fetch downloads video transcripts from a transcript host
// and writes them as Markdown files, one at a time or in batches.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(os.LookupEnv).ExecuteContext(ctx)
}
