// Command slotbind runs CUE host specs: it writes slots through their
// policies, fires reactions and journals every change to SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/slotbind/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "slotbind: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
