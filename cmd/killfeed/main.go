package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/killfeed/internal/cli"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
