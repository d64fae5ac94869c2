package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"qtgen/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result, _ := cli.Run(ctx, os.Args[1:], cli.Environment{}, os.Stdout, os.Stderr)
	stop()
	os.Exit(result.ExitCode)
}
