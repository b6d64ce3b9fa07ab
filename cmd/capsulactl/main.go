package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/capsula-erp/capsula/cmd/capsulactl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRoot().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
