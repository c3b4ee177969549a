package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	rootcmd "github.com/go-ports/curloc/cmd/curloc/root"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return rootcmd.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
