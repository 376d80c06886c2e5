package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stockpipe/internal/cli"
	"stockpipe/internal/platform/config"
	"stockpipe/internal/platform/logger"
)

func main() {
	// .env is optional; real env wins
	if _, err := config.LoadDotEnv(); err != nil {
		logger.Get().Warn().Err(err).Msg("load .env failed")
	}
	logger.Init(logger.FromEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
