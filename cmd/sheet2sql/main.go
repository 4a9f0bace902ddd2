package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/sheet2sql/internal/cli"
	"github.com/JonMunkholm/sheet2sql/internal/config"
)

func main() {
	// .env overrides the process environment, as in development setups.
	if _, err := config.LoadEnvFile(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}
