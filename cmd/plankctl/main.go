package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/limbo/plankup/internal/bootstrap"
	"github.com/limbo/plankup/internal/cli"
	"github.com/limbo/plankup/pkg/cleanup"
	"github.com/limbo/plankup/pkg/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cfg := config.New()
	root := cli.NewRootCommand(func(logger *slog.Logger, offline bool) (*bootstrap.Stores, error) {
		if offline {
			return bootstrap.OpenLocalStores(cfg)
		}
		return bootstrap.OpenStores(cfg, logger)
	})
	err := root.ExecuteContext(ctx)
	stop()
	cleanup.CleanUp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
