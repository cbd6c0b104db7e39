package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"supportbot/internal/app"
	"supportbot/internal/cli"
	"supportbot/internal/config"
	"supportbot/internal/logging"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	open := func(ctx context.Context) (*cli.Backend, func(), error) {
		logger, err := logging.New("ragctl", cfg.LogLevel, cfg.LogDev)
		if err != nil {
			return nil, nil, err
		}
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return &cli.Backend{
			Migrate:  a.Migrate,
			Tenants:  a.Tenants,
			Ingester: a.Pipeline,
			RAG:      a.Service,
			Clients:  a.Clients,
			Stats:    a.Audit,
		}, func() { a.Close(); _ = logger.Sync() }, nil
	}

	root := cli.NewRootCmd(open)
	root.SetOut(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
