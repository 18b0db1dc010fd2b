package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"classroom/internal/config"
	"classroom/internal/logger"
	"classroom/internal/roster"
	"classroom/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Must("dev").Fatal("config load failed", zap.Error(err))
	}
	log := logger.Must(cfg.Env).Named("admin")
	defer func() { _ = log.Sync() }()

	var backend *store.Backend
	defer func() {
		if backend != nil {
			_ = backend.Close()
		}
	}()

	cli := commandLine{
		cfg: cfg,
		out: os.Stdout,
		openRoster: func(ctx context.Context) (*roster.Resolver, error) {
			ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			b, err := store.OpenBackend(ctx, cfg, log)
			if err != nil {
				return nil, err
			}
			backend = b
			return roster.NewResolver(roster.NewSheetSource(cfg.StudentsSheetURL, cfg.SheetTimeout), b.Docs, log), nil
		},
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if err != errHelp {
			log.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
