package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/app"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/config"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error("app run failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}
