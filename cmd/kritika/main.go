package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/kritika-bot/kritika/internal/app"
	"github.com/kritika-bot/kritika/internal/config"
	"github.com/kritika-bot/kritika/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("configuration failed", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, app.Options{}).Run(ctx); err != nil {
		logger.L.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
