package telegram

import (
	"log/slog"

	"github.com/kritika-bot/kritika/internal/logger"
)

func nopLogger() *slog.Logger {
	return logger.NewNop()
}
