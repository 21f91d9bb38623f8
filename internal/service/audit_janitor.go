package service

import (
	"context"
	"time"

	"github.com/SergeiKhy/pastebin/internal/clock"
	"github.com/SergeiKhy/pastebin/internal/repository"
	"go.uber.org/zap"
)

// StartAuditJanitor периодически удаляет записи журнала просмотров старше retention
func StartAuditJanitor(
	ctx context.Context,
	repo repository.ViewRepository,
	clk clock.Clock,
	retention time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) {
	if interval <= 0 {
		interval = time.Hour
	}
	if clk == nil {
		clk = clock.Wall{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purgeOnce(ctx, repo, clk, retention, logger)
			}
		}
	}()
}

func purgeOnce(ctx context.Context, repo repository.ViewRepository, clk clock.Clock, retention time.Duration, logger *zap.Logger) {
	c, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := repo.PurgeBefore(c, clk.Now().Add(-retention))
	if err != nil {
		logger.Error("Ошибка очистки журнала просмотров", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("Удалены старые записи журнала просмотров", zap.Int64("count", removed))
	}
}
