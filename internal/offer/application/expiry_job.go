package application

import (
	"context"
	"time"

	"github.com/wyfcoding/p2pescrow/internal/offer/domain"
	"github.com/wyfcoding/pkg/logging"
)

// ExpirySweeper 周期性把已过期但仍标记 ACTIVE 的报价单置为 EXPIRED
// 纯列表卫生：接受/列表路径自行做惰性过期判定，正确性不依赖本任务
type ExpirySweeper struct {
	repo     domain.OfferRepository
	interval time.Duration
}

// NewExpirySweeper 创建过期清扫任务
func NewExpirySweeper(repo domain.OfferRepository, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ExpirySweeper{repo: repo, interval: interval}
}

// Run 阻塞运行直到 ctx 取消
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.repo.ExpireStale(ctx, time.Now())
			if err != nil {
				logging.Error(ctx, "offer expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logging.Info(ctx, "expired stale offers", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
