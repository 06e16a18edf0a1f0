package service

import (
	"context"
	"time"

	"tradeguard/internal/domain/model"
)

// PositionReader 持仓查询
type PositionReader interface {
	// OpenPositions returns positions with quantity > 0.
	OpenPositions(ctx context.Context) ([]*model.Position, error)
}

// PriceHistoryReader 历史价格查询
type PriceHistoryReader interface {
	// ClosingPrices returns closes for symbol at or after since, oldest first.
	ClosingPrices(ctx context.Context, symbol string, since time.Time) ([]float64, error)
}

// PerformanceReader 绩效快照查询，strategy 为空表示任意策略
type PerformanceReader interface {
	// DailyPerformance returns the snapshot for day, or nil when none exists.
	DailyPerformance(ctx context.Context, day time.Time, strategy string) (*model.PerformanceSnapshot, error)
	// RecentPerformance returns snapshots dated on or after since, newest first.
	RecentPerformance(ctx context.Context, since time.Time, strategy string) ([]*model.PerformanceSnapshot, error)
}
