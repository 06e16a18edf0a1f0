package port

import (
	"context"
	"errors"
	"time"

	"tradeguard/internal/domain/model"
	dsvc "tradeguard/internal/domain/service"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// Repository 持久化：持仓、行情、绩效、成交、风控事件
// 读接口与风控核心共用
type Repository interface {
	dsvc.PositionReader
	dsvc.PriceHistoryReader
	dsvc.PerformanceReader
	EventPublisher

	// Position operations
	UpsertPosition(ctx context.Context, pos *model.Position) error
	GetPosition(ctx context.Context, symbol string) (*model.Position, error)
	ListPositions(ctx context.Context) ([]*model.Position, error)

	// Price operations (append-only)
	InsertPriceBar(ctx context.Context, bar *model.PriceBar) error

	// Performance operations, one row per (date, strategy)
	UpsertPerformance(ctx context.Context, snap *model.PerformanceSnapshot) error

	// Trade journal
	InsertTrade(ctx context.Context, trade *model.Trade) error
	ListTrades(ctx context.Context, since time.Time, strategy string) ([]*model.Trade, error)

	// Risk events, newest first
	ListRiskEvents(ctx context.Context, since time.Time, limit int) ([]*model.RiskEvent, error)

	// Connection management
	Close() error
}
