package port

import (
	"context"
	"time"

	"tradeguard/internal/domain/model"
)

// EventPublisher 风控事件和最新价的写出端（数据库、Redis 等）
type EventPublisher interface {
	PublishRiskEvent(ctx context.Context, ev *model.RiskEvent) error
	PublishLatestPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
}

// RiskMetrics 风控指标上报
type RiskMetrics interface {
	RecordDecision(symbol string, allowed bool, reason string)
	RecordExit(symbol string, kind model.ExitKind)
	RecordSummary(s *model.RiskSummary)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordDecision(string, bool, string) {}
func (NoopMetrics) RecordExit(string, model.ExitKind) {}
func (NoopMetrics) RecordSummary(*model.RiskSummary) {}
