package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
	dsvc "tradeguard/internal/domain/service"
)

const (
	tradingPeriods   = 252
	equityWindowDays = 365
)

// PerformanceService 每日绩效快照（按日期 + 策略 upsert）
type PerformanceService struct {
	repo     port.Repository
	strategy string
	riskFree float64
	now      func() time.Time
}

func NewPerformanceService(repo port.Repository, strategy string, riskFree float64) *PerformanceService {
	return &PerformanceService{
		repo:     repo,
		strategy: strategy,
		riskFree: riskFree,
		now:      time.Now,
	}
}

// WithClock 替换时间源，nil 忽略
func (s *PerformanceService) WithClock(now func() time.Time) *PerformanceService {
	if now != nil {
		s.now = now
	}
	return s
}

// UpdateDaily 根据当前持仓、现金和成交记录重算今天的快照
// TotalPnL 是相对前一个快照的组合价值变化；没有历史时取持仓累计盈亏
func (s *PerformanceService) UpdateDaily(ctx context.Context, cash float64) (*model.PerformanceSnapshot, error) {
	today := model.Day(s.now())

	positions, err := s.repo.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	snap := &model.PerformanceSnapshot{
		Date:        today,
		Strategy:    s.strategy,
		CashBalance: cash,
		UpdatedAt:   s.now(),
	}
	for _, p := range positions {
		snap.RealizedPnL += p.RealizedPnL
		if p.IsOpen() {
			snap.UnrealizedPnL += p.UnrealizedPnL
			snap.Exposure += p.MarketValue()
		}
	}
	snap.PortfolioValue = cash + snap.Exposure

	history, err := s.repo.RecentPerformance(ctx, today.AddDate(0, 0, -equityWindowDays), s.strategy)
	if err != nil {
		return nil, fmt.Errorf("load performance history: %w", err)
	}

	// 升序资金曲线，排除今天已有的快照
	var curve []float64
	var prev *model.PerformanceSnapshot
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		if !h.Date.Before(today) {
			continue
		}
		curve = append(curve, h.PortfolioValue)
		prev = h
		snap.MaxDrawdown = max(snap.MaxDrawdown, h.MaxDrawdown)
	}
	curve = append(curve, snap.PortfolioValue)

	if prev != nil && prev.PortfolioValue > 0 {
		snap.TotalPnL = snap.PortfolioValue - prev.PortfolioValue
	} else {
		snap.TotalPnL = snap.RealizedPnL + snap.UnrealizedPnL
	}

	peak := 0.0
	for _, v := range curve {
		peak = max(peak, v)
	}
	snap.CurrentDrawdown = max(0, peak-snap.PortfolioValue)
	snap.MaxDrawdown = max(snap.MaxDrawdown, snap.CurrentDrawdown)

	returns := dsvc.SimpleReturns(curve)
	snap.SharpeRatio = dsvc.SharpeRatio(returns, s.riskFree, tradingPeriods)
	snap.SortinoRatio = dsvc.SortinoRatio(returns, s.riskFree, tradingPeriods)

	trades, err := s.repo.ListTrades(ctx, time.Time{}, s.strategy)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	stats := dsvc.ComputeTradeStats(trades)
	snap.WinRate = stats.WinRate
	snap.AvgWin = stats.AvgWin
	snap.AvgLoss = stats.AvgLoss
	snap.ProfitFactor = stats.ProfitFactor
	snap.TotalTrades = stats.Trades
	snap.WinningTrades = stats.Wins
	snap.LosingTrades = stats.Losses

	if err := s.repo.UpsertPerformance(ctx, snap); err != nil {
		return nil, fmt.Errorf("save performance: %w", err)
	}

	log.Info().
		Time("date", today).
		Float64("portfolio_value", snap.PortfolioValue).
		Float64("pnl", snap.TotalPnL).
		Float64("drawdown", snap.CurrentDrawdown).
		Float64("exposure", snap.Exposure).
		Msg("performance snapshot updated")
	return snap, nil
}
