package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/domain/model"
)

const drawdownWindowDays = 30

// 稳定的拒绝原因，调用方可以直接展示
const (
	ReasonDailyLoss   = "Daily loss limit exceeded"
	ReasonDrawdown    = "Maximum drawdown limit exceeded"
	ReasonCorrelation = "Correlation limit with existing positions exceeded"
)

// RiskManager 风险管理器：开仓前的五道闸门、仓位计算、平仓判断
type RiskManager struct {
	limits RiskLimits

	sizer     *PositionSizer
	stops     *StopLossManager
	portfolio *PortfolioRisk

	performance PerformanceReader
	now         func() time.Time
}

// RiskManagerDeps 风险管理器依赖的数据读取方
type RiskManagerDeps struct {
	Performance PerformanceReader
	Positions   PositionReader
	Prices      PriceHistoryReader
	// Now 可选，默认 time.Now
	Now func() time.Time
}

// NewRiskManager 创建风险管理器
func NewRiskManager(limits RiskLimits, deps RiskManagerDeps) *RiskManager {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RiskManager{
		limits:      limits,
		sizer:       NewPositionSizer(limits.FloorToOneShare),
		stops:       NewStopLossManager(limits, now),
		portfolio:   NewPortfolioRisk(limits, deps.Positions, deps.Prices, now),
		performance: deps.Performance,
		now:         now,
	}
}

// Limits 当前生效的风控参数
func (rm *RiskManager) Limits() RiskLimits { return rm.limits }

// Portfolio 组合风险分析器
func (rm *RiskManager) Portfolio() *PortfolioRisk { return rm.portfolio }

// Stops 止损管理器
func (rm *RiskManager) Stops() *StopLossManager { return rm.stops }

// CanOpenPosition 检查是否可以开仓，按顺序短路：
// 当日亏损 -> 回撤 -> 单笔仓位 -> 组合敞口 -> 相关性
func (rm *RiskManager) CanOpenPosition(ctx context.Context, symbol string, side model.Side, quantity, price, accountValue float64) (model.Decision, error) {
	ok, err := rm.dailyLossOK(ctx)
	if err != nil {
		return model.Decision{}, err
	}
	if !ok {
		return model.Reject(ReasonDailyLoss), nil
	}

	ok, err = rm.drawdownOK(ctx)
	if err != nil {
		return model.Decision{}, err
	}
	if !ok {
		return model.Reject(ReasonDrawdown), nil
	}

	positionValue := quantity * price
	if positionValue > accountValue*rm.limits.MaxPositionSize {
		return model.Reject(fmt.Sprintf("Position size exceeds max limit of %s%%", pct(rm.limits.MaxPositionSize))), nil
	}

	if !rm.portfolio.CheckExposureLimit(positionValue, accountValue) {
		return model.Reject(fmt.Sprintf("Portfolio exposure limit of %s%% exceeded", pct(rm.limits.MaxPortfolioExposure))), nil
	}

	ok, err = rm.portfolio.CheckCorrelationLimit(ctx, symbol)
	if err != nil {
		return model.Decision{}, err
	}
	if !ok {
		return model.Reject(ReasonCorrelation), nil
	}

	log.Info().
		Str("symbol", symbol).
		Str("side", side.String()).
		Float64("quantity", quantity).
		Float64("price", price).
		Msg("risk check passed")
	return model.Allow(), nil
}

// CalculatePositionSize 以 MaxPositionSize 作为每笔风险比例计算股数
func (rm *RiskManager) CalculatePositionSize(price, accountValue, volatility float64, stats *model.TradeStats) SizeResult {
	return rm.sizer.CalculateSize(SizeRequest{
		Price:           price,
		AccountValue:    accountValue,
		MaxRiskPerTrade: rm.limits.MaxPositionSize,
		Volatility:      volatility,
		Stats:           stats,
	})
}

// ShouldExitPosition 止损/止盈判断
func (rm *RiskManager) ShouldExitPosition(entryPrice, currentPrice, quantity float64, side model.Side) model.ExitSignal {
	return rm.stops.ShouldExit(entryPrice, currentPrice, quantity, side)
}

// UpdateTrailingStops 新价格到来时上移跟踪止损
func (rm *RiskManager) UpdateTrailingStops(symbol string, currentPrice float64) {
	rm.stops.UpdateTrailingStop(symbol, currentPrice)
}

func (rm *RiskManager) RegisterEntry(symbol string, entryPrice float64) {
	rm.stops.RegisterEntry(symbol, entryPrice)
}

func (rm *RiskManager) CheckTrailingStop(symbol string, currentPrice float64) model.ExitSignal {
	return rm.stops.CheckTrailingStop(symbol, currentPrice)
}

func (rm *RiskManager) CheckTimeStop(symbol string, maxHold time.Duration) model.ExitSignal {
	return rm.stops.CheckTimeStop(symbol, maxHold)
}

func (rm *RiskManager) ClearPosition(symbol string) {
	rm.stops.ClearPosition(symbol)
}

// GetRiskSummary 风控概览，当日没有快照时各项为 0
func (rm *RiskManager) GetRiskSummary(ctx context.Context) (*model.RiskSummary, error) {
	snap, err := rm.performance.DailyPerformance(ctx, model.Day(rm.now()), rm.limits.Strategy)
	if err != nil {
		return nil, fmt.Errorf("load today performance: %w", err)
	}
	if snap == nil {
		snap = &model.PerformanceSnapshot{}
	}

	summary := &model.RiskSummary{
		PortfolioValue:   snap.PortfolioValue,
		DailyPnL:         snap.TotalPnL,
		CurrentDrawdown:  snap.CurrentDrawdown,
		Exposure:         snap.Exposure,
		DailyLossLimit:   rm.limits.DailyLossLimit * 100,
		MaxDrawdownLimit: rm.limits.MaxDrawdownLimit * 100,
		MaxExposureLimit: rm.limits.MaxPortfolioExposure * 100,
	}
	if pv := snap.PortfolioValue; pv != 0 {
		summary.DailyPnLPct = snap.TotalPnL / pv * 100
		summary.CurrentDrawdownPct = snap.CurrentDrawdown / pv * 100
		summary.ExposurePct = snap.Exposure / pv * 100
	}

	dailyOK, err := rm.dailyLossOK(ctx)
	if err != nil {
		return nil, err
	}
	drawdownOK, err := rm.drawdownOK(ctx)
	if err != nil {
		return nil, err
	}
	summary.CanTrade = dailyOK && drawdownOK

	if summary.VaR95, err = rm.portfolio.CalculateVaR(ctx, DefaultVaRConfidence); err != nil {
		return nil, err
	}
	if summary.Beta, err = rm.portfolio.CalculatePortfolioBeta(ctx, DefaultBenchmark); err != nil {
		return nil, err
	}
	return summary, nil
}

// dailyLossOK 当日亏损占组合价值比例未超限
func (rm *RiskManager) dailyLossOK(ctx context.Context) (bool, error) {
	snap, err := rm.performance.DailyPerformance(ctx, model.Day(rm.now()), rm.limits.Strategy)
	if err != nil {
		return false, fmt.Errorf("load today performance: %w", err)
	}
	if snap == nil || snap.TotalPnL >= 0 || snap.PortfolioValue <= 0 {
		return true, nil
	}

	loss := math.Abs(snap.TotalPnL) / snap.PortfolioValue
	if loss > rm.limits.DailyLossLimit {
		log.Warn().Float64("loss_pct", loss*100).Msg("daily loss limit exceeded")
		return false, nil
	}
	return true, nil
}

// drawdownOK 最近 30 天从峰值到最新组合价值的回撤未超限
func (rm *RiskManager) drawdownOK(ctx context.Context) (bool, error) {
	since := model.Day(rm.now()).AddDate(0, 0, -drawdownWindowDays)
	snaps, err := rm.performance.RecentPerformance(ctx, since, rm.limits.Strategy)
	if err != nil {
		return false, fmt.Errorf("load recent performance: %w", err)
	}
	if len(snaps) == 0 {
		return true, nil
	}

	peak := 0.0
	for _, s := range snaps {
		if s.PortfolioValue > peak {
			peak = s.PortfolioValue
		}
	}
	if peak <= 0 {
		return true, nil
	}

	current := snaps[0].PortfolioValue
	if current == 0 {
		current = peak
	}
	drawdown := (peak - current) / peak
	if drawdown > rm.limits.MaxDrawdownLimit {
		log.Warn().Float64("drawdown_pct", drawdown*100).Msg("max drawdown exceeded")
		return false, nil
	}
	return true, nil
}

// pct 0.02 -> "2"
func pct(ratio float64) string {
	return strconv.FormatFloat(math.Round(ratio*100*1e6)/1e6, 'f', -1, 64)
}
