package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/domain/model"
)

const (
	correlationWindowDays = 30
	varWindowDays         = 30
	betaWindowDays        = 90

	DefaultBenchmark     = "SPY"
	DefaultVaRConfidence = 0.95
)

// PortfolioRisk 组合层面的敞口、相关性、VaR、Beta
type PortfolioRisk struct {
	limits    RiskLimits
	positions PositionReader
	prices    PriceHistoryReader
	now       func() time.Time
}

// NewPortfolioRisk 创建组合风险分析器
func NewPortfolioRisk(limits RiskLimits, positions PositionReader, prices PriceHistoryReader, now func() time.Time) *PortfolioRisk {
	if now == nil {
		now = time.Now
	}
	return &PortfolioRisk{
		limits:    limits,
		positions: positions,
		prices:    prices,
		now:       now,
	}
}

// CheckExposureLimit 新仓位价值 / 账户价值 <= 上限（含边界）
func (pr *PortfolioRisk) CheckExposureLimit(newPositionValue, accountValue float64) bool {
	if accountValue <= 0 {
		return false
	}
	return newPositionValue/accountValue <= pr.limits.MaxPortfolioExposure
}

// CheckCorrelationLimit 与任一已有持仓相关性绝对值超限则拒绝
func (pr *PortfolioRisk) CheckCorrelationLimit(ctx context.Context, newSymbol string) (bool, error) {
	corrs, err := pr.Correlations(ctx, newSymbol)
	if err != nil {
		return false, err
	}
	for symbol, c := range corrs {
		if abs(c.Value) > pr.limits.MaxCorrelation {
			log.Warn().
				Str("symbol", newSymbol).
				Str("held", symbol).
				Float64("correlation", c.Value).
				Msg("high correlation detected")
			return false, nil
		}
	}
	return true, nil
}

// Correlations 新 symbol 与每个持仓 symbol 的收益率相关性
// 任一方没有价格数据时跳过该对
func (pr *PortfolioRisk) Correlations(ctx context.Context, newSymbol string) (map[string]model.Estimate, error) {
	positions, err := pr.positions.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	out := make(map[string]model.Estimate, len(positions))
	if len(positions) == 0 {
		return out, nil
	}

	newPrices, err := pr.history(ctx, newSymbol, correlationWindowDays)
	if err != nil {
		return nil, err
	}
	if len(newPrices) == 0 {
		log.Warn().Str("symbol", newSymbol).Msg("no price history")
		return out, nil
	}

	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		held, err := pr.history(ctx, p.Symbol, correlationWindowDays)
		if err != nil {
			return nil, err
		}
		if len(held) == 0 {
			continue
		}
		out[p.Symbol] = Correlation(newPrices, held)
	}
	return out, nil
}

// CalculateVaR 历史模拟法 VaR：各持仓按市值加权的日收益率合并后取 (1-confidence) 分位数
func (pr *PortfolioRisk) CalculateVaR(ctx context.Context, confidence float64) (model.Estimate, error) {
	if confidence <= 0 || confidence >= 1 {
		return model.Estimate{}, fmt.Errorf("var confidence must be in (0, 1), got %v", confidence)
	}
	positions, err := pr.positions.OpenPositions(ctx)
	if err != nil {
		return model.Estimate{}, fmt.Errorf("load open positions: %w", err)
	}

	var pooled []float64
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		prices, err := pr.history(ctx, p.Symbol, varWindowDays)
		if err != nil {
			return model.Estimate{}, err
		}
		mv := p.MarketValue()
		for _, r := range SimpleReturns(prices) {
			pooled = append(pooled, r*mv)
		}
	}
	if len(pooled) == 0 {
		return model.Fallback(0), nil
	}

	v := abs(LowerQuantile(pooled, 1-confidence))
	log.Info().Float64("confidence", confidence).Float64("var", v).Int("observations", len(pooled)).Msg("portfolio var")
	return model.Measured(v), nil
}

// CalculatePortfolioBeta 按市值加权的组合 Beta
// 基准数据不足或没有持仓贡献时返回 1.0（低可信度）
func (pr *PortfolioRisk) CalculatePortfolioBeta(ctx context.Context, benchmark string) (model.Estimate, error) {
	positions, err := pr.positions.OpenPositions(ctx)
	if err != nil {
		return model.Estimate{}, fmt.Errorf("load open positions: %w", err)
	}

	benchPrices, err := pr.history(ctx, benchmark, betaWindowDays)
	if err != nil {
		return model.Estimate{}, err
	}
	if len(benchPrices) < 2 {
		return model.Fallback(1.0), nil
	}
	benchReturns := SimpleReturns(benchPrices)

	total := 0.0
	for _, p := range positions {
		if p.IsOpen() {
			total += p.MarketValue()
		}
	}
	if total <= 0 {
		return model.Fallback(1.0), nil
	}

	weighted := 0.0
	contributed := 0
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		prices, err := pr.history(ctx, p.Symbol, betaWindowDays)
		if err != nil {
			return model.Estimate{}, err
		}
		if len(prices) < 2 {
			continue
		}
		b, ok := Beta(SimpleReturns(prices), benchReturns)
		if !ok {
			continue
		}
		weighted += b * p.MarketValue() / total
		contributed++
	}
	if contributed == 0 {
		return model.Fallback(1.0), nil
	}

	log.Info().Str("benchmark", benchmark).Float64("beta", weighted).Msg("portfolio beta")
	return model.Measured(weighted), nil
}

func (pr *PortfolioRisk) history(ctx context.Context, symbol string, days int) ([]float64, error) {
	since := pr.now().AddDate(0, 0, -days)
	prices, err := pr.prices.ClosingPrices(ctx, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("load price history %s: %w", symbol, err)
	}
	return prices, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
