package service

import (
	"math"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/domain/model"
)

// SizingMethod 仓位计算方法
type SizingMethod string

const (
	SizingFixed      SizingMethod = "fixed"
	SizingVolatility SizingMethod = "volatility"
	SizingKelly      SizingMethod = "kelly"
)

// SizeRequest 仓位计算输入
type SizeRequest struct {
	Price           float64
	AccountValue    float64
	MaxRiskPerTrade float64
	// Volatility 可选（ATR 等），0 表示未提供
	Volatility float64
	// Stats 可选，三项都非零时才启用 Kelly
	Stats *model.TradeStats
}

// SizeCandidate 单个方法的结果
type SizeCandidate struct {
	Method SizingMethod `json:"method"`
	Shares int          `json:"shares"`
}

// SizeResult 仓位计算结果
type SizeResult struct {
	Shares     int             `json:"shares"`
	Method     SizingMethod    `json:"method"`
	Candidates []SizeCandidate `json:"candidates"`
	// Floored is set when every method recommended zero shares and the
	// one-share floor was applied.
	Floored bool `json:"floored"`
}

// PositionSizer 多种方法取最保守的仓位
type PositionSizer struct {
	floorToOne bool
}

func NewPositionSizer(floorToOne bool) *PositionSizer {
	return &PositionSizer{floorToOne: floorToOne}
}

// CalculateSize 计算股数
func (ps *PositionSizer) CalculateSize(req SizeRequest) SizeResult {
	candidates := []SizeCandidate{
		{Method: SizingFixed, Shares: fixedFractionSize(req.Price, req.AccountValue, req.MaxRiskPerTrade)},
	}

	if req.Volatility != 0 {
		candidates = append(candidates, SizeCandidate{
			Method: SizingVolatility,
			Shares: volatilityAdjustedSize(req.Price, req.AccountValue, req.Volatility, req.MaxRiskPerTrade),
		})
	}

	if req.Stats.Usable() {
		k := Kelly(req.Stats.WinRate, req.Stats.AvgWin, req.Stats.AvgLoss, DefaultKellyFraction)
		candidates = append(candidates, SizeCandidate{
			Method: SizingKelly,
			Shares: fixedFractionSize(req.Price, req.AccountValue, k),
		})
	}

	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if c.Shares < chosen.Shares {
			chosen = c
		}
	}

	res := SizeResult{
		Shares:     chosen.Shares,
		Method:     chosen.Method,
		Candidates: candidates,
	}
	if res.Shares < 1 && ps.floorToOne {
		res.Shares = 1
		res.Floored = true
	}
	if res.Shares < 0 {
		res.Shares = 0
	}

	log.Info().
		Str("method", string(res.Method)).
		Int("shares", res.Shares).
		Bool("floored", res.Floored).
		Interface("candidates", candidates).
		Msg("position sized")
	return res
}

func fixedFractionSize(price, accountValue, fraction float64) int {
	if price <= 0 {
		return 0
	}
	return int(math.Floor(accountValue * fraction / price))
}

// 风险金额 / (2 * ATR)，以 2 倍 ATR 作为止损距离
func volatilityAdjustedSize(price, accountValue, volatility, maxRisk float64) int {
	if volatility == 0 {
		return fixedFractionSize(price, accountValue, maxRisk)
	}
	return int(math.Floor(accountValue * maxRisk / (2 * volatility)))
}
