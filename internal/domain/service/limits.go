package service

import (
	"errors"
	"fmt"
)

// RiskLimits 风控参数（比例，0.02 = 2%），启动时构建一次后注入各组件
type RiskLimits struct {
	MaxPositionSize      float64 // 单笔持仓占账户上限，同时作为每笔风险比例
	MaxPortfolioExposure float64 // 组合敞口上限
	DailyLossLimit       float64 // 当日亏损上限
	MaxDrawdownLimit     float64 // 30 日最大回撤上限
	MaxCorrelation       float64 // 与已有持仓的相关性上限（绝对值）

	StopLossPct     float64
	TakeProfitPct   float64
	TrailingStopPct float64

	// FloorToOneShare keeps the "never size to zero" policy of the sizer.
	FloorToOneShare bool
	// Strategy 绩效快照过滤，空字符串表示不过滤
	Strategy string
}

// DefaultRiskLimits 默认风控参数
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:      0.02,
		MaxPortfolioExposure: 0.5,
		DailyLossLimit:       0.05,
		MaxDrawdownLimit:     0.15,
		MaxCorrelation:       0.7,
		StopLossPct:          0.02,
		TakeProfitPct:        0.05,
		TrailingStopPct:      0.03,
		FloorToOneShare:      true,
	}
}

// Validate 检查参数范围
func (l RiskLimits) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"max_position_size", l.MaxPositionSize},
		{"max_portfolio_exposure", l.MaxPortfolioExposure},
		{"daily_loss_limit", l.DailyLossLimit},
		{"max_drawdown_limit", l.MaxDrawdownLimit},
		{"stop_loss_percentage", l.StopLossPct},
		{"take_profit_percentage", l.TakeProfitPct},
		{"trailing_stop_percentage", l.TrailingStopPct},
	}
	for _, f := range fields {
		if f.v <= 0 || f.v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", f.name, f.v)
		}
	}
	if l.MaxCorrelation < 0 || l.MaxCorrelation > 1 {
		return errors.New("max_correlation must be in [0, 1]")
	}
	return nil
}
