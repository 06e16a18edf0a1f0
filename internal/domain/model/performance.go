package model

import "time"

// PerformanceSnapshot 每日（按策略）绩效快照
type PerformanceSnapshot struct {
	Date     time.Time `json:"date"` // 只取日期部分
	Strategy string    `json:"strategy"`

	// P&L
	TotalPnL      float64 `json:"total_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`

	// 比率
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`

	// 回撤（金额）
	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`

	// 胜负统计
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`

	// 组合
	PortfolioValue float64 `json:"portfolio_value"`
	CashBalance    float64 `json:"cash_balance"`
	Exposure       float64 `json:"exposure"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Day truncates t to the calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
