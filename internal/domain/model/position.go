package model

import "time"

// Position 当前持仓（按 symbol 唯一）
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	AvgCost       float64   `json:"avg_cost"`
	CurrentPrice  float64   `json:"current_price"` // 0 表示尚未刷新
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarketValue 持仓市值，没有最新价时按平均成本估算
func (p *Position) MarketValue() float64 {
	if p.CurrentPrice > 0 {
		return p.Quantity * p.CurrentPrice
	}
	return p.Quantity * p.AvgCost
}

// TotalPnL 已实现 + 未实现
func (p *Position) TotalPnL() float64 {
	return p.RealizedPnL + p.UnrealizedPnL
}

// IsOpen reports whether the position still holds shares.
func (p *Position) IsOpen() bool {
	return p.Quantity > 0
}
