package model

import "time"

// TradeStatus 成交状态
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusFilled    TradeStatus = "filled"
	TradeStatusCancelled TradeStatus = "cancelled"
	TradeStatusRejected  TradeStatus = "rejected"
)

// Trade 成交记录，PnL 只在平仓成交上有值
type Trade struct {
	ID         int64       `json:"id"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Quantity   float64     `json:"quantity"`
	Price      float64     `json:"price"`
	Commission float64     `json:"commission"`
	Status     TradeStatus `json:"status"`
	Strategy   string      `json:"strategy,omitempty"`
	OrderID    string      `json:"order_id,omitempty"`
	PnL        *float64    `json:"pnl,omitempty"`
	Timestamp  time.Time   `json:"ts"`
}

// TotalValue 成交金额（含手续费）
func (t *Trade) TotalValue() float64 {
	return t.Quantity*t.Price + t.Commission
}

// TradeStats 胜率与平均盈亏，Kelly 的输入
type TradeStats struct {
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"` // 正数
	ProfitFactor float64 `json:"profit_factor"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
}

// Usable reports whether all three Kelly inputs are present.
func (s *TradeStats) Usable() bool {
	return s != nil && s.WinRate != 0 && s.AvgWin != 0 && s.AvgLoss != 0
}
