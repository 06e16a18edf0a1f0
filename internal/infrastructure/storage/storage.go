package storage

import (
	"database/sql"
	"time"

	"tradeguard/internal/domain/model"
)

// 列顺序与下面的 Scan* 函数一一对应，sqlite 和 postgres 共用
const (
	PositionColumns = "symbol, quantity, avg_cost, current_price, unrealized_pnl, realized_pnl, updated_at"

	PerformanceColumns = "date, strategy, total_pnl, realized_pnl, unrealized_pnl, sharpe_ratio, sortino_ratio, " +
		"max_drawdown, current_drawdown, win_rate, profit_factor, avg_win, avg_loss, " +
		"total_trades, winning_trades, losing_trades, portfolio_value, cash_balance, exposure, updated_at"

	TradeColumns = "id, symbol, side, quantity, price, commission, status, strategy, order_id, pnl, ts_ms"

	RiskEventColumns = "event_id, kind, symbol, reason, payload, ts_ms"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ToMillis 零值时间存为 0
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// DateKey 绩效表的日期列（YYYY-MM-DD）
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func ScanPosition(s Scanner) (*model.Position, error) {
	var p model.Position
	var updated int64
	if err := s.Scan(&p.Symbol, &p.Quantity, &p.AvgCost, &p.CurrentPrice, &p.UnrealizedPnL, &p.RealizedPnL, &updated); err != nil {
		return nil, err
	}
	p.UpdatedAt = FromMillis(updated)
	return &p, nil
}

// PositionArgs 与 PositionColumns 顺序一致
func PositionArgs(p *model.Position) []any {
	return []any{p.Symbol, p.Quantity, p.AvgCost, p.CurrentPrice, p.UnrealizedPnL, p.RealizedPnL, ToMillis(p.UpdatedAt)}
}

func ScanPerformance(s Scanner) (*model.PerformanceSnapshot, error) {
	var p model.PerformanceSnapshot
	var date string
	var updated int64
	err := s.Scan(
		&date, &p.Strategy, &p.TotalPnL, &p.RealizedPnL, &p.UnrealizedPnL, &p.SharpeRatio, &p.SortinoRatio,
		&p.MaxDrawdown, &p.CurrentDrawdown, &p.WinRate, &p.ProfitFactor, &p.AvgWin, &p.AvgLoss,
		&p.TotalTrades, &p.WinningTrades, &p.LosingTrades, &p.PortfolioValue, &p.CashBalance, &p.Exposure, &updated,
	)
	if err != nil {
		return nil, err
	}
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, err
	}
	p.Date = d
	p.UpdatedAt = FromMillis(updated)
	return &p, nil
}

// PerformanceArgs 与 PerformanceColumns 顺序一致
func PerformanceArgs(p *model.PerformanceSnapshot) []any {
	return []any{
		DateKey(p.Date), p.Strategy, p.TotalPnL, p.RealizedPnL, p.UnrealizedPnL, p.SharpeRatio, p.SortinoRatio,
		p.MaxDrawdown, p.CurrentDrawdown, p.WinRate, p.ProfitFactor, p.AvgWin, p.AvgLoss,
		p.TotalTrades, p.WinningTrades, p.LosingTrades, p.PortfolioValue, p.CashBalance, p.Exposure, ToMillis(p.UpdatedAt),
	}
}

func ScanTrade(s Scanner) (*model.Trade, error) {
	var t model.Trade
	var side, status string
	var pnl sql.NullFloat64
	var ts int64
	if err := s.Scan(&t.ID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Commission, &status, &t.Strategy, &t.OrderID, &pnl, &ts); err != nil {
		return nil, err
	}
	if side != "" {
		v, err := model.ParseSide(side)
		if err != nil {
			return nil, err
		}
		t.Side = v
	}
	t.Status = model.TradeStatus(status)
	if pnl.Valid {
		v := pnl.Float64
		t.PnL = &v
	}
	t.Timestamp = FromMillis(ts)
	return &t, nil
}

// TradeArgs 不含 id 列
func TradeArgs(t *model.Trade) []any {
	var side string
	if t.Side == model.SideLong || t.Side == model.SideShort {
		side = t.Side.String()
	}
	var pnl sql.NullFloat64
	if t.PnL != nil {
		pnl = sql.NullFloat64{Float64: *t.PnL, Valid: true}
	}
	return []any{t.Symbol, side, t.Quantity, t.Price, t.Commission, string(t.Status), t.Strategy, t.OrderID, pnl, ToMillis(t.Timestamp)}
}

func ScanRiskEvent(s Scanner) (*model.RiskEvent, error) {
	var e model.RiskEvent
	var kind string
	var ts int64
	if err := s.Scan(&e.ID, &kind, &e.Symbol, &e.Reason, &e.Payload, &ts); err != nil {
		return nil, err
	}
	e.Kind = model.EventKind(kind)
	e.Timestamp = FromMillis(ts)
	return &e, nil
}

func RiskEventArgs(e *model.RiskEvent) []any {
	return []any{e.ID, string(e.Kind), e.Symbol, e.Reason, e.Payload, ToMillis(e.Timestamp)}
}
