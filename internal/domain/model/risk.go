package model

import "time"

// Decision 风控结论，Allowed=false 时 Reason 非空
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func Allow() Decision { return Decision{Allowed: true} }

func Reject(reason string) Decision { return Decision{Reason: reason} }

// ExitKind 平仓触发类型
type ExitKind string

const (
	ExitNone         ExitKind = ""
	ExitStopLoss     ExitKind = "stop_loss"
	ExitTakeProfit   ExitKind = "take_profit"
	ExitTrailingStop ExitKind = "trailing_stop"
	ExitTimeStop     ExitKind = "time_stop"
)

// ExitSignal 平仓信号
type ExitSignal struct {
	Exit   bool     `json:"exit"`
	Kind   ExitKind `json:"kind,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func Hold() ExitSignal { return ExitSignal{} }

func ExitWith(kind ExitKind, reason string) ExitSignal {
	return ExitSignal{Exit: true, Kind: kind, Reason: reason}
}

// Confidence 统计结果的可信度
type Confidence int

const (
	ConfidenceNormal Confidence = iota
	// ConfidenceLow marks a neutral default returned because of missing data.
	ConfidenceLow
)

func (c Confidence) String() string {
	if c == ConfidenceLow {
		return "low"
	}
	return "normal"
}

// Estimate 带可信度的统计值
type Estimate struct {
	Value      float64    `json:"value"`
	Confidence Confidence `json:"confidence"`
}

func Measured(v float64) Estimate { return Estimate{Value: v} }

func Fallback(v float64) Estimate { return Estimate{Value: v, Confidence: ConfidenceLow} }

// Insufficient reports whether the value is a neutral default.
func (e Estimate) Insufficient() bool { return e.Confidence == ConfidenceLow }

// RiskSummary 风控概览
type RiskSummary struct {
	PortfolioValue     float64 `json:"portfolio_value"`
	DailyPnL           float64 `json:"daily_pnl"`
	DailyPnLPct        float64 `json:"daily_pnl_pct"`
	CurrentDrawdown    float64 `json:"current_drawdown"`
	CurrentDrawdownPct float64 `json:"current_drawdown_pct"`
	Exposure           float64 `json:"exposure"`
	ExposurePct        float64 `json:"exposure_pct"`

	DailyLossLimit   float64 `json:"daily_loss_limit"`   // %
	MaxDrawdownLimit float64 `json:"max_drawdown_limit"` // %
	MaxExposureLimit float64 `json:"max_exposure_limit"` // %

	VaR95    Estimate `json:"var_95"`
	Beta     Estimate `json:"beta"`
	CanTrade bool     `json:"can_trade"`
}

// EventKind 风控事件类型
type EventKind string

const (
	EventEntryApproved EventKind = "entry_approved"
	EventEntryRejected EventKind = "entry_rejected"
	EventExitSignal    EventKind = "exit_signal"
	EventPositionOpen  EventKind = "position_opened"
	EventPositionClose EventKind = "position_closed"
)

// RiskEvent 对外发布的风控事件
type RiskEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason,omitempty"`
	Payload   string    `json:"payload,omitempty"` // JSON
	Timestamp time.Time `json:"ts"`
}
