package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/domain/model"
)

// trailingState 单个 symbol 的跟踪止损状态
type trailingState struct {
	stop    float64
	entered time.Time
	hasTime bool
}

// StopLossManager 止损/止盈/跟踪止损
// 所有状态读写都在 mu 下完成，同一 symbol 的价格更新与检查互斥
type StopLossManager struct {
	mu sync.Mutex

	stopLossPct     float64
	takeProfitPct   float64
	trailingStopPct float64

	states map[string]*trailingState
	now    func() time.Time
}

// NewStopLossManager 创建止损管理器
func NewStopLossManager(limits RiskLimits, now func() time.Time) *StopLossManager {
	if now == nil {
		now = time.Now
	}
	return &StopLossManager{
		stopLossPct:     limits.StopLossPct,
		takeProfitPct:   limits.TakeProfitPct,
		trailingStopPct: limits.TrailingStopPct,
		states:          make(map[string]*trailingState),
		now:             now,
	}
}

// ShouldExit 按入场价和当前价判断止损/止盈
func (m *StopLossManager) ShouldExit(entryPrice, currentPrice, quantity float64, side model.Side) model.ExitSignal {
	if entryPrice <= 0 {
		return model.Hold()
	}

	pnlPct := (currentPrice - entryPrice) / entryPrice
	if side == model.SideShort {
		// 空头：价格下跌为盈利
		pnlPct = (entryPrice - currentPrice) / entryPrice
	}

	if pnlPct <= -m.stopLossPct {
		log.Info().Str("side", side.String()).Float64("pnl_pct", pnlPct).Msg("stop-loss triggered")
		return model.ExitWith(model.ExitStopLoss, fmt.Sprintf("Stop-loss triggered (%.2f%%)", pnlPct*100))
	}
	if pnlPct >= m.takeProfitPct {
		log.Info().Str("side", side.String()).Float64("pnl_pct", pnlPct).Msg("take-profit triggered")
		return model.ExitWith(model.ExitTakeProfit, fmt.Sprintf("Take-profit reached (%.2f%%)", pnlPct*100))
	}
	return model.Hold()
}

// RegisterEntry 记录入场时间并初始化跟踪止损
func (m *StopLossManager) RegisterEntry(symbol string, entryPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[symbol] = &trailingState{
		stop:    entryPrice * (1 - m.trailingStopPct),
		entered: m.now(),
		hasTime: true,
	}
	log.Info().Str("symbol", symbol).Float64("entry_price", entryPrice).Msg("registered entry")
}

// UpdateTrailingStop 只上移不下移（仅多头）
func (m *StopLossManager) UpdateTrailingStop(symbol string, currentPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidate := currentPrice * (1 - m.trailingStopPct)
	st, ok := m.states[symbol]
	if !ok {
		m.states[symbol] = &trailingState{stop: candidate}
		return
	}
	if candidate > st.stop {
		log.Debug().
			Str("symbol", symbol).
			Float64("from", st.stop).
			Float64("to", candidate).
			Msg("trailing stop raised")
		st.stop = candidate
	}
}

// CheckTrailingStop 当前价跌破跟踪止损
func (m *StopLossManager) CheckTrailingStop(symbol string, currentPrice float64) model.ExitSignal {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[symbol]
	if !ok || currentPrice > st.stop {
		return model.Hold()
	}
	log.Info().Str("symbol", symbol).Float64("price", currentPrice).Float64("stop", st.stop).Msg("trailing stop hit")
	return model.ExitWith(model.ExitTrailingStop, fmt.Sprintf("Trailing stop hit at %.2f", currentPrice))
}

// CheckTimeStop 持仓时间超过 maxHold
func (m *StopLossManager) CheckTimeStop(symbol string, maxHold time.Duration) model.ExitSignal {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[symbol]
	if !ok || !st.hasTime {
		return model.Hold()
	}
	held := m.now().Sub(st.entered)
	if held <= maxHold {
		return model.Hold()
	}
	log.Info().Str("symbol", symbol).Dur("held", held).Msg("time stop triggered")
	return model.ExitWith(model.ExitTimeStop, fmt.Sprintf("Time limit exceeded (%s)", held.Truncate(time.Second)))
}

// ClearPosition 平仓后清除跟踪状态，symbol 不存在时无操作
func (m *StopLossManager) ClearPosition(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, symbol)
	log.Info().Str("symbol", symbol).Msg("cleared position tracking")
}

// TrailingStop returns the current stop for symbol, if tracked.
func (m *StopLossManager) TrailingStop(symbol string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[symbol]
	if !ok {
		return 0, false
	}
	return st.stop, true
}

// EntryTime returns when symbol was registered, if it was.
func (m *StopLossManager) EntryTime(symbol string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[symbol]
	if !ok || !st.hasTime {
		return time.Time{}, false
	}
	return st.entered, true
}

// Tracked 当前跟踪的 symbol 数
func (m *StopLossManager) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
