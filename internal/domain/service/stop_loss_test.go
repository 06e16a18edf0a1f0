package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/domain/model"
)

func TestShouldExit(t *testing.T) {
	m := NewStopLossManager(DefaultRiskLimits(), nil)

	tests := []struct {
		name    string
		current float64
		side    model.Side
		kind    model.ExitKind
	}{
		{"long stop-loss", 97, model.SideLong, model.ExitStopLoss},
		{"long take-profit", 106, model.SideLong, model.ExitTakeProfit},
		{"long hold", 99, model.SideLong, model.ExitNone},
		{"short stop-loss", 103, model.SideShort, model.ExitStopLoss},
		{"short take-profit", 94, model.SideShort, model.ExitTakeProfit},
		{"short hold", 101, model.SideShort, model.ExitNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := m.ShouldExit(100, tt.current, 10, tt.side)
			assert.Equal(t, tt.kind, sig.Kind)
			assert.Equal(t, tt.kind != model.ExitNone, sig.Exit)
		})
	}
}

func TestShouldExitReason(t *testing.T) {
	m := NewStopLossManager(DefaultRiskLimits(), nil)

	assert.Equal(t, "Stop-loss triggered (-3.00%)", m.ShouldExit(100, 97, 1, model.SideLong).Reason)
	assert.Equal(t, "Take-profit reached (6.00%)", m.ShouldExit(100, 106, 1, model.SideLong).Reason)
}

func TestTrailingStopNeverDecreases(t *testing.T) {
	m := NewStopLossManager(DefaultRiskLimits(), nil)

	m.RegisterEntry("AAPL", 100)
	stop, ok := m.TrailingStop("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 97.0, stop, 1e-9)

	m.UpdateTrailingStop("AAPL", 105)
	afterRise, _ := m.TrailingStop("AAPL")
	assert.InDelta(t, 101.85, afterRise, 1e-9)

	m.UpdateTrailingStop("AAPL", 102)
	afterDip, _ := m.TrailingStop("AAPL")
	assert.Equal(t, afterRise, afterDip)
}

func TestUpdateTrailingStopUntrackedSymbol(t *testing.T) {
	m := NewStopLossManager(DefaultRiskLimits(), nil)

	m.UpdateTrailingStop("MSFT", 200)
	stop, ok := m.TrailingStop("MSFT")
	require.True(t, ok)
	assert.InDelta(t, 194.0, stop, 1e-9)

	_, hasEntry := m.EntryTime("MSFT")
	assert.False(t, hasEntry)
	assert.False(t, m.CheckTimeStop("MSFT", time.Hour).Exit)
}

func TestCheckTrailingStop(t *testing.T) {
	m := NewStopLossManager(DefaultRiskLimits(), nil)

	assert.False(t, m.CheckTrailingStop("AAPL", 1).Exit, "untracked symbol never exits")

	m.RegisterEntry("AAPL", 100)
	m.UpdateTrailingStop("AAPL", 105)

	assert.False(t, m.CheckTrailingStop("AAPL", 103).Exit)

	sig := m.CheckTrailingStop("AAPL", 101)
	assert.True(t, sig.Exit)
	assert.Equal(t, model.ExitTrailingStop, sig.Kind)
	assert.Equal(t, "Trailing stop hit at 101.00", sig.Reason)
}

func TestCheckTimeStop(t *testing.T) {
	clock := newFakeClock()
	m := NewStopLossManager(DefaultRiskLimits(), clock.Now)

	m.RegisterEntry("AAPL", 100)

	clock.Advance(23 * time.Hour)
	assert.False(t, m.CheckTimeStop("AAPL", 24*time.Hour).Exit)

	clock.Advance(2 * time.Hour)
	sig := m.CheckTimeStop("AAPL", 24*time.Hour)
	assert.True(t, sig.Exit)
	assert.Equal(t, model.ExitTimeStop, sig.Kind)
	assert.Equal(t, "Time limit exceeded (25h0m0s)", sig.Reason)
}

func TestClearPositionIsIdempotent(t *testing.T) {
	m := NewStopLossManager(DefaultRiskLimits(), nil)

	m.RegisterEntry("AAPL", 100)
	assert.Equal(t, 1, m.Tracked())

	m.ClearPosition("AAPL")
	m.ClearPosition("AAPL")
	m.ClearPosition("UNKNOWN")

	assert.Equal(t, 0, m.Tracked())
	_, ok := m.TrailingStop("AAPL")
	assert.False(t, ok)
}

func TestTrailingStopConcurrentUpdates(t *testing.T) {
	m := NewStopLossManager(DefaultRiskLimits(), nil)
	m.RegisterEntry("BTCUSDT", 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()
			m.UpdateTrailingStop("BTCUSDT", price)
			m.CheckTrailingStop("BTCUSDT", price)
		}(float64(100 + i))
	}
	wg.Wait()

	stop, _ := m.TrailingStop("BTCUSDT")
	assert.InDelta(t, 149*0.97, stop, 1e-9)
}
