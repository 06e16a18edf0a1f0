package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
)

// 需要真实数据库：TRADEGUARD_POSTGRES_DSN 未设置时跳过
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TRADEGUARD_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRADEGUARD_POSTGRES_DSN not set")
	}

	repo, err := New(dsn)
	require.NoError(t, err)
	truncate := func() {
		_, err := repo.db.Exec(`TRUNCATE positions, price_history, performance_metrics, trades, risk_events, latest_prices RESTART IDENTITY`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		_ = repo.Close()
	})
	return repo
}

func TestPostgresRepoPositions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertPosition(ctx, &model.Position{Symbol: "AAPL", Quantity: 10, AvgCost: 150, UpdatedAt: now}))
	require.NoError(t, repo.UpsertPosition(ctx, &model.Position{Symbol: "AAPL", Quantity: 15, AvgCost: 152, CurrentPrice: 155, UpdatedAt: now}))
	require.NoError(t, repo.UpsertPosition(ctx, &model.Position{Symbol: "MSFT", Quantity: 0, AvgCost: 300}))

	p, err := repo.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 15.0, p.Quantity)
	assert.Equal(t, 155.0, p.CurrentPrice)
	assert.True(t, p.UpdatedAt.Equal(now))

	_, err = repo.GetPosition(ctx, "TSLA")
	assert.ErrorIs(t, err, port.ErrNotFound)

	open, err := repo.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "AAPL", open[0].Symbol)
}

func TestPostgresRepoClosingPrices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, c := range []float64{100, 101, 99} {
		ts := day.AddDate(0, 0, i)
		require.NoError(t, repo.InsertPriceBar(ctx, &model.PriceBar{Symbol: "AAPL", Timestamp: ts, Open: c, High: c, Low: c, Close: c}))
	}
	require.NoError(t, repo.InsertPriceBar(ctx, &model.PriceBar{Symbol: "AAPL", Timestamp: day, Open: 1, High: 1, Low: 1, Close: 1}))

	closes, err := repo.ClosingPrices(ctx, "AAPL", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 99}, closes)
}

func TestPostgresRepoPerformance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertPerformance(ctx, &model.PerformanceSnapshot{Date: day, TotalPnL: -10, PortfolioValue: 1000}))
	require.NoError(t, repo.UpsertPerformance(ctx, &model.PerformanceSnapshot{Date: day, TotalPnL: -20, PortfolioValue: 990}))
	require.NoError(t, repo.UpsertPerformance(ctx, &model.PerformanceSnapshot{Date: day, Strategy: "momo", PortfolioValue: 500}))

	snap, err := repo.DailyPerformance(ctx, day, "")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, -20.0, snap.TotalPnL)

	snap, err = repo.DailyPerformance(ctx, day, "momo")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 500.0, snap.PortfolioValue)

	snap, err = repo.DailyPerformance(ctx, day.AddDate(0, 0, 1), "")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestPostgresRepoTradesAndEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	pnl := 12.5
	first := &model.Trade{Symbol: "AAPL", Side: model.SideLong, Quantity: 1, Price: 100, Status: model.TradeStatusFilled, Timestamp: ts}
	second := &model.Trade{Symbol: "AAPL", Side: model.SideShort, Quantity: 1, Price: 112.5, Status: model.TradeStatusFilled, PnL: &pnl, Timestamp: ts.Add(time.Hour)}
	require.NoError(t, repo.InsertTrade(ctx, first))
	require.NoError(t, repo.InsertTrade(ctx, second))
	assert.Equal(t, first.ID+1, second.ID)

	trades, err := repo.ListTrades(ctx, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Nil(t, trades[0].PnL)
	require.NotNil(t, trades[1].PnL)
	assert.Equal(t, 12.5, *trades[1].PnL)

	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, repo.PublishRiskEvent(ctx, &model.RiskEvent{ID: id, Kind: model.EventExitSignal, Symbol: "AAPL", Timestamp: ts.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, repo.PublishRiskEvent(ctx, &model.RiskEvent{ID: "e1", Kind: model.EventExitSignal, Symbol: "AAPL", Timestamp: ts}))

	all, err := repo.ListRiskEvents(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e3", all[0].ID)

	limited, err := repo.ListRiskEvents(ctx, time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
