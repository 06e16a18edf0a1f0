package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
	"tradeguard/internal/infrastructure/storage/memory"
)

func tick(symbol string, price float64, ts time.Time) port.Tick {
	return port.Tick{Source: "TEST", Symbol: symbol, Price: price, Ts: ts}
}

func TestPriceServiceAggregatesTicksIntoBars(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewPriceService(repo, repo, 24*time.Hour)

	day1 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RecordTick(ctx, tick("BTCUSDT", 100, day1.Add(10*time.Hour))))
	require.NoError(t, svc.RecordTick(ctx, tick("BTCUSDT", 105, day1.Add(12*time.Hour))))
	require.NoError(t, svc.RecordTick(ctx, tick("BTCUSDT", 98, day1.Add(15*time.Hour))))

	bar, ok := svc.OpenBar("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 105.0, bar.High)
	assert.Equal(t, 98.0, bar.Low)
	assert.Equal(t, 98.0, bar.Close)
	assert.Equal(t, day1, bar.Timestamp)

	closes, err := repo.ClosingPrices(ctx, "BTCUSDT", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, closes, "open bar is not persisted yet")

	require.NoError(t, svc.RecordTick(ctx, tick("BTCUSDT", 101, day1.Add(26*time.Hour))))
	closes, err = repo.ClosingPrices(ctx, "BTCUSDT", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{98}, closes)

	require.NoError(t, svc.Flush(ctx))
	closes, err = repo.ClosingPrices(ctx, "BTCUSDT", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{98, 101}, closes)

	_, ok = svc.OpenBar("BTCUSDT")
	assert.False(t, ok)
}

func TestPriceServicePublishesLatestPrice(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewPriceService(repo, repo, 0)

	require.NoError(t, svc.RecordTick(ctx, tick("ETHUSDT", 3200.5, time.Now())))
	require.NoError(t, svc.RecordTick(ctx, tick("ETHUSDT", 0, time.Now())))

	p, ok := repo.LatestPrice("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, 3200.5, p)
}

func TestPriceServiceHistory(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewPriceService(repo, nil, 0)
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	for i, c := range []float64{10, 11, 12} {
		require.NoError(t, svc.RecordBar(ctx, model.TickBar("SPY", c, now.AddDate(0, 0, -40+i*15))))
	}

	closes, err := svc.History(ctx, "SPY", 30, now)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12}, closes)
}
