package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/domain/model"
	"tradeguard/internal/infrastructure/storage/memory"
)

func fill(symbol string, side model.Side, qty, price float64) *model.Trade {
	return &model.Trade{Symbol: symbol, Side: side, Quantity: qty, Price: price, Status: model.TradeStatusFilled}
}

func TestPositionServiceApplyFill(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewPositionService(repo)

	res, err := svc.ApplyFill(ctx, fill("AAPL", model.SideLong, 10, 100))
	require.NoError(t, err)
	assert.True(t, res.Opened)

	res, err = svc.ApplyFill(ctx, fill("AAPL", model.SideLong, 10, 110))
	require.NoError(t, err)
	assert.False(t, res.Opened)
	assert.InDelta(t, 105.0, res.Position.AvgCost, 1e-9)
	assert.InDelta(t, 20.0, res.Position.Quantity, 1e-9)
	assert.InDelta(t, 100.0, res.Position.UnrealizedPnL, 1e-9)

	sell := fill("AAPL", model.SideShort, 5, 120)
	res, err = svc.ApplyFill(ctx, sell)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, res.Realized, 1e-9)
	require.NotNil(t, sell.PnL)
	assert.InDelta(t, 75.0, *sell.PnL, 1e-9)

	res, err = svc.ApplyFill(ctx, fill("AAPL", model.SideShort, 15, 100))
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.InDelta(t, -75.0, res.Realized, 1e-9)
	assert.Zero(t, res.Position.Quantity)
	assert.InDelta(t, 0.0, res.Position.RealizedPnL, 1e-9)

	open, err := svc.ListOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	trades, err := repo.ListTrades(ctx, time.Time{}, "")
	require.NoError(t, err)
	assert.Len(t, trades, 4)
}

func TestPositionServiceRejectsBadFills(t *testing.T) {
	ctx := context.Background()
	svc := NewPositionService(memory.New())

	_, err := svc.ApplyFill(ctx, fill("AAPL", model.SideLong, 0, 100))
	assert.ErrorIs(t, err, ErrInvalidFill)

	_, err = svc.ApplyFill(ctx, fill("AAPL", model.SideShort, 1, 100))
	assert.ErrorIs(t, err, ErrOversell)

	_, err = svc.ApplyFill(ctx, fill("AAPL", model.Side(0), 1, 100))
	assert.ErrorIs(t, err, model.ErrInvalidSide)
}

func TestPositionServiceMarkPrice(t *testing.T) {
	ctx := context.Background()
	svc := NewPositionService(memory.New())

	pos, err := svc.MarkPrice(ctx, "AAPL", 100, time.Now())
	require.NoError(t, err)
	assert.Nil(t, pos, "unknown symbol")

	_, err = svc.ApplyFill(ctx, fill("AAPL", model.SideLong, 10, 100))
	require.NoError(t, err)

	pos, err = svc.MarkPrice(ctx, "AAPL", 95, time.Now())
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, -50.0, pos.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 950.0, pos.MarketValue(), 1e-9)

	stored, err := svc.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 95.0, stored.CurrentPrice)
}
