package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeguard/internal/domain/model"
)

func TestCalculateSizeFixedFraction(t *testing.T) {
	ps := NewPositionSizer(true)

	res := ps.CalculateSize(SizeRequest{Price: 100, AccountValue: 100000, MaxRiskPerTrade: 0.02})

	assert.Equal(t, 20, res.Shares)
	assert.Equal(t, SizingFixed, res.Method)
	assert.Len(t, res.Candidates, 1)
	assert.False(t, res.Floored)
}

func TestCalculateSizePicksMostConservative(t *testing.T) {
	ps := NewPositionSizer(true)

	res := ps.CalculateSize(SizeRequest{
		Price:           100,
		AccountValue:    100000,
		MaxRiskPerTrade: 0.02,
		Volatility:      200,
	})
	assert.Equal(t, 5, res.Shares)
	assert.Equal(t, SizingVolatility, res.Method)

	res = ps.CalculateSize(SizeRequest{
		Price:           100,
		AccountValue:    100000,
		MaxRiskPerTrade: 0.02,
		Volatility:      5,
		Stats:           &model.TradeStats{WinRate: 0.55, AvgWin: 120, AvgLoss: 100},
	})
	assert.Equal(t, 20, res.Shares)
	assert.Equal(t, SizingFixed, res.Method)
	assert.Len(t, res.Candidates, 3)
}

func TestCalculateSizeIgnoresIncompleteStats(t *testing.T) {
	ps := NewPositionSizer(true)

	res := ps.CalculateSize(SizeRequest{
		Price:           100,
		AccountValue:    100000,
		MaxRiskPerTrade: 0.02,
		Stats:           &model.TradeStats{WinRate: 0.55, AvgWin: 120},
	})
	assert.Len(t, res.Candidates, 1)
}

func TestCalculateSizeFloorsToOneShare(t *testing.T) {
	req := SizeRequest{Price: 100000, AccountValue: 1000, MaxRiskPerTrade: 0.02}

	res := NewPositionSizer(true).CalculateSize(req)
	assert.Equal(t, 1, res.Shares)
	assert.True(t, res.Floored)

	res = NewPositionSizer(false).CalculateSize(req)
	assert.Equal(t, 0, res.Shares)
	assert.False(t, res.Floored)
}

func TestCalculateSizeNeverNegative(t *testing.T) {
	ps := NewPositionSizer(false)

	res := ps.CalculateSize(SizeRequest{Price: 0, AccountValue: 100000, MaxRiskPerTrade: 0.02})
	assert.Equal(t, 0, res.Shares)

	res = ps.CalculateSize(SizeRequest{Price: 100, AccountValue: -5000, MaxRiskPerTrade: 0.02})
	assert.Equal(t, 0, res.Shares)
}
