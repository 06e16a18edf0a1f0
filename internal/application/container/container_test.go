package container

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/application/service"
	"tradeguard/internal/domain/model"
	dsvc "tradeguard/internal/domain/service"
	"tradeguard/internal/infrastructure/storage/memory"
	sqliterepo "tradeguard/internal/infrastructure/storage/sqlite"
)

func TestContainerSharesServices(t *testing.T) {
	c := New(memory.New(), nil, Options{Limits: dsvc.DefaultRiskLimits()})
	defer c.Close()

	assert.Same(t, c.RiskManager(), c.RiskManager())
	assert.Same(t, c.PositionService(), c.PositionService())
	assert.Same(t, c.RiskService().Manager(), c.RiskManager())
}

func TestContainerServiceWorkflow(t *testing.T) {
	dbPath := "test_workflow.db"
	defer os.Remove(dbPath)

	repo, err := sqliterepo.New(dbPath)
	require.NoError(t, err)

	c := New(repo, nil, Options{Limits: dsvc.DefaultRiskLimits()})
	defer c.Close()

	ctx := context.Background()
	risk := c.RiskService()

	v, err := risk.EvaluateEntry(ctx, service.EntryRequest{
		Symbol: "BTCUSDT", Side: model.SideLong, Price: 50000, AccountValue: 100000, Quantity: 0.04,
	})
	require.NoError(t, err)
	require.True(t, v.Allowed)

	_, err = risk.RecordFill(ctx, &model.Trade{Symbol: "BTCUSDT", Side: model.SideLong, Quantity: 0.04, Price: 50000})
	require.NoError(t, err)

	positions, err := c.PositionService().ListOpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, positions, 1)

	sig, err := risk.OnPrice(ctx, "BTCUSDT", 48000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ExitStopLoss, sig.Kind)

	events, err := repo.ListRiskEvents(ctx, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.EventExitSignal, events[0].Kind)
	assert.Equal(t, model.EventEntryApproved, events[2].Kind)
}
