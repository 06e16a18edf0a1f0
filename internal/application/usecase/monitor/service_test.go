package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/application/port"
	"tradeguard/internal/application/service"
	"tradeguard/internal/domain/model"
	dsvc "tradeguard/internal/domain/service"
	"tradeguard/internal/infrastructure/storage/memory"
)

type fakeFeed struct {
	ticks []port.Tick
}

func (f *fakeFeed) Name() string { return "FAKE" }

func (f *fakeFeed) Subscribe(context.Context, []string) (<-chan port.Tick, error) {
	ch := make(chan port.Tick, len(f.ticks))
	for _, t := range f.ticks {
		ch <- t
	}
	close(ch)
	return ch, nil
}

// ctxFeed 记下订阅时拿到的 ctx，err 非空时订阅失败
type ctxFeed struct {
	name string
	err  error
	ctx  context.Context
}

func (f *ctxFeed) Name() string { return f.name }

func (f *ctxFeed) Subscribe(ctx context.Context, _ []string) (<-chan port.Tick, error) {
	f.ctx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return make(chan port.Tick), nil
}

type recordingSink struct {
	mu        sync.Mutex
	live      []string
	snapshots []string
	alerts    []string
}

func (s *recordingSink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = append(s.live, line)
	return nil
}

func (s *recordingSink) WriteSnapshot(_ time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, line)
	return nil
}

func (s *recordingSink) WriteAlert(_ time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, line)
	return nil
}

func (s *recordingSink) NewLine() error { return nil }

func (s *recordingSink) counts() (live, snapshots, alerts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live), len(s.snapshots), len(s.alerts)
}

func newMonitor(repo *memory.Repo, feeds []port.PriceFeed, sink port.Sink) *Service {
	rm := dsvc.NewRiskManager(dsvc.DefaultRiskLimits(), dsvc.RiskManagerDeps{
		Performance: repo,
		Positions:   repo,
		Prices:      repo,
	})
	risk := service.NewRiskService(service.RiskServiceDeps{
		Manager:   rm,
		Positions: service.NewPositionService(repo),
		Repo:      repo,
	})
	return NewService(ServiceDeps{
		Feeds:        feeds,
		Symbols:      []string{"AAPL"},
		SummaryEvery: 10 * time.Millisecond,
		Risk:         risk,
		Prices:       service.NewPriceService(repo, repo, 0),
		Sink:         sink,
	})
}

func TestServiceRunEmitsExitOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.New()
	require.NoError(t, repo.UpsertPosition(ctx, &model.Position{Symbol: "AAPL", Quantity: 10, AvgCost: 100}))

	feed := &fakeFeed{ticks: []port.Tick{
		{Source: "FAKE", Symbol: "AAPL", Price: 104},
		{Source: "FAKE", Symbol: "AAPL", Price: 100.5},
		{Source: "FAKE", Symbol: "AAPL", Price: 100.4},
	}}
	sink := &recordingSink{}
	svc := newMonitor(repo, []port.PriceFeed{feed}, sink)

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		pos, err := repo.GetPosition(context.Background(), "AAPL")
		return err == nil && pos.CurrentPrice == 100.4
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, snapshots, _ := sink.counts()
		return snapshots > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	live, _, alerts := sink.counts()
	assert.Equal(t, 1, alerts)
	assert.GreaterOrEqual(t, live, 4)
	assert.Contains(t, sink.alerts[0], "trailing_stop")

	// Open bar is flushed on shutdown.
	closes, err := repo.ClosingPrices(context.Background(), "AAPL", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{100.4}, closes)
}

func TestServiceRunWithoutFeeds(t *testing.T) {
	svc := newMonitor(memory.New(), nil, &recordingSink{})
	assert.ErrorIs(t, svc.Run(context.Background()), ErrNoFeeds)
}

func TestServiceRunStopsStartedFeedsWhenSubscribeFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errDown := errors.New("feed down")
	ok := &ctxFeed{name: "OK"}
	broken := &ctxFeed{name: "BROKEN", err: errDown}
	svc := newMonitor(memory.New(), []port.PriceFeed{ok, broken}, &recordingSink{})

	err := svc.Run(ctx)
	require.ErrorIs(t, err, errDown)
	assert.Contains(t, err.Error(), "BROKEN")

	require.NotNil(t, ok.ctx)
	select {
	case <-ok.ctx.Done():
	default:
		t.Fatal("started feed context still live after Run returned")
	}
	assert.NoError(t, ctx.Err())
}
