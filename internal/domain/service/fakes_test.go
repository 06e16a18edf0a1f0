package service

import (
	"context"
	"time"

	"tradeguard/internal/domain/model"
)

type fakePositions struct {
	positions []*model.Position
	err       error
}

func (f *fakePositions) OpenPositions(context.Context) ([]*model.Position, error) {
	return f.positions, f.err
}

type fakePrices struct {
	series map[string][]float64
	err    error
	since  map[string]time.Time
}

func newFakePrices(series map[string][]float64) *fakePrices {
	return &fakePrices{series: series, since: make(map[string]time.Time)}
}

func (f *fakePrices) ClosingPrices(_ context.Context, symbol string, since time.Time) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.since[symbol] = since
	return f.series[symbol], nil
}

type fakePerformance struct {
	today  *model.PerformanceSnapshot
	recent []*model.PerformanceSnapshot
	err    error
}

func (f *fakePerformance) DailyPerformance(context.Context, time.Time, string) (*model.PerformanceSnapshot, error) {
	return f.today, f.err
}

func (f *fakePerformance) RecentPerformance(context.Context, time.Time, string) ([]*model.PerformanceSnapshot, error) {
	return f.recent, f.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)}
}

// pricesFromReturns builds a price path starting at start.
func pricesFromReturns(start float64, returns []float64) []float64 {
	out := []float64{start}
	for _, r := range returns {
		out = append(out, out[len(out)-1]*(1+r))
	}
	return out
}
