package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
)

type perfKey struct {
	day      string
	strategy string
}

// Repo 进程内仓储，未配置数据库时使用，也用于测试
type Repo struct {
	mu sync.RWMutex

	positions   map[string]*model.Position
	bars        map[string][]*model.PriceBar // symbol -> bars, oldest first
	performance map[perfKey]*model.PerformanceSnapshot
	trades      []*model.Trade
	events      []*model.RiskEvent
	latest      map[string]float64
	nextTradeID int64
}

func New() *Repo {
	return &Repo{
		positions:   make(map[string]*model.Position),
		bars:        make(map[string][]*model.PriceBar),
		performance: make(map[perfKey]*model.PerformanceSnapshot),
		latest:      make(map[string]float64),
	}
}

func (r *Repo) Close() error { return nil }

func (r *Repo) UpsertPosition(_ context.Context, pos *model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *pos
	r.positions[pos.Symbol] = &cp
	return nil
}

func (r *Repo) GetPosition(_ context.Context, symbol string) (*model.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.positions[symbol]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *Repo) ListPositions(_ context.Context) ([]*model.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Position, 0, len(r.positions))
	for _, p := range r.positions {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *Repo) OpenPositions(ctx context.Context) ([]*model.Position, error) {
	all, _ := r.ListPositions(ctx)
	out := all[:0]
	for _, p := range all {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Repo) InsertPriceBar(_ context.Context, bar *model.PriceBar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 同一 symbol + 时间戳只保留第一根
	for _, b := range r.bars[bar.Symbol] {
		if b.Timestamp.Equal(bar.Timestamp) {
			return nil
		}
	}
	cp := *bar
	bars := append(r.bars[bar.Symbol], &cp)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	r.bars[bar.Symbol] = bars
	return nil
}

func (r *Repo) ClosingPrices(_ context.Context, symbol string, since time.Time) ([]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []float64
	for _, b := range r.bars[symbol] {
		if !b.Timestamp.Before(since) {
			out = append(out, b.Close)
		}
	}
	return out, nil
}

func (r *Repo) UpsertPerformance(_ context.Context, snap *model.PerformanceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *snap
	cp.Date = model.Day(snap.Date)
	r.performance[perfKey{day: cp.Date.Format(time.DateOnly), strategy: snap.Strategy}] = &cp
	return nil
}

func (r *Repo) DailyPerformance(_ context.Context, day time.Time, strategy string) (*model.PerformanceSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := day.Format(time.DateOnly)
	if s, ok := r.performance[perfKey{day: d, strategy: strategy}]; ok {
		cp := *s
		return &cp, nil
	}
	if strategy != "" {
		return nil, nil
	}
	for k, s := range r.performance {
		if k.day == d {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Repo) RecentPerformance(_ context.Context, since time.Time, strategy string) ([]*model.PerformanceSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from := model.Day(since)
	var out []*model.PerformanceSnapshot
	for k, s := range r.performance {
		if strategy != "" && k.strategy != strategy {
			continue
		}
		if s.Date.Before(from) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *Repo) InsertTrade(_ context.Context, trade *model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextTradeID++
	trade.ID = r.nextTradeID
	cp := *trade
	r.trades = append(r.trades, &cp)
	return nil
}

func (r *Repo) ListTrades(_ context.Context, since time.Time, strategy string) ([]*model.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Trade
	for _, t := range r.trades {
		if t.Timestamp.Before(since) || (strategy != "" && t.Strategy != strategy) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *Repo) PublishRiskEvent(_ context.Context, ev *model.RiskEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *ev
	r.events = append(r.events, &cp)
	return nil
}

func (r *Repo) ListRiskEvents(_ context.Context, since time.Time, limit int) ([]*model.RiskEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.RiskEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.events[i].Timestamp.Before(since) {
			continue
		}
		cp := *r.events[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *Repo) PublishLatestPrice(_ context.Context, symbol string, price float64, _ time.Time) error {
	if price <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest[symbol] = price
	return nil
}

// LatestPrice 最近一次发布的价格
func (r *Repo) LatestPrice(symbol string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.latest[symbol]
	return p, ok
}

var _ port.Repository = (*Repo)(nil)
