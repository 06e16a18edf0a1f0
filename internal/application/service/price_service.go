package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
)

// DefaultBarInterval 行情按日聚合成 K 线
const DefaultBarInterval = 24 * time.Hour

// PriceService 行情记录：逐笔价格聚合为 K 线后追加写入
type PriceService struct {
	repo      port.Repository
	publisher port.EventPublisher
	interval  time.Duration

	mu   sync.Mutex
	open map[string]*model.PriceBar // symbol -> 当前未收盘的 K 线
}

func NewPriceService(repo port.Repository, publisher port.EventPublisher, interval time.Duration) *PriceService {
	if interval <= 0 {
		interval = DefaultBarInterval
	}
	return &PriceService{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		open:      make(map[string]*model.PriceBar),
	}
}

// RecordBar 直接追加一根完整的 K 线
func (s *PriceService) RecordBar(ctx context.Context, bar *model.PriceBar) error {
	if err := s.repo.InsertPriceBar(ctx, bar); err != nil {
		return fmt.Errorf("insert bar %s: %w", bar.Symbol, err)
	}
	return nil
}

// RecordTick 更新当前 K 线；跨周期时先落库上一根
func (s *PriceService) RecordTick(ctx context.Context, t port.Tick) error {
	if t.Price <= 0 || t.Symbol == "" {
		return nil
	}
	if s.publisher != nil {
		if err := s.publisher.PublishLatestPrice(ctx, t.Symbol, t.Price, t.Ts); err != nil {
			log.Warn().Err(err).Str("symbol", t.Symbol).Msg("publish latest price failed")
		}
	}

	bucket := t.Ts.Truncate(s.interval)

	s.mu.Lock()
	cur := s.open[t.Symbol]
	var done *model.PriceBar
	switch {
	case cur == nil:
		s.open[t.Symbol] = model.TickBar(t.Symbol, t.Price, bucket)
	case bucket.After(cur.Timestamp):
		done = cur
		s.open[t.Symbol] = model.TickBar(t.Symbol, t.Price, bucket)
	case bucket.Equal(cur.Timestamp):
		cur.High = max(cur.High, t.Price)
		cur.Low = min(cur.Low, t.Price)
		cur.Close = t.Price
	}
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	log.Debug().Str("symbol", done.Symbol).Time("bar", done.Timestamp).Float64("close", done.Close).Msg("bar closed")
	return s.RecordBar(ctx, done)
}

// Flush 把所有未收盘的 K 线落库（退出时调用）
func (s *PriceService) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := make([]*model.PriceBar, 0, len(s.open))
	for _, b := range s.open {
		pending = append(pending, b)
	}
	s.open = make(map[string]*model.PriceBar)
	s.mu.Unlock()

	var firstErr error
	for _, b := range pending {
		if err := s.RecordBar(ctx, b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenBar 当前未收盘 K 线的副本
func (s *PriceService) OpenBar(symbol string) (model.PriceBar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.open[symbol]
	if !ok {
		return model.PriceBar{}, false
	}
	return *b, true
}

// History 最近 days 天的收盘价，按时间升序
func (s *PriceService) History(ctx context.Context, symbol string, days int, now time.Time) ([]float64, error) {
	return s.repo.ClosingPrices(ctx, symbol, now.AddDate(0, 0, -days))
}
