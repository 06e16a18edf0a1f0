package composite

import (
	"context"
	"time"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
)

// Publisher 依次写入所有下游，全部尝试后返回第一个错误
type Publisher struct {
	pubs []port.EventPublisher
}

func New(pubs ...port.EventPublisher) *Publisher {
	// nil publishers are allowed; filter in constructor for safety
	out := make([]port.EventPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Publisher{pubs: out}
}

func (c *Publisher) PublishRiskEvent(ctx context.Context, ev *model.RiskEvent) error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.PublishRiskEvent(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Publisher) PublishLatestPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.PublishLatestPrice(ctx, symbol, price, ts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.EventPublisher = (*Publisher)(nil)
