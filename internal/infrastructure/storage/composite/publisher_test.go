package composite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradeguard/internal/domain/model"
)

type countingPublisher struct {
	events int
	prices int
	err    error
}

func (p *countingPublisher) PublishRiskEvent(context.Context, *model.RiskEvent) error {
	p.events++
	return p.err
}

func (p *countingPublisher) PublishLatestPrice(context.Context, string, float64, time.Time) error {
	p.prices++
	return p.err
}

func TestPublisherFansOut(t *testing.T) {
	errA := errors.New("a down")
	a := &countingPublisher{err: errA}
	b := &countingPublisher{err: errors.New("b down")}
	c := &countingPublisher{}

	pub := New(a, nil, b, c)
	ctx := context.Background()

	err := pub.PublishRiskEvent(ctx, &model.RiskEvent{ID: "1"})
	assert.ErrorIs(t, err, errA)
	err = pub.PublishLatestPrice(ctx, "AAPL", 150, time.Now())
	assert.ErrorIs(t, err, errA)

	for _, p := range []*countingPublisher{a, b, c} {
		assert.Equal(t, 1, p.events)
		assert.Equal(t, 1, p.prices)
	}
}

func TestPublisherEmpty(t *testing.T) {
	pub := New()
	assert.NoError(t, pub.PublishRiskEvent(context.Background(), &model.RiskEvent{}))
}
