package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
)

// Publisher 把风控事件写入 Redis Stream 并广播到 PubSub，最新价写入 Hash
type Publisher struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	keyLatest   string // prefix + ":latest"
	eventStream string
	eventChan   string
}

type LatestPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Ts     int64   `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, eventStream, eventChan string) *Publisher {
	if strings.TrimSpace(eventStream) == "" {
		eventStream = prefix + ":risk_events"
	}
	if strings.TrimSpace(eventChan) == "" {
		eventChan = prefix + ":risk_events:pub"
	}
	return &Publisher{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyLatest:   prefix + ":latest",
		eventStream: eventStream,
		eventChan:   eventChan,
	}
}

func (p *Publisher) PublishLatestPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	if price <= 0 {
		return nil
	}
	b, _ := json.Marshal(LatestPrice{Symbol: symbol, Price: price, Ts: ts.UnixMilli()})

	// Hash: field = symbol -> json
	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, p.keyLatest, symbol, string(b))
	if p.ttl > 0 {
		pipe.Expire(ctx, p.keyLatest, p.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Publisher) PublishRiskEvent(ctx context.Context, ev *model.RiskEvent) error {
	// 1) Stream: XADD <stream> * event_id kind symbol reason payload ts_ms
	_, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.eventStream,
		Values: map[string]any{
			"event_id": ev.ID,
			"kind":     string(ev.Kind),
			"symbol":   ev.Symbol,
			"reason":   ev.Reason,
			"payload":  ev.Payload,
			"ts_ms":    ev.Timestamp.UnixMilli(),
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.eventChan, string(b)).Err()
}

var _ port.EventPublisher = (*Publisher)(nil)
