package port

import (
	"context"
	"time"
)

type Tick struct {
	Source   string    // 行情源 "BINANCE"
	Symbol   string    // "BTCUSDT"
	PriceStr string    // raw string
	Price    float64   // parsed float64 (best-effort)
	Ts       time.Time // 事件时间
}

type PriceFeed interface {
	Name() string
	Subscribe(ctx context.Context, symbols []string) (<-chan Tick, error)
}
