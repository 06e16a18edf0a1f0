package model

import "time"

// PriceBar 一根 K 线（只追加，不修改）
type PriceBar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// TickBar builds a flat bar from a single trade price.
func TickBar(symbol string, price float64, ts time.Time) *PriceBar {
	return &PriceBar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
	}
}
