package feed

import (
	"strings"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/port"
)

// Factory wsURL -> feed
type Factory func(wsURL string) port.PriceFeed

var registry = make(map[string]Factory)

// Register 由各行情源在 init() 中自注册
func Register(source string, factory Factory) {
	if factory == nil {
		log.Warn().Str("source", source).Msg("invalid price feed factory")
		return
	}
	source = strings.ToUpper(source)
	if _, exists := registry[source]; exists {
		log.Warn().Str("source", source).Msg("price feed factory already registered, overwriting")
	}
	registry[source] = factory
}

func Get(source string) (Factory, bool) {
	f, ok := registry[strings.ToUpper(source)]
	return f, ok
}

// Endpoint 一个启用的行情源
type Endpoint struct {
	Source string
	WsURL  string
}

// Build 为每个已注册的 endpoint 创建 feed，未注册的跳过并告警
func Build(endpoints []Endpoint) []port.PriceFeed {
	feeds := make([]port.PriceFeed, 0, len(endpoints))
	for _, ep := range endpoints {
		f, ok := Get(ep.Source)
		if !ok {
			log.Warn().Str("source", ep.Source).Msg("no price feed registered")
			continue
		}
		feeds = append(feeds, f(ep.WsURL))
	}
	return feeds
}
