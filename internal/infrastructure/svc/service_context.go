package svc

import (
	"fmt"

	"github.com/rs/zerolog/log"

	appcontainer "tradeguard/internal/application/container"
	"tradeguard/internal/application/port"
	"tradeguard/internal/application/usecase/monitor"
	"tradeguard/internal/infrastructure/config"
	"tradeguard/internal/infrastructure/container"
	"tradeguard/internal/infrastructure/feed"
	"tradeguard/internal/infrastructure/metrics"
	"tradeguard/internal/interfaces/console"
)

type ServiceContext struct {
	Config *config.Config

	// 基础设施层（第一层初始化）
	infra   *container.Container
	metrics *metrics.Prometheus

	// 输出端口
	Sink port.Sink

	// 应用层组件（依赖基础设施）
	app        *appcontainer.Container
	priceFeeds []port.PriceFeed
}

// New 创建并初始化 ServiceContext，所有依赖在这里按顺序组装
func New(cfg *config.Config) (*ServiceContext, error) {
	infra, err := container.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}

	sc := &ServiceContext{
		Config:  cfg,
		infra:   infra,
		metrics: metrics.NewPrometheus(),
		Sink:    console.NewSink(),
	}

	sc.app = appcontainer.New(infra.Repository(), infra.Publisher(), appcontainer.Options{
		Limits:      cfg.RiskLimits(),
		MaxHold:     cfg.MaxHold(),
		BarInterval: cfg.BarInterval(),
		RiskFree:    cfg.Risk.RiskFreeRate,
		Metrics:     sc.metrics,
	})

	sc.priceFeeds = feed.Build(enabledFeeds(cfg))

	log.Info().
		Int("feeds", len(sc.priceFeeds)).
		Str("strategy", cfg.Risk.Strategy).
		Msg("components initialized")
	return sc, nil
}

func enabledFeeds(cfg *config.Config) []feed.Endpoint {
	var eps []feed.Endpoint
	if cfg.Feed.Binance.Enabled {
		eps = append(eps, feed.Endpoint{Source: feed.SourceBinance, WsURL: cfg.Feed.Binance.WsURL})
	} else {
		log.Warn().Msg("binance disabled by config")
	}
	return eps
}

// App 应用层服务
func (sc *ServiceContext) App() *appcontainer.Container {
	return sc.app
}

// Metrics Prometheus 指标
func (sc *ServiceContext) Metrics() *metrics.Prometheus {
	return sc.metrics
}

// BuildMonitorServiceDeps 构建 Monitor Service 所需的所有依赖
func (sc *ServiceContext) BuildMonitorServiceDeps() (monitor.ServiceDeps, error) {
	if len(sc.priceFeeds) == 0 {
		return monitor.ServiceDeps{}, ErrNoFeedsEnabled
	}
	return monitor.ServiceDeps{
		Feeds:        sc.priceFeeds,
		Symbols:      sc.Config.Monitor.Symbols,
		SummaryEvery: sc.Config.SummaryEvery(),
		ExitCooldown: sc.Config.ExitCooldown(),
		Risk:         sc.app.RiskService(),
		Prices:       sc.app.PriceService(),
		Performance:  sc.app.PerformanceService(),
		Cash:         sc.Config.Monitor.Cash,
		Sink:         sc.Sink,
	}, nil
}

// Close 释放存储连接，应在应用退出时调用
func (sc *ServiceContext) Close() error {
	return sc.infra.Close()
}
