package container

import (
	"time"

	"tradeguard/internal/application/port"
	"tradeguard/internal/application/service"
	dsvc "tradeguard/internal/domain/service"
)

// Options 应用层参数
type Options struct {
	Limits      dsvc.RiskLimits
	MaxHold     time.Duration
	BarInterval time.Duration
	RiskFree    float64
	Metrics     port.RiskMetrics
	Now         func() time.Time
}

type Container struct {
	repo      port.Repository
	publisher port.EventPublisher
	opts      Options

	riskManager        *dsvc.RiskManager
	priceService       *service.PriceService
	positionService    *service.PositionService
	performanceService *service.PerformanceService
	riskService        *service.RiskService
}

// New publisher 为 nil 时事件只写入 repo
func New(repo port.Repository, publisher port.EventPublisher, opts Options) *Container {
	if publisher == nil {
		publisher = repo
	}
	return &Container{
		repo:      repo,
		publisher: publisher,
		opts:      opts,
	}
}

func (c *Container) Repository() port.Repository {
	return c.repo
}

func (c *Container) RiskManager() *dsvc.RiskManager {
	if c.riskManager == nil {
		c.riskManager = dsvc.NewRiskManager(c.opts.Limits, dsvc.RiskManagerDeps{
			Performance: c.repo,
			Positions:   c.repo,
			Prices:      c.repo,
			Now:         c.opts.Now,
		})
	}
	return c.riskManager
}

func (c *Container) PriceService() *service.PriceService {
	if c.priceService == nil {
		c.priceService = service.NewPriceService(c.repo, c.publisher, c.opts.BarInterval)
	}
	return c.priceService
}

func (c *Container) PositionService() *service.PositionService {
	if c.positionService == nil {
		c.positionService = service.NewPositionService(c.repo)
	}
	return c.positionService
}

func (c *Container) PerformanceService() *service.PerformanceService {
	if c.performanceService == nil {
		c.performanceService = service.NewPerformanceService(c.repo, c.opts.Limits.Strategy, c.opts.RiskFree).
			WithClock(c.opts.Now)
	}
	return c.performanceService
}

func (c *Container) RiskService() *service.RiskService {
	if c.riskService == nil {
		c.riskService = service.NewRiskService(service.RiskServiceDeps{
			Manager:   c.RiskManager(),
			Positions: c.PositionService(),
			Repo:      c.repo,
			Publisher: c.publisher,
			Metrics:   c.opts.Metrics,
			MaxHold:   c.opts.MaxHold,
			Now:       c.opts.Now,
		})
	}
	return c.riskService
}

func (c *Container) Close() error {
	return c.repo.Close()
}
