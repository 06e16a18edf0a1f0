package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	dsvc "tradeguard/internal/domain/service"
)

// 敏感配置可以放在环境变量（或 .env）里，优先于配置文件
const (
	EnvPostgresDSN   = "TRADEGUARD_POSTGRES_DSN"
	EnvRedisPassword = "TRADEGUARD_REDIS_PASSWORD"
)

type Config struct {
	App struct {
		LogLevel string `toml:"log_level"`
	} `toml:"app"`

	Risk struct {
		MaxPositionSize        float64 `toml:"max_position_size"`
		MaxPortfolioExposure   float64 `toml:"max_portfolio_exposure"`
		DailyLossLimit         float64 `toml:"daily_loss_limit"`
		MaxDrawdownLimit       float64 `toml:"max_drawdown_limit"`
		MaxCorrelation         float64 `toml:"max_correlation"`
		StopLossPercentage     float64 `toml:"stop_loss_percentage"`
		TakeProfitPercentage   float64 `toml:"take_profit_percentage"`
		TrailingStopPercentage float64 `toml:"trailing_stop_percentage"`
		MaxHoldHours           int     `toml:"max_hold_hours"` // 0 关闭时间止损
		Strategy               string  `toml:"strategy"`
		RiskFreeRate           float64 `toml:"risk_free_rate"`
	} `toml:"risk"`

	Sizing struct {
		// 未配置时为 true
		FloorToOneShare *bool `toml:"floor_to_one_share"`
	} `toml:"sizing"`

	Monitor struct {
		Symbols         []string `toml:"symbols"`
		SummaryEverySec int      `toml:"summary_every_sec"`
		ExitCooldownSec int      `toml:"exit_cooldown_sec"`
		BarIntervalSec  int      `toml:"bar_interval_sec"`
		Cash            float64  `toml:"cash"`
	} `toml:"monitor"`

	Feed struct {
		Binance struct {
			Enabled bool   `toml:"enabled"`
			WsURL   string `toml:"ws_url"`
		} `toml:"binance"`
	} `toml:"feed"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`

		Redis struct {
			Enabled      bool   `toml:"enabled"`
			Addr         string `toml:"addr"`
			Password     string `toml:"password"`
			DB           int    `toml:"db"`
			Prefix       string `toml:"prefix"`
			TTLSeconds   int    `toml:"ttl_seconds"`
			EventStream  string `toml:"event_stream"`
			EventChannel string `toml:"event_channel"`
		} `toml:"redis"`
	} `toml:"storage"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Path    string `toml:"path"`
	} `toml:"metrics"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg, md)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Storage.Redis.Password = v
	}
}

func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}

	// 风控参数只补文件里没写的项，写了的值（包括 0 和负数）交给 validate
	d := dsvc.DefaultRiskLimits()
	r := &cfg.Risk
	riskDefaults := []struct {
		key string
		v   *float64
		def float64
	}{
		{"max_position_size", &r.MaxPositionSize, d.MaxPositionSize},
		{"max_portfolio_exposure", &r.MaxPortfolioExposure, d.MaxPortfolioExposure},
		{"daily_loss_limit", &r.DailyLossLimit, d.DailyLossLimit},
		{"max_drawdown_limit", &r.MaxDrawdownLimit, d.MaxDrawdownLimit},
		{"max_correlation", &r.MaxCorrelation, d.MaxCorrelation},
		{"stop_loss_percentage", &r.StopLossPercentage, d.StopLossPct},
		{"take_profit_percentage", &r.TakeProfitPercentage, d.TakeProfitPct},
		{"trailing_stop_percentage", &r.TrailingStopPercentage, d.TrailingStopPct},
	}
	for _, f := range riskDefaults {
		if !md.IsDefined("risk", f.key) {
			*f.v = f.def
		}
	}

	if cfg.Sizing.FloorToOneShare == nil {
		v := true
		cfg.Sizing.FloorToOneShare = &v
	}

	if cfg.Monitor.SummaryEverySec <= 0 {
		cfg.Monitor.SummaryEverySec = 300
	}
	if cfg.Monitor.ExitCooldownSec <= 0 {
		cfg.Monitor.ExitCooldownSec = 900
	}
	if cfg.Monitor.BarIntervalSec <= 0 {
		cfg.Monitor.BarIntervalSec = 86400
	}

	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/tradeguard.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "tradeguard"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9108"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	cfg.Monitor.Symbols = normalizeSymbols(cfg.Monitor.Symbols)

	if err := cfg.RiskLimits().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if cfg.Risk.MaxHoldHours < 0 {
		return errors.New("risk.max_hold_hours must not be negative")
	}

	if cfg.Feed.Binance.Enabled {
		if strings.TrimSpace(cfg.Feed.Binance.WsURL) == "" {
			return errors.New("feed.binance.ws_url empty but enabled")
		}
		if len(cfg.Monitor.Symbols) == 0 {
			return errors.New("monitor.symbols is empty")
		}
	}

	if cfg.Storage.SQLite.Enabled && cfg.Storage.Postgres.Enabled {
		return errors.New("storage.sqlite and storage.postgres are mutually exclusive")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return fmt.Errorf("storage.postgres.dsn empty (set it or %s)", EnvPostgresDSN)
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	return nil
}

// RiskLimits 转换为领域层参数
func (c *Config) RiskLimits() dsvc.RiskLimits {
	floor := true
	if c.Sizing.FloorToOneShare != nil {
		floor = *c.Sizing.FloorToOneShare
	}
	return dsvc.RiskLimits{
		MaxPositionSize:      c.Risk.MaxPositionSize,
		MaxPortfolioExposure: c.Risk.MaxPortfolioExposure,
		DailyLossLimit:       c.Risk.DailyLossLimit,
		MaxDrawdownLimit:     c.Risk.MaxDrawdownLimit,
		MaxCorrelation:       c.Risk.MaxCorrelation,
		StopLossPct:          c.Risk.StopLossPercentage,
		TakeProfitPct:        c.Risk.TakeProfitPercentage,
		TrailingStopPct:      c.Risk.TrailingStopPercentage,
		FloorToOneShare:      floor,
		Strategy:             c.Risk.Strategy,
	}
}

func (c *Config) MaxHold() time.Duration {
	return time.Duration(c.Risk.MaxHoldHours) * time.Hour
}

func (c *Config) SummaryEvery() time.Duration {
	return time.Duration(c.Monitor.SummaryEverySec) * time.Second
}

func (c *Config) ExitCooldown() time.Duration {
	return time.Duration(c.Monitor.ExitCooldownSec) * time.Second
}

func (c *Config) BarInterval() time.Duration {
	return time.Duration(c.Monitor.BarIntervalSec) * time.Second
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Storage.Redis.TTLSeconds) * time.Second
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
