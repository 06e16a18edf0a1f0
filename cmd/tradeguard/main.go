package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/usecase/monitor"
	"tradeguard/internal/infrastructure/config"
	"tradeguard/internal/infrastructure/logger"
	"tradeguard/internal/infrastructure/metrics"
	"tradeguard/internal/infrastructure/svc"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	envFile := flag.String("env", ".env", "optional .env file with secrets")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("env", *envFile).Msg("load env file failed")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	deps, err := sc.BuildMonitorServiceDeps()
	if err != nil {
		log.Fatal().Err(err).Msg("monitor initialization failed")
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, sc.Metrics().Handler()); err != nil {
				log.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	log.Info().
		Str("config", *configPath).
		Int("symbols", len(cfg.Monitor.Symbols)).
		Float64("max_position_size", cfg.Risk.MaxPositionSize).
		Float64("daily_loss_limit", cfg.Risk.DailyLossLimit).
		Float64("max_drawdown_limit", cfg.Risk.MaxDrawdownLimit).
		Msg("tradeguard started")

	if err := monitor.NewService(deps).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("monitor service exited")
	}
}
