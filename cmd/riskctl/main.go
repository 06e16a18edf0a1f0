package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	appcontainer "tradeguard/internal/application/container"
	"tradeguard/internal/infrastructure/config"
	"tradeguard/internal/infrastructure/container"
	"tradeguard/internal/infrastructure/logger"
)

const usage = `usage: riskctl [-config path] <command> [flags]

commands:
  size     recommended share count for an entry
  check    size + five-gate entry check (records an event)
  fill     record an executed trade
  bar      record a closing price
  exit     evaluate exit rules for a held symbol at a price
  summary  daily risk summary (refreshes today's snapshot)
  var      historical value at risk
  beta     portfolio beta against a benchmark
  events   recent risk events
`

func main() {
	logger.Setup("warn")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	envFile := flag.String("env", ".env", "optional .env file with secrets")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("env", *envFile).Msg("load env file failed")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := container.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer infra.Close()

	app := appcontainer.New(infra.Repository(), infra.Publisher(), appcontainer.Options{
		Limits:      cfg.RiskLimits(),
		MaxHold:     cfg.MaxHold(),
		BarInterval: cfg.BarInterval(),
		RiskFree:    cfg.Risk.RiskFreeRate,
	})

	cli := &CLI{App: app, Out: os.Stdout, Cash: cfg.Monitor.Cash}
	if err := cli.Run(ctx, flag.Args()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Error().Err(err).Str("command", flag.Arg(0)).Msg("command failed")
		infra.Close()
		os.Exit(1)
	}
}
