package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	appcontainer "tradeguard/internal/application/container"
	"tradeguard/internal/application/service"
	"tradeguard/internal/domain/model"
	dsvc "tradeguard/internal/domain/service"
)

// CLI 一次性命令，输出 JSON
type CLI struct {
	App  *appcontainer.Container
	Out  io.Writer
	Cash float64
	Now  func() time.Time
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command")
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "size":
		return c.size(rest)
	case "check":
		return c.check(ctx, rest)
	case "fill":
		return c.fill(ctx, rest)
	case "bar":
		return c.bar(ctx, rest)
	case "exit":
		return c.exit(ctx, rest)
	case "summary":
		return c.summary(ctx, rest)
	case "var":
		return c.valueAtRisk(ctx, rest)
	case "beta":
		return c.beta(ctx, rest)
	case "events":
		return c.events(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *CLI) print(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *CLI) size(args []string) error {
	fs := flag.NewFlagSet("size", flag.ContinueOnError)
	price := fs.Float64("price", 0, "entry price")
	account := fs.Float64("account", 0, "account value")
	vol := fs.Float64("volatility", 0, "daily volatility (e.g. ATR/price); 0 skips volatility sizing")
	winRate := fs.Float64("win-rate", 0, "historical win rate; 0 skips Kelly sizing")
	avgWin := fs.Float64("avg-win", 0, "average winning trade")
	avgLoss := fs.Float64("avg-loss", 0, "average losing trade (positive)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *price <= 0 || *account <= 0 {
		return service.ErrInvalidPrice
	}

	var stats *model.TradeStats
	if *winRate > 0 {
		stats = &model.TradeStats{WinRate: *winRate, AvgWin: *avgWin, AvgLoss: *avgLoss}
	}
	return c.print(c.App.RiskManager().CalculatePositionSize(*price, *account, *vol, stats))
}

func (c *CLI) check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "symbol")
	side := fs.String("side", "long", "long|short")
	qty := fs.Float64("qty", 0, "quantity; 0 uses the recommended size")
	price := fs.Float64("price", 0, "entry price")
	account := fs.Float64("account", 0, "account value")
	vol := fs.Float64("volatility", 0, "daily volatility")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sd, err := model.ParseSide(*side)
	if err != nil {
		return err
	}

	v, err := c.App.RiskService().EvaluateEntry(ctx, service.EntryRequest{
		Symbol:       *symbol,
		Side:         sd,
		Price:        *price,
		AccountValue: *account,
		Quantity:     *qty,
		Volatility:   *vol,
	})
	if err != nil {
		return err
	}
	return c.print(v)
}

func (c *CLI) fill(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fill", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "symbol")
	side := fs.String("side", "long", "long (buy) | short (sell)")
	qty := fs.Float64("qty", 0, "quantity")
	price := fs.Float64("price", 0, "fill price")
	commission := fs.Float64("commission", 0, "commission")
	orderID := fs.String("order-id", "", "broker order id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sd, err := model.ParseSide(*side)
	if err != nil {
		return err
	}

	res, err := c.App.RiskService().RecordFill(ctx, &model.Trade{
		Symbol:     *symbol,
		Side:       sd,
		Quantity:   *qty,
		Price:      *price,
		Commission: *commission,
		Status:     model.TradeStatusFilled,
		Strategy:   c.App.RiskManager().Limits().Strategy,
		OrderID:    *orderID,
		Timestamp:  c.Now(),
	})
	if err != nil {
		return err
	}
	return c.print(res)
}

func (c *CLI) bar(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bar", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "symbol")
	closePx := fs.Float64("close", 0, "closing price")
	date := fs.String("date", "", "YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" || *closePx <= 0 {
		return fmt.Errorf("symbol and a positive close are required")
	}

	ts := model.Day(c.Now())
	if *date != "" {
		d, err := time.Parse(time.DateOnly, *date)
		if err != nil {
			return err
		}
		ts = d
	}
	bar := model.TickBar(*symbol, *closePx, ts)
	if err := c.App.PriceService().RecordBar(ctx, bar); err != nil {
		return err
	}
	return c.print(bar)
}

func (c *CLI) exit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("exit", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "symbol")
	price := fs.Float64("price", 0, "current price")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rs := c.App.RiskService()
	if _, err := rs.RestoreTracking(ctx); err != nil {
		return err
	}
	sig, err := rs.OnPrice(ctx, *symbol, *price, c.Now())
	if err != nil {
		return err
	}
	return c.print(sig)
}

func (c *CLI) summary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	cash := fs.Float64("cash", c.Cash, "cash balance for today's snapshot")
	refresh := fs.Bool("refresh", true, "recompute today's performance snapshot first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *refresh {
		if _, err := c.App.PerformanceService().UpdateDaily(ctx, *cash); err != nil {
			return err
		}
	}
	sum, err := c.App.RiskService().Summary(ctx)
	if err != nil {
		return err
	}
	return c.print(sum)
}

func (c *CLI) valueAtRisk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("var", flag.ContinueOnError)
	conf := fs.Float64("confidence", dsvc.DefaultVaRConfidence, "confidence level in (0,1)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	est, err := c.App.RiskManager().Portfolio().CalculateVaR(ctx, *conf)
	if err != nil {
		return err
	}
	return c.print(est)
}

func (c *CLI) beta(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("beta", flag.ContinueOnError)
	bench := fs.String("benchmark", dsvc.DefaultBenchmark, "benchmark symbol")
	if err := fs.Parse(args); err != nil {
		return err
	}
	est, err := c.App.RiskManager().Portfolio().CalculatePortfolioBeta(ctx, *bench)
	if err != nil {
		return err
	}
	return c.print(est)
}

func (c *CLI) events(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	since := fs.Duration("since", 24*time.Hour, "look-back window")
	limit := fs.Int("limit", 20, "max events, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	evs, err := c.App.Repository().ListRiskEvents(ctx, c.Now().Add(-*since), *limit)
	if err != nil {
		return err
	}
	return c.print(evs)
}
