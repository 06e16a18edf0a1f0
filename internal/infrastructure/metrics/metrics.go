package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
)

const namespace = "tradeguard"

// Prometheus 风控指标，使用独立 registry
type Prometheus struct {
	registry *prometheus.Registry

	decisions *prometheus.CounterVec
	exits     *prometheus.CounterVec

	portfolioValue *prometheus.GaugeVec
	dailyPnLPct    prometheus.Gauge
	drawdownPct    prometheus.Gauge
	exposurePct    prometheus.Gauge
	var95          prometheus.Gauge
	beta           prometheus.Gauge
	canTrade       prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entry_decisions_total",
				Help:      "Entry risk checks by outcome and reason",
			},
			[]string{"symbol", "outcome", "reason"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exit_signals_total",
				Help:      "Exit signals raised for held positions",
			},
			[]string{"symbol", "kind"},
		),
		portfolioValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_value",
				Help:      "Portfolio value, daily P&L, drawdown and exposure amounts",
			},
			[]string{"field"},
		),
		dailyPnLPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "daily_pnl_percent", Help: "Daily P&L as percent of portfolio value",
		}),
		drawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "drawdown_percent", Help: "Current drawdown as percent of portfolio value",
		}),
		exposurePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "exposure_percent", Help: "Gross exposure as percent of portfolio value",
		}),
		var95: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "var_95", Help: "One-day historical value at risk at 95% confidence",
		}),
		beta: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "portfolio_beta", Help: "Value-weighted portfolio beta against the benchmark",
		}),
		canTrade: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "can_trade", Help: "1 when daily loss and drawdown gates are open",
		}),
	}

	p.registry.MustRegister(
		p.decisions, p.exits, p.portfolioValue,
		p.dailyPnLPct, p.drawdownPct, p.exposurePct,
		p.var95, p.beta, p.canTrade,
	)
	return p
}

func (p *Prometheus) RecordDecision(symbol string, allowed bool, reason string) {
	outcome := "rejected"
	if allowed {
		outcome = "approved"
	}
	p.decisions.WithLabelValues(symbol, outcome, reason).Inc()
}

func (p *Prometheus) RecordExit(symbol string, kind model.ExitKind) {
	p.exits.WithLabelValues(symbol, string(kind)).Inc()
}

func (p *Prometheus) RecordSummary(s *model.RiskSummary) {
	if s == nil {
		return
	}
	p.portfolioValue.WithLabelValues("portfolio").Set(s.PortfolioValue)
	p.portfolioValue.WithLabelValues("daily_pnl").Set(s.DailyPnL)
	p.portfolioValue.WithLabelValues("drawdown").Set(s.CurrentDrawdown)
	p.portfolioValue.WithLabelValues("exposure").Set(s.Exposure)
	p.dailyPnLPct.Set(s.DailyPnLPct)
	p.drawdownPct.Set(s.CurrentDrawdownPct)
	p.exposurePct.Set(s.ExposurePct)
	p.var95.Set(s.VaR95.Value)
	p.beta.Set(s.Beta.Value)
	if s.CanTrade {
		p.canTrade.Set(1)
	} else {
		p.canTrade.Set(0)
	}
}

// Handler /metrics
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

var _ port.RiskMetrics = (*Prometheus)(nil)
