package monitor

import (
	"fmt"
	"strings"

	"tradeguard/internal/domain/model"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

// StopLookup 返回 symbol 当前的跟踪止损价
type StopLookup func(symbol string) (float64, bool)

type Formatter struct {
	stops StopLookup
}

func NewFormatter(stops StopLookup) *Formatter {
	return &Formatter{stops: stops}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

func (f *Formatter) Render(st *State, mode RenderMode) string {
	snap := st.Snapshot()

	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}
	sb.WriteString(colorize("[TGUARD] ", ansiDim))

	for i, sym := range st.Symbols() {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		ps := snap[sym]

		px := "--"
		if ps.seen && ps.str != "" {
			px = ps.str
		}
		col := ansiYellow
		if ps.parse {
			switch ps.dir {
			case DirUp:
				col = ansiGreen
			case DirDown:
				col = ansiRed
			}
		}

		sb.WriteString(sym)
		sb.WriteString(" ")
		sb.WriteString(colorize(px, col))

		if f.stops != nil {
			if stop, ok := f.stops(sym); ok {
				sb.WriteString(" ")
				sb.WriteString(colorize(fmt.Sprintf("stop=%.2f", stop), ansiDim))
			}
		}
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

// RenderSummary 风控概览单行
func (f *Formatter) RenderSummary(s *model.RiskSummary) string {
	var sb strings.Builder
	sb.WriteString(colorize("[RISK] ", ansiDim))

	pnlCol := ansiGreen
	if s.DailyPnL < 0 {
		pnlCol = ansiRed
	}
	fmt.Fprintf(&sb, "PV=%.2f ", s.PortfolioValue)
	sb.WriteString(colorize(fmt.Sprintf("PnL=%+.2f(%+.2f%%)", s.DailyPnL, s.DailyPnLPct), pnlCol))
	fmt.Fprintf(&sb, " DD=%.2f%%/%.0f%%", s.CurrentDrawdownPct, s.MaxDrawdownLimit)
	fmt.Fprintf(&sb, " EXP=%.2f%%/%.0f%%", s.ExposurePct, s.MaxExposureLimit)
	fmt.Fprintf(&sb, " VaR95=%s", estimate(s.VaR95, "%.2f"))
	fmt.Fprintf(&sb, " β=%s ", estimate(s.Beta, "%.2f"))

	if s.CanTrade {
		sb.WriteString(colorize("TRADING", ansiGreen))
	} else {
		sb.WriteString(colorize("HALTED", ansiRed))
	}
	return sb.String()
}

// RenderExit 平仓提示单行
func (f *Formatter) RenderExit(symbol string, price float64, sig model.ExitSignal) string {
	return colorize(fmt.Sprintf("[EXIT] %s @%.4f %s: %s", symbol, price, sig.Kind, sig.Reason), ansiRed)
}

// 低可信度的估计值加 * 标记
func estimate(e model.Estimate, format string) string {
	s := fmt.Sprintf(format, e.Value)
	if e.Insufficient() {
		s += "*"
	}
	return s
}
