package service

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tradeguard/internal/domain/model"
)

// minCorrelationPoints 计算相关性所需的最少对齐价格数
const minCorrelationPoints = 5

// SimpleReturns 逐日简单收益率 (p[i]-p[i-1])/p[i-1]
// 前一价格为 0 的点被跳过
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// Correlation is the Pearson correlation of the simple returns of two price
// series, aligned on their most recent min(len) points. Fewer than five aligned
// prices, or a flat series, yield a low-confidence zero.
func Correlation(prices1, prices2 []float64) model.Estimate {
	n := min(len(prices1), len(prices2))
	if n < minCorrelationPoints {
		return model.Fallback(0)
	}

	r1 := SimpleReturns(prices1[len(prices1)-n:])
	r2 := SimpleReturns(prices2[len(prices2)-n:])
	if len(r1) == 0 || len(r1) != len(r2) {
		return model.Fallback(0)
	}

	c := stat.Correlation(r1, r2, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return model.Fallback(0)
	}
	return model.Measured(c)
}

// Beta 样本协方差 / 总体方差，基准方差为 0 时 ok=false
func Beta(returns, benchmark []float64) (beta float64, ok bool) {
	n := min(len(returns), len(benchmark))
	if n < 2 {
		return 0, false
	}
	r := returns[len(returns)-n:]
	b := benchmark[len(benchmark)-n:]

	v := stat.PopVariance(b, nil)
	if v <= 0 || math.IsNaN(v) {
		return 0, false
	}
	return stat.Covariance(r, b, nil) / v, true
}

// LowerQuantile returns the q-quantile (0..1) of xs, interpolating linearly at
// position q*(n-1) of the sorted values. xs is not modified.
func LowerQuantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	hi := min(lo+1, len(sorted)-1)
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// SharpeRatio 年化夏普，periods=252 为日频
func SharpeRatio(returns []float64, riskFree float64, periods int) float64 {
	if len(returns) < 2 {
		return 0
	}
	excess := excessReturns(returns, riskFree, periods)
	mean, std := stat.MeanStdDev(excess, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(float64(periods))
}

// SortinoRatio 年化索提诺（只看下行波动）
func SortinoRatio(returns []float64, riskFree float64, periods int) float64 {
	if len(returns) == 0 {
		return 0
	}
	excess := excessReturns(returns, riskFree, periods)

	var downside []float64
	for _, r := range excess {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}
	dstd := stat.StdDev(downside, nil)
	if dstd == 0 || math.IsNaN(dstd) {
		return 0
	}
	return stat.Mean(excess, nil) / dstd * math.Sqrt(float64(periods))
}

func excessReturns(returns []float64, riskFree float64, periods int) []float64 {
	out := make([]float64, len(returns))
	copy(out, returns)
	floats.AddConst(-riskFree/float64(periods), out)
	return out
}

// MaxDrawdown 资金曲线最大回撤（正数比例）
func MaxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range equity {
		peak = math.Max(peak, v)
		if peak <= 0 {
			continue
		}
		worst = math.Max(worst, (peak-v)/peak)
	}
	return worst
}

// ComputeTradeStats 由已平仓成交计算胜率和平均盈亏
func ComputeTradeStats(trades []*model.Trade) model.TradeStats {
	var s model.TradeStats
	var grossWin, grossLoss float64
	for _, t := range trades {
		if t.PnL == nil || t.Status != model.TradeStatusFilled {
			continue
		}
		s.Trades++
		switch pnl := *t.PnL; {
		case pnl > 0:
			s.Wins++
			grossWin += pnl
		case pnl < 0:
			s.Losses++
			grossLoss += -pnl
		}
	}
	if s.Trades == 0 {
		return s
	}
	s.WinRate = float64(s.Wins) / float64(s.Trades)
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	}
	return s
}
