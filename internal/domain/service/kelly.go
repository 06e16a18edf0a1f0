package service

import "github.com/rs/zerolog/log"

const (
	// DefaultKellyFraction 半凯利
	DefaultKellyFraction = 0.5

	kellyDefault = 0.02
	kellyCap     = 0.20
)

// Kelly returns the fraction of capital to commit given win/loss statistics.
// avgLoss is a positive amount. Degenerate inputs return the 2% default.
func Kelly(winRate, avgWin, avgLoss, fraction float64) float64 {
	if avgLoss == 0 || winRate == 0 || winRate == 1 {
		return kellyDefault
	}

	wl := avgWin / avgLoss
	k := (winRate*wl - (1 - winRate)) / wl
	k *= fraction

	// 上限 20%，下限 0
	k = max(0, min(k, kellyCap))

	log.Debug().
		Float64("kelly", k).
		Float64("win_rate", winRate).
		Float64("win_loss_ratio", wl).
		Msg("kelly criterion")
	return k
}
