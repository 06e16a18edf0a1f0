package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[monitor]
symbols = [" btcusdt ", "ETHUSDT", "btcusdt", ""]
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Monitor.Symbols)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.SummaryEvery())
	assert.Equal(t, 24*time.Hour, cfg.BarInterval())
	assert.Equal(t, time.Duration(0), cfg.MaxHold())

	l := cfg.RiskLimits()
	assert.Equal(t, 0.02, l.MaxPositionSize)
	assert.Equal(t, 0.5, l.MaxPortfolioExposure)
	assert.Equal(t, 0.05, l.DailyLossLimit)
	assert.Equal(t, 0.15, l.MaxDrawdownLimit)
	assert.Equal(t, 0.7, l.MaxCorrelation)
	assert.Equal(t, 0.02, l.StopLossPct)
	assert.Equal(t, 0.05, l.TakeProfitPct)
	assert.Equal(t, 0.03, l.TrailingStopPct)
	assert.True(t, l.FloorToOneShare)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[risk]
max_position_size = 0.1
stop_loss_percentage = 0.04
max_hold_hours = 48
strategy = "momentum"

[sizing]
floor_to_one_share = false
`))
	require.NoError(t, err)

	l := cfg.RiskLimits()
	assert.Equal(t, 0.1, l.MaxPositionSize)
	assert.Equal(t, 0.04, l.StopLossPct)
	assert.Equal(t, "momentum", l.Strategy)
	assert.False(t, l.FloorToOneShare)
	assert.Equal(t, 48*time.Hour, cfg.MaxHold())
}

func TestLoadEnvSecrets(t *testing.T) {
	t.Setenv(EnvPostgresDSN, "postgres://risk@localhost/risk")
	t.Setenv(EnvRedisPassword, "s3cret")

	cfg, err := Load(writeConfig(t, `
[storage.postgres]
enabled = true

[storage.redis]
enabled = true
addr = "localhost:6379"
password = "from-file"
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres://risk@localhost/risk", cfg.Storage.Postgres.DSN)
	assert.Equal(t, "s3cret", cfg.Storage.Redis.Password)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"limit out of range": `
[risk]
daily_loss_limit = 1.5
`,
		"negative stop loss": `
[risk]
stop_loss_percentage = -0.5
`,
		"explicit zero limit": `
[risk]
max_position_size = 0.0
`,
		"binance without url": `
[monitor]
symbols = ["BTCUSDT"]
[feed.binance]
enabled = true
`,
		"binance without symbols": `
[feed.binance]
enabled = true
ws_url = "wss://stream.binance.com:9443"
`,
		"two databases": `
[storage.sqlite]
enabled = true
[storage.postgres]
enabled = true
dsn = "postgres://localhost/x"
`,
		"postgres without dsn": `
[storage.postgres]
enabled = true
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(EnvPostgresDSN, "")
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadKeepsExplicitZeroCorrelation(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[risk]
max_correlation = 0.0
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Risk.MaxCorrelation)
	assert.Equal(t, 0.0, cfg.RiskLimits().MaxCorrelation)
	// 未写的项仍取默认值
	assert.Equal(t, 0.02, cfg.Risk.StopLossPercentage)
}
