package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/domain/model"
)

func TestRecordDecisionAndExit(t *testing.T) {
	p := NewPrometheus()

	p.RecordDecision("AAPL", true, "")
	p.RecordDecision("AAPL", false, "Daily loss limit exceeded")
	p.RecordDecision("AAPL", false, "Daily loss limit exceeded")
	p.RecordExit("AAPL", model.ExitStopLoss)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.decisions.WithLabelValues("AAPL", "approved", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.decisions.WithLabelValues("AAPL", "rejected", "Daily loss limit exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.exits.WithLabelValues("AAPL", "stop_loss")))
}

func TestRecordSummary(t *testing.T) {
	p := NewPrometheus()
	p.RecordSummary(&model.RiskSummary{
		PortfolioValue: 100000,
		ExposurePct:    42,
		VaR95:          model.Measured(1234),
		Beta:           model.Fallback(1),
		CanTrade:       true,
	})
	p.RecordSummary(nil)

	assert.Equal(t, 100000.0, testutil.ToFloat64(p.portfolioValue.WithLabelValues("portfolio")))
	assert.Equal(t, 42.0, testutil.ToFloat64(p.exposurePct))
	assert.Equal(t, 1234.0, testutil.ToFloat64(p.var95))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.beta))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.canTrade))
}

func TestHandlerExposesMetrics(t *testing.T) {
	p := NewPrometheus()
	p.RecordExit("BTCUSDT", model.ExitTrailingStop)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tradeguard_exit_signals_total{kind="trailing_stop",symbol="BTCUSDT"} 1`)
}
