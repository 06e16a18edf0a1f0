package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewSinkTo(&buf)
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, s.WriteLive("BTCUSDT=42000"))
	require.NoError(t, s.WriteAlert(ts, "[EXIT] BTCUSDT @41000.0000 stop_loss: Stop loss triggered"))
	require.NoError(t, s.WriteSnapshot(ts, "PV=100000.00"))
	require.NoError(t, s.NewLine())

	assert.Equal(t,
		"BTCUSDT=42000"+
			"\n2024-05-01 09:30:00 [EXIT] BTCUSDT @41000.0000 stop_loss: Stop loss triggered\n"+
			"\n2024-05-01 09:30:00 PV=100000.00\n\n"+
			"\n",
		buf.String())
}
