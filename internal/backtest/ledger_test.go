package backtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundcarry/internal/model"
)

func withPositions(inst string, rate float64, pos ...int) []model.SignalRecord {
	out := make([]model.SignalRecord, len(pos))
	for i, p := range pos {
		out[i] = model.SignalRecord{
			AlignedEvent: model.AlignedEvent{Instrument: inst, Timestamp: at(8 * i), FundingRate: rate},
			Position:     p,
		}
	}
	return out
}

func TestApplyLedger(t *testing.T) {
	recs := withPositions("X", 0.01, 0, -1, -1, 1, 0)
	require.NoError(t, ApplyLedger(recs, LedgerParams{NotionalUSDT: 1000, FeeBpsRoundtrip: 10}))

	wantTurnover := []float64{0, 1, 0, 2, 1}
	wantFunding := []float64{0, 10, 10, -10, 0}
	wantFee := []float64{0, -1, 0, -2, -1}
	wantNet := []float64{0, 9, 10, -12, -1}
	equity := 1.0
	for i, r := range recs {
		assert.Equal(t, wantTurnover[i], r.Turnover, "turnover %d", i)
		assert.InDelta(t, wantFunding[i], r.FundingPnL, 1e-9, "funding %d", i)
		assert.InDelta(t, wantFee[i], r.FeePnL, 1e-9, "fee %d", i)
		assert.InDelta(t, wantNet[i], r.NetPnL, 1e-9, "net %d", i)
		equity *= 1 + wantNet[i]/1000
		assert.InDelta(t, equity, r.Equity, 1e-12, "equity %d", i)
	}
}

func TestApplyLedgerFirstEventHasNoTurnover(t *testing.T) {
	recs := append(withPositions("A", 0.01, -1, -1), withPositions("B", -0.01, 1)...)
	require.NoError(t, ApplyLedger(recs, LedgerParams{NotionalUSDT: 100, FeeBpsRoundtrip: 6}))

	assert.Equal(t, 0.0, recs[0].Turnover)
	assert.Equal(t, 0.0, recs[2].Turnover)
	assert.InDelta(t, 1.01, recs[2].Equity, 1e-12, "equity restarts at 1 per instrument")
}

func TestEquityNonDecreasingOnGains(t *testing.T) {
	recs := withPositions("X", 0.001, -1, -1, -1, -1)
	require.NoError(t, ApplyLedger(recs, LedgerParams{NotionalUSDT: 1, FeeBpsRoundtrip: 0}))

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i].Equity, recs[i-1].Equity)
	}

	rows := Summarize(recs, 1, 1095)
	require.Len(t, rows, 1)
	assert.InDelta(t, 1+rows[0].CumulativeReturn, recs[len(recs)-1].Equity, 1e-12)
}

func TestLedgerParamsValidate(t *testing.T) {
	assert.True(t, errors.Is(LedgerParams{NotionalUSDT: 0}.Validate(), model.ErrInvalidParameter))
	assert.True(t, errors.Is(LedgerParams{NotionalUSDT: 1, FeeBpsRoundtrip: -1}.Validate(), model.ErrInvalidParameter))
	assert.NoError(t, LedgerParams{NotionalUSDT: 1}.Validate())
}
