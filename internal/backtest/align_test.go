package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundcarry/internal/model"
)

func TestAlignBackwardAsOf(t *testing.T) {
	funding := []model.FundingObservation{
		{Instrument: "BTC", Timestamp: at(8), FundingRate: 0.0002},
		{Instrument: "BTC", Timestamp: at(0), FundingRate: 0.0001},
		{Instrument: "BTC", Timestamp: at(16), FundingRate: 0.0003},
	}
	vol := []model.VolatilityObservation{
		{Instrument: "BTC", Timestamp: at(4), RateOfChange: model.Float(0.02)},
		{Instrument: "BTC", Timestamp: at(8), RateOfChange: model.Float(1.5), VolatilityBlocked: true},
		{Instrument: "BTC", Timestamp: at(12), RateOfChange: model.Float(-0.01)},
		{Instrument: "BTC", Timestamp: at(20), RateOfChange: model.Float(3), VolatilityBlocked: true},
	}

	got, err := Align(funding, vol)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// nothing at or before t=0
	assert.Equal(t, at(0), got[0].Timestamp)
	assert.Nil(t, got[0].RateOfChange)
	assert.False(t, got[0].VolatilityBlocked)

	// exact match
	assert.Equal(t, at(8), got[1].Timestamp)
	require.NotNil(t, got[1].RateOfChange)
	assert.Equal(t, 1.5, *got[1].RateOfChange)
	assert.True(t, got[1].VolatilityBlocked)

	// most recent earlier bar, never the later one
	assert.Equal(t, at(16), got[2].Timestamp)
	require.NotNil(t, got[2].RateOfChange)
	assert.Equal(t, -0.01, *got[2].RateOfChange)
	assert.False(t, got[2].VolatilityBlocked)
}

func TestAlignExcludesPartialInstruments(t *testing.T) {
	funding := []model.FundingObservation{
		{Instrument: "ETH", Timestamp: at(0), FundingRate: 0.0001},
		{Instrument: "BTC", Timestamp: at(0), FundingRate: 0.0001},
		{Instrument: "DOGE", Timestamp: at(0), FundingRate: 0.0001},
	}
	vol := []model.VolatilityObservation{
		{Instrument: "BTC", Timestamp: at(0)},
		{Instrument: "ETH", Timestamp: at(0)},
		{Instrument: "SOL", Timestamp: at(0)},
	}

	got, err := Align(funding, vol)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC", got[0].Instrument)
	assert.Equal(t, "ETH", got[1].Instrument)
}

func TestAlignDataErrors(t *testing.T) {
	f := []model.FundingObservation{{Instrument: "BTC", Timestamp: at(0)}}
	v := []model.VolatilityObservation{{Instrument: "ETH", Timestamp: at(0)}}

	cases := map[string]struct {
		funding []model.FundingObservation
		vol     []model.VolatilityObservation
	}{
		"empty funding":    {nil, v},
		"empty volatility": {f, nil},
		"no overlap":       {f, v},
		"missing instrument": {
			[]model.FundingObservation{{Timestamp: at(0)}}, v,
		},
		"missing timestamp": {
			[]model.FundingObservation{{Instrument: "BTC"}}, v,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Align(tc.funding, tc.vol)
			require.Error(t, err)
			assert.True(t, model.IsDataError(err), "got %v", err)
		})
	}
}
