package backtest

import (
	"math"
	"sort"
	"time"

	"fundcarry/internal/model"
)

const daysPerYear = 365

// AnnualizationFactor returns the number of funding settlements per year for
// the given settlement interval, e.g. 1095 for 8h.
func AnnualizationFactor(fundingInterval time.Duration) float64 {
	if fundingInterval <= 0 {
		return 0
	}
	perDay := float64(24*time.Hour) / float64(fundingInterval)
	return daysPerYear * perDay
}

// Summarize reduces ledger records to one SummaryRow per instrument, in
// ascending instrument order. Instruments without a defined net PnL are
// omitted.
func Summarize(records []model.SignalRecord, notional, annualization float64) []model.SummaryRow {
	by := make(map[string][]float64)
	turns := make(map[string]int)
	for _, r := range records {
		if math.IsNaN(r.NetPnL) {
			continue
		}
		by[r.Instrument] = append(by[r.Instrument], r.NetPnL/notional)
		if r.Turnover > 0 {
			turns[r.Instrument]++
		}
	}

	instruments := make([]string, 0, len(by))
	for inst := range by {
		instruments = append(instruments, inst)
	}
	sort.Strings(instruments)

	out := make([]model.SummaryRow, 0, len(instruments))
	for _, inst := range instruments {
		returns := by[inst]
		out = append(out, model.SummaryRow{
			Instrument:       inst,
			NFundingEvents:   len(returns),
			NTurns:           turns[inst],
			CumulativeReturn: compound(returns) - 1,
			SharpeApprox:     sharpe(returns, annualization),
		})
	}
	return out
}

func compound(returns []float64) float64 {
	prod := 1.0
	for _, r := range returns {
		prod *= 1 + r
	}
	return prod
}

// sharpe is mean/population-stddev scaled by sqrt(annualization). It is nil
// when the deviation is zero or not a number.
func sharpe(returns []float64, annualization float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(returns)))
	if math.IsNaN(std) || std <= 0 {
		return nil
	}
	v := mean / std * math.Sqrt(annualization)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
