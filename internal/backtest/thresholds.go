package backtest

import (
	"fmt"
	"math"
	"sort"

	"fundcarry/internal/model"
)

// QuantileThresholds samples quantiles of |funding_rate| across all events
// using linear interpolation between order statistics, and returns the
// distinct values in ascending order.
func QuantileThresholds(events []model.AlignedEvent, quantiles []float64) ([]float64, error) {
	if len(events) == 0 {
		return nil, model.NewDataError("thresholds", "no events to sample")
	}
	abs := make([]float64, 0, len(events))
	for _, ev := range events {
		if math.IsNaN(ev.FundingRate) {
			continue
		}
		abs = append(abs, math.Abs(ev.FundingRate))
	}
	if len(abs) == 0 {
		return nil, model.NewDataError("thresholds", "no finite funding rates to sample")
	}
	sort.Float64s(abs)

	out := make([]float64, 0, len(quantiles))
	for _, q := range quantiles {
		if math.IsNaN(q) || q < 0 || q > 1 {
			return nil, fmt.Errorf("quantile %v outside [0,1]: %w", q, model.ErrInvalidParameter)
		}
		out = append(out, quantile(abs, q))
	}
	return Dedupe(out), nil
}

func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Dedupe sorts values ascending and drops repeats.
func Dedupe(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := sorted[:0]
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Linspace returns steps evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, steps int) []float64 {
	if steps <= 0 {
		return nil
	}
	if steps == 1 {
		return []float64{start}
	}
	out := make([]float64, steps)
	step := (stop - start) / float64(steps-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[steps-1] = stop
	return out
}
