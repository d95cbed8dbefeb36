package backtest

import (
	"math"
	"sort"
	"time"

	"fundcarry/internal/model"
	"fundcarry/logger"
)

// Align joins every funding observation with the most recent volatility
// observation of the same instrument whose timestamp is at or before the
// funding timestamp. Instruments missing from either set are skipped.
//
// The output is ordered by instrument, then timestamp.
func Align(funding []model.FundingObservation, volatility []model.VolatilityObservation) ([]model.AlignedEvent, error) {
	if len(funding) == 0 {
		return nil, model.NewDataError("align", "funding set is empty")
	}
	if len(volatility) == 0 {
		return nil, model.NewDataError("align", "volatility set is empty")
	}

	fundingBy, err := groupFunding(funding)
	if err != nil {
		return nil, err
	}
	volBy, err := groupVolatility(volatility)
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger().WithComponent("aligner")

	instruments := make([]string, 0, len(fundingBy))
	for inst := range fundingBy {
		if _, ok := volBy[inst]; !ok {
			log.WithFields(logger.Fields{"instrument_id": inst, "missing": "volatility"}).Info("instrument excluded")
			continue
		}
		instruments = append(instruments, inst)
	}
	for inst := range volBy {
		if _, ok := fundingBy[inst]; !ok {
			log.WithFields(logger.Fields{"instrument_id": inst, "missing": "funding"}).Info("instrument excluded")
		}
	}
	if len(instruments) == 0 {
		return nil, model.NewDataError("align", "no overlapping instruments between funding and volatility sets")
	}
	sort.Strings(instruments)

	out := make([]model.AlignedEvent, 0, len(funding))
	for _, inst := range instruments {
		out = mergeAsOf(out, fundingBy[inst], volBy[inst])
	}

	logger.LogDataFlowEntry(log, "funding+volatility", "aligned_events", len(out), "aligned_event")
	return out, nil
}

// mergeAsOf walks both per-instrument series once. j always points at the
// first volatility observation strictly after the current funding timestamp.
func mergeAsOf(out []model.AlignedEvent, funding []model.FundingObservation, vol []model.VolatilityObservation) []model.AlignedEvent {
	j := 0
	for _, f := range funding {
		for j < len(vol) && !vol[j].Timestamp.After(f.Timestamp) {
			j++
		}
		ev := model.AlignedEvent{
			Instrument:  f.Instrument,
			Timestamp:   f.Timestamp,
			FundingRate: f.FundingRate,
		}
		if j > 0 {
			v := vol[j-1]
			ev.VolatilityBlocked = v.VolatilityBlocked
			if v.RateOfChange != nil {
				ev.RateOfChange = model.Float(*v.RateOfChange)
			}
		}
		out = append(out, ev)
	}
	return out
}

func groupFunding(funding []model.FundingObservation) (map[string][]model.FundingObservation, error) {
	by := make(map[string][]model.FundingObservation)
	for i, f := range funding {
		if err := checkRecord("funding", i, f.Instrument, f.Timestamp); err != nil {
			return nil, err
		}
		if math.IsNaN(f.FundingRate) || math.IsInf(f.FundingRate, 0) {
			return nil, model.NewDataError("align", "funding record %d (%s) has non-finite funding_rate", i, f.Instrument)
		}
		by[f.Instrument] = append(by[f.Instrument], f)
	}
	for _, series := range by {
		sort.SliceStable(series, func(a, b int) bool { return series[a].Timestamp.Before(series[b].Timestamp) })
	}
	return by, nil
}

func groupVolatility(vol []model.VolatilityObservation) (map[string][]model.VolatilityObservation, error) {
	by := make(map[string][]model.VolatilityObservation)
	for i, v := range vol {
		if err := checkRecord("volatility", i, v.Instrument, v.Timestamp); err != nil {
			return nil, err
		}
		by[v.Instrument] = append(by[v.Instrument], v)
	}
	for _, series := range by {
		sort.SliceStable(series, func(a, b int) bool { return series[a].Timestamp.Before(series[b].Timestamp) })
	}
	return by, nil
}

func checkRecord(set string, i int, instrument string, ts time.Time) error {
	if instrument == "" {
		return model.NewDataError("align", "%s record %d has no instrument_id", set, i)
	}
	if ts.IsZero() {
		return model.NewDataError("align", "%s record %d (%s) has no timestamp", set, i, instrument)
	}
	return nil
}
