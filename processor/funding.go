package processor

import (
	"math"
	"sort"
	"time"

	"fundcarry/internal/model"
	"fundcarry/logger"
)

// CleanFunding drops records without a usable rate, orders the set by
// (instrument, timestamp) and keeps the last record for every duplicate key.
func CleanFunding(obs []model.FundingObservation) ([]model.FundingObservation, error) {
	log := logger.GetLogger().WithComponent("processor")
	start := time.Now()

	kept := make([]model.FundingObservation, 0, len(obs))
	dropped := 0
	for _, o := range obs {
		if o.Instrument == "" || o.Timestamp.IsZero() || math.IsNaN(o.FundingRate) || math.IsInf(o.FundingRate, 0) {
			dropped++
			continue
		}
		kept = append(kept, o)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Instrument != kept[j].Instrument {
			return kept[i].Instrument < kept[j].Instrument
		}
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	out := kept[:0]
	for _, o := range kept {
		if n := len(out); n > 0 && out[n-1].Instrument == o.Instrument && out[n-1].Timestamp.Equal(o.Timestamp) {
			out[n-1] = o
			continue
		}
		out = append(out, o)
	}

	if len(out) == 0 {
		return nil, model.NewDataError("clean_funding", "funding set is empty after cleaning")
	}
	if dropped > 0 {
		log.WithFields(logger.Fields{"dropped": dropped}).Warn("dropped unusable funding records")
	}
	logger.LogPerformanceEntry(log, "processor", "clean_funding", time.Since(start), logger.Fields{
		"input":  len(obs),
		"output": len(out),
	})
	return out, nil
}
