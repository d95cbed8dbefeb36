package backtest

import (
	"time"

	"fundcarry/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return t0.Add(time.Duration(hours) * time.Hour)
}

// series builds aligned events for one instrument spaced 8h apart.
func series(inst string, rates ...float64) []model.AlignedEvent {
	out := make([]model.AlignedEvent, len(rates))
	for i, r := range rates {
		out[i] = model.AlignedEvent{Instrument: inst, Timestamp: at(8 * i), FundingRate: r}
	}
	return out
}
