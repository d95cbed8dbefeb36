package backtest

import (
	"fmt"
	"math"

	"fundcarry/internal/model"
)

// SignalParams configures entry decisions.
type SignalParams struct {
	// MinAbsFunding is the minimum |funding_rate| required to enter.
	MinAbsFunding float64
	// ConfirmN is the number of prior events that must share the current
	// funding sign.
	ConfirmN int
}

func (p SignalParams) Validate() error {
	if math.IsNaN(p.MinAbsFunding) || p.MinAbsFunding < 0 {
		return fmt.Errorf("min_abs_funding %v must be >= 0: %w", p.MinAbsFunding, model.ErrInvalidParameter)
	}
	if p.ConfirmN < 1 {
		return fmt.Errorf("confirm_n %d must be >= 1: %w", p.ConfirmN, model.ErrInvalidParameter)
	}
	return nil
}

// FundingSign classifies a funding rate. Zero counts as positive.
func FundingSign(rate float64) int {
	if rate >= 0 {
		return 1
	}
	return -1
}

// TargetPosition returns the carry position for an event: short when longs
// pay (rate > 0), long otherwise, flat when entry is not allowed.
func TargetPosition(rate float64, entryOK bool) int {
	if !entryOK {
		return 0
	}
	if rate > 0 {
		return -1
	}
	return 1
}

// GenerateSignals converts aligned events into signal records. Events must be
// grouped by instrument with strictly increasing timestamps inside a group,
// which is the order Align produces.
func GenerateSignals(events []model.AlignedEvent, p SignalParams) ([]model.SignalRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	segs, err := segments(events)
	if err != nil {
		return nil, err
	}

	out := make([]model.SignalRecord, len(events))
	for _, s := range segs {
		generateSeries(events[s.lo:s.hi], out[s.lo:s.hi], p)
	}
	return out, nil
}

// generateSeries handles one instrument. run counts how many consecutive
// events, ending at the current one, share its funding sign; persistence
// needs ConfirmN+1 of them.
func generateSeries(events []model.AlignedEvent, out []model.SignalRecord, p SignalParams) {
	run := 0
	prevSign := 0
	for i, ev := range events {
		sign := FundingSign(ev.FundingRate)
		if sign == prevSign {
			run++
		} else {
			run = 1
			prevSign = sign
		}

		rec := model.SignalRecord{AlignedEvent: ev}
		rec.AbsFunding = math.Abs(ev.FundingRate)
		rec.FundingSign = sign
		rec.PersistenceOK = run >= p.ConfirmN+1
		rec.EntryOK = rec.AbsFunding >= p.MinAbsFunding && rec.PersistenceOK && !ev.VolatilityBlocked
		rec.TargetPosition = TargetPosition(ev.FundingRate, rec.EntryOK)
		rec.Position = rec.TargetPosition
		out[i] = rec
	}
}

type segment struct {
	instrument string
	lo, hi     int
}

// segments splits an instrument-grouped sequence into contiguous
// per-instrument ranges and rejects interleaved or unordered input.
func segments(events []model.AlignedEvent) ([]segment, error) {
	var segs []segment
	seen := make(map[string]struct{})
	for i, ev := range events {
		if ev.Instrument == "" {
			return nil, model.NewDataError("signal", "event %d has no instrument_id", i)
		}
		if len(segs) > 0 && segs[len(segs)-1].instrument == ev.Instrument {
			prev := events[i-1]
			if !ev.Timestamp.After(prev.Timestamp) {
				return nil, model.NewDataError("signal", "events for %s are not strictly increasing at index %d", ev.Instrument, i)
			}
			segs[len(segs)-1].hi = i + 1
			continue
		}
		if _, dup := seen[ev.Instrument]; dup {
			return nil, model.NewDataError("signal", "events for %s are not contiguous (index %d)", ev.Instrument, i)
		}
		seen[ev.Instrument] = struct{}{}
		segs = append(segs, segment{instrument: ev.Instrument, lo: i, hi: i + 1})
	}
	return segs, nil
}
