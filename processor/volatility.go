package processor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"fundcarry/internal/model"
	"fundcarry/logger"
)

// Bar stamping modes.
const (
	StampClose = "close"
	StampOpen  = "open"
)

// VolatilityParams configures BuildVolatility.
type VolatilityParams struct {
	Interval string
	// BlockAbs is the absolute rate of change at or above which a bar blocks entries.
	BlockAbs float64
	// Stamp selects the bar timestamp: StampClose (default) or StampOpen.
	Stamp string
}

// BuildVolatility turns klines of the configured interval into per-instrument
// rate-of-change observations. The first bar of each instrument has no rate
// of change and never blocks.
func BuildVolatility(klines []model.Kline, p VolatilityParams) ([]model.VolatilityObservation, error) {
	width, err := ParseInterval(p.Interval)
	if err != nil {
		return nil, fmt.Errorf("volatility interval: %w", model.ErrInvalidParameter)
	}
	if math.IsNaN(p.BlockAbs) || p.BlockAbs < 0 {
		return nil, fmt.Errorf("block_abs %v must be >= 0: %w", p.BlockAbs, model.ErrInvalidParameter)
	}
	var shift time.Duration
	switch strings.ToLower(p.Stamp) {
	case "", StampClose:
		shift = width
	case StampOpen:
	default:
		return nil, fmt.Errorf("unknown stamp mode %q: %w", p.Stamp, model.ErrInvalidParameter)
	}

	log := logger.GetLogger().WithComponent("processor")

	bars := make([]model.Kline, 0, len(klines))
	for _, k := range klines {
		if !strings.EqualFold(k.Interval, p.Interval) {
			continue
		}
		if k.Instrument == "" || k.OpenTime.IsZero() || math.IsNaN(k.Close) || math.IsInf(k.Close, 0) {
			continue
		}
		bars = append(bars, k)
	}
	if len(bars) == 0 {
		return nil, model.NewDataError("build_volatility", "no %s klines available", p.Interval)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Instrument != bars[j].Instrument {
			return bars[i].Instrument < bars[j].Instrument
		}
		return bars[i].OpenTime.Before(bars[j].OpenTime)
	})
	uniq := bars[:0]
	for _, k := range bars {
		if n := len(uniq); n > 0 && uniq[n-1].Instrument == k.Instrument && uniq[n-1].OpenTime.Equal(k.OpenTime) {
			uniq[n-1] = k
			continue
		}
		uniq = append(uniq, k)
	}

	out := make([]model.VolatilityObservation, len(uniq))
	blocked := 0
	for i, k := range uniq {
		v := model.VolatilityObservation{Instrument: k.Instrument, Timestamp: k.OpenTime.Add(shift)}
		if i > 0 && uniq[i-1].Instrument == k.Instrument {
			prev := uniq[i-1].Close
			roc := k.Close/prev - 1
			if prev != 0 && !math.IsNaN(roc) && !math.IsInf(roc, 0) {
				v.RateOfChange = model.Float(roc)
				v.VolatilityBlocked = math.Abs(roc) >= p.BlockAbs
			}
		}
		if v.VolatilityBlocked {
			blocked++
		}
		out[i] = v
	}

	log.WithFields(logger.Fields{
		"interval": p.Interval,
		"bars":     len(out),
		"blocked":  blocked,
	}).Info("volatility series built")
	return out, nil
}
