package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"fundcarry/internal/metrics"
	"fundcarry/internal/model"
	"fundcarry/logger"
)

// Grid sweeps the cartesian product of thresholds and confirm lengths over a
// set of aligned events.
type Grid struct {
	Thresholds    []float64
	ConfirmNs     []int
	Ledger        LedgerParams
	Annualization float64
	// Workers bounds the pool; zero means GOMAXPROCS.
	Workers int
}

// Combo is one (threshold, confirm_n) parameter pair.
type Combo struct {
	MinAbsFunding float64
	ConfirmN      int
}

// Combos lists the parameter pairs in sweep order: threshold-major, then
// confirm_n, both in the order given.
func (g *Grid) Combos() []Combo {
	out := make([]Combo, 0, len(g.Thresholds)*len(g.ConfirmNs))
	for _, th := range g.Thresholds {
		for _, n := range g.ConfirmNs {
			out = append(out, Combo{MinAbsFunding: th, ConfirmN: n})
		}
	}
	return out
}

func (g *Grid) Validate() error {
	if len(g.Thresholds) == 0 {
		return fmt.Errorf("threshold list is empty: %w", model.ErrInvalidParameter)
	}
	if len(g.ConfirmNs) == 0 {
		return fmt.Errorf("confirm_n list is empty: %w", model.ErrInvalidParameter)
	}
	for _, c := range g.Combos() {
		if err := (SignalParams{MinAbsFunding: c.MinAbsFunding, ConfirmN: c.ConfirmN}).Validate(); err != nil {
			return err
		}
	}
	if g.Annualization < 0 {
		return fmt.Errorf("annualization %v must be >= 0: %w", g.Annualization, model.ErrInvalidParameter)
	}
	return g.Ledger.Validate()
}

// Run evaluates every combo for every instrument and returns one row per
// (combo, instrument) that produced a summary. Rows are ordered by combo, then
// instrument. Jobs are independent; cancelling ctx stops the sweep.
func (g *Grid) Run(ctx context.Context, events []model.AlignedEvent) ([]model.GridResultRow, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, model.NewDataError("grid", "no aligned events")
	}
	segs, err := segments(events)
	if err != nil {
		return nil, err
	}
	segs = sortSegments(segs)

	log := logger.GetLogger().WithComponent("grid")
	start := time.Now()

	combos := g.Combos()
	total := len(combos) * len(segs)
	slots := make([]*model.SummaryRow, total)

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > total {
		workers = total
	}

	log.WithFields(logger.Fields{
		"combos":      len(combos),
		"instruments": len(segs),
		"workers":     workers,
	}).Info("starting parameter sweep")

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				c := combos[idx/len(segs)]
				s := segs[idx%len(segs)]
				row, err := g.evaluate(events[s.lo:s.hi], c)
				if err != nil {
					errOnce.Do(func() { firstErr = fmt.Errorf("combo %+v, instrument %s: %w", c, s.instrument, err) })
					continue
				}
				slots[idx] = row
			}
		}()
	}

feed:
	for idx := 0; idx < total; idx++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("parameter sweep cancelled")
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	rows := make([]model.GridResultRow, 0, total)
	for idx, row := range slots {
		if row == nil {
			continue
		}
		c := combos[idx/len(segs)]
		rows = append(rows, model.GridResultRow{
			SummaryRow:    *row,
			MinAbsFunding: c.MinAbsFunding,
			ConfirmN:      c.ConfirmN,
		})
	}

	elapsed := time.Since(start)
	fields := logger.Fields{"instruments": len(segs)}
	metrics.EmitMetric(logger.GetLogger(), "grid", "combos_evaluated", len(combos), "counter", fields)
	metrics.EmitMetric(logger.GetLogger(), "grid", "result_rows", len(rows), "counter", fields)
	metrics.EmitMetric(logger.GetLogger(), "grid", "sweep_duration_ms", float64(elapsed.Milliseconds()), "gauge", logger.Fields{"unit": "ms"})
	metrics.ObserveSweep(len(combos), len(rows), elapsed)
	logger.LogPerformanceEntry(log, "grid", "sweep", elapsed, logger.Fields{
		"combos": len(combos),
		"rows":   len(rows),
	})
	return rows, nil
}

// evaluate runs signal generation, ledger and summary for a single
// instrument series and returns nil when no summary row results.
func (g *Grid) evaluate(series []model.AlignedEvent, c Combo) (*model.SummaryRow, error) {
	rows, err := RunSingle(series, SignalParams{MinAbsFunding: c.MinAbsFunding, ConfirmN: c.ConfirmN}, g.Ledger, g.Annualization)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// RunSingle runs Signal Generator, Ledger and Summarizer once over events.
func RunSingle(events []model.AlignedEvent, sp SignalParams, lp LedgerParams, annualization float64) ([]model.SummaryRow, error) {
	recs, err := GenerateSignals(events, sp)
	if err != nil {
		return nil, err
	}
	if err := ApplyLedger(recs, lp); err != nil {
		return nil, err
	}
	return Summarize(recs, lp.NotionalUSDT, annualization), nil
}

func sortSegments(segs []segment) []segment {
	out := append([]segment(nil), segs...)
	sort.Slice(out, func(i, j int) bool { return out[i].instrument < out[j].instrument })
	return out
}
