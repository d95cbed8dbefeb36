package backtest

import (
	"fmt"
	"math"

	"fundcarry/internal/model"
)

// LedgerParams configures PnL accounting.
type LedgerParams struct {
	NotionalUSDT    float64
	FeeBpsRoundtrip float64
}

func (p LedgerParams) Validate() error {
	if math.IsNaN(p.NotionalUSDT) || p.NotionalUSDT <= 0 {
		return fmt.Errorf("notional_usdt %v must be > 0: %w", p.NotionalUSDT, model.ErrInvalidParameter)
	}
	if math.IsNaN(p.FeeBpsRoundtrip) || p.FeeBpsRoundtrip < 0 {
		return fmt.Errorf("fee_bps_roundtrip %v must be >= 0: %w", p.FeeBpsRoundtrip, model.ErrInvalidParameter)
	}
	return nil
}

// ApplyLedger fills turnover, funding/fee/net PnL and the compounded equity
// curve of every record in place. Records must be grouped by instrument.
func ApplyLedger(records []model.SignalRecord, p LedgerParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	fee := p.FeeBpsRoundtrip / 10000.0

	var (
		inst   string
		prev   int
		equity float64
	)
	for i := range records {
		r := &records[i]
		first := i == 0 || r.Instrument != inst
		if first {
			inst = r.Instrument
			prev = r.Position
			equity = 1.0
		}

		r.Turnover = math.Abs(float64(r.Position - prev))
		r.FundingPnL = p.NotionalUSDT * r.FundingRate * float64(-r.Position)
		r.FeePnL = -p.NotionalUSDT * fee * r.Turnover
		r.NetPnL = r.FundingPnL + r.FeePnL

		step := r.NetPnL / p.NotionalUSDT
		if math.IsNaN(step) {
			step = 0
		}
		equity *= 1 + step
		r.Equity = equity
		prev = r.Position
	}
	return nil
}
