package model

import "time"

// AlignedEvent is a funding observation joined with the latest volatility
// observation at or before it for the same instrument.
type AlignedEvent struct {
	Instrument        string    `json:"instrument_id"`
	Timestamp         time.Time `json:"timestamp"`
	FundingRate       float64   `json:"funding_rate"`
	RateOfChange      *float64  `json:"rate_of_change"`
	VolatilityBlocked bool      `json:"volatility_blocked"`
}

// SignalRecord is an AlignedEvent after signal generation and ledger
// accounting for one parameter combination.
type SignalRecord struct {
	AlignedEvent

	AbsFunding     float64 `json:"abs_funding"`
	FundingSign    int     `json:"funding_sign"`
	PersistenceOK  bool    `json:"persistence_ok"`
	EntryOK        bool    `json:"entry_ok"`
	TargetPosition int     `json:"target_position"`
	Position       int     `json:"position"`

	Turnover   float64 `json:"turnover"`
	FundingPnL float64 `json:"funding_pnl"`
	FeePnL     float64 `json:"fee_pnl"`
	NetPnL     float64 `json:"net_pnl"`
	Equity     float64 `json:"equity"`
}
