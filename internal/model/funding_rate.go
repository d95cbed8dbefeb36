package model

import "time"

// FundingObservation is one funding settlement of a perpetual contract.
// Unique per (Instrument, Timestamp).
type FundingObservation struct {
	Instrument  string    `json:"instrument_id"`
	Timestamp   time.Time `json:"timestamp"`
	FundingRate float64   `json:"funding_rate"`
}

// Kline is a closed price bar used to derive volatility observations.
type Kline struct {
	Instrument string    `json:"instrument_id"`
	Symbol     string    `json:"symbol"`
	Interval   string    `json:"interval"`
	OpenTime   time.Time `json:"open_time"`
	Close      float64   `json:"close"`
}

// VolatilityObservation carries the fractional close-to-close change of a bar
// and whether that change breaches the configured absolute threshold.
// RateOfChange is nil for the first bar of an instrument.
type VolatilityObservation struct {
	Instrument        string    `json:"instrument_id"`
	Timestamp         time.Time `json:"timestamp"`
	RateOfChange      *float64  `json:"rate_of_change"`
	VolatilityBlocked bool      `json:"volatility_blocked"`
}
