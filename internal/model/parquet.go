package model

import "time"

// FundingParquetRecord is the on-disk parquet layout of a funding dataset.
type FundingParquetRecord struct {
	Instrument  string  `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp   int64   `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	FundingRate float64 `parquet:"name=funding_rate, type=DOUBLE"`
}

// KlineParquetRecord is the on-disk parquet layout of a kline dataset.
type KlineParquetRecord struct {
	Instrument string  `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol     string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Interval   string  `parquet:"name=interval, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpenTime   int64   `parquet:"name=open_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Close      float64 `parquet:"name=close, type=DOUBLE"`
}

// ResultParquetRecord is one grid result row in parquet form.
type ResultParquetRecord struct {
	Instrument       string   `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	MinAbsFunding    float64  `parquet:"name=min_abs_funding, type=DOUBLE"`
	ConfirmN         int64    `parquet:"name=confirm_n, type=INT64"`
	NFundingEvents   int64    `parquet:"name=n_funding_events, type=INT64"`
	NTurns           int64    `parquet:"name=n_turns, type=INT64"`
	CumulativeReturn float64  `parquet:"name=cumulative_return, type=DOUBLE"`
	SharpeApprox     *float64 `parquet:"name=sharpe_approx, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func (f FundingObservation) ParquetRecord() FundingParquetRecord {
	return FundingParquetRecord{Instrument: f.Instrument, Timestamp: f.Timestamp.UnixMilli(), FundingRate: f.FundingRate}
}

func (r FundingParquetRecord) Observation() FundingObservation {
	return FundingObservation{Instrument: r.Instrument, Timestamp: time.UnixMilli(r.Timestamp).UTC(), FundingRate: r.FundingRate}
}

func (k Kline) ParquetRecord() KlineParquetRecord {
	return KlineParquetRecord{Instrument: k.Instrument, Symbol: k.Symbol, Interval: k.Interval, OpenTime: k.OpenTime.UnixMilli(), Close: k.Close}
}

func (r KlineParquetRecord) Kline() Kline {
	return Kline{Instrument: r.Instrument, Symbol: r.Symbol, Interval: r.Interval, OpenTime: time.UnixMilli(r.OpenTime).UTC(), Close: r.Close}
}

func (g GridResultRow) ParquetRecord() ResultParquetRecord {
	rec := ResultParquetRecord{
		Instrument:       g.Instrument,
		MinAbsFunding:    g.MinAbsFunding,
		ConfirmN:         int64(g.ConfirmN),
		NFundingEvents:   int64(g.NFundingEvents),
		NTurns:           int64(g.NTurns),
		CumulativeReturn: g.CumulativeReturn,
	}
	if g.SharpeApprox != nil {
		rec.SharpeApprox = Float(*g.SharpeApprox)
	}
	return rec
}
