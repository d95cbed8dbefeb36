package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fundcarry/config"
	"fundcarry/internal/model"
	"fundcarry/logger"
	"fundcarry/reader"
	"fundcarry/reader/binance"
	"fundcarry/writer"
)

var boundLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// futuresLaunch predates the first USDT-M funding settlement.
var futuresLaunch = time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC)

// parseBound reads a collector start/end value in loc. An empty value yields
// fallback.
func parseBound(value string, loc *time.Location, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}

// runCollect downloads funding and kline history for every configured
// symbol into the data paths the backtest reads from. CSV targets are
// appended per symbol; parquet targets are written once at the end.
func runCollect(ctx context.Context, cfg *config.Config, log *logger.Log) error {
	entry := log.WithComponent("collect")

	loc, err := time.LoadLocation(cfg.Data.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Data.Timezone, err)
	}
	start, err := parseBound(cfg.Collector.Start, loc, futuresLaunch)
	if err != nil {
		return fmt.Errorf("collector.start: %w", err)
	}
	end, err := parseBound(cfg.Collector.End, loc, time.Now())
	if err != nil {
		return fmt.Errorf("collector.end: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("collector.start %s must be before collector.end %s", start, end)
	}

	c := binance.New(cfg.Collector)
	syms, err := c.Symbols(ctx, cfg.Collector.Symbols)
	if err != nil {
		return err
	}

	fundingParquet := reader.IsParquet(cfg.Data.FundingPath)
	klinesParquet := reader.IsParquet(cfg.Data.KlinesPath)
	var allFunding []model.FundingObservation
	var allKlines []model.Kline

	for _, sym := range syms {
		funding, err := c.FetchFunding(ctx, sym, start, end)
		if err != nil {
			return err
		}
		if fundingParquet {
			allFunding = append(allFunding, funding...)
		} else if err := writer.AppendFundingCSV(cfg.Data.FundingPath, funding, cfg.Collector.Quote, loc); err != nil {
			return err
		}

		for _, interval := range cfg.Collector.KlineIntervals {
			klines, err := c.FetchKlines(ctx, sym, interval, start, end)
			if err != nil {
				return err
			}
			if klinesParquet {
				allKlines = append(allKlines, klines...)
			} else if err := writer.AppendKlinesCSV(cfg.Data.KlinesPath, klines, loc); err != nil {
				return err
			}
		}

		entry.WithFields(logger.Fields{"symbol": sym, "funding_events": len(funding)}).Info("symbol collected")
	}

	if fundingParquet {
		if err := writer.WriteFundingParquet(cfg.Data.FundingPath, allFunding, cfg.Output.Compression); err != nil {
			return err
		}
	}
	if klinesParquet {
		if err := writer.WriteKlinesParquet(cfg.Data.KlinesPath, allKlines, cfg.Output.Compression); err != nil {
			return err
		}
	}

	entry.WithFields(logger.Fields{"symbols": len(syms)}).Info("collection finished")
	return nil
}
