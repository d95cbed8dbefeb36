package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fundcarry/config"
	"fundcarry/internal/backtest"
	"fundcarry/internal/model"
	"fundcarry/logger"
	"fundcarry/processor"
	"fundcarry/reader"
	"fundcarry/writer"
)

// runBacktest loads both datasets, sweeps the parameter grid and writes the
// result table to every configured sink.
func runBacktest(ctx context.Context, cfg *config.Config) (string, []model.GridResultRow, error) {
	log := logger.GetLogger().WithComponent("backtest")

	loc, err := time.LoadLocation(cfg.Data.Timezone)
	if err != nil {
		return "", nil, fmt.Errorf("load timezone %q: %w", cfg.Data.Timezone, err)
	}

	events, err := prepareEvents(cfg, loc)
	if err != nil {
		return "", nil, err
	}

	thresholds, err := resolveThresholds(cfg.Backtest, events)
	if err != nil {
		return "", nil, err
	}

	grid := backtest.Grid{
		Thresholds: thresholds,
		ConfirmNs:  cfg.Backtest.ConfirmN,
		Ledger: backtest.LedgerParams{
			NotionalUSDT:    cfg.Backtest.NotionalUSDT,
			FeeBpsRoundtrip: cfg.Backtest.FeeBpsRoundtrip,
		},
		Annualization: backtest.AnnualizationFactor(cfg.Backtest.FundingInterval),
		Workers:       cfg.Backtest.Workers,
	}
	rows, err := grid.Run(ctx, events)
	if err != nil {
		return "", nil, err
	}

	runID := cfg.Output.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log.WithFields(logger.Fields{
		"run_id":     runID,
		"thresholds": len(thresholds),
		"confirm_n":  cfg.Backtest.ConfirmN,
		"rows":       len(rows),
	}).Info("parameter sweep finished")

	if err := writeResults(ctx, cfg, runID, rows); err != nil {
		return runID, rows, err
	}
	return runID, rows, nil
}

func prepareEvents(cfg *config.Config, loc *time.Location) ([]model.AlignedEvent, error) {
	funding, err := reader.LoadFunding(cfg.Data.FundingPath, loc)
	if err != nil {
		return nil, err
	}
	funding = reader.FilterInstruments(funding, cfg.Data.Instruments, func(f model.FundingObservation) string { return f.Instrument })
	funding, err = processor.CleanFunding(funding)
	if err != nil {
		return nil, err
	}

	klines, err := reader.LoadKlines(cfg.Data.KlinesPath, loc)
	if err != nil {
		return nil, err
	}
	klines = reader.FilterInstruments(klines, cfg.Data.Instruments, func(k model.Kline) string { return k.Instrument })
	vol, err := processor.BuildVolatility(klines, processor.VolatilityParams{
		Interval: cfg.Volatility.Interval,
		BlockAbs: cfg.Volatility.BlockAbs,
		Stamp:    cfg.Volatility.Stamp,
	})
	if err != nil {
		return nil, err
	}

	return backtest.Align(funding, vol)
}

// resolveThresholds prefers the explicit min_abs_funding list and falls back
// to quantiles of |funding_rate| over the aligned events.
func resolveThresholds(cfg config.BacktestConfig, events []model.AlignedEvent) ([]float64, error) {
	if len(cfg.MinAbsFunding) > 0 {
		return backtest.Dedupe(cfg.MinAbsFunding), nil
	}
	q := cfg.ThresholdQuantiles
	return backtest.QuantileThresholds(events, backtest.Linspace(q.From, q.To, q.Steps))
}

func writeResults(ctx context.Context, cfg *config.Config, runID string, rows []model.GridResultRow) error {
	out := cfg.Output

	if out.CSVPath != "" {
		if err := writer.WriteResultsCSV(out.CSVPath, rows); err != nil {
			return err
		}
	}
	if out.ParquetPath != "" {
		if err := writer.WriteResultsParquet(out.ParquetPath, rows, out.Compression); err != nil {
			return err
		}
	}

	if out.S3 {
		if err := uploadResults(ctx, cfg, runID, rows); err != nil {
			return err
		}
	}

	if out.Kafka {
		sink, err := writer.NewKafkaSink(cfg.Storage.Kafka)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.Write(ctx, runID, rows); err != nil {
			return err
		}
	}

	if out.Postgres.Enabled {
		sink, err := writer.NewPostgresSink(ctx, out.Postgres.DSN, out.Postgres.Table)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.Write(ctx, runID, rows); err != nil {
			return err
		}
	}
	return nil
}

func uploadResults(ctx context.Context, cfg *config.Config, runID string, rows []model.GridResultRow) error {
	up, err := writer.NewS3Uploader(ctx, cfg.Storage.S3, cfg.App.Version)
	if err != nil {
		return err
	}
	data, err := writer.ResultsParquet(rows, cfg.Output.Compression)
	if err != nil {
		return err
	}
	return up.Upload(ctx, up.ResultKey(runID, "parquet", time.Now()), data, "application/octet-stream")
}
