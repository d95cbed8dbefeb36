package writer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"fundcarry/internal/model"
	"fundcarry/logger"
)

// PostgresSink upserts grid results into a table keyed by
// (run_id, instrument_id, min_abs_funding, confirm_n).
type PostgresSink struct {
	db    *sql.DB
	table string
	log   *logger.Log
}

// NewPostgresSink opens the database, checks the connection and creates the
// results table when it does not exist.
func NewPostgresSink(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	if table == "" {
		table = "grid_results"
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	sink := &PostgresSink{db: db, table: table, log: logger.GetLogger()}
	if _, err := db.ExecContext(ctx, createTableSQL(table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	return sink, nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL,
			instrument_id TEXT NOT NULL,
			min_abs_funding DOUBLE PRECISION NOT NULL,
			confirm_n INTEGER NOT NULL,
			n_funding_events INTEGER NOT NULL,
			n_turns INTEGER NOT NULL,
			cumulative_return DOUBLE PRECISION NOT NULL,
			sharpe_approx DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (run_id, instrument_id, min_abs_funding, confirm_n)
		)`, pq.QuoteIdentifier(table))
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			run_id, instrument_id, min_abs_funding, confirm_n,
			n_funding_events, n_turns, cumulative_return, sharpe_approx
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, instrument_id, min_abs_funding, confirm_n)
		DO UPDATE SET
			n_funding_events = EXCLUDED.n_funding_events,
			n_turns = EXCLUDED.n_turns,
			cumulative_return = EXCLUDED.cumulative_return,
			sharpe_approx = EXCLUDED.sharpe_approx`, pq.QuoteIdentifier(table))
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// Write upserts rows for runID in a single transaction.
func (p *PostgresSink) Write(ctx context.Context, runID string, rows []model.GridResultRow) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL(p.table))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			runID, r.Instrument, r.MinAbsFunding, r.ConfirmN,
			r.NFundingEvents, r.NTurns, r.CumulativeReturn, nullFloat(r.SharpeApprox),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", r.Instrument, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.LogDataFlowEntry(p.log.WithComponent("postgres_writer"), "grid", p.table, len(rows), "grid_result")
	return nil
}

func (p *PostgresSink) Close() error {
	return p.db.Close()
}
