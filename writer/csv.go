package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"fundcarry/internal/model"
	"fundcarry/logger"
)

// Column layouts of the collected datasets. The reader accepts the same
// headers.
var (
	FundingColumns = []string{"COIN", "SYMBOL", "DATE", "TIME", "FUNDING_RATE"}
	KlineColumns   = []string{"COIN", "SYMBOL", "INTERVAL", "DATE", "TIME", "CLOSE"}
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// WriteResultsCSV writes the grid result table to path, replacing any
// existing file. An undefined sharpe_approx is written as an empty cell.
func WriteResultsCSV(path string, rows []model.GridResultRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(model.ResultColumns); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}
	for _, r := range rows {
		sharpe := ""
		if r.SharpeApprox != nil {
			sharpe = formatFloat(*r.SharpeApprox)
		}
		rec := []string{
			r.Instrument,
			formatFloat(r.MinAbsFunding),
			strconv.Itoa(r.ConfirmN),
			strconv.Itoa(r.NFundingEvents),
			strconv.Itoa(r.NTurns),
			formatFloat(r.CumulativeReturn),
			sharpe,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write results row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush results csv: %w", err)
	}

	logger.LogDataFlowEntry(logger.GetLogger().WithComponent("csv_writer"), "grid", path, len(rows), "grid_result")
	return f.Close()
}

// AppendFundingCSV appends funding observations to path, writing the header
// only when the file is created. DATE and TIME are rendered in loc.
func AppendFundingCSV(path string, obs []model.FundingObservation, quote string, loc *time.Location) error {
	records := make([][]string, len(obs))
	for i, o := range obs {
		ts := o.Timestamp.In(loc)
		records[i] = []string{
			o.Instrument,
			o.Instrument + quote,
			ts.Format(dateLayout),
			ts.Format(timeLayout),
			decimal.NewFromFloat(o.FundingRate).String(),
		}
	}
	return appendCSV(path, FundingColumns, records, "funding")
}

// AppendKlinesCSV appends klines to path in the KlineColumns layout.
func AppendKlinesCSV(path string, klines []model.Kline, loc *time.Location) error {
	records := make([][]string, len(klines))
	for i, k := range klines {
		ts := k.OpenTime.In(loc)
		records[i] = []string{
			k.Instrument,
			k.Symbol,
			k.Interval,
			ts.Format(dateLayout),
			ts.Format(timeLayout),
			decimal.NewFromFloat(k.Close).String(),
		}
	}
	return appendCSV(path, KlineColumns, records, "kline")
}

func appendCSV(path string, header []string, records [][]string, dataType string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	newFile := false
	if st, err := os.Stat(path); os.IsNotExist(err) || (err == nil && st.Size() == 0) {
		newFile = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write %s header: %w", dataType, err)
		}
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("append %s rows: %w", dataType, err)
	}

	logger.LogDataFlowEntry(logger.GetLogger().WithComponent("csv_writer"), "collector", path, len(records), dataType)
	return f.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
