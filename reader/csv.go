package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fundcarry/internal/model"
	"fundcarry/internal/symbols"
	"fundcarry/logger"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// table is a header-indexed CSV file.
type table struct {
	path    string
	columns map[string]int
	rows    [][]string
}

func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.NewDataError("read_csv", "%s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	t := &table{path: path, columns: make(map[string]int, len(header))}
	for i, h := range header {
		t.columns[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, model.NewDataError("read_csv", "%s has no %s column", path, col)
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) get(row []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// timestamp combines the DATE and TIME cells of row in loc. Dotted dates
// (2025.12.01) are accepted.
func (t *table) timestamp(row []string, loc *time.Location) (time.Time, error) {
	date := strings.ReplaceAll(t.get(row, "DATE"), ".", "-")
	clock := t.get(row, "TIME")
	value := strings.TrimSpace(date + " " + clock)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func (t *table) instrument(row []string) string {
	if coin := strings.ToUpper(t.get(row, "COIN")); coin != "" {
		return coin
	}
	if sym := t.get(row, "SYMBOL"); sym != "" {
		return symbols.InstrumentID(sym, "")
	}
	return ""
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// LoadFundingCSV reads a funding dataset with COIN (or SYMBOL), DATE, TIME
// and FUNDING_RATE columns. Rows that cannot be parsed are dropped.
func LoadFundingCSV(path string, loc *time.Location) ([]model.FundingObservation, error) {
	t, err := readTable(path, "DATE", "TIME", "FUNDING_RATE")
	if err != nil {
		return nil, err
	}

	out := make([]model.FundingObservation, 0, len(t.rows))
	dropped := 0
	for _, row := range t.rows {
		inst := t.instrument(row)
		ts, err := t.timestamp(row, loc)
		if err != nil || inst == "" {
			dropped++
			continue
		}
		rate, err := parseNumber(t.get(row, "FUNDING_RATE"))
		if err != nil {
			dropped++
			continue
		}
		out = append(out, model.FundingObservation{Instrument: inst, Timestamp: ts.UTC(), FundingRate: rate})
	}

	reportLoad(path, "funding", len(out), dropped)
	return out, nil
}

// LoadKlinesCSV reads a kline dataset with COIN (or SYMBOL), INTERVAL, DATE,
// TIME and CLOSE columns. DATE/TIME is the bar open time.
func LoadKlinesCSV(path string, loc *time.Location) ([]model.Kline, error) {
	t, err := readTable(path, "INTERVAL", "DATE", "TIME", "CLOSE")
	if err != nil {
		return nil, err
	}

	out := make([]model.Kline, 0, len(t.rows))
	dropped := 0
	for _, row := range t.rows {
		inst := t.instrument(row)
		ts, err := t.timestamp(row, loc)
		if err != nil || inst == "" {
			dropped++
			continue
		}
		closePrice, err := parseNumber(t.get(row, "CLOSE"))
		if err != nil {
			dropped++
			continue
		}
		out = append(out, model.Kline{
			Instrument: inst,
			Symbol:     t.get(row, "SYMBOL"),
			Interval:   strings.ToUpper(t.get(row, "INTERVAL")),
			OpenTime:   ts.UTC(),
			Close:      closePrice,
		})
	}

	reportLoad(path, "kline", len(out), dropped)
	return out, nil
}

func reportLoad(path, dataType string, rows, dropped int) {
	log := logger.GetLogger().WithComponent("csv_reader")
	if dropped > 0 {
		log.WithFields(logger.Fields{
			"path":      path,
			"data_type": dataType,
			"dropped":   dropped,
		}).Warn("dropped unparseable rows")
	}
	logger.LogDataFlowEntry(log, path, dataType, rows, dataType)
}
