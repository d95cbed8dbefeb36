package reader

import (
	"path/filepath"
	"strings"
	"time"

	"fundcarry/internal/model"
)

// LoadFunding picks the parquet or CSV loader from the file extension.
func LoadFunding(path string, loc *time.Location) ([]model.FundingObservation, error) {
	if IsParquet(path) {
		return LoadFundingParquet(path)
	}
	return LoadFundingCSV(path, loc)
}

// LoadKlines picks the parquet or CSV loader from the file extension.
func LoadKlines(path string, loc *time.Location) ([]model.Kline, error) {
	if IsParquet(path) {
		return LoadKlinesParquet(path)
	}
	return LoadKlinesCSV(path, loc)
}

// FilterInstruments keeps only the listed instruments; an empty list keeps
// everything.
func FilterInstruments[T any](records []T, instruments []string, id func(T) string) []T {
	if len(instruments) == 0 {
		return records
	}
	keep := make(map[string]struct{}, len(instruments))
	for _, inst := range instruments {
		keep[strings.ToUpper(strings.TrimSpace(inst))] = struct{}{}
	}
	out := records[:0:0]
	for _, r := range records {
		if _, ok := keep[id(r)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// IsParquet reports whether path names a parquet file.
func IsParquet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}
