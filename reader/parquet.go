package reader

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	preader "github.com/xitongsys/parquet-go/reader"

	"fundcarry/internal/model"
)

// LoadFundingParquet reads a funding dataset written in the
// model.FundingParquetRecord layout.
func LoadFundingParquet(path string) ([]model.FundingObservation, error) {
	var recs []model.FundingParquetRecord
	if err := readParquet(path, new(model.FundingParquetRecord), &recs); err != nil {
		return nil, err
	}
	out := make([]model.FundingObservation, len(recs))
	for i, r := range recs {
		out[i] = r.Observation()
	}
	reportLoad(path, "funding", len(out), 0)
	return out, nil
}

// LoadKlinesParquet reads a kline dataset written in the
// model.KlineParquetRecord layout.
func LoadKlinesParquet(path string) ([]model.Kline, error) {
	var recs []model.KlineParquetRecord
	if err := readParquet(path, new(model.KlineParquetRecord), &recs); err != nil {
		return nil, err
	}
	out := make([]model.Kline, len(recs))
	for i, r := range recs {
		out[i] = r.Kline()
	}
	reportLoad(path, "kline", len(out), 0)
	return out, nil
}

func readParquet[T any](path string, schema interface{}, dst *[]T) error {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := preader.NewParquetReader(fr, schema, 1)
	if err != nil {
		return fmt.Errorf("parquet reader for %s: %w", path, err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	*dst = make([]T, n)
	if n == 0 {
		return nil
	}
	if err := pr.Read(dst); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
