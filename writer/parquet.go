package writer

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"fundcarry/internal/model"
)

// memFile collects a parquet stream in memory so it can be uploaded in one
// request.
type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy", "":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// ResultsParquet encodes grid results as a parquet file held in memory.
func ResultsParquet(rows []model.GridResultRow, compression string) ([]byte, error) {
	mem := newMemFile()
	records := make([]interface{}, len(rows))
	for i, r := range rows {
		records[i] = r.ParquetRecord()
	}
	if err := writeParquet(mem, new(model.ResultParquetRecord), records, compression); err != nil {
		return nil, fmt.Errorf("encode results parquet: %w", err)
	}
	return mem.Bytes(), nil
}

// WriteResultsParquet writes ResultsParquet output to path.
func WriteResultsParquet(path string, rows []model.GridResultRow, compression string) error {
	data, err := ResultsParquet(rows, compression)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteFundingParquet stores a funding dataset at path.
func WriteFundingParquet(path string, obs []model.FundingObservation, compression string) error {
	records := make([]interface{}, len(obs))
	for i, o := range obs {
		records[i] = o.ParquetRecord()
	}
	return writeParquetFile(path, new(model.FundingParquetRecord), records, compression)
}

// WriteKlinesParquet stores a kline dataset at path.
func WriteKlinesParquet(path string, klines []model.Kline, compression string) error {
	records := make([]interface{}, len(klines))
	for i, k := range klines {
		records[i] = k.ParquetRecord()
	}
	return writeParquetFile(path, new(model.KlineParquetRecord), records, compression)
}

func writeParquetFile(path string, schema interface{}, records []interface{}, compression string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file %s: %w", path, err)
	}
	if err := writeParquet(fw, schema, records, compression); err != nil {
		fw.Close()
		return fmt.Errorf("write parquet file %s: %w", path, err)
	}
	return fw.Close()
}

func writeParquet(pf source.ParquetFile, schema interface{}, records []interface{}, compression string) error {
	pw, err := writer.NewParquetWriter(pf, schema, 1)
	if err != nil {
		return fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return nil
}
