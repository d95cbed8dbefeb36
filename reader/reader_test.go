package reader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fundcarry/internal/model"
	"fundcarry/writer"
)

var kst = time.FixedZone("KST", 9*3600)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFundingCSV(t *testing.T) {
	path := writeFile(t, "funding.csv", `COIN,SYMBOL,INTERVAL,DATE,TIME,FUNDING_RATE
BTC,BTCUSDT,8h,2025.12.01,09:00:00,0.0001
,ETHUSDT,8h,2025-12-01,09:00,-0.00025
BTC,BTCUSDT,8h,not-a-date,09:00:00,0.0001
BTC,BTCUSDT,8h,2025-12-01,17:00:00,abc
`)

	out, err := LoadFundingCSV(path, kst)
	if err != nil {
		t.Fatalf("LoadFundingCSV: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	want := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	if out[0].Instrument != "BTC" || !out[0].Timestamp.Equal(want) || out[0].FundingRate != 0.0001 {
		t.Fatalf("unexpected first row: %+v", out[0])
	}
	if out[1].Instrument != "ETH" || out[1].FundingRate != -0.00025 {
		t.Fatalf("instrument must fall back to SYMBOL: %+v", out[1])
	}
}

func TestLoadFundingCSVMissingColumn(t *testing.T) {
	path := writeFile(t, "funding.csv", "COIN,DATE,TIME\nBTC,2025-12-01,09:00\n")
	if _, err := LoadFundingCSV(path, kst); !model.IsDataError(err) {
		t.Fatalf("expected data error, got %v", err)
	}
}

func TestLoadKlinesCSV(t *testing.T) {
	path := writeFile(t, "klines.csv", `coin,interval,date,time,close
SOL,4h,2025-12-01,01:00:00,231.4
SOL,4H,2025-12-01,05:00:00,
`)

	out, err := LoadKlinesCSV(path, time.UTC)
	if err != nil {
		t.Fatalf("LoadKlinesCSV: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if out[0].Interval != "4H" || out[0].Close != 231.4 || out[0].OpenTime.Hour() != 1 {
		t.Fatalf("unexpected row: %+v", out[0])
	}
}

func TestCSVRoundTripWithWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funding.csv")
	obs := []model.FundingObservation{
		{Instrument: "XRP", Timestamp: time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC), FundingRate: 0.000125},
	}
	if err := writer.AppendFundingCSV(path, obs, "USDT", kst); err != nil {
		t.Fatalf("AppendFundingCSV: %v", err)
	}

	out, err := LoadFunding(path, kst)
	if err != nil {
		t.Fatalf("LoadFunding: %v", err)
	}
	if len(out) != 1 || !sameFunding(out[0], obs[0]) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fundingPath := filepath.Join(dir, "funding.parquet")
	klinePath := filepath.Join(dir, "klines.parquet")

	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	obs := []model.FundingObservation{
		{Instrument: "BTC", Timestamp: ts, FundingRate: 0.0001},
		{Instrument: "BTC", Timestamp: ts.Add(8 * time.Hour), FundingRate: -0.0003},
	}
	bars := []model.Kline{{Instrument: "BTC", Symbol: "BTCUSDT", Interval: "4H", OpenTime: ts, Close: 61234.5}}

	if err := writer.WriteFundingParquet(fundingPath, obs, "snappy"); err != nil {
		t.Fatalf("WriteFundingParquet: %v", err)
	}
	if err := writer.WriteKlinesParquet(klinePath, bars, "gzip"); err != nil {
		t.Fatalf("WriteKlinesParquet: %v", err)
	}

	gotFunding, err := LoadFunding(fundingPath, time.UTC)
	if err != nil {
		t.Fatalf("LoadFunding: %v", err)
	}
	if len(gotFunding) != 2 || !sameFunding(gotFunding[1], obs[1]) {
		t.Fatalf("unexpected funding: %+v", gotFunding)
	}

	gotBars, err := LoadKlines(klinePath, time.UTC)
	if err != nil {
		t.Fatalf("LoadKlines: %v", err)
	}
	if len(gotBars) != 1 {
		t.Fatalf("expected 1 kline, got %d", len(gotBars))
	}
	got := gotBars[0]
	if got.Instrument != "BTC" || got.Symbol != "BTCUSDT" || got.Interval != "4H" || !got.OpenTime.Equal(ts) || got.Close != 61234.5 {
		t.Fatalf("unexpected klines: %+v", gotBars)
	}
}

func TestFilterInstruments(t *testing.T) {
	obs := []model.FundingObservation{{Instrument: "BTC"}, {Instrument: "ETH"}, {Instrument: "SOL"}}
	id := func(o model.FundingObservation) string { return o.Instrument }

	if got := FilterInstruments(obs, nil, id); len(got) != 3 {
		t.Fatalf("empty filter must keep everything, got %d", len(got))
	}
	got := FilterInstruments(obs, []string{"eth", " sol "}, id)
	if len(got) != 2 || got[0].Instrument != "ETH" || got[1].Instrument != "SOL" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if len(obs) != 3 || obs[0].Instrument != "BTC" {
		t.Fatalf("input must not be modified")
	}
}

func sameFunding(a, b model.FundingObservation) bool {
	return a.Instrument == b.Instrument && a.Timestamp.Equal(b.Timestamp) && a.FundingRate == b.FundingRate
}

func TestIsParquet(t *testing.T) {
	if !IsParquet("data/funding.PARQUET") {
		t.Fatal("parquet extension should match case-insensitively")
	}
	if IsParquet("data/funding.csv") {
		t.Fatal("csv path reported as parquet")
	}
}
