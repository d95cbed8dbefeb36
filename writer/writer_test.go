package writer

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	kafka "github.com/segmentio/kafka-go"

	appconfig "fundcarry/config"
	"fundcarry/internal/model"
	"fundcarry/logger"
)

func sampleRows() []model.GridResultRow {
	return []model.GridResultRow{
		{
			SummaryRow:    model.SummaryRow{Instrument: "BTC", NFundingEvents: 10, NTurns: 2, CumulativeReturn: 0.0125, SharpeApprox: model.Float(1.5)},
			MinAbsFunding: 0.0001,
			ConfirmN:      2,
		},
		{
			SummaryRow:    model.SummaryRow{Instrument: "ETH", NFundingEvents: 4},
			MinAbsFunding: 0.0001,
			ConfirmN:      2,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return recs
}

func TestWriteResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	if err := WriteResultsCSV(path, sampleRows()); err != nil {
		t.Fatalf("WriteResultsCSV: %v", err)
	}

	recs := readCSV(t, path)
	if len(recs) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(recs))
	}
	if strings.Join(recs[0], ",") != strings.Join(model.ResultColumns, ",") {
		t.Fatalf("unexpected header: %v", recs[0])
	}
	want := []string{"BTC", "0.0001", "2", "10", "2", "0.0125", "1.5"}
	if strings.Join(recs[1], ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected row: %v", recs[1])
	}
	if recs[2][6] != "" {
		t.Fatalf("undefined sharpe must be empty, got %q", recs[2][6])
	}
}

func TestAppendFundingCSVWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funding.csv")
	loc := time.FixedZone("KST", 9*3600)
	obs := []model.FundingObservation{{Instrument: "BTC", Timestamp: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), FundingRate: 0.0001}}

	if err := AppendFundingCSV(path, obs, "USDT", loc); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := AppendFundingCSV(path, obs, "USDT", loc); err != nil {
		t.Fatalf("second append: %v", err)
	}

	recs := readCSV(t, path)
	if len(recs) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(recs))
	}
	want := []string{"BTC", "BTCUSDT", "2025-12-01", "09:00:00", "0.0001"}
	if strings.Join(recs[1], ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected row: %v", recs[1])
	}
}

func TestAppendKlinesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klines.csv")
	k := []model.Kline{{Instrument: "ETH", Symbol: "ETHUSDT", Interval: "4H", OpenTime: time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC), Close: 3312.5}}
	if err := AppendKlinesCSV(path, k, time.UTC); err != nil {
		t.Fatalf("AppendKlinesCSV: %v", err)
	}
	recs := readCSV(t, path)
	if got := strings.Join(recs[1], ","); got != "ETH,ETHUSDT,4H,2025-01-02,04:00:00,3312.5" {
		t.Fatalf("unexpected row: %s", got)
	}
}

func TestResultsParquet(t *testing.T) {
	data, err := ResultsParquet(sampleRows(), "snappy")
	if err != nil {
		t.Fatalf("ResultsParquet: %v", err)
	}
	if len(data) < 8 || !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Fatalf("output is not a parquet file (%d bytes)", len(data))
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3UploaderKeyAndUpload(t *testing.T) {
	fake := &fakeS3{}
	u := &S3Uploader{client: fake, bucket: "results-bucket", prefix: "fundcarry", version: "1.0", log: logger.GetLogger()}

	key := u.ResultKey("run42", ".parquet", time.Date(2025, 12, 3, 10, 11, 12, 0, time.UTC))
	pattern := regexp.MustCompile(`^fundcarry/results/date=2025-12-03/run42_20251203101112[0-9a-f-]{36}\.parquet$`)
	if !pattern.MatchString(key) {
		t.Fatalf("unexpected key: %s", key)
	}

	if err := u.Upload(context.Background(), key, []byte("payload"), "application/octet-stream"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if *fake.input.Bucket != "results-bucket" || *fake.input.Key != key {
		t.Fatalf("unexpected target: %s/%s", *fake.input.Bucket, *fake.input.Key)
	}
	if string(fake.body) != "payload" {
		t.Fatalf("unexpected body: %q", fake.body)
	}
	if fake.input.Metadata["fundcarry-version"] != "1.0" {
		t.Fatalf("missing version metadata: %v", fake.input.Metadata)
	}
}

func TestPostgresStatements(t *testing.T) {
	create := createTableSQL("grid results")
	if !strings.Contains(create, `"grid results"`) {
		t.Fatalf("table name must be quoted: %s", create)
	}
	if !strings.Contains(create, "PRIMARY KEY (run_id, instrument_id, min_abs_funding, confirm_n)") {
		t.Fatalf("missing key: %s", create)
	}
	if !strings.Contains(upsertSQL("grid_results"), "ON CONFLICT (run_id, instrument_id, min_abs_funding, confirm_n)") {
		t.Fatalf("upsert must target the result key")
	}

	if nullFloat(nil).Valid {
		t.Fatalf("nil sharpe must be NULL")
	}
	if v := nullFloat(model.Float(2)); !v.Valid || v.Float64 != 2 {
		t.Fatalf("unexpected value: %+v", v)
	}
}

type fakeKafka struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSinkPublishesRowsKeyedByInstrument(t *testing.T) {
	fake := &fakeKafka{}
	sink := &KafkaSink{writer: fake, topic: "results", log: logger.GetLogger()}

	if err := sink.Write(context.Background(), "run-7", sampleRows()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(fake.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(fake.msgs))
	}
	if string(fake.msgs[0].Key) != "BTC" || string(fake.msgs[1].Key) != "ETH" {
		t.Fatalf("unexpected keys: %q %q", fake.msgs[0].Key, fake.msgs[1].Key)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(fake.msgs[0].Value, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["run_id"] != "run-7" || payload["instrument_id"] != "BTC" || payload["confirm_n"] != float64(2) {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["sharpe_approx"] != 1.5 {
		t.Fatalf("sharpe not published: %v", payload["sharpe_approx"])
	}

	var second map[string]interface{}
	if err := json.Unmarshal(fake.msgs[1].Value, &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, ok := second["sharpe_approx"]; !ok || v != nil {
		t.Fatalf("undefined sharpe must be published as null, got %v", v)
	}

	if err := sink.Close(); err != nil || !fake.closed {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewKafkaSinkRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaSink(appconfig.KafkaConfig{Topic: "results"}); err == nil {
		t.Fatal("expected error without brokers")
	}
}
