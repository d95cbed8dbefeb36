package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yml"

var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

type Config struct {
	App        AppConfig        `yaml:"app"`
	Data       DataConfig       `yaml:"data"`
	Volatility VolatilityConfig `yaml:"volatility"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Collector  CollectorConfig  `yaml:"collector"`
	Output     OutputConfig     `yaml:"output"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DataConfig points at the funding and kline datasets. Paths ending in
// .parquet are read as parquet, everything else as CSV.
type DataConfig struct {
	FundingPath string   `yaml:"funding_path"`
	KlinesPath  string   `yaml:"klines_path"`
	Timezone    string   `yaml:"timezone"`
	Instruments []string `yaml:"instruments"`
}

type VolatilityConfig struct {
	Interval string  `yaml:"interval"`
	BlockAbs float64 `yaml:"block_abs"`
	Stamp    string  `yaml:"stamp"`
}

type BacktestConfig struct {
	NotionalUSDT       float64        `yaml:"notional_usdt"`
	FeeBpsRoundtrip    float64        `yaml:"fee_bps_roundtrip"`
	ConfirmN           []int          `yaml:"confirm_n"`
	MinAbsFunding      []float64      `yaml:"min_abs_funding"`
	ThresholdQuantiles QuantileConfig `yaml:"threshold_quantiles"`
	FundingInterval    time.Duration  `yaml:"funding_interval"`
	Workers            int            `yaml:"workers"`
}

// QuantileConfig describes Steps evenly spaced quantiles between From and To.
// It is used when MinAbsFunding is empty.
type QuantileConfig struct {
	From  float64 `yaml:"from"`
	To    float64 `yaml:"to"`
	Steps int     `yaml:"steps"`
}

type CollectorConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Quote             string        `yaml:"quote"`
	Symbols           []string      `yaml:"symbols"`
	KlineIntervals    []string      `yaml:"kline_intervals"`
	Start             string        `yaml:"start"`
	End               string        `yaml:"end"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxElapsed        time.Duration `yaml:"max_elapsed"`
}

type OutputConfig struct {
	RunID       string         `yaml:"run_id"`
	CSVPath     string         `yaml:"csv_path"`
	ParquetPath string         `yaml:"parquet_path"`
	Compression string         `yaml:"compression"`
	S3          bool           `yaml:"s3"`
	Kafka       bool           `yaml:"kafka"`
	Postgres    PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig locates the topic result rows are published to.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// DashboardConfig controls the results API. Host samples are taken every
// SampleInterval; DiskPath selects the volume whose usage is reported.
type DashboardConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"`
	MetricsHistory int           `yaml:"metrics_history"`
	LogHistory     int           `yaml:"log_history"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	DiskPath       string        `yaml:"disk_path"`
}

// ResolvePath returns the APP_ENV specific config file when path is the
// default one.
func ResolvePath(path string) string {
	return resolveEnvSpecificPath(path, DefaultPath, envConfigPaths)
}

// Default returns the configuration used for every key the YAML file omits.
func Default() Config {
	return Config{
		App: AppConfig{Name: "fundcarry", Version: "dev"},
		Data: DataConfig{
			FundingPath: "data/funding.csv",
			KlinesPath:  "data/klines.csv",
			Timezone:    "Asia/Seoul",
		},
		Volatility: VolatilityConfig{Interval: "4H", BlockAbs: 1.0, Stamp: "close"},
		Backtest: BacktestConfig{
			NotionalUSDT:       1_000_000,
			FeeBpsRoundtrip:    6,
			ConfirmN:           []int{1, 2, 3, 4, 5},
			ThresholdQuantiles: QuantileConfig{From: 0.6, To: 0.95, Steps: 15},
			FundingInterval:    8 * time.Hour,
		},
		Collector: CollectorConfig{
			BaseURL:           "https://fapi.binance.com",
			Quote:             "USDT",
			KlineIntervals:    []string{"4h"},
			RequestsPerSecond: 5,
			Burst:             1,
			Timeout:           10 * time.Second,
			MaxElapsed:        time.Minute,
		},
		Output: OutputConfig{
			CSVPath:     "out/grid_results.csv",
			Compression: "snappy",
			Postgres:    PostgresConfig{Table: "grid_results"},
		},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics:   MetricsConfig{CloudWatch: CloudWatchConfig{Namespace: "FundCarry", Dashboard: "FundCarry"}},
		Dashboard: DashboardConfig{Address: ":8080", MetricsHistory: 200, LogHistory: 200, SampleInterval: 5 * time.Second},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	if config.Storage.Kafka.Enabled {
		if v := os.Getenv("KAFKA_BROKERS"); v != "" {
			config.Storage.Kafka.Brokers = splitList(v)
		}
	}
	if config.Output.Postgres.Enabled {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			config.Output.Postgres.DSN = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.Data.FundingPath == "" || cfg.Data.KlinesPath == "" {
		return fmt.Errorf("data.funding_path and data.klines_path are required")
	}
	if _, err := time.LoadLocation(cfg.Data.Timezone); err != nil {
		return fmt.Errorf("data.timezone '%s' is invalid: %w", cfg.Data.Timezone, err)
	}

	if cfg.Volatility.Interval == "" {
		return fmt.Errorf("volatility.interval is required")
	}
	if cfg.Volatility.BlockAbs < 0 {
		return fmt.Errorf("volatility.block_abs must be >= 0")
	}
	switch cfg.Volatility.Stamp {
	case "", "close", "open":
	default:
		return fmt.Errorf("volatility.stamp must be 'close' or 'open'")
	}

	bt := cfg.Backtest
	if bt.NotionalUSDT <= 0 {
		return fmt.Errorf("backtest.notional_usdt must be greater than 0")
	}
	if bt.FeeBpsRoundtrip < 0 {
		return fmt.Errorf("backtest.fee_bps_roundtrip must be >= 0")
	}
	if len(bt.ConfirmN) == 0 {
		return fmt.Errorf("backtest.confirm_n must list at least one value")
	}
	for _, n := range bt.ConfirmN {
		if n < 1 {
			return fmt.Errorf("backtest.confirm_n values must be >= 1, got %d", n)
		}
	}
	for _, th := range bt.MinAbsFunding {
		if th < 0 {
			return fmt.Errorf("backtest.min_abs_funding values must be >= 0, got %v", th)
		}
	}
	if len(bt.MinAbsFunding) == 0 {
		q := bt.ThresholdQuantiles
		if q.Steps < 1 {
			return fmt.Errorf("backtest.threshold_quantiles.steps must be greater than 0")
		}
		if q.From < 0 || q.To > 1 || q.From > q.To {
			return fmt.Errorf("backtest.threshold_quantiles must satisfy 0 <= from <= to <= 1")
		}
	}
	if bt.FundingInterval <= 0 {
		return fmt.Errorf("backtest.funding_interval must be greater than 0")
	}
	if bt.Workers < 0 {
		return fmt.Errorf("backtest.workers must be >= 0")
	}

	if cfg.Collector.RequestsPerSecond <= 0 {
		return fmt.Errorf("collector.requests_per_second must be greater than 0")
	}

	switch cfg.Output.Compression {
	case "", "snappy", "gzip", "uncompressed":
	default:
		return fmt.Errorf("output.compression '%s' is not supported", cfg.Output.Compression)
	}
	if cfg.Output.Postgres.Enabled && cfg.Output.Postgres.DSN == "" {
		return fmt.Errorf("output.postgres.dsn is required when postgres output is enabled")
	}

	if cfg.Output.S3 && !cfg.Storage.S3.Enabled {
		return fmt.Errorf("output.s3 requires storage.s3.enabled")
	}
	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Output.Kafka && !cfg.Storage.Kafka.Enabled {
		return fmt.Errorf("output.kafka requires storage.kafka.enabled")
	}
	if cfg.Storage.Kafka.Enabled && (len(cfg.Storage.Kafka.Brokers) == 0 || cfg.Storage.Kafka.Topic == "") {
		return fmt.Errorf("storage.kafka.brokers and storage.kafka.topic are required when Kafka is enabled")
	}

	if cfg.Dashboard.Enabled && cfg.Dashboard.Address == "" {
		return fmt.Errorf("dashboard.address is required when the dashboard is enabled")
	}
	if cfg.Dashboard.SampleInterval < 0 {
		return fmt.Errorf("dashboard.sample_interval must be >= 0")
	}

	if env := getAppEnvironment(); IsProductionLike(env) && !cfg.Output.S3 && !cfg.Output.Kafka && !cfg.Output.Postgres.Enabled {
		return fmt.Errorf("%s runs must enable output.s3, output.kafka or output.postgres", env)
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
