// Package binance collects closed funding settlements and klines from the
// Binance USDT-M futures REST API.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	appconfig "fundcarry/config"
	"fundcarry/internal/model"
	"fundcarry/internal/symbols"
	"fundcarry/logger"
)

const (
	fundingPageLimit = 1000
	klinePageLimit   = 1500
)

// API is the subset of the futures REST API the collector uses.
type API interface {
	ExchangeSymbols(ctx context.Context) ([]futures.Symbol, error)
	FundingRates(ctx context.Context, symbol string, start, end int64, limit int) ([]*futures.FundingRate, error)
	Klines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error)
}

type clientAPI struct {
	client *futures.Client
}

func (a clientAPI) ExchangeSymbols(ctx context.Context) ([]futures.Symbol, error) {
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	return info.Symbols, nil
}

func (a clientAPI) FundingRates(ctx context.Context, symbol string, start, end int64, limit int) ([]*futures.FundingRate, error) {
	return a.client.NewFundingRateService().
		Symbol(symbol).
		StartTime(start).
		EndTime(end).
		Limit(limit).
		Do(ctx)
}

func (a clientAPI) Klines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error) {
	return a.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(start).
		EndTime(end).
		Limit(limit).
		Do(ctx)
}

// Collector pages through funding and kline history for a set of symbols.
// Every request waits on a shared rate limiter and is retried with
// exponential backoff.
type Collector struct {
	api        API
	limiter    *rate.Limiter
	quote      string
	maxElapsed time.Duration
	newBackOff func() backoff.BackOff
	log        *logger.Log
}

// New builds a collector on top of the go-binance futures client.
func New(cfg appconfig.CollectorConfig) *Collector {
	client := futures.NewClient("", "")
	client.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	if cfg.BaseURL != "" {
		client.SetApiEndpoint(strings.TrimRight(cfg.BaseURL, "/"))
	}
	return NewWithAPI(clientAPI{client: client}, cfg)
}

// NewWithAPI builds a collector on an arbitrary API implementation.
func NewWithAPI(api API, cfg appconfig.CollectorConfig) *Collector {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c := &Collector{
		api:        api,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		quote:      cfg.Quote,
		maxElapsed: cfg.MaxElapsed,
		log:        logger.GetLogger(),
	}
	c.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = c.maxElapsed
		return b
	}
	return c
}

// call waits for the limiter and runs fn until it succeeds, returns a
// permanent error, or the backoff gives up.
func (c *Collector) call(ctx context.Context, op string, fn func() error) error {
	log := c.log.WithComponent("binance_collector").WithFields(logger.Fields{"operation": op})
	attempt := 0
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		attempt++
		start := time.Now()
		err := fn()
		if err == nil {
			logger.LogPerformanceEntry(log, "binance_collector", op, time.Since(start), logger.Fields{"attempt": attempt})
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		log.WithError(err).WithFields(logger.Fields{"attempt": attempt}).Warn("request failed; retrying")
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("%s after %d attempts: %w", op, attempt, err)
	}
	return nil
}

// retryable reports whether err is worth another attempt. API errors are
// final except for rate limiting (-1003) and server-side timeouts (-1007).
func retryable(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == -1003 || apiErr.Code == -1007
	}
	return true
}

// Symbols returns the configured symbols, or every trading USDT-margined
// perpetual when none are configured.
func (c *Collector) Symbols(ctx context.Context, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return symbols.Symbols(configured, c.quote), nil
	}

	var all []futures.Symbol
	err := c.call(ctx, "exchange_info", func() error {
		var err error
		all, err = c.api.ExchangeSymbols(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	quote := c.quote
	if quote == "" {
		quote = symbols.DefaultQuote
	}
	out := make([]string, 0, len(all))
	for _, s := range all {
		if string(s.ContractType) == "PERPETUAL" && strings.EqualFold(s.QuoteAsset, quote) && s.Status == "TRADING" {
			out = append(out, s.Symbol)
		}
	}
	c.log.WithComponent("binance_collector").WithFields(logger.Fields{"symbols": len(out)}).Info("resolved perpetual symbols")
	return out, nil
}

// FetchFunding returns every funding settlement of symbol in [start, end).
func (c *Collector) FetchFunding(ctx context.Context, symbol string, start, end time.Time) ([]model.FundingObservation, error) {
	inst := symbols.InstrumentID(symbol, c.quote)
	endMs := end.UnixMilli()
	cur := start.UnixMilli()

	var out []model.FundingObservation
	for cur < endMs {
		var page []*futures.FundingRate
		err := c.call(ctx, "funding_rate", func() error {
			var err error
			page, err = c.api.FundingRates(ctx, symbol, cur, endMs, fundingPageLimit)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch funding %s: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}

		for _, fr := range page {
			d, err := decimal.NewFromString(fr.FundingRate)
			if err != nil {
				c.log.WithComponent("binance_collector").WithFields(logger.Fields{"symbol": symbol, "value": fr.FundingRate}).Warn("skipping unparseable funding rate")
				continue
			}
			v, _ := d.Float64()
			out = append(out, model.FundingObservation{
				Instrument:  inst,
				Timestamp:   time.UnixMilli(fr.FundingTime).UTC(),
				FundingRate: v,
			})
		}

		if len(page) < fundingPageLimit {
			break
		}
		cur = page[len(page)-1].FundingTime + 1
	}

	logger.LogDataFlowEntry(c.log.WithComponent("binance_collector"), symbol, "funding", len(out), "funding_observation")
	return out, nil
}

// FetchKlines returns every bar of symbol at interval opening in [start, end).
// Intervals use exchange notation ("4h"); the stored interval is upper-cased.
func (c *Collector) FetchKlines(ctx context.Context, symbol, interval string, start, end time.Time) ([]model.Kline, error) {
	inst := symbols.InstrumentID(symbol, c.quote)
	endMs := end.UnixMilli()
	cur := start.UnixMilli()
	apiInterval := strings.ToLower(interval)

	var out []model.Kline
	for cur < endMs {
		var page []*futures.Kline
		err := c.call(ctx, "klines", func() error {
			var err error
			page, err = c.api.Klines(ctx, symbol, apiInterval, cur, endMs, klinePageLimit)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
		}
		if len(page) == 0 {
			break
		}

		for _, k := range page {
			d, err := decimal.NewFromString(k.Close)
			if err != nil {
				continue
			}
			v, _ := d.Float64()
			out = append(out, model.Kline{
				Instrument: inst,
				Symbol:     symbol,
				Interval:   strings.ToUpper(interval),
				OpenTime:   time.UnixMilli(k.OpenTime).UTC(),
				Close:      v,
			})
		}

		if len(page) < klinePageLimit {
			break
		}
		cur = page[len(page)-1].OpenTime + 1
	}

	logger.LogDataFlowEntry(c.log.WithComponent("binance_collector"), symbol, "klines", len(out), "kline")
	return out, nil
}
