// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/marketlens/ml-api/common"
)

// Provider retrieves adjusted-close history for a single ticker.
type Provider interface {
	Name() string
	GetAdjustedHistory(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
}

// QuoteProvider retrieves point-in-time quotes and reference metadata.
type QuoteProvider interface {
	GetQuote(ctx context.Context, ticker string) (*Quote, error)
	GetCompanyProfile(ctx context.Context, ticker string) (*CompanyProfile, error)
}

const (
	historyChunkSize   = 10
	reducedRangeTries  = 3
	reducedRangeDelay  = 2 * time.Second
	defaultSeriesCache = 10 * time.Minute
)

// Manager coordinates history retrieval across providers. Each ticker runs an
// independent fallback ladder: primary provider over the full range, then the
// primary over a halved range anchored at the end date, then the secondary
// provider. Tickers that resolve nowhere are reported, never zero-filled.
type Manager struct {
	primary   Provider
	secondary Provider
	quotes    QuoteProvider
	cache     *SeriesCache

	// RetryDelay is the base wait between reduced-range attempts; each
	// subsequent attempt waits one additional multiple.
	RetryDelay time.Duration
}

// NewManager creates a data manager from configured provider credentials. The
// fetch client is shared so the per-endpoint-class throttle covers all
// providers in the process.
func NewManager(fetch *FetchClient) *Manager {
	m := &Manager{
		cache:      NewSeriesCache(seriesCacheTTL()),
		RetryDelay: reducedRangeDelay,
	}

	if key := viper.GetString("polygon.apikey"); key != "" {
		poly := NewPolygon(key, fetch)
		m.primary = poly
		m.quotes = poly.(QuoteProvider)
	} else {
		log.Warn().Msg("no polygon API key provided")
	}

	if key := viper.GetString("alphavantage.apikey"); key != "" {
		m.secondary = NewAlphaVantage(key, fetch)
	} else {
		log.Warn().Msg("no alphavantage API key provided")
	}

	return m
}

// NewManagerWithProviders wires explicit providers; used by tests and the CLI.
func NewManagerWithProviders(primary, secondary Provider, quotes QuoteProvider) *Manager {
	return &Manager{
		primary:    primary,
		secondary:  secondary,
		quotes:     quotes,
		cache:      NewSeriesCache(seriesCacheTTL()),
		RetryDelay: reducedRangeDelay,
	}
}

func seriesCacheTTL() time.Duration {
	if ttl := viper.GetDuration("cache.series_ttl"); ttl > 0 {
		return ttl
	}
	return defaultSeriesCache
}

type historyResult struct {
	Ticker string
	Bars   []Bar
	Err    error
}

// FetchHistory retrieves adjusted-close history for every ticker over the
// requested range. Partial results are allowed: tickers that could not be
// resolved are returned in the failed set and omitted from the series.
func (m *Manager) FetchHistory(ctx context.Context, tickers []string, from, to time.Time) (TimeSeries, []string) {
	series := make(TimeSeries, len(tickers))
	failed := []string{}

	tickers = append([]string{}, tickers...)
	common.ArrToUpper(tickers)

	if !from.Before(to) {
		log.Error().Err(ErrInvalidTimeRange).Time("From", from).Time("To", to).Msg("rejecting history request")
		failed = append(failed, tickers...)
		sort.Strings(failed)
		return series, failed
	}

	if m.primary == nil && m.secondary == nil {
		log.Error().Msg("no history providers configured")
		return series, append(failed, tickers...)
	}

	ch := make(chan historyResult)
	for _, chunk := range partitionTickers(tickers, historyChunkSize) {
		for ii := range chunk {
			go m.historyWorker(ctx, ch, chunk[ii], from, to)
		}

		for range chunk {
			v := <-ch
			if v.Err != nil {
				log.Warn().Err(v.Err).Str("Ticker", v.Ticker).Msg("cannot download ticker data")
				failed = append(failed, v.Ticker)
				continue
			}
			series[v.Ticker] = v.Bars
		}
	}

	sort.Strings(failed)
	return series, failed
}

func (m *Manager) historyWorker(ctx context.Context, result chan<- historyResult, ticker string, from, to time.Time) {
	bars, err := m.fetchTicker(ctx, ticker, from, to)
	result <- historyResult{
		Ticker: ticker,
		Bars:   bars,
		Err:    err,
	}
}

// fetchTicker runs the per-ticker fallback ladder. The retry steps execute
// sequentially within this ticker's own goroutine.
func (m *Manager) fetchTicker(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	if bars, ok := m.cache.Get(ticker, from, to); ok {
		return bars, nil
	}

	subLog := log.With().Str("Ticker", ticker).Logger()

	// Rung 1: primary provider, full range.
	if m.primary != nil {
		bars, err := m.primary.GetAdjustedHistory(ctx, ticker, from, to)
		if err == nil && len(bars) > 0 {
			m.cache.Set(ticker, from, to, bars)
			return bars, nil
		}
		if err != nil {
			subLog.Warn().Err(err).Str("Provider", m.primary.Name()).Msg("full range fetch failed")
		}

		// Rung 2: primary provider, half the span anchored at the end date,
		// with increasing delay between attempts when throttled.
		reducedFrom := to.Add(-to.Sub(from) / 2)
		delay := m.RetryDelay
		for attempt := 1; attempt <= reducedRangeTries; attempt++ {
			bars, err = m.primary.GetAdjustedHistory(ctx, ticker, reducedFrom, to)
			if err == nil && len(bars) > 0 {
				m.cache.Set(ticker, from, to, bars)
				return bars, nil
			}
			if err != nil {
				subLog.Warn().Err(err).Int("Attempt", attempt).Msg("reduced range fetch failed")
				if err := sleepCtx(ctx, delay); err != nil {
					return nil, err
				}
				delay += m.RetryDelay
			}
		}
	}

	// Rung 3: secondary provider, full range.
	if m.secondary != nil {
		bars, err := m.secondary.GetAdjustedHistory(ctx, ticker, from, to)
		if err == nil && len(bars) > 0 {
			m.cache.Set(ticker, from, to, bars)
			return bars, nil
		}
		if err != nil {
			subLog.Warn().Err(err).Str("Provider", m.secondary.Name()).Msg("secondary fetch failed")
		}
	}

	return nil, ErrNoData
}

// Quote returns the latest quote for ticker. A zero-priced quote is returned
// when no quote provider is configured or the lookup fails; callers treat a
// zero price as unresolvable.
func (m *Manager) Quote(ctx context.Context, ticker string) *Quote {
	ticker = strings.ToUpper(ticker)
	if m.quotes == nil {
		return &Quote{Ticker: ticker}
	}

	quote, err := m.quotes.GetQuote(ctx, ticker)
	if err != nil {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("quote lookup failed")
		return &Quote{Ticker: ticker}
	}
	return quote
}

// Profile returns company reference metadata for ticker, defaulting every
// unresolvable field (Sector becomes "Other").
func (m *Manager) Profile(ctx context.Context, ticker string) *CompanyProfile {
	ticker = strings.ToUpper(ticker)
	if m.quotes == nil {
		return DefaultProfile(ticker)
	}

	profile, err := m.quotes.GetCompanyProfile(ctx, ticker)
	if err != nil {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("profile lookup failed")
		return DefaultProfile(ticker)
	}
	return profile
}

func partitionTickers(tickers []string, chunkSize int) [][]string {
	chunks := make([][]string, 0, len(tickers)/chunkSize+1)
	for chunkSize < len(tickers) {
		tickers, chunks = tickers[chunkSize:], append(chunks, tickers[0:chunkSize:chunkSize])
	}
	return append(chunks, tickers)
}
