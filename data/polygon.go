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
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/marketlens/ml-api/observability/opentelemetry"
)

var polygonAPI = "https://api.polygon.io"

const (
	polygonAggsClass      = "polygon.aggs"
	polygonReferenceClass = "polygon.reference"
)

type polygon struct {
	apikey string
	fetch  *FetchClient
}

type polygonAgg struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type polygonAggsResponse struct {
	Ticker       string       `json:"ticker"`
	ResultsCount int          `json:"resultsCount"`
	Results      []polygonAgg `json:"results"`
}

type polygonTickerDetails struct {
	Ticker          string  `json:"ticker"`
	Name            string  `json:"name"`
	PrimaryExchange string  `json:"primary_exchange"`
	SicDescription  string  `json:"sic_description"`
	MarketCap       float64 `json:"market_cap"`
	HomepageURL     string  `json:"homepage_url"`
	Locale          string  `json:"locale"`
}

type polygonReferenceResponse struct {
	Results polygonTickerDetails `json:"results"`
}

// NewPolygon creates the primary market-data provider.
func NewPolygon(apikey string, fetch *FetchClient) Provider {
	return &polygon{
		apikey: apikey,
		fetch:  fetch,
	}
}

func (p *polygon) Name() string {
	return "polygon"
}

// GetAdjustedHistory returns monthly adjusted-close bars for the requested
// range, oldest first.
func (p *polygon) GetAdjustedHistory(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "polygon.GetAdjustedHistory")
	defer span.End()

	span.SetAttributes(
		attribute.String("Ticker", ticker),
		attribute.String("Begin", from.Format("2006-01-02")),
		attribute.String("End", to.Format("2006-01-02")),
	)

	subLog := log.With().Str("Provider", "polygon").Str("Ticker", ticker).Logger()

	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/month/%s/%s?adjusted=true&sort=asc&apiKey=%s",
		polygonAPI, ticker, from.Format("2006-01-02"), to.Format("2006-01-02"), p.apikey)

	res, err := p.fetch.Get(ctx, polygonAggsClass, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggs request failed")
		subLog.Warn().Err(err).Int("Attempts", res.Attempts).Msg("could not load monthly aggregates")
		return nil, err
	}

	var parsed polygonAggsResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed aggs payload")
		subLog.Warn().Err(err).Msg("could not parse monthly aggregates")
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	if parsed.ResultsCount == 0 && len(parsed.Results) == 0 {
		subLog.Info().Msg("polygon has no aggregates for ticker")
		return nil, ErrNotFound
	}

	bars := make([]Bar, 0, len(parsed.Results))
	for _, agg := range parsed.Results {
		bars = append(bars, Bar{
			Date:     time.UnixMilli(agg.Timestamp).UTC(),
			AdjClose: agg.Close,
		})
	}

	return bars, nil
}

// GetQuote returns the previous-day close for the ticker.
func (p *polygon) GetQuote(ctx context.Context, ticker string) (*Quote, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "polygon.GetQuote")
	defer span.End()

	span.SetAttributes(attribute.String("Ticker", ticker))

	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s", polygonAPI, ticker, p.apikey)
	res, err := p.fetch.Get(ctx, polygonAggsClass, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prev-close request failed")
		return nil, err
	}

	var parsed polygonAggsResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed prev-close payload")
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	if len(parsed.Results) == 0 {
		return nil, ErrNoData
	}

	agg := parsed.Results[0]
	quote := &Quote{
		Ticker:  ticker,
		Price:   agg.Close,
		Volume:  int64(agg.Volume),
		Updated: time.UnixMilli(agg.Timestamp).UTC(),
	}
	if agg.Open != 0 {
		quote.Change = agg.Close - agg.Open
		quote.ChangePercent = (agg.Close - agg.Open) / agg.Open * 100
	}

	return quote, nil
}

// GetCompanyProfile returns reference metadata for the ticker with defined
// defaults for every missing field.
func (p *polygon) GetCompanyProfile(ctx context.Context, ticker string) (*CompanyProfile, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "polygon.GetCompanyProfile")
	defer span.End()

	span.SetAttributes(attribute.String("Ticker", ticker))

	url := fmt.Sprintf("%s/v3/reference/tickers/%s?apiKey=%s", polygonAPI, ticker, p.apikey)
	res, err := p.fetch.Get(ctx, polygonReferenceClass, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference request failed")
		return nil, err
	}

	var parsed polygonReferenceResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed reference payload")
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	profile := DefaultProfile(ticker)
	if parsed.Results.Name != "" {
		profile.Name = parsed.Results.Name
	}
	if parsed.Results.SicDescription != "" {
		profile.Sector = parsed.Results.SicDescription
	}
	profile.Exchange = parsed.Results.PrimaryExchange
	profile.Country = parsed.Results.Locale
	profile.Website = parsed.Results.HomepageURL
	profile.MarketCap = parsed.Results.MarketCap

	return profile, nil
}
