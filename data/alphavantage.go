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
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/marketlens/ml-api/observability/opentelemetry"
)

var alphaVantageAPI = "https://www.alphavantage.co"

const alphaVantageClass = "alphavantage"

type alphaVantage struct {
	apikey string
	fetch  *FetchClient
}

type alphaVantageMonthlyResponse struct {
	Series map[string]map[string]string `json:"Monthly Adjusted Time Series"`
}

// NewAlphaVantage creates the secondary market-data provider.
func NewAlphaVantage(apikey string, fetch *FetchClient) Provider {
	return &alphaVantage{
		apikey: apikey,
		fetch:  fetch,
	}
}

func (a *alphaVantage) Name() string {
	return "alphavantage"
}

// GetAdjustedHistory returns monthly adjusted-close bars for the requested
// range, oldest first. Alpha Vantage always returns the full history; the
// response is filtered to the requested window.
func (a *alphaVantage) GetAdjustedHistory(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "alphavantage.GetAdjustedHistory")
	defer span.End()

	span.SetAttributes(attribute.String("Ticker", ticker))

	subLog := log.With().Str("Provider", "alphavantage").Str("Ticker", ticker).Logger()

	url := fmt.Sprintf("%s/query?function=TIME_SERIES_MONTHLY_ADJUSTED&symbol=%s&apikey=%s",
		alphaVantageAPI, ticker, a.apikey)

	res, err := a.fetch.Get(ctx, alphaVantageClass, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "monthly series request failed")
		subLog.Warn().Err(err).Int("Attempts", res.Attempts).Msg("could not load monthly series")
		return nil, err
	}

	var parsed alphaVantageMonthlyResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed monthly series payload")
		subLog.Warn().Err(err).Msg("could not parse monthly series")
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	bars := make([]Bar, 0, len(parsed.Series))
	for dateStr, fields := range parsed.Series {
		dt, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if dt.Before(from) || dt.After(to) {
			continue
		}

		adjClose, err := strconv.ParseFloat(fields["5. adjusted close"], 64)
		if err != nil {
			continue
		}

		bars = append(bars, Bar{Date: dt, AdjClose: adjClose})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	return bars, nil
}
