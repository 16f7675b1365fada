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

import "time"

// Bar is a single adjusted-close observation.
type Bar struct {
	Date     time.Time `json:"date"`
	AdjClose float64   `json:"adjClose"`
}

// TimeSeries maps tickers to their ordered adjusted-close history. Dates are
// strictly increasing with no duplicates. A ticker absent from the map could
// not be resolved from any provider; it is never zero-filled.
type TimeSeries map[string][]Bar

// Tickers returns the resolved ticker symbols in the series.
func (ts TimeSeries) Tickers() []string {
	tickers := make([]string, 0, len(ts))
	for k := range ts {
		tickers = append(tickers, k)
	}
	return tickers
}

// Quote is a point-in-time market quote. Every field has a defined zero
// default so callers never need existence checks.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"percent_change"`
	Volume        int64     `json:"volume"`
	Updated       time.Time `json:"updated"`
}

// CompanyProfile is reference metadata for a security. Unresolvable fields
// keep their defaults; Sector defaults to "Other".
type CompanyProfile struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Sector    string  `json:"sector"`
	Industry  string  `json:"industry"`
	Exchange  string  `json:"exchange"`
	Country   string  `json:"country"`
	Website   string  `json:"website"`
	MarketCap float64 `json:"market_cap"`
}

// DefaultProfile returns the profile used when the reference lookup fails.
func DefaultProfile(ticker string) *CompanyProfile {
	return &CompanyProfile{
		Ticker: ticker,
		Name:   ticker,
		Sector: "Other",
	}
}
