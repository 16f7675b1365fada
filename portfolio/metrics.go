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

package portfolio

import (
	"math"

	"github.com/marketlens/ml-api/data"
)

// Metrics summarizes the uploaded portfolio as it stands today. Return and
// volatility are annualized percentages.
type Metrics struct {
	TotalValue           float64            `json:"total_value"`
	ExpectedReturn       float64            `json:"expected_return"`
	Volatility           float64            `json:"volatility"`
	RiskLevel            string             `json:"risk_level"`
	SectorExposure       map[string]float64 `json:"sector_exposure"`
	DiversificationScore int                `json:"diversification_score"`
}

// ComputeMetrics derives portfolio metrics from holdings plus whatever market
// data resolved. Prices fall back holding → quote → zero; a zero-priced
// holding contributes no value but still counts toward diversification.
// Sectors resolve holding metadata → profile → "Other". The reported total is
// replaced by a positive totalWorth override, while per-ticker weights keep
// using position values.
func ComputeMetrics(holdings []Holding, totalWorth *float64, series data.TimeSeries,
	quotes map[string]*data.Quote, profiles map[string]*data.CompanyProfile) *Metrics {

	if len(holdings) == 0 {
		return &Metrics{RiskLevel: "N/A", SectorExposure: map[string]float64{}}
	}

	prices := make(map[string]float64, len(holdings))
	sectors := make(map[string]string, len(holdings))
	for _, h := range holdings {
		price := h.Price
		if price <= 0 {
			if q, ok := quotes[h.Ticker]; ok {
				price = q.Price
			}
		}
		prices[h.Ticker] = price

		sector := h.Sector
		if sector == "" {
			if p, ok := profiles[h.Ticker]; ok && p.Sector != "" {
				sector = p.Sector
			} else {
				sector = "Other"
			}
		}
		sectors[h.Ticker] = sector
	}

	positionTotal := 0.0
	for _, h := range holdings {
		positionTotal += prices[h.Ticker] * h.Amount
	}

	totalValue := positionTotal
	if totalWorth != nil && *totalWorth > 0 {
		totalValue = *totalWorth
	}

	// Percentages stay anchored to the computed position values; the override
	// changes only the reported total.
	denom := positionTotal
	if denom == 0 {
		denom = 1
	}

	sectorTotals := make(map[string]float64)
	for _, h := range holdings {
		sectorTotals[sectors[h.Ticker]] += prices[h.Ticker] * h.Amount
	}
	sectorExposure := make(map[string]float64, len(sectorTotals))
	for sector, value := range sectorTotals {
		sectorExposure[sector] = round2(100 * value / denom)
	}

	uniqueSectors := make(map[string]bool)
	for _, s := range sectors {
		uniqueSectors[s] = true
	}
	diversification := 15*len(uniqueSectors) + 5*len(holdings)
	if diversification > 100 {
		diversification = 100
	}

	metrics := &Metrics{
		TotalValue:           round2(totalValue),
		RiskLevel:            "N/A",
		SectorExposure:       sectorExposure,
		DiversificationScore: diversification,
	}

	// Annualized moments need aligned history for the priced tickers.
	withHistory := []string{}
	for _, h := range holdings {
		if len(series[h.Ticker]) > 0 {
			withHistory = append(withHistory, h.Ticker)
		}
	}
	if len(withHistory) == 0 {
		return metrics
	}

	model, err := NewReturnModel(series, withHistory)
	if err != nil {
		return metrics
	}

	weights := make([]float64, len(withHistory))
	amounts := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		amounts[h.Ticker] = h.Amount
	}
	for ii, ticker := range withHistory {
		weights[ii] = prices[ticker] * amounts[ticker] / denom
	}

	annualReturn := PortfolioReturn(model.Mu, weights) * 100
	annualVol := PortfolioVolatility(model.Sigma, weights) * 100

	metrics.ExpectedReturn = round2(annualReturn)
	metrics.Volatility = round2(annualVol)
	metrics.RiskLevel = riskLevelFor(annualVol)

	return metrics
}

// riskLevelFor buckets annualized volatility (in percent) into the three
// user-facing tiers.
func riskLevelFor(volatilityPct float64) string {
	switch {
	case volatilityPct < 10:
		return "Conservative"
	case volatilityPct < 18:
		return "Moderate"
	default:
		return "Aggressive"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
