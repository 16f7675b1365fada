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
	"fmt"
	"math"

	"github.com/marketlens/ml-api/data"
)

// Moves smaller than one percentage point are immaterial and dropped.
const materialityThreshold = 1.0

// Budget for AI-suggested tickers: five points each, fifteen points total.
const (
	suggestionPctEach = 5.0
	suggestionPctCap  = 15.0
)

// CurrentPosition is one holding expressed as a share of the portfolio.
type CurrentPosition struct {
	Ticker      string  `json:"ticker"`
	CompanyName string  `json:"company_name"`
	Amount      float64 `json:"amount"`
	Value       float64 `json:"value"`
	Percentage  float64 `json:"percentage"`
}

// Allocation is a recommended position. Price is nil when no quote resolved;
// Shares stays zero in that case.
type Allocation struct {
	Ticker         string   `json:"ticker"`
	CompanyName    string   `json:"company_name"`
	OptimalPercent float64  `json:"optimal_percentage"`
	Price          *float64 `json:"price"`
	Shares         int64    `json:"shares"`
}

// Action is one rebalancing step a user should take.
type Action struct {
	Action      string `json:"action"`
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
	Details     string `json:"details"`
}

// Reconcile compares the optimal allocation against current positions and
// emits Increase/Reduce actions for every materially different ticker. A
// ticker absent from current positions counts as holding zero.
func Reconcile(current []CurrentPosition, optimal []Allocation) []Action {
	currentPct := make(map[string]float64, len(current))
	for _, pos := range current {
		currentPct[pos.Ticker] = pos.Percentage
	}

	actions := []Action{}
	for _, opt := range optimal {
		diff := opt.OptimalPercent - currentPct[opt.Ticker]
		if math.Abs(diff) < materialityThreshold {
			continue
		}

		if diff > 0 {
			actions = append(actions, Action{
				Action:      "Increase",
				Ticker:      opt.Ticker,
				CompanyName: opt.CompanyName,
				Details:     fmt.Sprintf("Increase %s by %.2f%% of portfolio", opt.Ticker, diff),
			})
		} else {
			actions = append(actions, Action{
				Action:      "Reduce",
				Ticker:      opt.Ticker,
				CompanyName: opt.CompanyName,
				Details:     fmt.Sprintf("Reduce %s by %.2f%% of portfolio", opt.Ticker, -diff),
			})
		}
	}

	return actions
}

// MergeSuggestions appends advisory tickers to the optimal allocation. The
// suggestion budget is capped: each new ticker gets an equal split of
// min(15, 5×n) percentage points. Suggestions already present in the
// allocation are dropped. Quotes price the new positions; a missing quote
// leaves a nil price and zero shares, and the ticker is still included.
func MergeSuggestions(optimal []Allocation, suggested []string, totalValue float64,
	quotes map[string]*data.Quote, profiles map[string]*data.CompanyProfile) []Allocation {

	existing := make(map[string]bool, len(optimal))
	for _, opt := range optimal {
		existing[opt.Ticker] = true
	}

	fresh := []string{}
	for _, ticker := range suggested {
		if !existing[ticker] {
			existing[ticker] = true
			fresh = append(fresh, ticker)
		}
	}
	if len(fresh) == 0 {
		return optimal
	}

	budget := suggestionPctEach * float64(len(fresh))
	if budget > suggestionPctCap {
		budget = suggestionPctCap
	}
	perTicker := round2(budget / float64(len(fresh)))

	merged := make([]Allocation, len(optimal), len(optimal)+len(fresh))
	copy(merged, optimal)

	for _, ticker := range fresh {
		alloc := Allocation{
			Ticker:         ticker,
			CompanyName:    ticker,
			OptimalPercent: perTicker,
		}
		if p, ok := profiles[ticker]; ok && p.Name != "" {
			alloc.CompanyName = p.Name
		}
		if q, ok := quotes[ticker]; ok && q.Price > 0 {
			price := q.Price
			alloc.Price = &price
			if totalValue > 0 {
				alloc.Shares = int64(perTicker / 100 * totalValue / price)
			}
		}
		merged = append(merged, alloc)
	}

	return merged
}
