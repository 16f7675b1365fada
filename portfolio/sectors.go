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
	"context"
	"sort"
	"time"

	"github.com/marketlens/ml-api/common"
	"github.com/marketlens/ml-api/data"
)

// Sector ETF proxies used for market context.
var sectorETFs = map[string]string{
	"XLK":  "Technology",
	"XLF":  "Financial",
	"XLV":  "Healthcare",
	"XLE":  "Energy",
	"XLI":  "Industrial",
	"XLP":  "Consumer Staples",
	"XLY":  "Consumer Discretionary",
	"XLB":  "Materials",
	"XLU":  "Utilities",
	"XLRE": "Real Estate",
}

// SectorPerformance is one sector's trailing return in percent.
type SectorPerformance struct {
	Name        string  `json:"name"`
	Performance float64 `json:"performance"`
}

// SectorSnapshot returns each sector proxy's return over the trailing window,
// best first. Sectors whose ETF history did not resolve are omitted; when
// nothing resolves a zeroed table is returned so downstream rendering always
// has rows.
func SectorSnapshot(ctx context.Context, mgr *data.Manager, window time.Duration) []SectorPerformance {
	to := time.Now().In(common.GetTimezone())
	from := to.Add(-window)

	tickers := make([]string, 0, len(sectorETFs))
	for etf := range sectorETFs {
		tickers = append(tickers, etf)
	}
	sort.Strings(tickers)

	series, _ := mgr.FetchHistory(ctx, tickers, from, to)

	performance := []SectorPerformance{}
	for _, etf := range tickers {
		bars := series[etf]
		if len(bars) < 2 || bars[0].AdjClose == 0 {
			continue
		}
		performance = append(performance, SectorPerformance{
			Name:        sectorETFs[etf],
			Performance: round2((bars[len(bars)-1].AdjClose/bars[0].AdjClose - 1) * 100),
		})
	}

	if len(performance) == 0 {
		for _, name := range []string{"Technology", "Financial", "Healthcare", "Energy", "Industrial"} {
			performance = append(performance, SectorPerformance{Name: name})
		}
		return performance
	}

	sort.Slice(performance, func(i, j int) bool {
		return performance[i].Performance > performance[j].Performance
	})
	return performance
}
