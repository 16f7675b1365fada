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

package handler

import (
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/marketlens/ml-api/ai"
	"github.com/marketlens/ml-api/common"
	"github.com/marketlens/ml-api/data"
)

const quarterWindow = 90 * 24 * time.Hour

// Broad market and headline sector proxies for the quarterly review.
var (
	marketProxy      = "SPY"
	quarterlySectors = []struct {
		ETF  string
		Name string
	}{
		{"XLK", "Technology"},
		{"XLF", "Financial"},
		{"XLV", "Healthcare"},
		{"XLE", "Energy"},
		{"XLI", "Industrial"},
	}
)

type sectorReturn struct {
	Name        string  `json:"name"`
	Performance float64 `json:"performance"`
}

type quarterlyResponse struct {
	MarketTrend       string         `json:"market_trend"`
	MarketReturn      float64        `json:"market_return"`
	SectorPerformance []sectorReturn `json:"sector_performance"`
	MarketOutlook     string         `json:"market_outlook"`
}

// Quarterly reports the trailing three month market trend alongside headline
// sector returns and an advisory outlook.
func Quarterly(c *fiber.Ctx) error {
	ctx := c.UserContext()

	to := time.Now().In(common.GetTimezone())
	from := to.Add(-quarterWindow)

	tickers := []string{marketProxy}
	for _, sector := range quarterlySectors {
		tickers = append(tickers, sector.ETF)
	}
	series, _ := mgr.FetchHistory(ctx, tickers, from, to)

	trend := "Neutral"
	marketReturn := 0.0
	if pct, ok := trailingReturn(series[marketProxy]); ok {
		marketReturn = pct
		if pct >= 0 {
			trend = "Bullish"
		} else {
			trend = "Bearish"
		}
	}

	sectors := make([]sectorReturn, 0, len(quarterlySectors))
	for _, sector := range quarterlySectors {
		pct, _ := trailingReturn(series[sector.ETF])
		sectors = append(sectors, sectorReturn{Name: sector.Name, Performance: pct})
	}

	outlook := ai.Fallback
	if gen != nil && gen.Enabled() {
		prompt := fmt.Sprintf(`The broad market moved %.2f%% over the last quarter (%s trend).
Sector returns: %v.
Write a short market outlook for the coming quarter.`, marketReturn, trend, sectors)
		outlook = gen.Generate(ctx, "You are a world-class financial AI.", prompt)
	}

	return c.JSON(quarterlyResponse{
		MarketTrend:       trend,
		MarketReturn:      marketReturn,
		SectorPerformance: sectors,
		MarketOutlook:     outlook,
	})
}

func trailingReturn(bars []data.Bar) (float64, bool) {
	if len(bars) < 2 || bars[0].AdjClose == 0 {
		return 0, false
	}
	pct := (bars[len(bars)-1].AdjClose/bars[0].AdjClose - 1) * 100
	return math.Round(pct*100) / 100, true
}
