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
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/marketlens/ml-api/common"
	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/news"
)

const (
	recommendationsCacheKey = "recommendations"
	recommendationsCacheTTL = 60 * time.Second

	recommendationCount = 3
	noAnalysisFallback  = "No AI analysis available."
)

// Widely traded tickers scanned for daily recommendations.
var topTickers = []string{"NVDA", "AAPL", "TSLA", "MSFT", "GOOGL"}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// StockRecommendation is one recommended stock with its advisory rationale.
type StockRecommendation struct {
	Ticker        string         `json:"ticker"`
	CompanyName   string         `json:"company_name"`
	Price         float64        `json:"price"`
	ChangePercent float64        `json:"change_percent"`
	Reason        string         `json:"reason"`
	News          []news.Article `json:"news"`
}

type recommendationsResponse struct {
	Recommendations []StockRecommendation `json:"recommendations"`
	AsOf            time.Time             `json:"as_of"`
}

type aiPick struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// Recommendations scans a fixed list of widely traded tickers, gathers quotes
// and headlines concurrently, and asks the advisory model to rank them. The
// model response is best-effort: unparseable output falls back to quote-only
// entries. Responses are cached briefly since the underlying quotes move.
func Recommendations(c *fiber.Ctx) error {
	if cached, err := common.CacheGet(recommendationsCacheKey); err == nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(cached)
	}

	ctx := c.UserContext()

	quotes := make(map[string]*data.Quote, len(topTickers))
	profiles := make(map[string]*data.CompanyProfile, len(topTickers))
	articles := make(map[string][]news.Article, len(topTickers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ticker := range topTickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			quote := mgr.Quote(ctx, ticker)
			profile := mgr.Profile(ctx, ticker)
			var stories []news.Article
			if newsClient != nil {
				stories = newsClient.GetNews(ctx, ticker, recommendationCount)
			}

			mu.Lock()
			quotes[ticker] = quote
			profiles[ticker] = profile
			articles[ticker] = stories
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	picks := rankTickers(ctx, quotes, articles)

	recommendations := make([]StockRecommendation, 0, len(picks))
	for _, pick := range picks {
		quote := quotes[pick.Ticker]
		if quote == nil {
			continue
		}
		recommendations = append(recommendations, StockRecommendation{
			Ticker:        pick.Ticker,
			CompanyName:   profiles[pick.Ticker].Name,
			Price:         quote.Price,
			ChangePercent: quote.ChangePercent,
			Reason:        pick.Reason,
			News:          articles[pick.Ticker],
		})
	}

	response := recommendationsResponse{
		Recommendations: recommendations,
		AsOf:            time.Now(),
	}

	payload, err := json.Marshal(response)
	if err != nil {
		log.Error().Err(err).Msg("could not serialize recommendations")
		return fiber.ErrInternalServerError
	}
	if err := common.CacheSet(recommendationsCacheKey, payload, recommendationsCacheTTL); err != nil {
		log.Warn().Err(err).Msg("could not cache recommendations")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}

// rankTickers asks the advisory model for its top picks and falls back to the
// first few scanned tickers when the response cannot be used.
func rankTickers(ctx context.Context, quotes map[string]*data.Quote, articles map[string][]news.Article) []aiPick {
	fallback := make([]aiPick, 0, recommendationCount)
	for _, ticker := range topTickers[:recommendationCount] {
		fallback = append(fallback, aiPick{Ticker: ticker, Reason: noAnalysisFallback})
	}

	if gen == nil || !gen.Enabled() {
		return fallback
	}

	var sb strings.Builder
	for _, ticker := range topTickers {
		quote := quotes[ticker]
		fmt.Fprintf(&sb, "%s: price %.2f, day change %.2f%%\n", ticker, quote.Price, quote.ChangePercent)
		for _, article := range articles[ticker] {
			fmt.Fprintf(&sb, "  headline: %s\n", article.Title)
		}
	}

	prompt := fmt.Sprintf(`Given the following market data and headlines, pick the %d most
attractive stocks and explain each choice in one sentence.

%s
Respond ONLY with a JSON array: [{"ticker": "...", "reason": "..."}, ...]`,
		recommendationCount, sb.String())

	raw := gen.Generate(ctx, "You are a world-class financial AI.", prompt)

	match := jsonArrayRe.FindString(raw)
	if match == "" {
		log.Warn().Msg("no JSON array in recommendation response")
		return fallback
	}

	var picks []aiPick
	if err := json.Unmarshal([]byte(match), &picks); err != nil {
		log.Warn().Err(err).Msg("could not parse recommendation response")
		return fallback
	}

	known := make(map[string]bool, len(topTickers))
	for _, ticker := range topTickers {
		known[ticker] = true
	}

	valid := make([]aiPick, 0, recommendationCount)
	for _, pick := range picks {
		pick.Ticker = strings.ToUpper(strings.TrimSpace(pick.Ticker))
		if !known[pick.Ticker] {
			continue
		}
		if pick.Reason == "" {
			pick.Reason = noAnalysisFallback
		}
		valid = append(valid, pick)
		if len(valid) == recommendationCount {
			break
		}
	}
	if len(valid) == 0 {
		return fallback
	}
	return valid
}
