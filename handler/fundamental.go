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
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/marketlens/ml-api/ai"
	"github.com/marketlens/ml-api/common"
)

// Fundamentals change slowly; cache longer than quotes.
const fundamentalCacheTTL = 10 * time.Minute

type fundamentalRequest struct {
	Ticker string `json:"ticker"`
}

// Fundamental is a company snapshot with an advisory narrative. Every field
// has a defined default so the response shape is stable even when reference
// data did not resolve.
type Fundamental struct {
	Ticker        string  `json:"ticker"`
	CompanyName   string  `json:"company_name"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	Exchange      string  `json:"exchange"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	MarketCap     float64 `json:"market_cap"`
	Analysis      string  `json:"analysis"`
}

// GetFundamental builds a company snapshot for the requested ticker from
// reference data and the latest quote, with an advisory narrative attached.
func GetFundamental(c *fiber.Ctx) error {
	var req fundamentalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid request body"})
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "ticker is required"})
	}

	cacheKey := "fundamental:" + ticker
	if cached, err := common.CacheGet(cacheKey); err == nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(cached)
	}

	ctx := c.UserContext()
	profile := mgr.Profile(ctx, ticker)
	quote := mgr.Quote(ctx, ticker)

	fundamental := Fundamental{
		Ticker:        ticker,
		CompanyName:   profile.Name,
		Sector:        profile.Sector,
		Industry:      profile.Industry,
		Exchange:      profile.Exchange,
		Price:         quote.Price,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		MarketCap:     profile.MarketCap,
		Analysis:      ai.Fallback,
	}

	if gen != nil && gen.Enabled() {
		snapshot, err := json.Marshal(fundamental)
		if err == nil {
			prompt := fmt.Sprintf(`Provide a concise fundamental analysis of the following company.
Cover valuation, competitive position, and key risks in a few short paragraphs.

%s`, snapshot)
			fundamental.Analysis = gen.Generate(ctx, "You are a world-class financial AI.", prompt)
		}
	}

	payload, err := json.Marshal(fundamental)
	if err != nil {
		log.Error().Err(err).Str("Ticker", ticker).Msg("could not serialize fundamental snapshot")
		return fiber.ErrInternalServerError
	}
	if err := common.CacheSet(cacheKey, payload, fundamentalCacheTTL); err != nil {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("could not cache fundamental snapshot")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}
