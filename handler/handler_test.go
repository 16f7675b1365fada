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

package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/marketlens/ml-api/common"
	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/handler"
	"github.com/marketlens/ml-api/router"
)

const testTimeoutMs = 30000

type stubProvider struct {
	bars map[string][]data.Bar
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GetAdjustedHistory(_ context.Context, ticker string, _, _ time.Time) ([]data.Bar, error) {
	bars, ok := p.bars[ticker]
	if !ok {
		return nil, data.ErrNoData
	}
	return bars, nil
}

type stubQuotes struct {
	quotes   map[string]*data.Quote
	profiles map[string]*data.CompanyProfile
}

func (q *stubQuotes) GetQuote(_ context.Context, ticker string) (*data.Quote, error) {
	quote, ok := q.quotes[ticker]
	if !ok {
		return nil, data.ErrNoData
	}
	return quote, nil
}

func (q *stubQuotes) GetCompanyProfile(_ context.Context, ticker string) (*data.CompanyProfile, error) {
	profile, ok := q.profiles[ticker]
	if !ok {
		return nil, data.ErrNoData
	}
	return profile, nil
}

func monthlyBars(start float64, monthlyGrowth float64, months int) []data.Bar {
	bars := make([]data.Bar, 0, months)
	dt := time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)
	price := start
	for ii := 0; ii < months; ii++ {
		bars = append(bars, data.Bar{Date: dt, AdjClose: price})
		price *= 1 + monthlyGrowth
		dt = dt.AddDate(0, 1, 0)
	}
	return bars
}

func multipartCSV(csv string, riskTolerance string) *http.Request {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("portfolio", "holdings.csv")
	io.Copy(part, strings.NewReader(csv))
	writer.WriteField("risk_tolerance", riskTolerance)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/portfolio", &body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func decodeBody(resp *http.Response, out any) {
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	Expect(err).To(BeNil())
	Expect(json.Unmarshal(payload, out)).To(Succeed())
}

var _ = Describe("handlers", func() {
	var app *fiber.App

	BeforeEach(func() {
		common.SetupCache()

		provider := &stubProvider{bars: map[string][]data.Bar{
			"AAPL": monthlyBars(100, 0.01, 13),
			"MSFT": monthlyBars(200, 0.02, 13),
			"SPY":  monthlyBars(400, 0.015, 4),
		}}
		quotes := &stubQuotes{
			quotes: map[string]*data.Quote{
				"AAPL": {Ticker: "AAPL", Price: 100, ChangePercent: 1.1},
				"MSFT": {Ticker: "MSFT", Price: 200, ChangePercent: -0.4},
				"NVDA": {Ticker: "NVDA", Price: 300, ChangePercent: 2.0},
			},
			profiles: map[string]*data.CompanyProfile{
				"AAPL": {Ticker: "AAPL", Name: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics"},
				"MSFT": {Ticker: "MSFT", Name: "Microsoft Corp.", Sector: "Technology"},
				"NVDA": {Ticker: "NVDA", Name: "NVIDIA Corp.", Sector: "Technology"},
			},
		}

		mgr := data.NewManagerWithProviders(provider, nil, quotes)
		mgr.RetryDelay = time.Millisecond

		handler.Setup(mgr, nil, nil)

		app = fiber.New()
		router.SetupRoutes(app)
	})

	Describe("service endpoints", func() {
		It("answers ping", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body handler.PingResponse
			decodeBody(resp, &body)
			Expect(body.Status).To(Equal("success"))
			Expect(body.Message).To(Equal("API is alive"))
		})

		It("reports health", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), testTimeoutMs)
			Expect(err).To(BeNil())

			var body map[string]string
			decodeBody(resp, &body)
			Expect(body["status"]).To(Equal("healthy"))
		})

		It("reports API status with a version", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/status", nil), testTimeoutMs)
			Expect(err).To(BeNil())

			var body map[string]string
			decodeBody(resp, &body)
			Expect(body["status"]).To(Equal("ok"))
			Expect(body["version"]).NotTo(BeEmpty())
		})

		It("serves demo dashboard rows", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dashboard", nil), testTimeoutMs)
			Expect(err).To(BeNil())

			var body struct {
				Holdings []handler.DashboardRow `json:"holdings"`
				Demo     bool                   `json:"demo"`
			}
			decodeBody(resp, &body)
			Expect(body.Demo).To(BeTrue())
			Expect(body.Holdings).To(HaveLen(3))
			Expect(body.Holdings[0].Ticker).To(Equal("AAPL"))
		})
	})

	Describe("POST /portfolio", func() {
		It("optimizes an uploaded holdings file", func() {
			req := multipartCSV("ticker,amount,price\nAAPL,10,100\nMSFT,10,200\n", "Moderate")
			resp, err := app.Test(req, testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body struct {
				CurrentPortfolio struct {
					TotalValue float64 `json:"total_value"`
				} `json:"current_portfolio"`
			}
			decodeBody(resp, &body)
			Expect(body.CurrentPortfolio.TotalValue).To(Equal(3000.0))
		})

		It("rejects a request without a file", func() {
			req := httptest.NewRequest(http.MethodPost, "/portfolio", nil)
			resp, err := app.Test(req, testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a CSV without the required columns", func() {
			req := multipartCSV("symbol,shares\nAAPL,10\n", "Moderate")
			resp, err := app.Test(req, testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var body map[string]string
			decodeBody(resp, &body)
			Expect(body["detail"]).To(ContainSubstring("ticker"))
		})
	})

	Describe("GET /recommendations", func() {
		It("returns fallback picks when no generator is configured", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/recommendations", nil), testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body struct {
				Recommendations []handler.StockRecommendation `json:"recommendations"`
			}
			decodeBody(resp, &body)
			Expect(body.Recommendations).To(HaveLen(3))
			Expect(body.Recommendations[0].Ticker).To(Equal("NVDA"))
			Expect(body.Recommendations[0].Reason).To(Equal("No AI analysis available."))
			Expect(body.Recommendations[0].Price).To(Equal(300.0))
		})

		It("serves the cached payload on repeat calls", func() {
			first, err := app.Test(httptest.NewRequest(http.MethodGet, "/recommendations", nil), testTimeoutMs)
			Expect(err).To(BeNil())
			firstBody, _ := io.ReadAll(first.Body)
			first.Body.Close()

			second, err := app.Test(httptest.NewRequest(http.MethodGet, "/recommendations", nil), testTimeoutMs)
			Expect(err).To(BeNil())
			secondBody, _ := io.ReadAll(second.Body)
			second.Body.Close()

			Expect(secondBody).To(Equal(firstBody))
		})
	})

	Describe("POST /fundamental", func() {
		It("builds a company snapshot", func() {
			req := httptest.NewRequest(http.MethodPost, "/fundamental",
				strings.NewReader(`{"ticker": "aapl"}`))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req, testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body handler.Fundamental
			decodeBody(resp, &body)
			Expect(body.Ticker).To(Equal("AAPL"))
			Expect(body.CompanyName).To(Equal("Apple Inc."))
			Expect(body.Industry).To(Equal("Consumer Electronics"))
			Expect(body.Price).To(Equal(100.0))
		})

		It("defaults unknown tickers", func() {
			req := httptest.NewRequest(http.MethodPost, "/fundamental",
				strings.NewReader(`{"ticker": "ZZZZ"}`))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req, testTimeoutMs)
			Expect(err).To(BeNil())

			var body handler.Fundamental
			decodeBody(resp, &body)
			Expect(body.CompanyName).To(Equal("ZZZZ"))
			Expect(body.Sector).To(Equal("Other"))
			Expect(body.Price).To(BeZero())
		})

		It("rejects a request without a ticker", func() {
			req := httptest.NewRequest(http.MethodPost, "/fundamental", strings.NewReader(`{}`))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req, testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /quarterly", func() {
		It("derives the market trend from the broad market proxy", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/quarterly", nil), testTimeoutMs)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body struct {
				MarketTrend       string `json:"market_trend"`
				SectorPerformance []struct {
					Name        string  `json:"name"`
					Performance float64 `json:"performance"`
				} `json:"sector_performance"`
			}
			decodeBody(resp, &body)
			Expect(body.MarketTrend).To(Equal("Bullish"))
			Expect(body.SectorPerformance).To(HaveLen(5))
		})
	})
})
