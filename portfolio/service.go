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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/marketlens/ml-api/ai"
	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/news"
	"github.com/marketlens/ml-api/observability/opentelemetry"
)

const (
	conservativeTargetVol = 0.10
	moderateTargetVol     = 0.15

	historyWindow       = 365 * 24 * time.Hour
	sectorContextWindow = 30 * 24 * time.Hour

	newsPerTicker = 3
)

// Service runs the optimization pipeline end to end: parse holdings, acquire
// history, solve, reconcile, and attach advisory context.
type Service struct {
	mgr  *data.Manager
	gen  *ai.Client
	news *news.Client
}

func NewService(mgr *data.Manager, gen *ai.Client, newsClient *news.Client) *Service {
	return &Service{
		mgr:  mgr,
		gen:  gen,
		news: newsClient,
	}
}

// CategoryWeight is a slice of the portfolio by sector.
type CategoryWeight struct {
	Category   string  `json:"category"`
	Percentage float64 `json:"percentage"`
}

// CurrentPortfolio describes the uploaded portfolio as it stands.
type CurrentPortfolio struct {
	TotalValue       float64           `json:"total_value"`
	AnnualizedReturn float64           `json:"annualized_return"`
	RiskLevel        string            `json:"risk_level"`
	AssetAllocation  []CategoryWeight  `json:"asset_allocation"`
	TopHoldings      []CurrentPosition `json:"top_holdings"`
}

// RecommendedOptimization carries the solved allocation and rebalance plan.
type RecommendedOptimization struct {
	ProjectedValue             float64          `json:"projected_value"`
	ProjectedReturn            float64          `json:"projected_return"`
	OptimizedRiskLevel         string           `json:"optimized_risk_level"`
	RecommendedAssetAllocation []CategoryWeight `json:"recommended_asset_allocation"`
	RecommendedActions         []Action         `json:"recommended_actions"`
	OptimizedAllocation        []Allocation     `json:"optimized_allocation"`
	TaxLossHarvesting          []string         `json:"tax_loss_harvesting"`
}

// MarketContext is the advisory backdrop attached to a response.
type MarketContext struct {
	SectorPerformance []SectorPerformance `json:"sector_performance"`
	PortfolioNews     []news.Article      `json:"portfolio_news"`
}

// OptimizeResponse is the full pipeline output.
type OptimizeResponse struct {
	CurrentPortfolio        CurrentPortfolio        `json:"current_portfolio"`
	RecommendedOptimization RecommendedOptimization `json:"recommended_optimization"`
	Warning                 string                  `json:"warning,omitempty"`
	VolatilityWarning       string                  `json:"volatility_warning,omitempty"`
	AIAnalysis              string                  `json:"ai_analysis"`
	MarketContext           MarketContext           `json:"market_context"`
	TotalWorthFromCSV       *float64                `json:"total_worth_from_csv,omitempty"`
}

// objectiveFor maps a user risk tolerance onto an optimization objective.
// Unrecognized values fall back to Moderate.
func objectiveFor(riskTolerance string) Objective {
	switch riskTolerance {
	case "Conservative":
		return TargetVolatility(conservativeTargetVol)
	case "Aggressive":
		return MaxSharpe()
	default:
		return TargetVolatility(moderateTargetVol)
	}
}

// OptimizePortfolio parses a holdings CSV and produces the optimized
// allocation with rebalancing actions and advisory context. Parse failures
// and too few resolvable tickers return an error; every downstream failure
// degrades into warnings on a complete response.
func (s *Service) OptimizePortfolio(ctx context.Context, r io.Reader, riskTolerance string) (*OptimizeResponse, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.OptimizePortfolio")
	defer span.End()

	holdings, totalWorth, err := ParseHoldingsCSV(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not parse holdings")
		return nil, err
	}

	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Ticker)
	}

	to := time.Now()
	from := to.Add(-historyWindow)
	series, failed := s.mgr.FetchHistory(ctx, tickers, from, to)

	quotes := make(map[string]*data.Quote, len(tickers))
	profiles := make(map[string]*data.CompanyProfile, len(tickers))
	for _, ticker := range tickers {
		quotes[ticker] = s.mgr.Quote(ctx, ticker)
		profiles[ticker] = s.mgr.Profile(ctx, ticker)
	}

	metrics := ComputeMetrics(holdings, totalWorth, series, quotes, profiles)

	valid := make([]Holding, 0, len(holdings))
	for _, h := range holdings {
		if len(series[h.Ticker]) > 0 {
			valid = append(valid, h)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoValidTickers
	}
	if len(valid) < 2 {
		return nil, ErrTooFewHoldings
	}

	symbols := make([]string, len(valid))
	for ii, h := range valid {
		symbols[ii] = h.Ticker
	}

	model, err := NewReturnModel(series, symbols)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not build return model")
		return nil, err
	}

	result := Optimize(model, objectiveFor(riskTolerance))

	// Position values prefer the uploaded price; quotes fill the gaps.
	totalValue := 0.0
	values := make(map[string]float64, len(valid))
	for _, h := range valid {
		price := h.Price
		if price <= 0 {
			price = quotes[h.Ticker].Price
		}
		values[h.Ticker] = price * h.Amount
		totalValue += values[h.Ticker]
	}

	current := make([]CurrentPosition, 0, len(valid))
	for _, h := range valid {
		pct := 0.0
		if totalValue > 0 {
			pct = round2(100 * values[h.Ticker] / totalValue)
		}
		current = append(current, CurrentPosition{
			Ticker:      h.Ticker,
			CompanyName: companyName(profiles, h.Ticker),
			Amount:      h.Amount,
			Value:       round2(values[h.Ticker]),
			Percentage:  pct,
		})
	}

	optimal := make([]Allocation, 0, len(symbols))
	for _, symbol := range symbols {
		alloc := Allocation{
			Ticker:         symbol,
			CompanyName:    companyName(profiles, symbol),
			OptimalPercent: round2(100 * result.Weights[symbol]),
		}
		if q := quotes[symbol]; q != nil && q.Price > 0 {
			price := q.Price
			alloc.Price = &price
			if totalValue > 0 {
				alloc.Shares = int64(alloc.OptimalPercent / 100 * totalValue / price)
			}
		}
		optimal = append(optimal, alloc)
	}

	actions := Reconcile(current, optimal)

	sectorPerf := SectorSnapshot(ctx, s.mgr, sectorContextWindow)
	portfolioNews := s.gatherNews(ctx, symbols)

	analysis := s.generateAnalysis(ctx, holdings, metrics, totalWorth, riskTolerance,
		current, optimal, sectorPerf, portfolioNews)

	suggested := ai.ExtractTickers(analysis)
	if len(suggested) > 0 {
		for _, ticker := range suggested {
			if _, ok := quotes[ticker]; !ok {
				quotes[ticker] = s.mgr.Quote(ctx, ticker)
				profiles[ticker] = s.mgr.Profile(ctx, ticker)
			}
		}
		optimal = MergeSuggestions(optimal, suggested, totalValue, quotes, profiles)
	}

	topHoldings := current
	if len(topHoldings) > 5 {
		topHoldings = topHoldings[:5]
	}

	assetAllocation := make([]CategoryWeight, 0, len(metrics.SectorExposure))
	for sector, pct := range metrics.SectorExposure {
		assetAllocation = append(assetAllocation, CategoryWeight{Category: sector, Percentage: pct})
	}

	response := &OptimizeResponse{
		CurrentPortfolio: CurrentPortfolio{
			TotalValue:       metrics.TotalValue,
			AnnualizedReturn: metrics.ExpectedReturn,
			RiskLevel:        metrics.RiskLevel,
			AssetAllocation:  assetAllocation,
			TopHoldings:      topHoldings,
		},
		RecommendedOptimization: RecommendedOptimization{
			ProjectedValue:             round2(totalValue * (1 + result.ExpectedReturn)),
			ProjectedReturn:            round2(result.ExpectedReturn * 100),
			OptimizedRiskLevel:         riskTolerance,
			RecommendedAssetAllocation: assetAllocation,
			RecommendedActions:         actions,
			OptimizedAllocation:        optimal,
			TaxLossHarvesting:          []string{},
		},
		AIAnalysis: analysis,
		MarketContext: MarketContext{
			SectorPerformance: sectorPerf,
			PortfolioNews:     portfolioNews,
		},
		TotalWorthFromCSV: totalWorth,
	}

	if len(failed) > 0 {
		response.Warning = fmt.Sprintf(
			"Warning: Could not fetch data for: %s. These tickers were excluded from optimization.",
			strings.Join(failed, ", "))
	}
	if result.Warning != "" {
		response.VolatilityWarning = result.Warning
	}

	return response, nil
}

func (s *Service) gatherNews(ctx context.Context, symbols []string) []news.Article {
	articles := []news.Article{}
	if s.news == nil {
		return articles
	}
	for _, symbol := range symbols {
		articles = append(articles, s.news.GetNews(ctx, symbol, newsPerTicker)...)
	}
	return articles
}

func (s *Service) generateAnalysis(ctx context.Context, holdings []Holding, metrics *Metrics,
	totalWorth *float64, riskTolerance string, current []CurrentPosition, optimal []Allocation,
	sectorPerf []SectorPerformance, articles []news.Article) string {

	if s.gen == nil {
		return ai.Fallback
	}

	snapshot, err := json.MarshalIndent(map[string]any{
		"holdings":             holdings,
		"metrics":              metrics,
		"total_worth":          totalWorth,
		"risk_tolerance":       riskTolerance,
		"current_allocation":   current,
		"optimized_allocation": optimal,
	}, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("could not serialize portfolio snapshot for analysis")
		return ai.Fallback
	}

	newsJSON, _ := json.MarshalIndent(articles, "", "  ")
	sectorJSON, _ := json.Marshal(sectorPerf)

	user := fmt.Sprintf(`Analyze the following portfolio and provide comprehensive insights:

PORTFOLIO DATA:
%s

MARKET CONTEXT:
- Risk Tolerance: %s
- Current Sector Performance: %s
- Recent News: %s

Please provide:
1. Portfolio Analysis: risk profile and alignment with the selected risk tolerance, diversification assessment, sector exposure, performance metrics.
2. Market Analysis: current conditions, sector insights, sentiment.
3. Stock-Specific Analysis: individual outlooks, news impact, risk factors.
4. Recommendations: optimization suggestions, new stock suggestions aligned with the risk tolerance and diversification needs, specific actions.
5. Risk Assessment: overall portfolio risk score (0-100), risk factors and mitigation.

Format the response in clear sections with actionable insights and specific recommendations.`,
		snapshot, riskTolerance, sectorJSON, newsJSON)

	return s.gen.Generate(ctx, "You are a world-class financial AI.", user)
}

func companyName(profiles map[string]*data.CompanyProfile, ticker string) string {
	if p, ok := profiles[ticker]; ok && p.Name != "" {
		return p.Name
	}
	return ticker
}
