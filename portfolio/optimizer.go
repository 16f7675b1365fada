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
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Solver tuning. The quadratic utility μᵀw − γwᵀΣw is maximized over the
// long-only simplex by projected gradient ascent; γ trades return for risk.
const (
	solverIterations = 2000
	solverTolerance  = 1e-10

	gammaMin = 1e-4
	gammaMax = 1e6

	// weights below this are clipped to zero after solving
	weightFloor = 1e-4
	// renormalize only when clipping moves the total off 1 by more than this
	renormTolerance = 1e-3

	// slack when judging whether a target volatility is achievable
	volatilitySlack = 1e-9

	defaultRiskFreeRate = 0.02
)

// OptimizationStatus reports how the requested objective was satisfied.
type OptimizationStatus string

const (
	StatusOK       OptimizationStatus = "optimal"
	StatusRelaxed  OptimizationStatus = "relaxed"
	StatusFallback OptimizationStatus = "fallback"
)

// Objective selects the optimization target.
type Objective struct {
	targetVolatility float64
	maxSharpe        bool
}

// MaxSharpe maximizes the Sharpe ratio.
func MaxSharpe() Objective {
	return Objective{maxSharpe: true}
}

// TargetVolatility maximizes return subject to annualized volatility v.
func TargetVolatility(v float64) Objective {
	return Objective{targetVolatility: v}
}

// OptimizationResult is the solved allocation and its projected performance.
type OptimizationResult struct {
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	Status         OptimizationStatus `json:"status"`
	Warning        string             `json:"warning,omitempty"`
}

// Optimize solves for long-only weights over the given symbols. A result is
// always returned: an unachievable volatility target relaxes to the minimum
// achievable volatility, and a degenerate solve falls back to the maximum
// Sharpe portfolio, each with a warning attached.
func Optimize(model *ReturnModel, objective Objective) *OptimizationResult {
	if objective.maxSharpe {
		w := solveMaxSharpe(model)
		return buildResult(model, w, StatusOK, "")
	}

	target := objective.targetVolatility

	minW := solveMinVariance(model)
	minVol := PortfolioVolatility(model.Sigma, minW)

	if !weightsFinite(minW) {
		log.Warn().Msg("minimum variance solve is degenerate; falling back to max Sharpe")
		w := solveMaxSharpe(model)
		return buildResult(model, w, StatusFallback,
			"Could not achieve target volatility. Using maximum Sharpe ratio portfolio instead.")
	}

	if target >= minVol-volatilitySlack {
		w := solveEfficientRisk(model, target, minVol)
		if weightsFinite(w) {
			return buildResult(model, w, StatusOK, "")
		}
		log.Warn().Float64("Target", target).Msg("efficient risk solve is degenerate; falling back to max Sharpe")
		w = solveMaxSharpe(model)
		return buildResult(model, w, StatusFallback,
			"Could not achieve target volatility. Using maximum Sharpe ratio portfolio instead.")
	}

	// Target below the frontier: relax to the minimum achievable volatility.
	warning := fmt.Sprintf(
		"Requested target volatility %.2f was too low. Used minimum achievable volatility %.3f instead.",
		target, minVol)
	log.Info().Float64("Target", target).Float64("MinVolatility", minVol).Msg("volatility target relaxed")

	return buildResult(model, minW, StatusRelaxed, warning)
}

func buildResult(model *ReturnModel, weights []float64, status OptimizationStatus, warning string) *OptimizationResult {
	cleaned := CleanWeights(weights)

	ret := PortfolioReturn(model.Mu, cleaned)
	vol := PortfolioVolatility(model.Sigma, cleaned)

	sharpe := 0.0
	if vol > 0 {
		sharpe = (ret - riskFreeRate()) / vol
	}

	bySymbol := make(map[string]float64, len(model.Symbols))
	for ii, symbol := range model.Symbols {
		bySymbol[symbol] = cleaned[ii]
	}

	return &OptimizationResult{
		Weights:        bySymbol,
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    sharpe,
		Status:         status,
		Warning:        warning,
	}
}

func riskFreeRate() float64 {
	if viper.IsSet("optimize.risk_free_rate") {
		return viper.GetFloat64("optimize.risk_free_rate")
	}
	return defaultRiskFreeRate
}

// CleanWeights zeroes allocations below the floor and renormalizes only when
// clipping moved the total materially away from one.
func CleanWeights(weights []float64) []float64 {
	cleaned := make([]float64, len(weights))
	copy(cleaned, weights)

	for ii, w := range cleaned {
		if w < weightFloor {
			cleaned[ii] = 0
		}
	}

	total := floats.Sum(cleaned)
	if total > 0 && math.Abs(total-1) > renormTolerance {
		floats.Scale(1/total, cleaned)
	}

	return cleaned
}

// solveQuadraticUtility maximizes μᵀw − γwᵀΣw over the simplex by projected
// gradient ascent with a diminishing step.
func solveQuadraticUtility(model *ReturnModel, gamma float64) []float64 {
	n := len(model.Symbols)

	w := make([]float64, n)
	for ii := range w {
		w[ii] = 1 / float64(n)
	}

	// Lipschitz-style step from the largest diagonal risk term.
	maxDiag := 0.0
	for ii := 0; ii < n; ii++ {
		if d := model.Sigma.At(ii, ii); d > maxDiag {
			maxDiag = d
		}
	}
	step := 1.0 / (1 + 2*gamma*maxDiag)

	grad := make([]float64, n)
	next := make([]float64, n)

	for iter := 0; iter < solverIterations; iter++ {
		// grad = μ − 2γΣw
		wv := mat.NewVecDense(n, w)
		var sw mat.VecDense
		sw.MulVec(model.Sigma, wv)
		for ii := 0; ii < n; ii++ {
			grad[ii] = model.Mu[ii] - 2*gamma*sw.AtVec(ii)
		}

		for ii := 0; ii < n; ii++ {
			next[ii] = w[ii] + step*grad[ii]
		}
		projectSimplex(next)

		delta := 0.0
		for ii := 0; ii < n; ii++ {
			delta += math.Abs(next[ii] - w[ii])
		}
		copy(w, next)
		if delta < solverTolerance {
			break
		}
	}

	return w
}

// solveMinVariance is the pure-risk solve: quadratic utility with the return
// term removed.
func solveMinVariance(model *ReturnModel) []float64 {
	zero := &ReturnModel{
		Symbols: model.Symbols,
		Mu:      make([]float64, len(model.Symbols)),
		Sigma:   model.Sigma,
	}
	return solveQuadraticUtility(zero, 1)
}

// solveEfficientRisk finds the highest-return portfolio whose volatility does
// not exceed the target by bisecting the risk-aversion parameter: volatility
// decreases monotonically as γ grows.
func solveEfficientRisk(model *ReturnModel, target, minVol float64) []float64 {
	lo, hi := gammaMin, gammaMax

	wLo := solveQuadraticUtility(model, lo)
	if PortfolioVolatility(model.Sigma, wLo) <= target {
		// even the most return-seeking portfolio is within the budget
		return wLo
	}

	var w []float64
	for iter := 0; iter < 80; iter++ {
		mid := math.Sqrt(lo * hi)
		w = solveQuadraticUtility(model, mid)
		vol := PortfolioVolatility(model.Sigma, w)

		if math.Abs(vol-target) < 1e-6 {
			return w
		}
		if vol > target {
			lo = mid
		} else {
			hi = mid
		}
	}

	// converged near the target; prefer the risk-feasible side
	w = solveQuadraticUtility(model, hi)
	if PortfolioVolatility(model.Sigma, w) <= target+volatilitySlack {
		return w
	}
	return solveQuadraticUtility(model, gammaMax)
}

// solveMaxSharpe sweeps the risk-aversion parameter over a log-spaced grid
// and keeps the portfolio with the best Sharpe ratio.
func solveMaxSharpe(model *ReturnModel) []float64 {
	const points = 40
	rf := riskFreeRate()

	bestSharpe := math.Inf(-1)
	var best []float64

	for ii := 0; ii < points; ii++ {
		frac := float64(ii) / float64(points-1)
		gamma := gammaMin * math.Pow(gammaMax/gammaMin, frac)

		w := solveQuadraticUtility(model, gamma)
		vol := PortfolioVolatility(model.Sigma, w)
		if vol <= 0 || !weightsFinite(w) {
			continue
		}

		sharpe := (PortfolioReturn(model.Mu, w) - rf) / vol
		if sharpe > bestSharpe {
			bestSharpe = sharpe
			best = w
		}
	}

	if best == nil {
		// every candidate was degenerate; equal weights are the safe answer
		n := len(model.Symbols)
		best = make([]float64, n)
		for ii := range best {
			best[ii] = 1 / float64(n)
		}
	}

	return best
}

// projectSimplex maps v in place onto {w : w ≥ 0, Σw = 1} by Euclidean
// projection (sort-based algorithm).
func projectSimplex(v []float64) {
	n := len(v)
	sorted := make([]float64, n)
	copy(sorted, v)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cumsum := 0.0
	rho := -1
	var theta float64
	for ii := 0; ii < n; ii++ {
		cumsum += sorted[ii]
		t := (cumsum - 1) / float64(ii+1)
		if sorted[ii]-t > 0 {
			rho = ii
			theta = t
		}
	}
	if rho < 0 {
		for ii := range v {
			v[ii] = 1 / float64(n)
		}
		return
	}

	for ii := range v {
		v[ii] = math.Max(v[ii]-theta, 0)
	}
}

func weightsFinite(w []float64) bool {
	for _, x := range w {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
