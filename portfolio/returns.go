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
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/marketlens/ml-api/data"
)

// Months per year; history is monthly so moments annualize by this factor.
const periodsPerYear = 12

var ErrInsufficientHistory = errors.New("insufficient overlapping history to compute returns")

// ReturnModel holds annualized return expectations and risk derived from
// aligned monthly history. Symbols gives the row/column order of Mu and Sigma.
type ReturnModel struct {
	Symbols []string
	Mu      []float64
	Sigma   *mat.SymDense
}

// NewReturnModel aligns each ticker's monthly bars on their common dates,
// computes simple monthly returns, and annualizes: expected returns by
// compounding, covariance by scaling the sample covariance. At least three
// overlapping observations are required so the sample covariance is defined.
func NewReturnModel(series data.TimeSeries, symbols []string) (*ReturnModel, error) {
	if len(symbols) == 0 {
		return nil, ErrInsufficientHistory
	}

	months := commonMonths(series, symbols)
	if len(months) < 3 {
		return nil, ErrInsufficientHistory
	}

	// monthly return matrix; rows are observations, columns are symbols
	nObs := len(months) - 1
	rets := mat.NewDense(nObs, len(symbols), nil)

	for jj, symbol := range symbols {
		prices := pricesOn(series[symbol], months)
		for ii := 1; ii < len(prices); ii++ {
			if prices[ii-1] == 0 {
				return nil, ErrInsufficientHistory
			}
			rets.Set(ii-1, jj, prices[ii]/prices[ii-1]-1)
		}
	}

	mu := make([]float64, len(symbols))
	for jj := range symbols {
		col := mat.Col(nil, jj, rets)
		mu[jj] = compoundedAnnualReturn(col)
	}

	sigma := mat.NewSymDense(len(symbols), nil)
	stat.CovarianceMatrix(sigma, rets, nil)
	sigma.ScaleSym(periodsPerYear, sigma)

	for ii := 0; ii < len(symbols); ii++ {
		for jj := ii; jj < len(symbols); jj++ {
			if math.IsNaN(sigma.At(ii, jj)) || math.IsInf(sigma.At(ii, jj), 0) {
				return nil, ErrInsufficientHistory
			}
		}
	}

	return &ReturnModel{
		Symbols: symbols,
		Mu:      mu,
		Sigma:   sigma,
	}, nil
}

// compoundedAnnualReturn is the geometric mean of (1+r) raised to the number
// of periods per year, minus one.
func compoundedAnnualReturn(rets []float64) float64 {
	growth := 1.0
	for _, r := range rets {
		growth *= 1 + r
	}
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, periodsPerYear/float64(len(rets))) - 1
}

type monthKey struct {
	year  int
	month time.Month
}

func keyFor(dt time.Time) monthKey {
	return monthKey{year: dt.Year(), month: dt.Month()}
}

// commonMonths returns the sorted months present in every requested series.
// Providers stamp monthly bars on different days, so alignment is by month.
func commonMonths(series data.TimeSeries, symbols []string) []monthKey {
	counts := make(map[monthKey]int)
	for _, symbol := range symbols {
		seen := make(map[monthKey]bool)
		for _, bar := range series[symbol] {
			key := keyFor(bar.Date)
			if !seen[key] {
				seen[key] = true
				counts[key]++
			}
		}
	}

	months := make([]monthKey, 0, len(counts))
	for key, n := range counts {
		if n == len(symbols) {
			months = append(months, key)
		}
	}

	sort.Slice(months, func(i, j int) bool {
		if months[i].year != months[j].year {
			return months[i].year < months[j].year
		}
		return months[i].month < months[j].month
	})
	return months
}

func pricesOn(bars []data.Bar, months []monthKey) []float64 {
	byMonth := make(map[monthKey]float64, len(bars))
	for _, bar := range bars {
		// last observation in the month wins
		byMonth[keyFor(bar.Date)] = bar.AdjClose
	}

	prices := make([]float64, len(months))
	for ii, key := range months {
		prices[ii] = byMonth[key]
	}
	return prices
}

// PortfolioReturn is the annualized expected return of weighted positions.
func PortfolioReturn(mu []float64, weights []float64) float64 {
	total := 0.0
	for ii := range weights {
		total += weights[ii] * mu[ii]
	}
	return total
}

// PortfolioVolatility is the annualized standard deviation sqrt(wᵀΣw).
func PortfolioVolatility(sigma *mat.SymDense, weights []float64) float64 {
	w := mat.NewVecDense(len(weights), weights)
	var sw mat.VecDense
	sw.MulVec(sigma, w)
	variance := mat.Dot(w, &sw)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
