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

package portfolio_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/portfolio"
)

var _ = Describe("Reconcile", func() {
	It("emits increase and reduce actions for material moves", func() {
		current := []portfolio.CurrentPosition{
			{Ticker: "AAPL", Percentage: 50},
			{Ticker: "MSFT", Percentage: 50},
		}
		optimal := []portfolio.Allocation{
			{Ticker: "AAPL", CompanyName: "Apple Inc.", OptimalPercent: 70},
			{Ticker: "MSFT", CompanyName: "Microsoft Corp.", OptimalPercent: 30},
		}

		actions := portfolio.Reconcile(current, optimal)
		Expect(actions).To(HaveLen(2))

		Expect(actions[0].Action).To(Equal("Increase"))
		Expect(actions[0].Ticker).To(Equal("AAPL"))
		Expect(actions[0].Details).To(Equal("Increase AAPL by 20.00% of portfolio"))

		Expect(actions[1].Action).To(Equal("Reduce"))
		Expect(actions[1].Details).To(Equal("Reduce MSFT by 20.00% of portfolio"))
	})

	It("skips moves below one percentage point", func() {
		current := []portfolio.CurrentPosition{
			{Ticker: "AAPL", Percentage: 50.4},
			{Ticker: "MSFT", Percentage: 49.6},
		}
		optimal := []portfolio.Allocation{
			{Ticker: "AAPL", OptimalPercent: 50},
			{Ticker: "MSFT", OptimalPercent: 50},
		}

		Expect(portfolio.Reconcile(current, optimal)).To(BeEmpty())
	})

	It("treats tickers missing from the portfolio as zero positions", func() {
		optimal := []portfolio.Allocation{
			{Ticker: "NVDA", OptimalPercent: 12.5},
		}

		actions := portfolio.Reconcile(nil, optimal)
		Expect(actions).To(HaveLen(1))
		Expect(actions[0].Details).To(Equal("Increase NVDA by 12.50% of portfolio"))
	})

	It("returns an empty slice when allocations already match", func() {
		current := []portfolio.CurrentPosition{{Ticker: "AAPL", Percentage: 100}}
		optimal := []portfolio.Allocation{{Ticker: "AAPL", OptimalPercent: 100}}

		Expect(portfolio.Reconcile(current, optimal)).To(BeEmpty())
	})
})

var _ = Describe("MergeSuggestions", func() {
	var (
		optimal  []portfolio.Allocation
		quotes   map[string]*data.Quote
		profiles map[string]*data.CompanyProfile
	)

	BeforeEach(func() {
		optimal = []portfolio.Allocation{
			{Ticker: "AAPL", OptimalPercent: 60},
			{Ticker: "MSFT", OptimalPercent: 40},
		}
		quotes = map[string]*data.Quote{
			"NVDA": {Ticker: "NVDA", Price: 200},
			"AMD":  {Ticker: "AMD", Price: 100},
		}
		profiles = map[string]*data.CompanyProfile{
			"NVDA": {Ticker: "NVDA", Name: "NVIDIA Corp.", Sector: "Technology"},
		}
	})

	It("splits five points per suggestion under the cap", func() {
		merged := portfolio.MergeSuggestions(optimal, []string{"NVDA", "AMD"}, 10000, quotes, profiles)

		Expect(merged).To(HaveLen(4))
		Expect(merged[2].Ticker).To(Equal("NVDA"))
		Expect(merged[2].OptimalPercent).To(Equal(5.0))
		Expect(merged[3].OptimalPercent).To(Equal(5.0))
	})

	It("caps the total suggestion budget at fifteen points", func() {
		suggested := []string{"NVDA", "AMD", "INTC", "QCOM", "AVGO"}
		merged := portfolio.MergeSuggestions(optimal, suggested, 10000, quotes, profiles)

		Expect(merged).To(HaveLen(7))
		for _, alloc := range merged[2:] {
			Expect(alloc.OptimalPercent).To(Equal(3.0))
		}
	})

	It("sizes share counts from the quote", func() {
		merged := portfolio.MergeSuggestions(optimal, []string{"NVDA"}, 10000, quotes, profiles)

		// 5% of 10000 at 200 per share
		last := merged[len(merged)-1]
		Expect(last.Price).NotTo(BeNil())
		Expect(*last.Price).To(Equal(200.0))
		Expect(last.Shares).To(Equal(int64(2)))
		Expect(last.CompanyName).To(Equal("NVIDIA Corp."))
	})

	It("includes unquoted suggestions with a nil price", func() {
		merged := portfolio.MergeSuggestions(optimal, []string{"ZZZZ"}, 10000, quotes, profiles)

		last := merged[len(merged)-1]
		Expect(last.Ticker).To(Equal("ZZZZ"))
		Expect(last.CompanyName).To(Equal("ZZZZ"))
		Expect(last.Price).To(BeNil())
		Expect(last.Shares).To(BeZero())
	})

	It("drops suggestions already in the allocation", func() {
		merged := portfolio.MergeSuggestions(optimal, []string{"AAPL", "NVDA"}, 10000, quotes, profiles)

		Expect(merged).To(HaveLen(3))
		Expect(merged[2].Ticker).To(Equal("NVDA"))
		Expect(merged[2].OptimalPercent).To(Equal(5.0))
	})

	It("dedupes repeated suggestions", func() {
		merged := portfolio.MergeSuggestions(optimal, []string{"NVDA", "NVDA"}, 10000, quotes, profiles)
		Expect(merged).To(HaveLen(3))
	})

	It("passes the allocation through untouched with no suggestions", func() {
		merged := portfolio.MergeSuggestions(optimal, nil, 10000, quotes, profiles)
		Expect(merged).To(Equal(optimal))
	})
})
