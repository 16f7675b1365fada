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

package data_test

import (
	"context"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/marketlens/ml-api/data"
)

var _ = Describe("AlphaVantage", func() {
	var (
		ctx      context.Context
		provider data.Provider
	)

	BeforeEach(func() {
		ctx = context.Background()
		fetch := data.NewFetchClient(
			data.WithMinInterval(time.Millisecond),
			data.WithInitialBackoff(time.Millisecond),
		)
		provider = data.NewAlphaVantage("TEST", fetch)

		httpmock.ActivateNonDefault(fetch.HTTPClient())
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Context("with a well-formed monthly series", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET",
				"https://www.alphavantage.co/query?function=TIME_SERIES_MONTHLY_ADJUSTED&symbol=MSFT&apikey=TEST",
				httpmock.NewStringResponder(200, `{
					"Meta Data": {"2. Symbol": "MSFT"},
					"Monthly Adjusted Time Series": {
						"2023-03-31": {"4. close": "288.30", "5. adjusted close": "287.18"},
						"2023-02-28": {"4. close": "249.42", "5. adjusted close": "248.00"},
						"2023-01-31": {"4. close": "247.81", "5. adjusted close": "246.13"},
						"2022-12-30": {"4. close": "239.82", "5. adjusted close": "238.19"}
					}
				}`))
		})

		It("filters to the requested window and sorts ascending", func() {
			from := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)

			bars, err := provider.GetAdjustedHistory(ctx, "MSFT", from, to)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(3))
			Expect(bars[0].AdjClose).To(BeNumerically("~", 246.13, 1e-9))
			Expect(bars[2].AdjClose).To(BeNumerically("~", 287.18, 1e-9))
		})

		It("returns no bars when the window misses the series", func() {
			from := time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2010, time.December, 31, 0, 0, 0, 0, time.UTC)

			bars, err := provider.GetAdjustedHistory(ctx, "MSFT", from, to)
			Expect(err).To(BeNil())
			Expect(bars).To(BeEmpty())
		})
	})

	Context("with unparseable rows", func() {
		It("skips rows with bad prices", func() {
			httpmock.RegisterResponder("GET",
				"https://www.alphavantage.co/query?function=TIME_SERIES_MONTHLY_ADJUSTED&symbol=MSFT&apikey=TEST",
				httpmock.NewStringResponder(200, `{
					"Monthly Adjusted Time Series": {
						"2023-02-28": {"5. adjusted close": "not-a-number"},
						"2023-01-31": {"5. adjusted close": "246.13"}
					}
				}`))

			from := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)

			bars, err := provider.GetAdjustedHistory(ctx, "MSFT", from, to)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(1))
		})
	})

	Context("with a throttle notice instead of data", func() {
		It("returns no bars for the empty payload", func() {
			httpmock.RegisterResponder("GET",
				"https://www.alphavantage.co/query?function=TIME_SERIES_MONTHLY_ADJUSTED&symbol=MSFT&apikey=TEST",
				httpmock.NewStringResponder(200, `{"Note": "Thank you for using Alpha Vantage!"}`))

			from := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)

			bars, err := provider.GetAdjustedHistory(ctx, "MSFT", from, to)
			Expect(err).To(BeNil())
			Expect(bars).To(BeEmpty())
		})
	})
})
