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
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/marketlens/ml-api/data"
)

var _ = Describe("FetchClient", func() {
	var (
		ctx    context.Context
		client *data.FetchClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = data.NewFetchClient(
			data.WithMinInterval(time.Millisecond),
			data.WithMaxRetries(3),
			data.WithInitialBackoff(time.Millisecond),
		)

		httpmock.ActivateNonDefault(client.HTTPClient())
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Context("when the upstream responds 200", func() {
		It("returns the body on the first attempt", func() {
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.NewStringResponder(200, `{"ok":true}`))

			res, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			Expect(err).To(BeNil())
			Expect(res.StatusCode).To(Equal(http.StatusOK))
			Expect(res.Attempts).To(Equal(1))
			Expect(string(res.Body)).To(Equal(`{"ok":true}`))
		})
	})

	Context("when the upstream throttles and then recovers", func() {
		It("retries with backoff until a 200 arrives", func() {
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.ResponderFromMultipleResponses([]*http.Response{
					httpmock.NewStringResponse(429, "slow down"),
					httpmock.NewStringResponse(429, "slow down"),
					httpmock.NewStringResponse(200, `{"ok":true}`),
				}))

			res, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			Expect(err).To(BeNil())
			Expect(res.StatusCode).To(Equal(http.StatusOK))
			Expect(res.Attempts).To(Equal(3))
		})
	})

	Context("when a retry follows a short backoff", func() {
		It("still spaces attempts by the minimum interval", func() {
			client = data.NewFetchClient(
				data.WithMinInterval(150*time.Millisecond),
				data.WithMaxRetries(3),
				data.WithInitialBackoff(time.Millisecond),
			)
			httpmock.ActivateNonDefault(client.HTTPClient())

			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.ResponderFromMultipleResponses([]*http.Response{
					httpmock.NewStringResponse(429, "slow down"),
					httpmock.NewStringResponse(200, `{"ok":true}`),
				}))

			start := time.Now()
			res, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			elapsed := time.Since(start)

			Expect(err).To(BeNil())
			Expect(res.Attempts).To(Equal(2))
			Expect(elapsed).To(BeNumerically(">=", 140*time.Millisecond))
		})
	})

	Context("when the upstream throttles on every attempt", func() {
		It("gives up after the retry budget is spent", func() {
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.NewStringResponder(429, "slow down"))

			res, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			Expect(err).To(MatchError(data.ErrRateLimitExhausted))
			Expect(res.Attempts).To(Equal(4))
			Expect(httpmock.GetTotalCallCount()).To(Equal(4))
		})
	})

	Context("when the upstream responds with a hard failure", func() {
		It("does not retry a 404", func() {
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.NewStringResponder(404, "not found"))

			res, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			Expect(err).To(MatchError(data.ErrRequestFailed))
			Expect(res.Attempts).To(Equal(1))
			Expect(httpmock.GetTotalCallCount()).To(Equal(1))
		})

		It("does not retry a 500", func() {
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.NewStringResponder(500, "boom"))

			_, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			Expect(err).To(MatchError(data.ErrRequestFailed))
			Expect(httpmock.GetTotalCallCount()).To(Equal(1))
		})
	})

	Context("when two calls share an endpoint class", func() {
		It("spaces them by at least the minimum interval", func() {
			client = data.NewFetchClient(
				data.WithMinInterval(50 * time.Millisecond),
			)
			httpmock.ActivateNonDefault(client.HTTPClient())
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.NewStringResponder(200, "ok"))

			start := time.Now()
			first, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			Expect(err).To(BeNil())
			Expect(first.Throttled).To(BeFalse())

			second, err := client.Get(ctx, "example", "https://example.com/v1/prices")
			Expect(err).To(BeNil())
			Expect(second.Throttled).To(BeTrue())
			Expect(time.Since(start)).To(BeNumerically(">=", 50*time.Millisecond))
		})

		It("does not delay calls against a different class", func() {
			client = data.NewFetchClient(
				data.WithMinInterval(time.Hour),
			)
			httpmock.ActivateNonDefault(client.HTTPClient())
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.NewStringResponder(200, "ok"))

			first, err := client.Get(ctx, "alpha", "https://example.com/v1/prices")
			Expect(err).To(BeNil())
			Expect(first.Throttled).To(BeFalse())

			second, err := client.Get(ctx, "beta", "https://example.com/v1/prices")
			Expect(err).To(BeNil())
			Expect(second.Throttled).To(BeFalse())
		})
	})

	Context("when the context is already cancelled", func() {
		It("returns before issuing the request", func() {
			client = data.NewFetchClient(data.WithMinInterval(time.Hour))
			httpmock.ActivateNonDefault(client.HTTPClient())
			httpmock.RegisterResponder("GET", "https://example.com/v1/prices",
				httpmock.NewStringResponder(200, "ok"))

			cancelled, cancel := context.WithCancel(ctx)

			_, err := client.Get(cancelled, "example", "https://example.com/v1/prices")
			Expect(err).To(BeNil())

			cancel()
			_, err = client.Get(cancelled, "example", "https://example.com/v1/prices")
			Expect(err).ToNot(BeNil())
		})
	})
})
