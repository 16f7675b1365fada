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
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/portfolio"
)

var _ = Describe("SectorSnapshot", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("ranks resolved sectors best first", func() {
		provider := &fakeProvider{bars: map[string][]data.Bar{
			"XLK": {
				{Date: time.Now().AddDate(0, -1, 0), AdjClose: 100},
				{Date: time.Now(), AdjClose: 110},
			},
			"XLF": {
				{Date: time.Now().AddDate(0, -1, 0), AdjClose: 100},
				{Date: time.Now(), AdjClose: 95},
			},
		}}
		mgr := data.NewManagerWithProviders(provider, nil, nil)
		mgr.RetryDelay = time.Millisecond

		perf := portfolio.SectorSnapshot(ctx, mgr, 30*24*time.Hour)

		Expect(perf).To(HaveLen(2))
		Expect(perf[0].Name).To(Equal("Technology"))
		Expect(perf[0].Performance).To(Equal(10.0))
		Expect(perf[1].Name).To(Equal("Financial"))
		Expect(perf[1].Performance).To(Equal(-5.0))
	})

	It("returns a zeroed table when nothing resolves", func() {
		mgr := data.NewManagerWithProviders(&fakeProvider{}, nil, nil)
		mgr.RetryDelay = time.Millisecond

		perf := portfolio.SectorSnapshot(ctx, mgr, 30*24*time.Hour)

		Expect(perf).To(HaveLen(5))
		for _, row := range perf {
			Expect(row.Performance).To(BeZero())
		}
		Expect(perf[0].Name).To(Equal("Technology"))
	})
})
