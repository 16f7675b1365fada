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

package data

import (
	"fmt"
	"sync"
	"time"
)

type seriesEntry struct {
	bars    []Bar
	fetched time.Time
}

// SeriesCache is a short-TTL cache of raw market history keyed by
// (ticker, requested range). It is the only state shared across requests
// besides the fetch throttle; all access goes through one mutex.
type SeriesCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]seriesEntry
}

// NewSeriesCache creates a cache whose entries expire after ttl.
func NewSeriesCache(ttl time.Duration) *SeriesCache {
	return &SeriesCache{
		ttl:     ttl,
		entries: make(map[string]seriesEntry),
	}
}

// Get returns the cached series for the exact requested range, if present and
// not expired. The returned slice is a copy; callers may not mutate cached data.
func (c *SeriesCache) Get(ticker string, from, to time.Time) ([]Bar, bool) {
	c.mu.RLock()
	entry, ok := c.entries[seriesKey(ticker, from, to)]
	c.mu.RUnlock()

	if !ok || time.Since(entry.fetched) > c.ttl {
		return nil, false
	}

	bars := make([]Bar, len(entry.bars))
	copy(bars, entry.bars)
	return bars, true
}

// Set stores the series fetched for the requested range.
func (c *SeriesCache) Set(ticker string, from, to time.Time, bars []Bar) {
	stored := make([]Bar, len(bars))
	copy(stored, bars)

	c.mu.Lock()
	c.entries[seriesKey(ticker, from, to)] = seriesEntry{bars: stored, fetched: time.Now()}
	c.mu.Unlock()
}

// Len returns the number of live entries; expired entries are counted until
// the next Set for their key.
func (c *SeriesCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func seriesKey(ticker string, from, to time.Time) string {
	return fmt.Sprintf("%s:%s:%s", ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))
}
