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

package ai

import "regexp"

var tickerRe = regexp.MustCompile(`\b([A-Z]{2,5})\b`)

// Terms that match the ticker pattern but are prose, not symbols.
var tickerDenylist = map[string]bool{
	"ETF": true,
	"AI":  true,
}

// ExtractTickers pulls candidate ticker symbols out of free-form generated
// text. Extraction is best-effort: output order follows first appearance,
// duplicates and denylisted words are dropped, and no validation against a
// security master is attempted.
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)
	tickers := []string{}

	for _, match := range tickerRe.FindAllString(text, -1) {
		if tickerDenylist[match] || seen[match] {
			continue
		}
		seen[match] = true
		tickers = append(tickers, match)
	}

	return tickers
}
