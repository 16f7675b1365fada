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
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrMissingColumns = errors.New("CSV must contain 'ticker', 'amount', and 'price' columns")
	ErrNoHoldings     = errors.New("no holdings found in file")
	ErrTooFewHoldings = errors.New("at least two resolvable tickers are required for optimization")
	ErrNoValidTickers = errors.New("no valid tickers found for optimization")
	ErrUnreadableFile = errors.New("error reading portfolio file")
)

// The sentinel row a user may include to report their account's total worth
// when it differs from the sum of listed positions.
const totalWorthSentinel = "TOTAL_WORTH"

// Holding is one position taken from an uploaded CSV. Sector is optional
// metadata; when absent it is resolved from reference data later.
type Holding struct {
	Ticker string  `json:"ticker"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Sector string  `json:"sector,omitempty"`
}

// ParseHoldingsCSV reads holdings from a CSV with required columns ticker,
// amount and price (any order, extra columns ignored). A TOTAL_WORTH sentinel
// row overrides the reported total value, taking its number from the price
// column. Rows with an empty ticker or unparseable numbers are skipped.
func ParseHoldingsCSV(r io.Reader) ([]Holding, *float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, ErrUnreadableFile
	}

	cols := make(map[string]int, len(header))
	for ii, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = ii
	}

	tickerCol, okTicker := cols["ticker"]
	amountCol, okAmount := cols["amount"]
	priceCol, okPrice := cols["price"]
	if !okTicker || !okAmount || !okPrice {
		return nil, nil, ErrMissingColumns
	}
	sectorCol, hasSector := cols["sector"]

	var totalWorth *float64
	holdings := []Holding{}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, ErrUnreadableFile
		}
		if tickerCol >= len(record) || amountCol >= len(record) || priceCol >= len(record) {
			continue
		}

		ticker := strings.ToUpper(strings.TrimSpace(record[tickerCol]))
		if ticker == "" {
			continue
		}

		if ticker == totalWorthSentinel {
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[priceCol]), 64); err == nil {
				totalWorth = &v
			}
			continue
		}

		amount, err := strconv.ParseFloat(strings.TrimSpace(record[amountCol]), 64)
		if err != nil {
			log.Debug().Str("Ticker", ticker).Msg("skipping row with unparseable amount")
			continue
		}

		// Price may be blank; a later quote lookup fills it in.
		price := 0.0
		if raw := strings.TrimSpace(record[priceCol]); raw != "" {
			price, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				log.Debug().Str("Ticker", ticker).Msg("skipping row with unparseable price")
				continue
			}
		}

		h := Holding{
			Ticker: ticker,
			Amount: amount,
			Price:  price,
		}
		if hasSector && sectorCol < len(record) {
			h.Sector = strings.TrimSpace(record[sectorCol])
		}

		holdings = append(holdings, h)
	}

	if len(holdings) == 0 {
		return nil, totalWorth, ErrNoHoldings
	}

	return holdings, totalWorth, nil
}
