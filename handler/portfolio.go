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

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/marketlens/ml-api/portfolio"
)

// OptimizePortfolio accepts a multipart holdings CSV (field "portfolio") plus
// a risk_tolerance form value and runs the optimization pipeline. Input
// problems map to 400 with a detail message; anything downstream degrades into
// warnings inside a 200 response.
func OptimizePortfolio(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("portfolio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "no portfolio file provided",
		})
	}

	riskTolerance := c.FormValue("risk_tolerance", "Moderate")

	f, err := fileHeader.Open()
	if err != nil {
		log.Warn().Err(err).Str("Filename", fileHeader.Filename).Msg("could not open uploaded portfolio")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": portfolio.ErrUnreadableFile.Error(),
		})
	}
	defer f.Close()

	resp, err := svc.OptimizePortfolio(c.UserContext(), f, riskTolerance)
	if err != nil {
		if isUserError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": err.Error()})
		}
		log.Error().Err(err).Msg("portfolio optimization failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(resp)
}

func isUserError(err error) bool {
	for _, userErr := range []error{
		portfolio.ErrMissingColumns,
		portfolio.ErrNoHoldings,
		portfolio.ErrTooFewHoldings,
		portfolio.ErrNoValidTickers,
		portfolio.ErrUnreadableFile,
		portfolio.ErrInsufficientHistory,
	} {
		if errors.Is(err, userErr) {
			return true
		}
	}
	return false
}
