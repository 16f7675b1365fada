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
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/marketlens/ml-api/common"
)

type PingResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"API is alive"`
	Time    string `json:"time" example:"2025-06-19T08:09:10.115924-05:00"`
}

func Ping(c *fiber.Ctx) error {
	now, _ := time.Now().MarshalText()
	return c.JSON(PingResponse{
		Status:  "success",
		Message: "API is alive",
		Time:    string(now),
	})
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": common.CurrentVersion.String(),
	})
}

// DashboardRow is a static sample position shown before any upload.
type DashboardRow struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// Dashboard serves demo content so the UI renders without credentials.
func Dashboard(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"holdings": []DashboardRow{
			{Ticker: "AAPL", Name: "Apple Inc.", Price: 190.12, Change: 1.25},
			{Ticker: "MSFT", Name: "Microsoft Corp.", Price: 320.45, Change: -0.42},
			{Ticker: "TSLA", Name: "Tesla Inc.", Price: 780.56, Change: 3.18},
		},
		"demo": true,
	})
}
