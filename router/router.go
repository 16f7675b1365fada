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

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marketlens/ml-api/handler"
)

// SetupRoutes registers the API surface.
func SetupRoutes(app *fiber.App) {
	app.Get("/", handler.Ping)
	app.Get("/health", handler.Health)
	app.Get("/api/status", handler.Status)
	app.Get("/dashboard", handler.Dashboard)

	app.Post("/portfolio", handler.OptimizePortfolio)
	app.Get("/recommendations", handler.Recommendations)
	app.Post("/fundamental", handler.GetFundamental)
	app.Get("/quarterly", handler.Quarterly)
}
