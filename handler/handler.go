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
	"github.com/marketlens/ml-api/ai"
	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/news"
	"github.com/marketlens/ml-api/portfolio"
)

// Shared service handles; set once at startup before routes are registered.
var (
	mgr        *data.Manager
	gen        *ai.Client
	newsClient *news.Client
	svc        *portfolio.Service
)

// Setup wires the handlers to their backing services.
func Setup(m *data.Manager, g *ai.Client, n *news.Client) {
	mgr = m
	gen = g
	newsClient = n
	svc = portfolio.NewService(m, g, n)
}
