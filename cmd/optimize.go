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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketlens/ml-api/ai"
	"github.com/marketlens/ml-api/common"
	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/news"
	"github.com/marketlens/ml-api/portfolio"
)

var (
	optimizeCSV  string
	optimizeRisk string
)

func init() {
	optimizeCmd.Flags().StringVar(&optimizeCSV, "csv", "", "Path to holdings CSV file")
	optimizeCmd.Flags().StringVar(&optimizeRisk, "risk", "Moderate", "Risk tolerance: Conservative, Moderate, or Aggressive")
	optimizeCmd.MarkFlagRequired("csv")

	rootCmd.AddCommand(optimizeCmd)
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a holdings CSV from the command line",
	Long:  `Run the portfolio optimization pipeline against a local holdings CSV and print the result as JSON`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()

		f, err := os.Open(optimizeCSV)
		if err != nil {
			log.Error().Err(err).Str("File", optimizeCSV).Msg("could not open holdings file")
			os.Exit(1)
		}
		defer f.Close()

		fetch := data.NewFetchClient()
		mgr := data.NewManager(fetch)
		svc := portfolio.NewService(mgr, ai.NewClient(), news.NewClient(fetch))

		resp, err := svc.OptimizePortfolio(context.Background(), f, optimizeRisk)
		if err != nil {
			log.Error().Err(err).Msg("optimization failed")
			os.Exit(1)
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("could not serialize result")
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}
