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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marketlens/ml-api/common"
)

func init() {
	// Market data providers
	viper.BindEnv("polygon.apikey", "POLYGON_API_KEY")
	rootCmd.PersistentFlags().String("polygon-apikey", "", "Polygon API key")
	viper.BindPFlag("polygon.apikey", rootCmd.PersistentFlags().Lookup("polygon-apikey"))

	viper.BindEnv("alphavantage.apikey", "ALPHAVANTAGE_API_KEY")
	rootCmd.PersistentFlags().String("alphavantage-apikey", "", "Alpha Vantage API key")
	viper.BindPFlag("alphavantage.apikey", rootCmd.PersistentFlags().Lookup("alphavantage-apikey"))

	// Advisory model
	viper.BindEnv("groq.apikey", "GROQ_API_KEY")
	rootCmd.PersistentFlags().String("groq-apikey", "", "Groq API key")
	viper.BindPFlag("groq.apikey", rootCmd.PersistentFlags().Lookup("groq-apikey"))

	viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	viper.BindEnv("groq.model", "GROQ_MODEL")

	// News
	viper.BindEnv("newsapi.apikey", "NEWSAPI_API_KEY")
	rootCmd.PersistentFlags().String("newsapi-apikey", "", "NewsAPI key")
	viper.BindPFlag("newsapi.apikey", rootCmd.PersistentFlags().Lookup("newsapi-apikey"))

	// Logging configuration
	viper.BindEnv("log.level", "ML_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "ML_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "ML_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	rootCmd.PersistentFlags().Bool("log-pretty", false, "Print logs for human consumption")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP traces collector endpoint")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	// Caching
	viper.BindEnv("cache.local_size", "ML_CACHE_SIZE")
	viper.BindEnv("cache.series_ttl", "ML_SERIES_TTL")

	// Optimizer
	viper.BindEnv("optimize.risk_free_rate", "ML_RISK_FREE_RATE")
}

var rootCmd = &cobra.Command{
	Use:     "mlapi",
	Version: common.CurrentVersion.String(),
	Short:   "MarketLens is a portfolio analysis service",
	Long: `MarketLens acquires market history from multiple data providers and runs
portfolio optimization, rebalancing reconciliation, and advisory analysis.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
