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
	"os"
	"os/signal"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marketlens/ml-api/ai"
	"github.com/marketlens/ml-api/common"
	"github.com/marketlens/ml-api/data"
	"github.com/marketlens/ml-api/handler"
	"github.com/marketlens/ml-api/middleware"
	"github.com/marketlens/ml-api/news"
	"github.com/marketlens/ml-api/observability/opentelemetry"
	"github.com/marketlens/ml-api/portfolio"
	"github.com/marketlens/ml-api/router"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mlapi server",
	Long:  `Run the HTTP server that implements the MarketLens API`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		shutdownTracing, err := opentelemetry.Setup()
		if err != nil {
			log.Error().Err(err).Msg("could not initialize tracing")
			os.Exit(1)
		}
		log.Info().Msg("initialized logging and tracing")

		fetch := data.NewFetchClient()
		mgr := data.NewManager(fetch)
		gen := ai.NewClient()
		newsClient := news.NewClient(fetch)

		handler.Setup(mgr, gen, newsClient)
		log.Info().Msg("initialized data framework")

		app := fiber.New()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c
			log.Info().Str("Signal", sig.String()).Msg("received signal; shutting down")
			if err := app.Shutdown(); err != nil {
				log.Error().Err(err).Msg("error shutting down server")
			}
		}()

		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		}))
		app.Use(middleware.NewLogger())

		router.SetupRoutes(app)

		// Refresh the sector snapshot hourly so market context stays warm.
		tz, _ := time.LoadLocation("America/New_York")
		scheduler := gocron.NewScheduler(tz)
		scheduler.Every(1).Hours().Do(func() {
			portfolio.SectorSnapshot(context.Background(), mgr, 30*24*time.Hour)
		})
		scheduler.StartAsync()

		if err := app.Listen(":" + viper.GetString("server.port")); err != nil {
			log.Error().Err(err).Msg("server exited with error")
		}

		scheduler.Stop()
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracing")
		}
	},
}
