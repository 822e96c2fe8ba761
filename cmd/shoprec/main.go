// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorse-io/shoprec/base/log"
	"github.com/gorse-io/shoprec/cmd/version"
	"github.com/gorse-io/shoprec/config"
	"github.com/gorse-io/shoprec/logics"
	"github.com/gorse-io/shoprec/server"
	"github.com/gorse-io/shoprec/storage"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "shoprec",
	Short: "Hybrid content and interaction based product recommender.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start the RESTful API server.",
	Run: func(cmd *cobra.Command, args []string) {
		conf, database := mustOpenDatabase(cmd)
		s, err := server.NewRestServer(conf, database)
		if err != nil {
			log.Logger().Fatal("failed to create server", zap.Error(err))
		}
		done := make(chan struct{})
		go func() {
			sigint := make(chan os.Signal, 1)
			signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
			<-sigint
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown server", zap.Error(err))
			}
			close(done)
		}()
		if err = s.StartHttpServer(); err != nil {
			log.Logger().Fatal("failed to start http server", zap.Error(err))
		}
		<-done
		if err = database.Close(); err != nil {
			log.Logger().Error("failed to close data store", zap.Error(err))
		}
		log.Logger().Info("stop shoprec server successfully")
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Print recommendation for a user.",
	Run: func(cmd *cobra.Command, args []string) {
		conf, database := mustOpenDatabase(cmd)
		defer database.Close()
		userId, _ := cmd.Flags().GetInt64("user-id")
		n := conf.Recommend.DefaultN
		if cmd.Flags().Changed("n") {
			n, _ = cmd.Flags().GetInt("n")
		}
		recommender, err := logics.NewRecommender(conf.Recommend, database)
		if err != nil {
			log.Logger().Fatal("failed to create recommender", zap.Error(err))
		}
		defer recommender.Close()
		recommendations, err := recommender.Recommend(cmd.Context(), userId, n)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.Int64("user_id", userId), zap.Error(err))
		}
		if err = printRecommendations(os.Stdout, recommendations); err != nil {
			log.Logger().Fatal("failed to print recommendation", zap.Error(err))
		}
	},
}

var historyCommand = &cobra.Command{
	Use:   "history",
	Short: "Print previous interactions of a user.",
	Run: func(cmd *cobra.Command, args []string) {
		conf, database := mustOpenDatabase(cmd)
		defer database.Close()
		userId, _ := cmd.Flags().GetInt64("user-id")
		recommender, err := logics.NewRecommender(conf.Recommend, database)
		if err != nil {
			log.Logger().Fatal("failed to create recommender", zap.Error(err))
		}
		defer recommender.Close()
		details, err := recommender.PreviousInteractions(cmd.Context(), userId)
		if err != nil {
			log.Logger().Fatal("failed to load interactions", zap.Int64("user_id", userId), zap.Error(err))
		}
		if err = printInteractions(os.Stdout, details); err != nil {
			log.Logger().Fatal("failed to print interactions", zap.Error(err))
		}
	},
}

var initCommand = &cobra.Command{
	Use:   "init",
	Short: "Create tables in the data store.",
	Run: func(cmd *cobra.Command, args []string) {
		conf, database := mustOpenDatabase(cmd)
		defer database.Close()
		if err := database.Init(); err != nil {
			log.Logger().Fatal("failed to initialize data store", zap.Error(err))
		}
		log.Logger().Info("data store was initialized successfully",
			zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)))
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.Flags().BoolP("version", "v", false, "shoprec version")
	recommendCommand.Flags().Int64("user-id", 0, "identifier of the user")
	recommendCommand.Flags().IntP("n", "n", 5, "number of recommended products")
	_ = recommendCommand.MarkFlagRequired("user-id")
	historyCommand.Flags().Int64("user-id", 0, "identifier of the user")
	_ = historyCommand.MarkFlagRequired("user-id")
	rootCommand.AddCommand(serveCommand, recommendCommand, historyCommand, initCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

func mustOpenDatabase(cmd *cobra.Command) (*config.Config, data.Database) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	database, err := openDatabase(conf)
	if err != nil {
		log.Logger().Fatal("failed to connect data store",
			zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)), zap.Error(err))
	}
	return conf, database
}

func openDatabase(conf *config.Config) (data.Database, error) {
	database, err := data.Open(conf.Database.DataStore, conf.Database.TablePrefix,
		storage.WithTimeout(conf.Database.Timeout),
		storage.WithMaxRetries(conf.Database.MaxRetries))
	return database, errors.Trace(err)
}

func printRecommendations(w io.Writer, recommendations []logics.Recommendation) error {
	table := tablewriter.NewWriter(w)
	table.Header("product id", "name", "category", "price", "score")
	for _, recommendation := range recommendations {
		if err := table.Append([]string{
			strconv.FormatInt(recommendation.ProductId, 10),
			recommendation.Name,
			recommendation.Category,
			strconv.FormatFloat(recommendation.Price, 'f', 2, 64),
			strconv.FormatFloat(recommendation.Score, 'f', 4, 64),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func printInteractions(w io.Writer, details []logics.InteractionDetail) error {
	table := tablewriter.NewWriter(w)
	table.Header("timestamp", "type", "product id", "name", "category", "price")
	for _, detail := range details {
		if err := table.Append([]string{
			detail.Timestamp.Format(time.DateTime),
			string(detail.InteractionType),
			strconv.FormatInt(detail.ProductId, 10),
			detail.Name,
			detail.Category,
			strconv.FormatFloat(detail.Price, 'f', 2, 64),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
