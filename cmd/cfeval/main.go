// Copyright 2025 gorse Project Authors
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
	"os"
	"os/signal"

	"github.com/gorse-io/cfeval/cmd/version"
	"github.com/gorse-io/cfeval/common/log"
	"github.com/gorse-io/cfeval/config"
	"github.com/gorse-io/cfeval/pipeline"
	"github.com/gorse-io/cfeval/report"
	"github.com/gorse-io/cfeval/storage/result"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "cfeval",
	Short: "Evaluate neighborhood collaborative filtering models on rating datasets.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		evaluateCommand.Run(cmd, args)
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate every configured model.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop, conf := setup(cmd)
		defer stop()
		split, err := pipeline.Prepare(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to prepare dataset", zap.Error(err))
		}
		reporter, closeReporter, err := newReporter(conf)
		if err != nil {
			log.Logger().Fatal("failed to create reporter", zap.Error(err))
		}
		defer closeReporter()
		if err = pipeline.EvaluateAll(ctx, split, conf, reporter); err != nil {
			log.Logger().Fatal("failed to evaluate", zap.Error(err))
		}
	},
}

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search the similarity and the number of neighbors.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop, conf := setup(cmd)
		defer stop()
		if trials, _ := cmd.Flags().GetInt("trials"); trials > 0 {
			conf.Tune.Trials = trials
		}
		split, err := pipeline.Prepare(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to prepare dataset", zap.Error(err))
		}
		res, err := pipeline.Tune(ctx, split, conf)
		if err != nil {
			log.Logger().Fatal("failed to tune", zap.Error(err))
		}
		fmt.Printf("Best params:\t%s\n", res.Params.ToString())
		fmt.Printf("MSE:\t\t%f\n", res.Score.MSE)
		fmt.Printf("RMSE:\t\t%f\n", res.Score.RMSE)
		fmt.Printf("MAE:\t\t%f\n", res.Score.MAE)
	},
}

var historyCommand = &cobra.Command{
	Use:   "history [model]",
	Short: "List past runs recorded in the report database.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop, conf := setup(cmd)
		defer stop()
		if conf.Report.Database == "" {
			log.Logger().Fatal("report database is not configured")
		}
		database, err := result.Open(conf.Report.Database, conf.Report.TablePrefix)
		if err != nil {
			log.Logger().Fatal("failed to connect database", zap.Error(err),
				zap.String("database", log.RedactDBURL(conf.Report.Database)))
		}
		defer database.Close()
		var name string
		if len(args) > 0 {
			name = args[0]
		}
		runs, err := database.List(ctx, name)
		if err != nil {
			log.Logger().Fatal("failed to list runs", zap.Error(err))
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Run", "Time", "Model", "Params", "Mode", "MSE", "RMSE", "MAE")
		for _, run := range runs {
			for _, score := range run.Scores {
				if err = table.Append([]string{
					run.ID,
					run.Timestamp.Local().Format("2006-01-02 15:04:05"),
					run.Model,
					run.Params,
					score.Mode,
					fmt.Sprintf("%.6f", score.MSE),
					fmt.Sprintf("%.6f", score.RMSE),
					fmt.Sprintf("%.6f", score.MAE),
				}); err != nil {
					log.Logger().Fatal("failed to render runs", zap.Error(err))
				}
			}
		}
		if err = table.Render(); err != nil {
			log.Logger().Fatal("failed to render runs", zap.Error(err))
		}
	},
}

// setup initializes the logger and loads the configuration.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *config.Config) {
	debug, _ := cmd.Flags().GetBool("debug")
	log.SetLogger(cmd.Flags(), debug)
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	if jobs, _ := cmd.Flags().GetInt("jobs"); jobs > 0 {
		conf.Evaluate.Jobs = jobs
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctx, stop, conf
}

// newReporter creates reporters enabled by the configuration.
func newReporter(conf *config.Config) (report.Reporter, func(), error) {
	reporters := report.Multi{report.NewLog(nil)}
	closer := func() {}
	if conf.Report.Table {
		reporters = append(reporters, report.NewTable(os.Stdout))
	}
	if conf.Report.Database != "" {
		database, err := result.Open(conf.Report.Database, conf.Report.TablePrefix)
		if err != nil {
			return nil, nil, errors.Annotatef(err, "connect %s", log.RedactDBURL(conf.Report.Database))
		}
		if err = database.Init(); err != nil {
			_ = database.Close()
			return nil, nil, errors.Trace(err)
		}
		reporters = append(reporters, report.NewDatabase(database))
		closer = func() {
			if err := database.Close(); err != nil {
				log.Logger().Error("failed to close database", zap.Error(err))
			}
		}
	}
	return reporters, closer, nil
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().IntP("jobs", "j", 0, "number of working jobs (overrides evaluate.jobs)")
	rootCommand.Flags().BoolP("version", "v", false, "cfeval version")
	tuneCommand.Flags().Int("trials", 0, "number of trials (overrides tune.trials)")
	rootCommand.AddCommand(evaluateCommand, tuneCommand, historyCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
