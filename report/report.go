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
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/cfeval/common/log"
	"github.com/gorse-io/cfeval/model"
	"github.com/gorse-io/cfeval/model/cf"
	"github.com/gorse-io/cfeval/storage/result"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ModeScore is the score of a model in one mode (user-based or item-based).
type ModeScore struct {
	Mode string
	cf.Score
	FitTime     time.Duration
	PredictTime time.Duration
}

// Run is the evaluation of one configured model.
type Run struct {
	ID        uuid.UUID
	Model     string
	Params    model.Params
	Dataset   string
	Timestamp time.Time
	Scores    []ModeScore
}

func NewRun(name string, params model.Params, dataset string) *Run {
	return &Run{
		ID:        uuid.New(),
		Model:     name,
		Params:    params,
		Dataset:   dataset,
		Timestamp: time.Now(),
	}
}

// Reporter publishes evaluation runs.
type Reporter interface {
	Report(ctx context.Context, run *Run) error
	// Flush writes anything buffered by previous reports.
	Flush() error
}

// Table renders runs as a text table. Rows are buffered until Flush.
type Table struct {
	w    io.Writer
	rows [][]string
}

func NewTable(w io.Writer) *Table {
	return &Table{w: w}
}

func (t *Table) Report(_ context.Context, run *Run) error {
	for _, score := range run.Scores {
		t.rows = append(t.rows, []string{
			run.Model,
			score.Mode,
			run.Params.ToString(),
			fmt.Sprintf("%.6f", score.MSE),
			fmt.Sprintf("%.6f", score.RMSE),
			fmt.Sprintf("%.6f", score.MAE),
			fmt.Sprint(score.N),
			score.FitTime.Round(time.Millisecond).String(),
			score.PredictTime.Round(time.Millisecond).String(),
		})
	}
	return nil
}

func (t *Table) Flush() error {
	if len(t.rows) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(t.w)
	table.Header("Model", "Mode", "Params", "MSE", "RMSE", "MAE", "N", "Fit", "Predict")
	for _, row := range t.rows {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	t.rows = nil
	return errors.Trace(table.Render())
}

// Log writes one structured entry per mode of a run.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a reporter writing to logger, or to the global logger if nil.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Report(_ context.Context, run *Run) error {
	logger := l.logger
	if logger == nil {
		logger = log.Logger()
	}
	for _, score := range run.Scores {
		logger.Info("evaluation complete",
			zap.String("run_id", run.ID.String()),
			zap.String("model", run.Model),
			zap.Any("params", run.Params),
			zap.String("mode", score.Mode),
			zap.Float64("mse", score.MSE),
			zap.Float64("rmse", score.RMSE),
			zap.Float64("mae", score.MAE),
			zap.Int("n", score.N),
			zap.Duration("fit_time", score.FitTime),
			zap.Duration("predict_time", score.PredictTime))
	}
	return nil
}

func (l *Log) Flush() error {
	return nil
}

// Database records runs in the result store.
type Database struct {
	database *result.Database
}

func NewDatabase(database *result.Database) *Database {
	return &Database{database: database}
}

func (d *Database) Report(ctx context.Context, run *Run) error {
	return errors.Trace(d.database.Insert(ctx, result.Run{
		ID:        run.ID.String(),
		Model:     run.Model,
		Params:    run.Params.ToString(),
		Dataset:   run.Dataset,
		Timestamp: run.Timestamp,
		Scores: lo.Map(run.Scores, func(s ModeScore, _ int) result.Score {
			return result.Score{
				Mode:        s.Mode,
				MSE:         s.MSE,
				RMSE:        s.RMSE,
				MAE:         s.MAE,
				N:           s.N,
				FitTime:     s.FitTime,
				PredictTime: s.PredictTime,
			}
		}),
	}))
}

func (d *Database) Flush() error {
	return nil
}

// Multi sends every run to all reporters. The first error is returned after every
// reporter has been called.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, run *Run) error {
	var first error
	for _, r := range m {
		if err := r.Report(ctx, run); err != nil && first == nil {
			first = errors.Trace(err)
		}
	}
	return first
}

func (m Multi) Flush() error {
	var first error
	for _, r := range m {
		if err := r.Flush(); err != nil && first == nil {
			first = errors.Trace(err)
		}
	}
	return first
}
