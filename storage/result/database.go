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
package result

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/cfeval/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Run is one evaluation of one model. It holds a score per mode.
type Run struct {
	ID        string
	Model     string
	Params    string
	Dataset   string
	Timestamp time.Time
	Scores    []Score
}

// Score is the accuracy of one mode (user-based or item-based) of a run.
type Score struct {
	Mode        string
	MSE         float64
	RMSE        float64
	MAE         float64
	N           int
	FitTime     time.Duration
	PredictTime time.Duration
}

type SQLRun struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Model     string    `gorm:"column:model;type:varchar(256);index"`
	Params    string    `gorm:"column:params;type:varchar(1024)"`
	Dataset   string    `gorm:"column:dataset;type:varchar(1024)"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

type SQLScore struct {
	RunID       string        `gorm:"column:run_id;type:varchar(36);primaryKey"`
	Mode        string        `gorm:"column:mode;type:varchar(16);primaryKey"`
	MSE         float64       `gorm:"column:mse"`
	RMSE        float64       `gorm:"column:rmse"`
	MAE         float64       `gorm:"column:mae"`
	N           int           `gorm:"column:n"`
	FitTime     time.Duration `gorm:"column:fit_time"`
	PredictTime time.Duration `gorm:"column:predict_time"`
}

// Database keeps the history of evaluation runs in a SQL database.
type Database struct {
	storage.TablePrefix
	client *sql.DB
	gormDB *gorm.DB
}

// Open connects to a SQLite, MySQL or PostgreSQL database.
func Open(path, tablePrefix string) (*Database, error) {
	var err error
	database := &Database{TablePrefix: storage.TablePrefix(tablePrefix)}
	gormConfig := storage.NewGORMConfig(tablePrefix)
	switch {
	case strings.HasPrefix(path, storage.MySQLPrefix):
		name := path[len(storage.MySQLPrefix):]
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(attribute.String("db.system", "mysql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), gormConfig)
	case strings.HasPrefix(path, storage.PostgresPrefix), strings.HasPrefix(path, storage.PostgreSQLPrefix):
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), gormConfig)
	case strings.HasPrefix(path, storage.SQLitePrefix):
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		if database.client, err = otelsql.Open("sqlite", path[len(storage.SQLitePrefix):],
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		// SQLite allows only one writer.
		database.client.SetMaxOpenConns(1)
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, gormConfig)
	default:
		return nil, errors.NotValidf("database %q", path)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return database, nil
}

// Init creates tables if they do not exist.
func (d *Database) Init() error {
	return errors.Trace(d.gormDB.AutoMigrate(&SQLRun{}, &SQLScore{}))
}

// Insert a run together with its scores.
func (d *Database) Insert(ctx context.Context, run Run) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&SQLRun{
			ID:        run.ID,
			Model:     run.Model,
			Params:    run.Params,
			Dataset:   run.Dataset,
			Timestamp: run.Timestamp.UTC(),
		}).Error; err != nil {
			return errors.Trace(err)
		}
		if len(run.Scores) == 0 {
			return nil
		}
		scores := lo.Map(run.Scores, func(s Score, _ int) SQLScore {
			return SQLScore{
				RunID:       run.ID,
				Mode:        s.Mode,
				MSE:         s.MSE,
				RMSE:        s.RMSE,
				MAE:         s.MAE,
				N:           s.N,
				FitTime:     s.FitTime,
				PredictTime: s.PredictTime,
			}
		})
		return errors.Trace(tx.Create(&scores).Error)
	}))
}

// List runs of a model ordered by time. An empty model lists all runs.
func (d *Database) List(ctx context.Context, model string) ([]Run, error) {
	var runs []SQLRun
	tx := d.gormDB.WithContext(ctx).Order("timestamp").Order("id")
	if model != "" {
		tx = tx.Where("model = ?", model)
	}
	if err := tx.Find(&runs).Error; err != nil {
		return nil, errors.Trace(err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	var scores []SQLScore
	if err := d.gormDB.WithContext(ctx).
		Where("run_id IN ?", lo.Map(runs, func(r SQLRun, _ int) string { return r.ID })).
		Order("mode").
		Find(&scores).Error; err != nil {
		return nil, errors.Trace(err)
	}
	scoresByRun := lo.GroupBy(scores, func(s SQLScore) string { return s.RunID })
	return lo.Map(runs, func(r SQLRun, _ int) Run {
		return Run{
			ID:        r.ID,
			Model:     r.Model,
			Params:    r.Params,
			Dataset:   r.Dataset,
			Timestamp: r.Timestamp,
			Scores: lo.Map(scoresByRun[r.ID], func(s SQLScore, _ int) Score {
				return Score{
					Mode:        s.Mode,
					MSE:         s.MSE,
					RMSE:        s.RMSE,
					MAE:         s.MAE,
					N:           s.N,
					FitTime:     s.FitTime,
					PredictTime: s.PredictTime,
				}
			}),
		}
	}), nil
}

// Purge deletes all runs.
func (d *Database) Purge(ctx context.Context) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SQLScore{}).Error; err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SQLRun{}).Error)
	}))
}

func (d *Database) Close() error {
	return errors.Trace(d.client.Close())
}
