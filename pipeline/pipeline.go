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
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gorse-io/cfeval/common/log"
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/config"
	"github.com/gorse-io/cfeval/dataset"
	"github.com/gorse-io/cfeval/model/cf"
	"github.com/gorse-io/cfeval/report"
	"github.com/gorse-io/cfeval/storage/blob"
	"github.com/gorse-io/cfeval/storage/cache"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type Mode string

const (
	UserBased Mode = "user"
	ItemBased Mode = "item"
)

// Split is a train/test split of a ratings matrix (users by items).
type Split struct {
	Name  string
	Train *sparse.Matrix
	Test  *sparse.Matrix
}

// Transpose returns the split with users and items swapped.
func (s *Split) Transpose() *Split {
	train, test := dataset.Transpose(s.Train, s.Test)
	return &Split{Name: s.Name, Train: train, Test: test}
}

// Mode returns the split oriented for the mode.
func (s *Split) Mode(mode Mode) *Split {
	if mode == ItemBased {
		return s.Transpose()
	}
	return s
}

// Prepare loads ratings and splits them. If a cache store is configured, a split of
// the same file with the same ratio and seed is reused.
func Prepare(ctx context.Context, cfg *config.Config) (*Split, error) {
	path, sep, header, name := cfg.Dataset.Path, cfg.Dataset.Separator, cfg.Dataset.Header, cfg.Dataset.Path
	if path == "" {
		var err error
		if path, sep, err = dataset.LocateBuiltIn(ctx, cfg.Dataset.BuiltIn); err != nil {
			return nil, errors.Trace(err)
		}
		header, name = false, cfg.Dataset.BuiltIn
	}

	// load split from cache
	var (
		splitCache *cache.SplitCache
		key        string
	)
	if cfg.Cache.Store != "" {
		store, err := blob.Open(ctx, cfg.Cache)
		if err != nil {
			return nil, errors.Trace(err)
		}
		defer store.Close()
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		splitCache = cache.NewSplitCache(store)
		key = cache.Key(path, sep, header, info.Size(), info.ModTime().UnixNano(), cfg.Split.Ratio, cfg.Split.Seed)
		train, test, found, err := splitCache.Load(ctx, key)
		if err != nil {
			log.Logger().Warn("failed to load split from cache", zap.String("key", key), zap.Error(err))
		} else if found {
			log.Logger().Info("load split from cache", zap.String("dataset", name), zap.String("key", key))
			return &Split{Name: name, Train: train, Test: test}, nil
		}
	}

	// load ratings and split
	start := time.Now()
	ratings, err := dataset.LoadRatings(path, sep, header)
	if err != nil {
		return nil, errors.Trace(err)
	}
	train, test, err := dataset.Split(ratings.ToMatrix(), cfg.Split.Ratio, cfg.Split.Seed)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load dataset",
		zap.String("dataset", name),
		zap.Int("n_users", ratings.CountUsers()),
		zap.Int("n_items", ratings.CountItems()),
		zap.Int("n_train", train.NNZ()),
		zap.Int("n_test", test.NNZ()),
		zap.Duration("used_time", time.Since(start)))
	if splitCache != nil {
		if err = splitCache.Save(ctx, key, train, test); err != nil {
			log.Logger().Warn("failed to save split to cache", zap.String("key", key), zap.Error(err))
		}
	}
	return &Split{Name: name, Train: train, Test: test}, nil
}

// Modes returns the enabled evaluation modes.
func Modes(cfg config.EvaluateConfig) []Mode {
	var modes []Mode
	if cfg.UserBased {
		modes = append(modes, UserBased)
	}
	if cfg.ItemBased {
		modes = append(modes, ItemBased)
	}
	return modes
}

// Evaluate fits and scores a model in every enabled mode. Any failure aborts the
// evaluation and no partial run is returned.
func Evaluate(ctx context.Context, split *Split, modelCfg config.ModelConfig, evalCfg config.EvaluateConfig) (*report.Run, error) {
	run := report.NewRun(modelCfg.Name, modelCfg.Params(), split.Name)
	for _, mode := range Modes(evalCfg) {
		score, err := evaluate(ctx, split.Mode(mode), modelCfg, evalCfg, mode)
		if err != nil {
			return nil, errors.Annotatef(err, "evaluate %s (%s)", modelCfg.Name, mode)
		}
		run.Scores = append(run.Scores, score)
	}
	return run, nil
}

func evaluate(ctx context.Context, split *Split, modelCfg config.ModelConfig, evalCfg config.EvaluateConfig, mode Mode) (report.ModeScore, error) {
	knn, err := cf.NewKNNFromParams(modelCfg.Params())
	if err != nil {
		return report.ModeScore{}, errors.Trace(err)
	}
	fitConfig := cf.NewFitConfig().SetJobs(evalCfg.Jobs)
	if evalCfg.Progress {
		bar := progressbar.Default(int64(split.Train.Rows()), fmt.Sprintf("%s (%s)", modelCfg.Name, mode))
		defer bar.Finish()
		fitConfig.SetProgress(func() { _ = bar.Add(1) })
	}

	// fit
	start := time.Now()
	if err = knn.Fit(ctx, split.Train, split.Test, fitConfig); err != nil {
		return report.ModeScore{}, errors.Trace(err)
	}
	fitTime := time.Since(start)

	// predict
	start = time.Now()
	predicted, err := knn.Predict(ctx, split.Train, split.Test)
	if err != nil {
		return report.ModeScore{}, errors.Trace(err)
	}
	predictTime := time.Since(start)

	score, err := cf.Evaluate(predicted, split.Test)
	if err != nil {
		return report.ModeScore{}, errors.Trace(err)
	}
	log.Logger().Debug("evaluate model",
		zap.String("model", modelCfg.Name),
		zap.String("mode", string(mode)),
		zap.Float64("mse", score.MSE),
		zap.Duration("fit_time", fitTime),
		zap.Duration("predict_time", predictTime))
	return report.ModeScore{
		Mode:        string(mode),
		Score:       score,
		FitTime:     fitTime,
		PredictTime: predictTime,
	}, nil
}

// EvaluateAll evaluates every configured model and reports each run. Evaluation stops
// at the first failure.
func EvaluateAll(ctx context.Context, split *Split, cfg *config.Config, reporter report.Reporter) error {
	for _, modelCfg := range cfg.Models {
		run, err := Evaluate(ctx, split, modelCfg, cfg.Evaluate)
		if err != nil {
			return errors.Trace(err)
		}
		if err = reporter.Report(ctx, run); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(reporter.Flush())
}

// Tune searches the similarity and the number of neighbors with the smallest MSE.
func Tune(ctx context.Context, split *Split, cfg *config.Config) (cf.SearchResult, error) {
	split = split.Mode(Mode(cfg.Tune.Mode))
	search, err := cf.NewModelSearch(ctx, cfg.Tune.Similarities, cfg.Tune.KMin, cfg.Tune.KMax,
		split.Train, split.Test, cf.NewFitConfig().SetJobs(cfg.Evaluate.Jobs))
	if err != nil {
		return cf.SearchResult{}, errors.Trace(err)
	}
	result, err := search.Optimize(cfg.Tune.Trials, cfg.Split.Seed)
	if err != nil {
		return cf.SearchResult{}, errors.Trace(err)
	}
	log.Logger().Info("tune complete",
		zap.String("mode", cfg.Tune.Mode),
		zap.Any("params", result.Params),
		zap.Float64("mse", result.Score.MSE),
		zap.Int("trials", result.Trials))
	return result, nil
}
