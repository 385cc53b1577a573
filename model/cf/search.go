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

package cf

import (
	"context"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/cfeval/common/log"
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SearchResult is the best configuration found by ModelSearch.
type SearchResult struct {
	Params model.Params
	Score  Score
	Trials int
}

// ModelSearch searches the similarity and the number of neighbors minimizing MSE
// on a test matrix.
type ModelSearch struct {
	ctx          context.Context
	similarities []string
	kMin, kMax   int
	train, test  *sparse.Matrix
	config       *FitConfig
	result       SearchResult
	found        bool
	err          error
}

func NewModelSearch(ctx context.Context, similarities []string, kMin, kMax int, train, test *sparse.Matrix, config *FitConfig) (*ModelSearch, error) {
	if len(similarities) == 0 {
		similarities = []string{Cosine}
	}
	for _, name := range similarities {
		if _, err := NewSimilarity(name); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if kMin <= 0 || kMax < kMin {
		return nil, errors.NotValidf("k range [%d, %d]", kMin, kMax)
	}
	return &ModelSearch{
		ctx:          ctx,
		similarities: similarities,
		kMin:         kMin,
		kMax:         kMax,
		train:        train,
		test:         test,
		config:       config,
	}, nil
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	score, err := ms.objective(trial)
	if err != nil {
		ms.err = err
		return 0, err
	}
	return score, nil
}

func (ms *ModelSearch) objective(trial goptuna.Trial) (float64, error) {
	if err := ms.ctx.Err(); err != nil {
		return 0, errors.Trace(err)
	}
	similarity, err := trial.SuggestCategorical(string(model.Similarity), ms.similarities)
	if err != nil {
		return 0, errors.Trace(err)
	}
	k, err := trial.SuggestInt(string(model.K), ms.kMin, ms.kMax)
	if err != nil {
		return 0, errors.Trace(err)
	}
	params := model.Params{model.Similarity: similarity, model.K: k}
	m, err := NewKNNFromParams(params)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if err = m.Fit(ms.ctx, ms.train, ms.test, ms.config); err != nil {
		return 0, errors.Trace(err)
	}
	predicted, err := m.Predict(ms.ctx, ms.train, ms.test)
	if err != nil {
		return 0, errors.Trace(err)
	}
	score, err := Evaluate(predicted, ms.test)
	if err != nil {
		return 0, errors.Trace(err)
	}
	ms.result.Trials++
	if !ms.found || score.MSE < ms.result.Score.MSE {
		ms.found = true
		ms.result.Params = params
		ms.result.Score = score
	}
	log.Logger().Debug("search trial",
		zap.String("similarity", similarity),
		zap.Int("k", k),
		zap.Float64("mse", score.MSE))
	return score.MSE, nil
}

func (ms *ModelSearch) Result() SearchResult {
	return ms.result
}

// Optimize runs a TPE study for n trials and returns the best configuration.
func (ms *ModelSearch) Optimize(n int, seed int64) (SearchResult, error) {
	study, err := goptuna.CreateStudy("cfeval",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(seed))))
	if err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(ms.Objective, n); err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	if ms.err != nil {
		return SearchResult{}, errors.Trace(ms.err)
	}
	return ms.result, nil
}
