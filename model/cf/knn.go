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
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/cfeval/common/log"
	"github.com/gorse-io/cfeval/common/parallel"
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

type FitConfig struct {
	Jobs     int
	Progress func()
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Jobs: 1}
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// SetProgress sets a callback invoked once per fitted row.
func (config *FitConfig) SetProgress(progress func()) *FitConfig {
	config.Progress = progress
	return config
}

func (config *FitConfig) tick() {
	if config.Progress != nil {
		config.Progress()
	}
}

// KNN predicts a rating by the similarity-weighted mean of ratings from the most
// similar rows. A KNN with k = Unbounded uses every row with positive similarity.
type KNN struct {
	similarity  Similarity
	selector    *NeighborSelector
	params      model.Params
	neighbors   [][]Neighbor
	predictable *bitset.BitSet
	nRows       int
	jobs        int
	trained     bool
}

// NewKNN creates an untrained KNN from a similarity function and a neighbor selector.
func NewKNN(similarity Similarity, selector *NeighborSelector) *KNN {
	return &KNN{
		similarity: similarity,
		selector:   selector,
		params:     model.Params{},
	}
}

// NewKNNFromParams creates an untrained KNN from hyper-parameters. A missing or zero k
// means Unbounded and the default similarity is cosine.
func NewKNNFromParams(params model.Params) (*KNN, error) {
	similarity, err := NewSimilarity(params.GetString(model.Similarity, Cosine))
	if err != nil {
		return nil, errors.Trace(err)
	}
	k := params.GetInt(model.K, 0)
	if k == 0 {
		k = Unbounded
	}
	selector, err := NewNeighborSelector(k)
	if err != nil {
		return nil, errors.Trace(err)
	}
	knn := NewKNN(similarity, selector)
	knn.params = params.Copy()
	return knn, nil
}

// GetParams returns the hyper-parameters the model was created from.
func (knn *KNN) GetParams() model.Params {
	return knn.params
}

// IsTrained returns true once Fit has succeeded.
func (knn *KNN) IsTrained() bool {
	return knn.trained
}

// IsPredictable returns true if row i has at least one neighbor.
func (knn *KNN) IsPredictable(i int) bool {
	return knn.trained && knn.predictable.Test(uint(i))
}

// Neighbors returns the neighbors of row i. It returns nil before Fit.
func (knn *KNN) Neighbors(i int) []Neighbor {
	if !knn.trained || i < 0 || i >= knn.nRows {
		return nil
	}
	return knn.neighbors[i]
}

// Fit computes similarities between rows of train and selects neighbors for each row.
// reference is only checked for shape. Previous state is discarded.
func (knn *KNN) Fit(ctx context.Context, train, reference *sparse.Matrix, config *FitConfig) error {
	if config == nil {
		config = NewFitConfig()
	}
	if reference != nil && !train.SameShape(reference) {
		return errors.Annotatef(model.ErrShapeMismatch, "train (%d, %d) and reference (%d, %d)",
			train.Rows(), train.Cols(), reference.Rows(), reference.Cols())
	}
	knn.trained = false
	knn.neighbors = nil
	knn.predictable = nil

	start := time.Now()
	similarity, err := ComputeSimilarity(ctx, train, knn.similarity, config.Jobs)
	if err != nil {
		return errors.Trace(err)
	}
	n := train.Rows()
	neighbors := make([][]Neighbor, n)
	if err = parallel.For(ctx, n, config.Jobs, func(i int) {
		neighbors[i] = knn.selector.Select(similarity[i], i)
		config.tick()
	}); err != nil {
		return errors.Trace(err)
	}
	predictable := bitset.New(uint(n))
	for i := range neighbors {
		if len(neighbors[i]) > 0 {
			predictable.Set(uint(i))
		}
	}

	knn.neighbors = neighbors
	knn.predictable = predictable
	knn.nRows = n
	knn.jobs = config.Jobs
	knn.trained = true
	log.Logger().Debug("fit knn",
		zap.Int("n_rows", n),
		zap.Stringer("k", knn.selector),
		zap.Uint("n_predictable", predictable.Count()),
		zap.Duration("fit_time", time.Since(start)))
	return nil
}

// Predict estimates ratings of train at every nonzero position of reference. A position
// is estimated only from neighbors that rated its column; it is 0 if none did.
func (knn *KNN) Predict(ctx context.Context, train, reference *sparse.Matrix) (*sparse.Matrix, error) {
	if !knn.trained {
		return nil, errors.Trace(model.ErrNotTrained)
	}
	if !train.SameShape(reference) {
		return nil, errors.Annotatef(model.ErrShapeMismatch, "train (%d, %d) and reference (%d, %d)",
			train.Rows(), train.Cols(), reference.Rows(), reference.Cols())
	}
	if train.Rows() != knn.nRows {
		return nil, errors.Annotatef(model.ErrShapeMismatch, "fitted %d rows but got %d rows",
			knn.nRows, train.Rows())
	}
	rows := make([]sparse.Vector, train.Rows())
	err := parallel.For(ctx, train.Rows(), knn.jobs, func(i int) {
		target := reference.Row(i)
		row := sparse.Vector{
			Indices: target.Indices,
			Values:  make([]float64, target.Len()),
		}
		target.ForEach(func(pos, c int, _ float64) {
			row.Values[pos] = knn.predict(train, i, c)
		})
		rows[i] = row
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return sparse.FromRows(train.Cols(), rows), nil
}

func (knn *KNN) predict(train *sparse.Matrix, i, c int) float64 {
	sum, weight := 0.0, 0.0
	for _, neighbor := range knn.neighbors[i] {
		if rating := train.Get(neighbor.Index, c); rating != 0 {
			sum += neighbor.Weight * rating
			weight += neighbor.Weight
		}
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}
