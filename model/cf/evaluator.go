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
	"math"

	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/model"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/stat"
)

// Score holds regression metrics over observed test ratings.
type Score struct {
	MSE  float64
	RMSE float64
	MAE  float64
	N    int
}

// Observed returns values of predicted and actual at the nonzero positions of actual.
func Observed(predicted, actual *sparse.Matrix) ([]float64, []float64, error) {
	if !predicted.SameShape(actual) {
		return nil, nil, errors.Annotatef(model.ErrShapeMismatch, "predicted (%d, %d) and actual (%d, %d)",
			predicted.Rows(), predicted.Cols(), actual.Rows(), actual.Cols())
	}
	p := make([]float64, 0, actual.NNZ())
	a := make([]float64, 0, actual.NNZ())
	actual.ForEach(func(i, j int, v float64) {
		if v != 0 {
			p = append(p, predicted.Get(i, j))
			a = append(a, v)
		}
	})
	return p, a, nil
}

// MeanSquaredError computes the mean squared error between two sequences. Sequences must
// have equal and positive lengths.
func MeanSquaredError(predicted, actual []float64) (float64, error) {
	squared, err := residuals(predicted, actual, func(x float64) float64 { return x * x })
	if err != nil {
		return 0, errors.Trace(err)
	}
	return stat.Mean(squared, nil), nil
}

// MeanAbsoluteError computes the mean absolute error between two sequences.
func MeanAbsoluteError(predicted, actual []float64) (float64, error) {
	absolute, err := residuals(predicted, actual, math.Abs)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return stat.Mean(absolute, nil), nil
}

func residuals(predicted, actual []float64, f func(float64) float64) ([]float64, error) {
	if len(predicted) != len(actual) {
		return nil, errors.Annotatef(model.ErrShapeMismatch, "%d predictions and %d ratings", len(predicted), len(actual))
	}
	if len(actual) == 0 {
		return nil, errors.Annotate(model.ErrShapeMismatch, "no observed ratings")
	}
	r := make([]float64, len(actual))
	for i := range actual {
		r[i] = f(predicted[i] - actual[i])
	}
	return r, nil
}

// MSE computes the mean squared error over the nonzero positions of actual.
func MSE(predicted, actual *sparse.Matrix) (float64, error) {
	p, a, err := Observed(predicted, actual)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return MeanSquaredError(p, a)
}

// RMSE computes the root mean squared error over the nonzero positions of actual.
func RMSE(predicted, actual *sparse.Matrix) (float64, error) {
	mse, err := MSE(predicted, actual)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return math.Sqrt(mse), nil
}

// MAE computes the mean absolute error over the nonzero positions of actual.
func MAE(predicted, actual *sparse.Matrix) (float64, error) {
	p, a, err := Observed(predicted, actual)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return MeanAbsoluteError(p, a)
}

// Evaluate computes all metrics over the nonzero positions of actual.
func Evaluate(predicted, actual *sparse.Matrix) (Score, error) {
	p, a, err := Observed(predicted, actual)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	mse, err := MeanSquaredError(p, a)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	mae, err := MeanAbsoluteError(p, a)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return Score{MSE: mse, RMSE: math.Sqrt(mse), MAE: mae, N: len(a)}, nil
}
