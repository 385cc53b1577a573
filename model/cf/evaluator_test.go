// Copyright 2020 gorse Project Authors
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
	"testing"

	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

const evalEpsilon = 0.00001

func TestMSE(t *testing.T) {
	predicted := sparse.FromDense([][]float64{{1, 4}, {0, 3}})
	actual := sparse.FromDense([][]float64{{2, 0}, {0, 5}})
	mse, err := MSE(predicted, actual)
	assert.NoError(t, err)
	assert.InDelta(t, 2.5, mse, evalEpsilon)
	rmse, err := RMSE(predicted, actual)
	assert.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2.5), rmse, evalEpsilon)
	mae, err := MAE(predicted, actual)
	assert.NoError(t, err)
	assert.InDelta(t, 1.5, mae, evalEpsilon)
	score, err := Evaluate(predicted, actual)
	assert.NoError(t, err)
	assert.Equal(t, 2, score.N)
	assert.InDelta(t, 2.5, score.MSE, evalEpsilon)
	assert.InDelta(t, math.Sqrt(2.5), score.RMSE, evalEpsilon)
	assert.InDelta(t, 1.5, score.MAE, evalEpsilon)
}

func TestMSE_MissingPrediction(t *testing.T) {
	// an absent prediction counts as zero
	mse, err := MSE(sparse.NewMatrix(1, 2), sparse.FromDense([][]float64{{0, 2}}))
	assert.NoError(t, err)
	assert.Equal(t, 4.0, mse)
}

func TestMSE_Perfect(t *testing.T) {
	actual := sparse.FromDense([][]float64{{5, 0, 3}, {4, 0, 0}, {0, 5, 4}})
	mse, err := MSE(actual.Copy(), actual)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, mse)
}

func TestMSE_ShapeMismatch(t *testing.T) {
	actual := sparse.FromDense([][]float64{{5, 0, 3}, {4, 0, 0}, {0, 5, 4}})
	_, err := MSE(sparse.NewMatrix(3, 2), actual)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	// no observed ratings
	_, err = MSE(actual, sparse.NewMatrix(3, 3))
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	_, err = Evaluate(actual, sparse.NewMatrix(3, 3))
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
}

func TestMeanSquaredError(t *testing.T) {
	mse, err := MeanSquaredError([]float64{1, 2, 3}, []float64{1, 4, 0})
	assert.NoError(t, err)
	assert.InDelta(t, 13.0/3, mse, evalEpsilon)
	_, err = MeanSquaredError([]float64{1, 2}, []float64{1})
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	_, err = MeanSquaredError(nil, nil)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	mae, err := MeanAbsoluteError([]float64{1, 2, 3}, []float64{1, 4, 0})
	assert.NoError(t, err)
	assert.InDelta(t, 5.0/3, mae, evalEpsilon)
}
