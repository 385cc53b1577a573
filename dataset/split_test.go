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

package dataset

import (
	"math"
	"math/rand"
	"testing"

	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/model"
	"github.com/gorse-io/cfeval/model/cf"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomMatrix(rows, cols int) *sparse.Matrix {
	rng := rand.New(rand.NewSource(0))
	b := sparse.NewBuilder(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() < 0.3 {
				_ = b.Add(i, j, float64(rng.Intn(5)+1))
			}
		}
	}
	return b.Build()
}

func TestSplit(t *testing.T) {
	m := randomMatrix(100, 50)
	train, test, err := Split(m, 0.1, 0)
	require.NoError(t, err)
	assert.True(t, train.SameShape(m))
	assert.True(t, test.SameShape(m))
	assert.Equal(t, m.NNZ(), train.NNZ()+test.NNZ())
	assert.NoError(t, CheckDisjoint(train, test))
	// every row holds out int(0.1 * n) ratings
	for i := 0; i < m.Rows(); i++ {
		assert.Equal(t, int(0.1*float64(m.Row(i).Len())), test.Row(i).Len())
	}
	// train and test together restore the input
	m.ForEach(func(i, j int, v float64) {
		assert.Equal(t, v, train.Get(i, j)+test.Get(i, j))
	})
	// deterministic by seed
	train2, test2, err := Split(m, 0.1, 0)
	require.NoError(t, err)
	assert.True(t, train.Equal(train2))
	assert.True(t, test.Equal(test2))
}

func TestSplit_Zero(t *testing.T) {
	m := sparse.FromDense([][]float64{{5, 0, 3}, {4, 0, 0}, {0, 5, 4}})
	train, test, err := Split(m, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, test.NNZ())
	assert.True(t, train.Equal(m))
	// an empty test set has nothing to score
	knn, err := cf.NewKNNFromParams(model.Params{})
	require.NoError(t, err)
	require.NoError(t, knn.Fit(t.Context(), train, test, nil))
	predicted, err := knn.Predict(t.Context(), train, test)
	require.NoError(t, err)
	_, err = cf.MSE(predicted, test)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
}

func TestSplit_InvalidRatio(t *testing.T) {
	m := sparse.FromDense([][]float64{{5, 0, 3}})
	for _, ratio := range []float64{-0.1, 1, 1.5, math.NaN()} {
		_, _, err := Split(m, ratio, 0)
		assert.True(t, errors.Is(err, errors.NotValid))
	}
}

func TestCheckDisjoint(t *testing.T) {
	a := sparse.FromDense([][]float64{{5, 0, 3}})
	b := sparse.FromDense([][]float64{{0, 1, 3}})
	assert.True(t, errors.Is(CheckDisjoint(a, b), sparse.ErrShapeMismatch))
	assert.True(t, errors.Is(CheckDisjoint(a, sparse.NewMatrix(2, 3)), sparse.ErrShapeMismatch))
	assert.NoError(t, CheckDisjoint(a, sparse.FromDense([][]float64{{0, 1, 0}})))
}

func TestTranspose(t *testing.T) {
	train := sparse.FromDense([][]float64{{5, 0, 3}, {4, 0, 0}})
	test := sparse.FromDense([][]float64{{0, 2, 0}, {0, 0, 1}})
	trainT, testT := Transpose(train, test)
	assert.Equal(t, [][]float64{{5, 4}, {0, 0}, {3, 0}}, trainT.ToDense())
	assert.Equal(t, [][]float64{{0, 0}, {2, 0}, {0, 1}}, testT.ToDense())
}
