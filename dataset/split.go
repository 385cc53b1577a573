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
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/juju/errors"
)

// Split holds out a ratio of each row's ratings for test. Columns of every row are
// shuffled and the first int(ratio * n) go to test. The returned matrices have the
// shape of m and never share a nonzero position.
func Split(m *sparse.Matrix, ratio float64, seed int64) (train, test *sparse.Matrix, err error) {
	if !(ratio >= 0 && ratio < 1) {
		return nil, nil, errors.NotValidf("split ratio %v", ratio)
	}
	rng := rand.New(rand.NewSource(seed))
	trainBuilder := sparse.NewBuilder(m.Rows(), m.Cols())
	testBuilder := sparse.NewBuilder(m.Rows(), m.Cols())
	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		perm := rng.Perm(row.Len())
		cut := int(ratio * float64(row.Len()))
		held := mapset.NewThreadUnsafeSet[int32]()
		for _, pos := range perm[:cut] {
			held.Add(row.Indices[pos])
		}
		var builder *sparse.Builder
		row.ForEach(func(_, j int, v float64) {
			if held.Contains(int32(j)) {
				builder = testBuilder
			} else {
				builder = trainBuilder
			}
			_ = builder.Add(i, j, v)
		})
	}
	train, test = trainBuilder.Build(), testBuilder.Build()
	if err = CheckDisjoint(train, test); err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}

// CheckDisjoint returns an error if train and test differ in shape or share a rated
// position.
func CheckDisjoint(train, test *sparse.Matrix) error {
	product, err := train.Multiply(test)
	if err != nil {
		return errors.Trace(err)
	}
	if product.NNZ() > 0 {
		return errors.Annotatef(sparse.ErrShapeMismatch, "%d positions in both train and test", product.NNZ())
	}
	return nil
}

// Transpose swaps users and items of a split for item-based evaluation.
func Transpose(train, test *sparse.Matrix) (*sparse.Matrix, *sparse.Matrix) {
	return train.Transpose(), test.Transpose()
}
