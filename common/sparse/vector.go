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

package sparse

import (
	"math"
	"sort"
)

// Vector is a read-only view of a sparse row. Indices are strictly increasing and
// every stored value is nonzero.
type Vector struct {
	Indices []int32
	Values  []float64
}

// Len returns the number of stored entries.
func (vec Vector) Len() int {
	return len(vec.Indices)
}

// Get returns the value at index and whether it is stored.
func (vec Vector) Get(index int) (float64, bool) {
	pos := sort.Search(len(vec.Indices), func(i int) bool {
		return vec.Indices[i] >= int32(index)
	})
	if pos < len(vec.Indices) && vec.Indices[pos] == int32(index) {
		return vec.Values[pos], true
	}
	return 0, false
}

// ForEach iterates stored entries.
func (vec Vector) ForEach(f func(i, index int, value float64)) {
	for i := range vec.Indices {
		f(i, int(vec.Indices[i]), vec.Values[i])
	}
}

// ForIntersection iterates entries whose indices appear in both vectors in linear time.
func (vec Vector) ForIntersection(other Vector, f func(index int, a, b float64)) {
	i, j := 0, 0
	for i < len(vec.Indices) && j < len(other.Indices) {
		if vec.Indices[i] == other.Indices[j] {
			f(int(vec.Indices[i]), vec.Values[i], other.Values[j])
			i++
			j++
		} else if vec.Indices[i] < other.Indices[j] {
			i++
		} else {
			j++
		}
	}
}

// Dot returns the inner product of two sparse vectors.
func (vec Vector) Dot(other Vector) float64 {
	sum := 0.0
	vec.ForIntersection(other, func(_ int, a, b float64) {
		sum += a * b
	})
	return sum
}

// SquaredNorm returns the sum of squares of stored values.
func (vec Vector) SquaredNorm() float64 {
	sum := 0.0
	for _, v := range vec.Values {
		sum += v * v
	}
	return sum
}

// Norm returns the Euclidean norm.
func (vec Vector) Norm() float64 {
	return math.Sqrt(vec.SquaredNorm())
}
