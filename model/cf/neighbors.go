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
	"slices"
	"sort"
	"strconv"

	"github.com/gorse-io/cfeval/common/heap"
	"github.com/juju/errors"
)

// Unbounded selects every neighbor with positive similarity.
const Unbounded = math.MaxInt

// Neighbor is a row index paired with its similarity weight.
type Neighbor struct {
	Index  int
	Weight float64
}

// NeighborSelector selects the k most similar rows. Self is never selected and ties
// are broken by ascending row index.
type NeighborSelector struct {
	k int
}

// NewNeighborSelector creates a selector for k neighbors. k must be positive or Unbounded.
func NewNeighborSelector(k int) (*NeighborSelector, error) {
	if k <= 0 {
		return nil, errors.NotValidf("k = %d", k)
	}
	return &NeighborSelector{k: k}, nil
}

// K returns the number of neighbors.
func (s *NeighborSelector) K() int {
	return s.k
}

func (s *NeighborSelector) String() string {
	if s.k == Unbounded {
		return "unbounded"
	}
	return strconv.Itoa(s.k)
}

// Select returns neighbors of row self ordered by similarity descending. Only positive
// similarities are kept.
func (s *NeighborSelector) Select(row []float64, self int) []Neighbor {
	masked := slices.Clone(row)
	if self >= 0 && self < len(masked) {
		masked[self] = math.Inf(-1)
	}
	if s.k >= len(masked) {
		neighbors := make([]Neighbor, 0, len(masked))
		for j, w := range masked {
			if w > 0 {
				neighbors = append(neighbors, Neighbor{Index: j, Weight: w})
			}
		}
		sort.SliceStable(neighbors, func(x, y int) bool {
			return neighbors[x].Weight > neighbors[y].Weight
		})
		return neighbors
	}
	filter := heap.NewTopKFilter[int, float64](s.k)
	for j, w := range masked {
		if w > 0 {
			filter.Push(j, w)
		}
	}
	elems := filter.PopAll()
	neighbors := make([]Neighbor, len(elems))
	for i, elem := range elems {
		neighbors[i] = Neighbor{Index: elem.Value, Weight: elem.Weight}
	}
	return neighbors
}
