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
	"math"
	"slices"
	"strings"

	"github.com/gorse-io/cfeval/common/parallel"
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Similarity computes the similarity between a pair of sparse rows.
type Similarity func(a, b sparse.Vector) float64

// Similarity names
const (
	Cosine  = "cosine"
	Pearson = "pearson"
	Jaccard = "jaccard"
	MSD     = "msd"
)

var similarities = map[string]Similarity{
	Cosine:  CosineSimilarity,
	Pearson: PearsonSimilarity,
	Jaccard: JaccardSimilarity,
	MSD:     MSDSimilarity,
}

// SimilarityNames returns the names of built-in similarity functions in order.
func SimilarityNames() []string {
	names := lo.Keys(similarities)
	slices.Sort(names)
	return names
}

// NewSimilarity returns a built-in similarity function by name.
func NewSimilarity(name string) (Similarity, error) {
	if sim, ok := similarities[strings.ToLower(name)]; ok {
		return sim, nil
	}
	return nil, errors.NotValidf("similarity %q", name)
}

// CosineSimilarity computes the cosine similarity between a pair of vectors. Absent
// entries count as zero. A vector without ratings has similarity 0 to every vector.
func CosineSimilarity(a, b sparse.Vector) float64 {
	na, nb := a.SquaredNorm(), b.SquaredNorm()
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(a.Dot(b) / math.Sqrt(na*nb))
}

// PearsonSimilarity computes the Pearson correlation coefficient over co-rated entries.
// Each vector is centered by the mean of all its ratings.
func PearsonSimilarity(a, b sparse.Vector) float64 {
	if a.Len() == 0 || b.Len() == 0 {
		return 0
	}
	meanA := stat.Mean(a.Values, nil)
	meanB := stat.Mean(b.Values, nil)
	m, n, l := 0.0, 0.0, 0.0
	a.ForIntersection(b, func(_ int, x, y float64) {
		x -= meanA
		y -= meanB
		m += x * x
		n += y * y
		l += x * y
	})
	if m == 0 || n == 0 {
		return 0
	}
	return clamp(l / math.Sqrt(m*n))
}

// JaccardSimilarity computes the size of the intersection over the size of the union
// of rated entries.
func JaccardSimilarity(a, b sparse.Vector) float64 {
	intersect := 0
	a.ForIntersection(b, func(int, float64, float64) {
		intersect++
	})
	union := a.Len() + b.Len() - intersect
	if union == 0 {
		return 0
	}
	return float64(intersect) / float64(union)
}

// MSDSimilarity computes the Mean Squared Difference similarity over co-rated entries.
func MSDSimilarity(a, b sparse.Vector) float64 {
	count, sum := 0, 0.0
	a.ForIntersection(b, func(_ int, x, y float64) {
		sum += (x - y) * (x - y)
		count++
	})
	if count == 0 {
		return 0
	}
	return 1 / (sum/float64(count) + 1)
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

// ComputeSimilarity computes the dense similarity matrix between all rows of m. Rows
// are computed in parallel and every job only writes its own row.
func ComputeSimilarity(ctx context.Context, m *sparse.Matrix, sim Similarity, jobs int) ([][]float64, error) {
	n := m.Rows()
	matrix := make([][]float64, n)
	err := parallel.For(ctx, n, jobs, func(i int) {
		row := make([]float64, n)
		a := m.Row(i)
		for j := 0; j < n; j++ {
			row[j] = sim(a, m.Row(j))
		}
		matrix[i] = row
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return matrix, nil
}
