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
package cache

import (
	"context"
	"testing"

	"github.com/gorse-io/cfeval/common/encoding"
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/storage/blob"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("u.data", int64(1979173), 0.1, int64(0))
	assert.Len(t, a, 16)
	assert.Equal(t, a, Key("u.data", int64(1979173), 0.1, int64(0)))
	assert.NotEqual(t, a, Key("u.data", int64(1979173), 0.2, int64(0)))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestSplitCache(t *testing.T) {
	ctx := context.Background()
	c := NewSplitCache(blob.NewPOSIX(t.TempDir()))
	key := Key("ratings.csv", 0.5, 42)

	// miss
	_, _, found, err := c.Load(ctx, key)
	assert.NoError(t, err)
	assert.False(t, found)

	// hit
	train := sparse.FromDense([][]float64{{5, 0, 3}, {0, 4, 0}})
	test := sparse.FromDense([][]float64{{0, 2, 0}, {1, 0, 0}})
	require.NoError(t, c.Save(ctx, key, train, test))
	loadedTrain, loadedTest, found, err := c.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, train.Equal(loadedTrain))
	assert.True(t, test.Equal(loadedTest))

	// purge
	require.NoError(t, c.Purge(ctx))
	_, _, found, err = c.Load(ctx, key)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestSplitCacheCorrupted(t *testing.T) {
	ctx := context.Background()
	store := blob.NewPOSIX(t.TempDir())
	w, err := store.Create(ctx, "bad"+suffix)
	require.NoError(t, err)
	require.NoError(t, encoding.WriteString(w, "not a split"))
	require.NoError(t, w.Close())

	_, _, found, err := NewSplitCache(store).Load(ctx, "bad")
	assert.False(t, found)
	assert.True(t, errors.Is(err, errors.NotValid))
}
