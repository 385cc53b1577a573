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
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/cfeval/config"
	"github.com/gorse-io/cfeval/model"
	"github.com/gorse-io/cfeval/report"
	"github.com/gorse-io/cfeval/storage/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRatings writes a dense-ish ratings file of 8 users and 6 items.
func writeRatings(t *testing.T) string {
	var sb strings.Builder
	for u := 0; u < 8; u++ {
		for i := 0; i < 6; i++ {
			if (u+i)%4 == 3 {
				continue
			}
			_, _ = fmt.Fprintf(&sb, "u%d\ti%d\t%d\t881250949\n", u, i, 1+(u*i+u)%5)
		}
	}
	path := filepath.Join(t.TempDir(), "ratings.tsv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func newTestConfig(t *testing.T) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Dataset.Path = writeRatings(t)
	cfg.Split.Ratio = 0.25
	cfg.Split.Seed = 1
	cfg.Evaluate.Jobs = 2
	return cfg
}

func TestPrepare(t *testing.T) {
	cfg := newTestConfig(t)
	split, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Dataset.Path, split.Name)
	assert.Equal(t, 8, split.Train.Rows())
	assert.Equal(t, 6, split.Train.Cols())
	assert.True(t, split.Train.SameShape(split.Test))
	assert.Equal(t, 36, split.Train.NNZ()+split.Test.NNZ())
	assert.Positive(t, split.Test.NNZ())

	// item based
	transposed := split.Mode(ItemBased)
	assert.Equal(t, 6, transposed.Train.Rows())
	assert.Equal(t, split.Test.NNZ(), transposed.Test.NNZ())
	assert.Same(t, split, split.Mode(UserBased))
}

func TestPrepareCache(t *testing.T) {
	cfg := newTestConfig(t)
	cacheDir := t.TempDir()
	cfg.Cache.Store = "file://" + cacheDir

	first, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	names, err := blob.NewPOSIX(cacheDir).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 1)

	second, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, first.Train.Equal(second.Train))
	assert.True(t, first.Test.Equal(second.Test))

	// another seed is another split
	cfg.Split.Seed = 2
	_, err = Prepare(context.Background(), cfg)
	require.NoError(t, err)
	names, err = blob.NewPOSIX(cacheDir).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestPrepareMissingFile(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.tsv")
	_, err := Prepare(context.Background(), cfg)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	cfg := newTestConfig(t)
	split, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)

	run, err := Evaluate(context.Background(), split, cfg.Models[1], cfg.Evaluate)
	require.NoError(t, err)
	assert.Equal(t, "topk", run.Model)
	assert.Equal(t, 50, run.Params.GetInt(model.K, 0))
	if assert.Len(t, run.Scores, 2) {
		assert.Equal(t, string(UserBased), run.Scores[0].Mode)
		assert.Equal(t, string(ItemBased), run.Scores[1].Mode)
		for _, score := range run.Scores {
			assert.Equal(t, split.Test.NNZ(), score.N)
			assert.GreaterOrEqual(t, score.MSE, 0.0)
			assert.InDelta(t, score.RMSE*score.RMSE, score.MSE, 1e-9)
		}
	}

	// user based only
	cfg.Evaluate.ItemBased = false
	run, err = Evaluate(context.Background(), split, cfg.Models[0], cfg.Evaluate)
	require.NoError(t, err)
	assert.Len(t, run.Scores, 1)
}

func TestEvaluateFailure(t *testing.T) {
	cfg := newTestConfig(t)
	split, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	run, err := Evaluate(context.Background(), split, config.ModelConfig{Name: "bad", Similarity: "unknown"}, cfg.Evaluate)
	assert.Error(t, err)
	assert.Nil(t, run)

	// canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err = Evaluate(ctx, split, cfg.Models[0], cfg.Evaluate)
	assert.Error(t, err)
	assert.Nil(t, run)
}

func TestEvaluateAll(t *testing.T) {
	cfg := newTestConfig(t)
	split, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, EvaluateAll(context.Background(), split, cfg, report.NewTable(&buf)))
	assert.Contains(t, buf.String(), "simple_sim")
	assert.Contains(t, buf.String(), "topk")
}

func TestTune(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Tune.Trials = 5
	cfg.Tune.KMax = 5
	cfg.Tune.Similarities = []string{"cosine", "pearson"}
	split, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	result, err := Tune(context.Background(), split, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Trials)
	k := result.Params.GetInt(model.K, 0)
	assert.GreaterOrEqual(t, k, 1)
	assert.LessOrEqual(t, k, 5)
	assert.Contains(t, cfg.Tune.Similarities, result.Params.GetString(model.Similarity, ""))
}
