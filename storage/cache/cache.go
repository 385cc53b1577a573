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
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/gorse-io/cfeval/common/encoding"
	"github.com/gorse-io/cfeval/common/log"
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	magic  = "cfeval.split"
	suffix = ".split"
)

// Key hashes the identity of a split (dataset path, size, modification time, ratio
// and seed) into a blob name.
func Key(parts ...any) string {
	h := xxhash.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%v\x00", part)
	}
	return encoding.Hex(h.Sum64())
}

// SplitCache stores train/test splits in a blob store.
type SplitCache struct {
	store blob.Store
}

func NewSplitCache(store blob.Store) *SplitCache {
	return &SplitCache{store: store}
}

// Load a split. found is false if no split is stored under the key.
func (c *SplitCache) Load(ctx context.Context, key string) (train, test *sparse.Matrix, found bool, err error) {
	r, err := c.store.Open(ctx, key+suffix)
	if errors.Is(err, errors.NotFound) {
		return nil, nil, false, nil
	} else if err != nil {
		return nil, nil, false, errors.Trace(err)
	}
	defer r.Close()
	br := bufio.NewReader(r)
	header, err := encoding.ReadString(br)
	if err != nil {
		return nil, nil, false, errors.Trace(err)
	}
	if header != magic {
		return nil, nil, false, errors.NotValidf("split cache header %q", header)
	}
	if train, err = sparse.Unmarshal(br); err != nil {
		return nil, nil, false, errors.Trace(err)
	}
	if test, err = sparse.Unmarshal(br); err != nil {
		return nil, nil, false, errors.Trace(err)
	}
	if !train.SameShape(test) {
		return nil, nil, false, errors.Annotatef(sparse.ErrShapeMismatch, "cached split %s", key)
	}
	log.Logger().Debug("load split from cache", zap.String("key", key),
		zap.Int("n_train", train.NNZ()), zap.Int("n_test", test.NNZ()))
	return train, test, true, nil
}

// Save a split under the key, replacing any previous one.
func (c *SplitCache) Save(ctx context.Context, key string, train, test *sparse.Matrix) error {
	w, err := c.store.Create(ctx, key+suffix)
	if err != nil {
		return errors.Trace(err)
	}
	if err = write(w, train, test); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Debug("save split to cache", zap.String("key", key))
	return nil
}

func write(w io.Writer, train, test *sparse.Matrix) error {
	bw := bufio.NewWriter(w)
	if err := encoding.WriteString(bw, magic); err != nil {
		return errors.Trace(err)
	}
	if err := train.Marshal(bw); err != nil {
		return errors.Trace(err)
	}
	if err := test.Marshal(bw); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(bw.Flush())
}

// Purge removes every cached split.
func (c *SplitCache) Purge(ctx context.Context) error {
	names, err := c.store.List(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	for _, name := range names {
		if err = c.store.Remove(ctx, name); err != nil && !errors.Is(err, errors.NotFound) {
			return errors.Trace(err)
		}
	}
	return nil
}
