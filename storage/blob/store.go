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

package blob

import (
	"context"
	"io"
	"strings"

	"github.com/gorse-io/cfeval/config"
	"github.com/gorse-io/cfeval/storage"
	"github.com/juju/errors"
)

// Store is a flat namespace of named blobs. Open and Remove return a NotFound error
// for a missing blob.
type Store interface {
	// Open a blob for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create a blob for writing. The blob is complete once Close returns nil.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// List names of all blobs.
	List(ctx context.Context) ([]string, error)
	// Remove a blob.
	Remove(ctx context.Context, name string) error
	Close() error
}

// Open creates a blob store from the scheme of cfg.Store.
func Open(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch {
	case strings.HasPrefix(cfg.Store, storage.FilePrefix):
		return NewPOSIX(strings.TrimPrefix(cfg.Store, storage.FilePrefix)), nil
	case strings.HasPrefix(cfg.Store, storage.S3Prefix):
		bucket, prefix := storage.SplitBucket(cfg.Store, storage.S3Prefix)
		return NewS3(cfg.S3, bucket, prefix)
	case strings.HasPrefix(cfg.Store, storage.GCSPrefix):
		bucket, prefix := storage.SplitBucket(cfg.Store, storage.GCSPrefix)
		return NewGCS(ctx, cfg.GCS, bucket, prefix)
	case strings.HasPrefix(cfg.Store, storage.AzureBlobPrefix):
		container, prefix := storage.SplitBucket(cfg.Store, storage.AzureBlobPrefix)
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.HasPrefix(cfg.Store, storage.RedisPrefix), strings.HasPrefix(cfg.Store, storage.RedissPrefix):
		return NewRedis(cfg.Store, "cfeval/")
	}
	return nil, errors.NotValidf("blob store %q", cfg.Store)
}

// pipeWriter streams written data to an upload running in another goroutine. Close
// waits for the upload and returns its error.
type pipeWriter struct {
	*io.PipeWriter
	errs chan error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, errs: make(chan error, 1)}
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		w.errs <- err
	}()
	return w
}

func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(<-w.errs)
}
