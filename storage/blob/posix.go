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
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorse-io/cfeval/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const tempSuffix = ".tmp"

type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

// Open a file for reading.
func (p *POSIX) Open(_ context.Context, name string) (io.ReadCloser, error) {
	fullPath := filepath.Join(p.dir, name)
	file, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("blob %s", name)
	}
	return file, errors.Trace(err)
}

// Create a new file for writing. Data is written to a temporary file which is renamed
// to the target on Close, so readers never observe a partial file.
func (p *POSIX) Create(_ context.Context, name string) (io.WriteCloser, error) {
	fullPath := filepath.Join(p.dir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	file, err := os.Create(fullPath + tempSuffix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &posixWriter{File: file, path: fullPath}, nil
}

type posixWriter struct {
	*os.File
	path string
}

func (w *posixWriter) Close() error {
	if err := w.File.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(w.File.Name(), w.path))
}

func (p *POSIX) List(_ context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, tempSuffix) {
			return nil
		}
		name, err := filepath.Rel(p.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(name))
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return names, errors.Trace(err)
}

func (p *POSIX) Remove(_ context.Context, name string) error {
	fullPath := filepath.Join(p.dir, name)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundf("blob %s", name)
		}
		log.Logger().Error("failed to remove file", zap.String("file", fullPath), zap.Error(err))
		return errors.Trace(err)
	}
	return nil
}

func (p *POSIX) Close() error {
	return nil
}
