// Copyright 2022 gorse Project Authors
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

package datautil

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newZip(t *testing.T, files map[string]string) []byte {
	buf := bytes.NewBuffer(nil)
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadAndUnzip(t *testing.T) {
	archive := newZip(t, map[string]string{"ml-test/u.data": "1\t2\t3\t0\n"})
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/ml-test.zip" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()
	SetDirs(filepath.Join(t.TempDir(), "dataset"), filepath.Join(t.TempDir(), "temp"))
	SetURL(server.URL + "/%s.zip")

	path, err := DownloadAndUnzip(context.Background(), "ml-test")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(path, "u.data"))
	require.NoError(t, err)
	assert.Equal(t, "1\t2\t3\t0\n", string(data))
	// cached
	_, err = DownloadAndUnzip(context.Background(), "ml-test")
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
	// not found
	_, err = DownloadAndUnzip(context.Background(), "ml-none")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestUnzipSlip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(src, newZip(t, map[string]string{"../evil.txt": "x"}), 0644))
	_, err := unzip(src, filepath.Join(dir, "out"))
	assert.True(t, errors.Is(err, errors.NotValid))
}
