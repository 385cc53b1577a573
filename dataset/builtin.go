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
	"context"
	"path/filepath"

	"github.com/gorse-io/cfeval/common/datautil"
	"github.com/juju/errors"
)

type builtInDataset struct {
	file string
	sep  string
}

var builtInDatasets = map[string]builtInDataset{
	"ml-100k": {file: "u.data", sep: "\t"},
	"ml-1m":   {file: "ratings.dat", sep: "::"},
}

// IsBuiltIn returns true if name is a built-in dataset.
func IsBuiltIn(name string) bool {
	_, ok := builtInDatasets[name]
	return ok
}

// LocateBuiltIn downloads a built-in dataset if necessary and returns the path of its
// ratings file and the field separator.
func LocateBuiltIn(ctx context.Context, name string) (string, string, error) {
	info, ok := builtInDatasets[name]
	if !ok {
		return "", "", errors.NotValidf("built-in dataset %s", name)
	}
	dir, err := datautil.DownloadAndUnzip(ctx, name)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	return filepath.Join(dir, info.file), info.sep, nil
}

// LoadBuiltIn loads ratings of a built-in dataset.
func LoadBuiltIn(ctx context.Context, name string) (*Ratings, error) {
	path, sep, err := LocateBuiltIn(ctx, name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return LoadRatings(path, sep, false)
}
