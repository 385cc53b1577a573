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
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/gorse-io/cfeval/common/util"
	"github.com/juju/errors"
)

// Ratings is a collection of explicit (user, item, rating) records.
type Ratings struct {
	userDict *FreqDict
	itemDict *FreqDict
	users    []int32
	items    []int32
	values   []float64
}

func NewRatings() *Ratings {
	return &Ratings{
		userDict: NewFreqDict(),
		itemDict: NewFreqDict(),
	}
}

// Add appends a rating. Repeated ratings of the same item by the same user are kept.
func (r *Ratings) Add(user, item string, rating float64) {
	r.users = append(r.users, r.userDict.Id(user))
	r.items = append(r.items, r.itemDict.Id(item))
	r.values = append(r.values, rating)
}

func (r *Ratings) Len() int {
	return len(r.values)
}

func (r *Ratings) CountUsers() int {
	return r.userDict.Count()
}

func (r *Ratings) CountItems() int {
	return r.itemDict.Count()
}

func (r *Ratings) UserDict() *FreqDict {
	return r.userDict
}

func (r *Ratings) ItemDict() *FreqDict {
	return r.itemDict
}

// ToMatrix builds the user-item matrix. A user rating an item more than once gets the
// average of those ratings.
func (r *Ratings) ToMatrix() *sparse.Matrix {
	builder := sparse.NewBuilder(r.CountUsers(), r.CountItems())
	for i := range r.values {
		// indices come from the dictionaries and are always in range
		_ = builder.Add(int(r.users[i]), int(r.items[i]), r.values[i])
	}
	return builder.Build()
}

// ReadRatings parses ratings from lines of "user<sep>item<sep>rating[<sep>...]". For
// example, the u.data of MovieLens 100K is:
//
//	196\t242\t3\t881250949
//	186\t302\t3\t891717742
//	22\t377\t1\t878887116
//
// Empty lines are skipped.
func ReadRatings(reader io.Reader, sep string, hasHeader bool) (*Ratings, error) {
	ratings := NewRatings()
	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		// Ignore header
		if hasHeader {
			hasHeader = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 3 {
			return nil, errors.NotValidf("line %d %q", lineNumber, line)
		}
		rating, err := util.ParseFloat[float64](strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
		ratings.Add(strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1]), rating)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return ratings, nil
}

// LoadRatings loads ratings from a file.
func LoadRatings(path, sep string, hasHeader bool) (*Ratings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	ratings, err := ReadRatings(file, sep, hasHeader)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}
	return ratings, nil
}
