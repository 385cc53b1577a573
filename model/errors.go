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

package model

import (
	"github.com/gorse-io/cfeval/common/sparse"
	"github.com/juju/errors"
)

const (
	// ErrNotTrained is returned when a model is used before it is fitted.
	ErrNotTrained = errors.ConstError("model not trained")
	// ErrShapeMismatch is returned when inputs have incompatible shapes.
	ErrShapeMismatch = sparse.ErrShapeMismatch
)

// IsInvalidArgument returns true if err is caused by an invalid argument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, errors.NotValid)
}
