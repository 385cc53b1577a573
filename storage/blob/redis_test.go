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
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedis(t *testing.T) {
	uri := os.Getenv("REDIS_URI")
	if uri == "" {
		t.Skip("REDIS_URI is not set, skipping Redis tests")
	}
	client, err := NewRedis(uri, "cfeval-test/")
	require.NoError(t, err)
	require.NoError(t, client.client.FlushDB(context.Background()).Err())
	testStore(t, client)
}
