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
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// Redis keeps each blob as a string value under prefix+name.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(url, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client := redis.NewClient(opt)
	if err = redisotel.InstrumentTracing(client); err != nil {
		return nil, errors.Trace(err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := r.client.Get(ctx, r.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.NotFoundf("blob %s", name)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *Redis) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return &redisWriter{ctx: ctx, client: r.client, key: r.prefix + name}, nil
}

type redisWriter struct {
	bytes.Buffer
	ctx    context.Context
	client redis.UniversalClient
	key    string
}

func (w *redisWriter) Close() error {
	return errors.Trace(w.client.Set(w.ctx, w.key, w.Bytes(), 0).Err())
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, key := range keys {
			names = append(names, strings.TrimPrefix(key, r.prefix))
		}
		if next == 0 {
			return names, nil
		}
		cursor = next
	}
}

func (r *Redis) Remove(ctx context.Context, name string) error {
	n, err := r.client.Del(ctx, r.prefix+name).Result()
	if err != nil {
		return errors.Trace(err)
	}
	if n == 0 {
		return errors.NotFoundf("blob %s", name)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
