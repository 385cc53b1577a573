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
	"path"
	"strings"

	"github.com/gorse-io/cfeval/common/log"
	"github.com/gorse-io/cfeval/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type S3 struct {
	*minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Config, bucket, prefix string) (*S3, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3{
		Client: minioClient,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Open an object in S3 for reading.
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	fullPath := path.Join(s.prefix, name)
	if _, err := s.Client.StatObject(ctx, s.bucket, fullPath, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, errors.NotFoundf("blob %s", name)
		}
		return nil, errors.Trace(err)
	}
	object, err := s.Client.GetObject(ctx, s.bucket, fullPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return object, nil
}

// Create a new object in S3 for writing. The object is uploaded while it is written.
func (s *S3) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	fullPath := path.Join(s.prefix, name)
	return newPipeWriter(func(r io.Reader) error {
		_, err := s.Client.PutObject(ctx, s.bucket, fullPath, r, -1, minio.PutObjectOptions{})
		if err != nil {
			log.Logger().Error("failed to upload file to S3", zap.String("file", fullPath), zap.Error(err))
		}
		return err
	}), nil
}

func (s *S3) List(ctx context.Context) ([]string, error) {
	var (
		prefix string
		names  []string
	)
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}
	for object := range s.Client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, errors.Trace(object.Err)
		}
		names = append(names, strings.TrimPrefix(object.Key, prefix))
	}
	return names, nil
}

func (s *S3) Remove(ctx context.Context, name string) error {
	fullPath := path.Join(s.prefix, name)
	if _, err := s.Client.StatObject(ctx, s.bucket, fullPath, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return errors.NotFoundf("blob %s", name)
		}
		return errors.Trace(err)
	}
	return errors.Trace(s.Client.RemoveObject(ctx, s.bucket, fullPath, minio.RemoveObjectOptions{}))
}

func (s *S3) Close() error {
	return nil
}
