// Copyright 2021 gorse Project Authors
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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/cfeval/dataset"
	"github.com/gorse-io/cfeval/model/cf"
	"github.com/gorse-io/cfeval/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

func hasPrefix(s string, prefixes ...string) bool {
	return lo.SomeBy(prefixes, func(prefix string) bool {
		return strings.HasPrefix(s, prefix)
	})
}

func validateSimilarity(fl validator.FieldLevel) bool {
	_, err := cf.NewSimilarity(fl.Field().String())
	return err == nil
}

func validateBlobStore(fl validator.FieldLevel) bool {
	return hasPrefix(fl.Field().String(),
		storage.FilePrefix,
		storage.S3Prefix,
		storage.GCSPrefix,
		storage.AzureBlobPrefix,
		storage.RedisPrefix,
		storage.RedissPrefix)
}

func validateDatabase(fl validator.FieldLevel) bool {
	return hasPrefix(fl.Field().String(),
		storage.SQLitePrefix,
		storage.MySQLPrefix,
		storage.PostgresPrefix,
		storage.PostgreSQLPrefix)
}

func datasetValidation(sl validator.StructLevel) {
	c := sl.Current().Interface().(DatasetConfig)
	if c.Path != "" {
		return
	}
	if c.BuiltIn == "" {
		sl.ReportError(c.BuiltIn, "builtin", "BuiltIn", "required_without_path", "")
	} else if !dataset.IsBuiltIn(c.BuiltIn) {
		sl.ReportError(c.BuiltIn, "builtin", "BuiltIn", "builtin", c.BuiltIn)
	}
}

// Validate checks the configuration. It returns a NotValid error describing every
// invalid field.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("similarity", validateSimilarity); err != nil {
		return errors.Trace(err)
	}
	if err := validate.RegisterValidation("blob_store", validateBlobStore); err != nil {
		return errors.Trace(err)
	}
	if err := validate.RegisterValidation("database", validateDatabase); err != nil {
		return errors.Trace(err)
	}
	validate.RegisterStructValidation(datasetValidation, DatasetConfig{})
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}
