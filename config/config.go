// Copyright 2020 gorse Project Authors
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
	"github.com/gorse-io/cfeval/model"
	"github.com/gorse-io/cfeval/model/cf"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for the evaluation.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Split    SplitConfig    `mapstructure:"split"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Models   []ModelConfig  `mapstructure:"models" validate:"required,dive"`
	Evaluate EvaluateConfig `mapstructure:"evaluate"`
	Report   ReportConfig   `mapstructure:"report"`
	Tune     TuneConfig     `mapstructure:"tune"`
}

// DatasetConfig is the configuration for the ratings source. Path takes precedence
// over BuiltIn.
type DatasetConfig struct {
	Path      string `mapstructure:"path"`
	Separator string `mapstructure:"separator"`
	Header    bool   `mapstructure:"header"`
	BuiltIn   string `mapstructure:"builtin"`
}

// SplitConfig is the configuration for the train/test split.
type SplitConfig struct {
	Ratio float64 `mapstructure:"ratio" validate:"gte=0,lt=1"`
	Seed  int64   `mapstructure:"seed"`
}

// CacheConfig is the configuration for the split cache. An empty store disables it.
type CacheConfig struct {
	Store string          `mapstructure:"store" validate:"omitempty,blob_store"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
}

// ModelConfig is the configuration for a neighborhood model. K = 0 means every
// neighbor with positive similarity.
type ModelConfig struct {
	Name       string `mapstructure:"name" validate:"required"`
	Similarity string `mapstructure:"similarity" validate:"similarity"`
	K          int    `mapstructure:"k" validate:"gte=0"`
}

// Params converts the model configuration to hyper-parameters.
func (m ModelConfig) Params() model.Params {
	return model.Params{
		model.Similarity: m.Similarity,
		model.K:          m.K,
	}
}

type EvaluateConfig struct {
	UserBased bool `mapstructure:"user_based"`
	ItemBased bool `mapstructure:"item_based"`
	Jobs      int  `mapstructure:"jobs" validate:"gte=1"`
	Progress  bool `mapstructure:"progress"`
}

type ReportConfig struct {
	Table       bool   `mapstructure:"table"`
	Database    string `mapstructure:"database" validate:"omitempty,database"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type TuneConfig struct {
	Trials       int      `mapstructure:"trials" validate:"gte=1"`
	KMin         int      `mapstructure:"k_min" validate:"gte=1"`
	KMax         int      `mapstructure:"k_max" validate:"gtefield=KMin"`
	Similarities []string `mapstructure:"similarities" validate:"dive,similarity"`
	Mode         string   `mapstructure:"mode" validate:"oneof=user item"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Separator: "\t",
			BuiltIn:   "ml-100k",
		},
		Split: SplitConfig{
			Ratio: 0.1,
		},
		Models: []ModelConfig{
			{Name: "simple_sim", Similarity: cf.Cosine, K: 0},
			{Name: "topk", Similarity: cf.Cosine, K: 50},
		},
		Evaluate: EvaluateConfig{
			UserBased: true,
			ItemBased: true,
			Jobs:      1,
		},
		Report: ReportConfig{
			Table: true,
		},
		Tune: TuneConfig{
			Trials:       20,
			KMin:         1,
			KMax:         200,
			Similarities: []string{cf.Cosine},
			Mode:         "user",
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	v.SetDefault("dataset.separator", defaultConfig.Dataset.Separator)
	v.SetDefault("dataset.builtin", defaultConfig.Dataset.BuiltIn)
	// [split]
	v.SetDefault("split.ratio", defaultConfig.Split.Ratio)
	v.SetDefault("split.seed", defaultConfig.Split.Seed)
	// [[models]]
	models := make([]map[string]any, len(defaultConfig.Models))
	for i, m := range defaultConfig.Models {
		models[i] = map[string]any{"name": m.Name, "similarity": m.Similarity, "k": m.K}
	}
	v.SetDefault("models", models)
	// [evaluate]
	v.SetDefault("evaluate.user_based", defaultConfig.Evaluate.UserBased)
	v.SetDefault("evaluate.item_based", defaultConfig.Evaluate.ItemBased)
	v.SetDefault("evaluate.jobs", defaultConfig.Evaluate.Jobs)
	v.SetDefault("evaluate.progress", defaultConfig.Evaluate.Progress)
	// [report]
	v.SetDefault("report.table", defaultConfig.Report.Table)
	// [tune]
	v.SetDefault("tune.trials", defaultConfig.Tune.Trials)
	v.SetDefault("tune.k_min", defaultConfig.Tune.KMin)
	v.SetDefault("tune.k_max", defaultConfig.Tune.KMax)
	v.SetDefault("tune.similarities", defaultConfig.Tune.Similarities)
	v.SetDefault("tune.mode", defaultConfig.Tune.Mode)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"dataset.path", "CFEVAL_DATASET_PATH"},
	{"dataset.builtin", "CFEVAL_DATASET_BUILTIN"},
	{"split.ratio", "CFEVAL_SPLIT_RATIO"},
	{"split.seed", "CFEVAL_SPLIT_SEED"},
	{"cache.store", "CFEVAL_CACHE_STORE"},
	{"cache.s3.endpoint", "CFEVAL_S3_ENDPOINT"},
	{"cache.s3.access_key_id", "CFEVAL_S3_ACCESS_KEY_ID"},
	{"cache.s3.secret_access_key", "CFEVAL_S3_SECRET_ACCESS_KEY"},
	{"cache.gcs.credentials_file", "CFEVAL_GCS_CREDENTIALS_FILE"},
	{"cache.azure.connection_string", "CFEVAL_AZURE_CONNECTION_STRING"},
	{"cache.azure.account_name", "CFEVAL_AZURE_ACCOUNT_NAME"},
	{"cache.azure.account_key", "CFEVAL_AZURE_ACCOUNT_KEY"},
	{"evaluate.jobs", "CFEVAL_EVALUATE_JOBS"},
	{"report.database", "CFEVAL_REPORT_DATABASE"},
}

// LoadConfig loads configuration from a TOML, YAML or JSON file and environment
// variables. An empty path loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	// set default config
	setDefault(v)
	// bind environment bindings
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	// load config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	// unmarshal config file
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	// validate config file
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
