// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the application.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	DocStore DocStoreConfig `mapstructure:"docstore"`
	Source   SourceConfig   `mapstructure:"source"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// StorageConfig selects the blob store holding raw and cleaned datasets.
type StorageConfig struct {
	// Provider is one of "gcp", "aws", "azure" or "file".
	Provider       string `mapstructure:"provider"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Role           string `mapstructure:"role"`
	UsePathStyle   bool   `mapstructure:"use_path_style"`
	StorageAccount string `mapstructure:"storage_account"`
	// BaseDir roots the "file" provider.
	BaseDir string `mapstructure:"base_dir"`
}

type DocStoreConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	BatchSize  int    `mapstructure:"batch_size"`
}

type SourceConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailurePolicy string        `mapstructure:"failure_policy"`
}

type PipelineConfig struct {
	ErrorMode   string `mapstructure:"error_mode"`
	Concurrency int    `mapstructure:"concurrency"`
	TmpDir      string `mapstructure:"tmp_dir"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type PubSubConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

const (
	DefaultBaseURL    = "https://www.transtats.bts.gov/PREZIP/On_Time_Reporting_Carrier_On_Time_Performance_1987_present"
	DefaultDatabase   = "airline_db"
	DefaultCollection = "flights"
	DefaultBatchSize  = 1000
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: "gcp",
		},
		DocStore: DocStoreConfig{
			Database:   DefaultDatabase,
			Collection: DefaultCollection,
			BatchSize:  DefaultBatchSize,
		},
		Source: SourceConfig{
			BaseURL:       DefaultBaseURL,
			FailurePolicy: "proceed",
		},
		Pipeline: PipelineConfig{
			ErrorMode:   "abort",
			Concurrency: 1,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "ONTIME" and the dot character
// in keys is replaced by an underscore. For example, "storage.bucket" becomes
// "ONTIME_STORAGE_BUCKET". The unprefixed BUCKET_NAME and MONGODB_URI
// variables used by the cloud function deployment are honored as fallbacks.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("ONTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.BindEnv("storage.bucket", "ONTIME_STORAGE_BUCKET", "BUCKET_NAME")
	_ = v.BindEnv("docstore.uri", "ONTIME_DOCSTORE_URI", "MONGODB_URI")
	_ = v.BindEnv("pubsub.project_id", "ONTIME_PUBSUB_PROJECT_ID", "GCP_PROJECT_ID")
	_ = v.BindEnv("pubsub.subscription_id", "ONTIME_PUBSUB_SUBSCRIPTION_ID", "GCP_SUBSCRIPTION_ID")
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and fills zero values with defaults.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "gcp", "aws", "azure", "file":
	case "":
		c.Storage.Provider = "gcp"
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Storage.Provider)
	}
	switch c.Source.FailurePolicy {
	case "proceed", "skip", "abort":
	case "":
		c.Source.FailurePolicy = "proceed"
	default:
		return fmt.Errorf("unsupported source failure policy: %s", c.Source.FailurePolicy)
	}
	switch c.Pipeline.ErrorMode {
	case "abort", "collect":
	case "":
		c.Pipeline.ErrorMode = "abort"
	default:
		return fmt.Errorf("unsupported pipeline error mode: %s", c.Pipeline.ErrorMode)
	}
	if c.Pipeline.Concurrency < 1 {
		c.Pipeline.Concurrency = 1
	}
	if c.DocStore.BatchSize <= 0 {
		c.DocStore.BatchSize = DefaultBatchSize
	}
	if c.DocStore.Database == "" {
		c.DocStore.Database = DefaultDatabase
	}
	if c.DocStore.Collection == "" {
		c.DocStore.Collection = DefaultCollection
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultBaseURL
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
