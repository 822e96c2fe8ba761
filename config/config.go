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

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/shoprec/storage"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	SchemaMismatchReject = "reject"
	SchemaMismatchIgnore = "ignore"
)

// Config is the configuration for the recommender.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Server    ServerConfig    `mapstructure:"server"`
}

// DatabaseConfig locates the data store that supplies users, products and interactions.
type DatabaseConfig struct {
	DataStore   string        `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string        `mapstructure:"table_prefix"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries  uint64        `mapstructure:"max_retries"`
}

type RecommendConfig struct {
	DefaultN           int            `mapstructure:"default_n" validate:"gt=0"`
	Weights            map[string]int `mapstructure:"weights" validate:"required,dive,keys,oneof=view add_to_cart share,endkeys,gt=0"`
	SchemaMismatch     string         `mapstructure:"schema_mismatch" validate:"oneof=reject ignore"`
	StrictFeatureRange bool           `mapstructure:"strict_feature_range"`
	CacheTTL           time.Duration  `mapstructure:"cache_ttl" validate:"gte=0"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	APIKey string `mapstructure:"api_key"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore:  "sqlite://shoprec.db",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Recommend: RecommendConfig{
			DefaultN: 5,
			Weights: map[string]int{
				"view":        1,
				"add_to_cart": 3,
				"share":       2,
			},
			SchemaMismatch: SchemaMismatchReject,
			CacheTTL:       time.Minute,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8087,
		},
	}
}

func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		prefixes := []string{
			storage.MySQLPrefix,
			storage.PostgresPrefix,
			storage.PostgreSQLPrefix,
			storage.SQLitePrefix,
			storage.HTTPPrefix,
			storage.HTTPSPrefix,
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(fl.Field().String(), prefix) {
				return true
			}
		}
		return false
	}); err != nil {
		return errors.Trace(err)
	}
	return validate.Struct(config)
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.timeout", defaultConfig.Database.Timeout)
	v.SetDefault("database.max_retries", defaultConfig.Database.MaxRetries)
	// [recommend]
	v.SetDefault("recommend.default_n", defaultConfig.Recommend.DefaultN)
	v.SetDefault("recommend.weights", defaultConfig.Recommend.Weights)
	v.SetDefault("recommend.schema_mismatch", defaultConfig.Recommend.SchemaMismatch)
	v.SetDefault("recommend.strict_feature_range", defaultConfig.Recommend.StrictFeatureRange)
	v.SetDefault("recommend.cache_ttl", defaultConfig.Recommend.CacheTTL)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a TOML file. An empty path loads defaults. Environment
// variables override both.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)

	bindings := []configBinding{
		{"database.data_store", "SHOPREC_DATA_STORE"},
		{"database.table_prefix", "SHOPREC_TABLE_PREFIX"},
		{"recommend.default_n", "SHOPREC_DEFAULT_N"},
		{"recommend.schema_mismatch", "SHOPREC_SCHEMA_MISMATCH"},
		{"server.host", "SHOPREC_SERVER_HOST"},
		{"server.port", "SHOPREC_SERVER_PORT"},
		{"server.api_key", "SHOPREC_API_KEY"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &conf, nil
}
