// Copyright (C) 2025 CardinalHQ, Inc
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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/mediarunner/internal/admission"
	"github.com/cardinalhq/mediarunner/internal/healthcheck"
	"github.com/cardinalhq/mediarunner/internal/pipeline"
	"github.com/cardinalhq/mediarunner/internal/steps"
	"github.com/cardinalhq/mediarunner/internal/trigger"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package where one exists.
type Config struct {
	AWS       AWSConfig          `mapstructure:"aws"`
	Storage   StorageConfig      `mapstructure:"storage"`
	Queue     QueueConfig        `mapstructure:"queue"`
	Admission admission.Config   `mapstructure:"admission"`
	Pipeline  pipeline.Config    `mapstructure:"pipeline"`
	Steps     steps.Config       `mapstructure:"steps"`
	Tools     ToolsConfig        `mapstructure:"tools"`
	Catalog   CatalogConfig      `mapstructure:"catalog"`
	Notify    NotifyConfig       `mapstructure:"notify"`
	Health    healthcheck.Config `mapstructure:"health"`
	Scratch   ScratchConfig      `mapstructure:"scratch"`
}

type AWSConfig struct {
	Region  string `mapstructure:"region"`
	RoleARN string `mapstructure:"role_arn"`
}

const (
	StorageS3    = "s3"
	StorageAzure = "azure"
)

type StorageConfig struct {
	// Provider selects the object store behind buckets: s3 or azure.
	Provider     string `mapstructure:"provider"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	InsecureTLS  bool   `mapstructure:"insecure_tls"`
	// MultipartThreshold is the object size above which copies go part by part.
	MultipartThreshold int64              `mapstructure:"multipart_threshold"`
	Azure              AzureStorageConfig `mapstructure:"azure"`
}

// AzureStorageConfig locates the storage account. A connection string wins
// over the account URL, which authenticates with the default Azure credential.
type AzureStorageConfig struct {
	AccountURL       string `mapstructure:"account_url"`
	ConnectionString string `mapstructure:"connection_string"`
}

type QueueConfig struct {
	URL                   string        `mapstructure:"url"`
	Region                string        `mapstructure:"region"`
	RoleARN               string        `mapstructure:"role_arn"`
	MaxConcurrentMessages int           `mapstructure:"max_concurrent_messages"`
	DedupTTL              time.Duration `mapstructure:"dedup_ttl"`
}

type ToolsConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
}

type CatalogConfig struct {
	URL      string        `mapstructure:"url"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ScratchConfig governs the disk under steps.scratch_dir.
type ScratchConfig struct {
	// MinFreeBytes is the free space below which the worker reports not ready.
	MinFreeBytes uint64 `mapstructure:"min_free_bytes"`
	// StaleAfter is the age at which leftover execution directories are removed on start.
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

const (
	NotifySES = "ses"
	NotifyLog = "log"
)

type NotifyConfig struct {
	Backend string `mapstructure:"backend"`
	From    string `mapstructure:"from"`
	// Fallback receives notifications for principals with no address.
	Fallback string `mapstructure:"fallback"`
	// Addresses maps principal IDs or user names to email addresses.
	Addresses map[string]string `mapstructure:"addresses"`
}

func Default() *Config {
	return &Config{
		Storage:   StorageConfig{Provider: StorageS3, MultipartThreshold: 5 << 30},
		Queue:     QueueConfig{MaxConcurrentMessages: 10, DedupTTL: trigger.DefaultOptions().DedupTTL},
		Admission: admission.DefaultConfig(),
		Pipeline:  pipeline.DefaultConfig(),
		Steps:     steps.DefaultConfig(),
		Tools:     ToolsConfig{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"},
		Catalog:   CatalogConfig{Timeout: 30 * time.Second, CacheTTL: 5 * time.Minute},
		Notify:    NotifyConfig{Backend: NotifyLog},
		Health:    healthcheck.DefaultConfig(),
		Scratch:   ScratchConfig{MinFreeBytes: 10 << 30, StaleAfter: 6 * time.Hour},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "MEDIARUNNER" and the dot character
// in keys is replaced by an underscore. For example, "queue.url" becomes
// "MEDIARUNNER_QUEUE_URL". A non-empty path names the config file
// explicitly, and it must then exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mediarunner")
	}
	v.SetEnvPrefix("MEDIARUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Admission.Validate(); err != nil {
		return err
	}
	switch c.Storage.Provider {
	case StorageS3:
	case StorageAzure:
		if c.Storage.Azure.AccountURL == "" && c.Storage.Azure.ConnectionString == "" {
			return fmt.Errorf("storage provider %s needs an account_url or connection_string", StorageAzure)
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	switch c.Notify.Backend {
	case NotifyLog:
	case NotifySES:
		if c.Notify.From == "" {
			return fmt.Errorf("notify backend %s needs a from address", NotifySES)
		}
	default:
		return fmt.Errorf("unknown notify backend %q", c.Notify.Backend)
	}
	if c.Pipeline.MaxConcurrentExecutions < 1 {
		return fmt.Errorf("pipeline.max_concurrent_executions must be at least 1")
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
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
