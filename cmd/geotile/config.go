package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/geotile"
	"github.com/hupe1980/geotile/blobstore"
	"github.com/hupe1980/geotile/blobstore/minio"
	"github.com/hupe1980/geotile/blobstore/redis"
	"github.com/hupe1980/geotile/blobstore/s3"
	"github.com/hupe1980/geotile/layer"
	"github.com/spf13/viper"
)

// Config is the CLI configuration. Sources in order of precedence: flags,
// GEOTILE_* environment variables, the config file, defaults.
type Config struct {
	Dir     string `mapstructure:"dir"`
	Backend string `mapstructure:"backend"`

	S3    S3Config    `mapstructure:"s3"`
	MinIO MinIOConfig `mapstructure:"minio"`
	Redis RedisConfig `mapstructure:"redis"`

	MaxTiles       int    `mapstructure:"max_tiles"`
	MaxLevel       int    `mapstructure:"max_level"`
	MaxLayerBytes  int64  `mapstructure:"max_layer_bytes"`
	LineSetBudget  int64  `mapstructure:"lineset_budget"`
	Compression    string `mapstructure:"compression"`
	MemoryLimit    int64  `mapstructure:"memory_limit"`
	IOLimit        int64  `mapstructure:"io_limit"`
	PersistWorkers int    `mapstructure:"persist_workers"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// S3Config selects an S3 bucket. Credentials come from the default AWS
// chain.
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// MinIOConfig selects a bucket on a MinIO or other S3-compatible server.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// RedisConfig selects a Redis server by URL.
type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dir", "./tiles")
	v.SetDefault("backend", "local")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "geotile")
	v.SetDefault("minio.secure", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.prefix", "geotile:")
	v.SetDefault("max_tiles", geotile.DefaultMaxTiles)
	v.SetDefault("max_level", geotile.DefaultMaxLevel)
	v.SetDefault("max_layer_bytes", geotile.DefaultMaxLayerBytes)
	v.SetDefault("lineset_budget", geotile.DefaultLineSetBudget)
	v.SetDefault("compression", "lz4")
	v.SetDefault("memory_limit", 0)
	v.SetDefault("io_limit", 0)
	v.SetDefault("persist_workers", 4)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
}

func setupEnv(v *viper.Viper) {
	v.SetEnvPrefix("GEOTILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Validate collects every configuration problem.
func (c *Config) Validate() []error {
	var errs []error
	switch c.Backend {
	case "local":
		if c.Dir == "" {
			errs = append(errs, errors.New("dir is required for the local backend"))
		}
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket is required for the s3 backend"))
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			errs = append(errs, errors.New("minio.endpoint and minio.bucket are required for the minio backend"))
		}
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.MaxTiles < 0 {
		errs = append(errs, fmt.Errorf("max_tiles must not be negative, got %d", c.MaxTiles))
	}
	if c.MaxLevel < 0 {
		errs = append(errs, fmt.Errorf("max_level must not be negative, got %d", c.MaxLevel))
	}
	if _, err := layer.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	return errs
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
	return l, nil
}

func (c *Config) logger() *geotile.Logger {
	level, _ := parseLevel(c.LogLevel)
	if c.LogFormat == "json" {
		return geotile.NewJSONLogger(level)
	}
	return geotile.NewTextLogger(level)
}

// blobStore builds the configured backend. The returned close function
// releases backend connections.
func (c *Config) blobStore(ctx context.Context) (blobstore.Store, func() error, error) {
	noop := func() error { return nil }
	switch c.Backend {
	case "s3":
		st, err := s3.New(ctx, c.S3.Bucket, s3.WithPrefix(c.S3.Prefix))
		if err != nil {
			return nil, nil, fmt.Errorf("s3 backend: %w", err)
		}
		return st, noop, nil
	case "minio":
		st, err := minio.Dial(ctx, c.MinIO.Endpoint, c.MinIO.AccessKey, c.MinIO.SecretKey, c.MinIO.Bucket, c.MinIO.Secure)
		if err != nil {
			return nil, nil, fmt.Errorf("minio backend: %w", err)
		}
		return st, noop, nil
	case "redis":
		st, err := redis.Dial(c.Redis.URL, redis.WithPrefix(c.Redis.Prefix))
		if err != nil {
			return nil, nil, fmt.Errorf("redis backend: %w", err)
		}
		return st, st.Close, nil
	default:
		return blobstore.NewLocalStore(c.Dir), noop, nil
	}
}

// openStore opens the spatial store described by c. Closing the returned
// function persists the store and releases the backend.
func (c *Config) openStore(ctx context.Context) (*geotile.Store, func() error, error) {
	bs, closeBackend, err := c.blobStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	comp, _ := layer.ParseCompression(c.Compression)

	st, err := geotile.Open(ctx,
		geotile.WithBlobStore(bs),
		geotile.WithMaxTiles(c.MaxTiles),
		geotile.WithMaxLevel(c.MaxLevel),
		geotile.WithMaxLayerBytes(c.MaxLayerBytes),
		geotile.WithLayerBudget(layer.KindLineSet, c.LineSetBudget),
		geotile.WithCompression(comp),
		geotile.WithMemoryLimit(c.MemoryLimit),
		geotile.WithIOLimit(c.IOLimit),
		geotile.WithPersistConcurrency(c.PersistWorkers),
		geotile.WithLogger(c.logger()),
	)
	if err != nil {
		_ = closeBackend()
		return nil, nil, err
	}
	return st, func() error {
		return errors.Join(st.Close(), closeBackend())
	}, nil
}
