package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/latsieve"
	"github.com/hupe1980/latsieve/blobstore"
	minioblob "github.com/hupe1980/latsieve/blobstore/minio"
	"github.com/hupe1980/latsieve/blobstore/s3"
	"github.com/hupe1980/latsieve/checkpoint"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of the CLI.
type Config struct {
	// Basis is the path of the basis file in "[[a b] [c d]]" form.
	Basis      string           `yaml:"basis"`
	Sieve      latsieve.Options `yaml:"sieve"`
	Store      StoreConfig      `yaml:"store"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Log        LogConfig        `yaml:"log"`
}

// StoreConfig selects the blob store holding checkpoints.
type StoreConfig struct {
	// Kind is one of local, s3 or minio.
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// CheckpointConfig controls periodic checkpoints.
type CheckpointConfig struct {
	// Name is the checkpoint name prefix inside the store.
	Name string `yaml:"name"`
	// Every is the interval between checkpoints; 0 saves only at the end.
	Every time.Duration `yaml:"every"`
	// Keep is the number of checkpoints retained.
	Keep        int    `yaml:"keep"`
	Compression string `yaml:"compression"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used for absent keys.
func DefaultConfig() Config {
	opts := latsieve.DefaultOptions
	opts.OuterBands = slices.Clone(opts.OuterBands)
	opts.InnerBands = slices.Clone(opts.InnerBands)
	return Config{
		Sieve: opts,
		Store: StoreConfig{Kind: "local", Path: "checkpoints"},
		Checkpoint: CheckpointConfig{
			Name:        "run/",
			Every:       10 * time.Minute,
			Keep:        3,
			Compression: "zstd",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads path over the defaults. An empty path loads
// DefaultConfigPath if it exists and the defaults otherwise.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the CLI specific settings. Sieve options are validated by
// latsieve.New.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "local":
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for a local store")
		}
	case "s3", "minio":
		if c.Store.Bucket == "" {
			return fmt.Errorf("config: store.bucket is required for a %s store", c.Store.Kind)
		}
		if c.Store.Kind == "minio" && c.Store.Endpoint == "" {
			return errors.New("config: store.endpoint is required for a minio store")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	if c.Checkpoint.Every < 0 {
		return errors.New("config: checkpoint.every must not be negative")
	}
	if c.Checkpoint.Keep < 1 {
		return errors.New("config: checkpoint.keep must be at least 1")
	}
	if _, err := checkpoint.ParseCompression(c.Checkpoint.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return l, nil
}

func (c LogConfig) logger(w io.Writer) (*latsieve.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return latsieve.NewLogger(slog.NewJSONHandler(w, hopts)), nil
	}
	return latsieve.NewLogger(slog.NewTextHandler(w, hopts)), nil
}

// openStore connects to the configured blob store.
func openStore(ctx context.Context, c StoreConfig) (blobstore.Store, error) {
	switch c.Kind {
	case "local":
		return blobstore.NewLocalStore(c.Path), nil
	case "minio":
		client, err := minio.New(c.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
			Secure: c.Secure,
			Region: c.Region,
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, c.Bucket, c.Prefix), nil
	case "s3":
		var optFns []func(*awsconfig.LoadOptions) error
		if c.Region != "" {
			optFns = append(optFns, awsconfig.WithRegion(c.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, err
		}
		client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
			if c.Endpoint != "" {
				o.BaseEndpoint = aws.String(c.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3.NewStore(client, c.Bucket, c.Prefix), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", c.Kind)
}
