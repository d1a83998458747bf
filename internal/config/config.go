// Package config loads server settings from defaults, an optional TOML file
// and REDNIGHT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/alfredjeanlab/rednight/internal/idgen"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "REDNIGHT"

// Backend names.
const (
	BackendPostgres = "postgres" // PostgreSQL metadata + S3 payloads
	BackendMemory   = "memory"   // everything in process, for local development
)

type Config struct {
	Backend     string `envconfig:"BACKEND" toml:"backend"`
	DatabaseURL string `envconfig:"DATABASE_URL" toml:"database_url"` // required for postgres
	HTTPAddr    string `envconfig:"HTTP_ADDR" toml:"http_addr"`
	GRPCAddr    string `envconfig:"GRPC_ADDR" toml:"grpc_addr"`
	NATSURL     string `envconfig:"NATS_URL" toml:"nats_url"` // empty = no events
	NodeID      int64  `envconfig:"NODE_ID" toml:"node_id"`   // identifier generator node, 0..1023

	// Blob store
	S3Bucket   string `envconfig:"S3_BUCKET" toml:"s3_bucket"` // required for postgres
	S3Region   string `envconfig:"S3_REGION" toml:"s3_region"`
	S3Endpoint string `envconfig:"S3_ENDPOINT" toml:"s3_endpoint"` // custom endpoint for MinIO

	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID" toml:"s3_access_key_id"` // empty = default AWS chain
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY" toml:"s3_secret_access_key"`

	// Reconciliation sweep
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" toml:"reconcile_interval"` // 0 = disabled
	ReconcileGrace    time.Duration `envconfig:"RECONCILE_GRACE" toml:"reconcile_grace"`
	ReconcileDryRun   bool          `envconfig:"RECONCILE_DRY_RUN" toml:"reconcile_dry_run"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" toml:"log_level"`   // debug, info, warn, error
	LogFormat string `envconfig:"LOG_FORMAT" toml:"log_format"` // text or json

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" toml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend:         BackendPostgres,
		HTTPAddr:        ":8080",
		GRPCAddr:        ":9090",
		S3Region:        "us-east-1",
		ReconcileGrace:  5 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration and validates it. path names an optional
// TOML file; an empty path skips it. Environment variables override file
// values.
func Load(path string) (*Config, error) {
	c, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Read layers the file and environment over Default without validating.
// Commands that need only part of the configuration check what they use.
func Read(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return c, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New(EnvPrefix+"_DATABASE_URL is required for the postgres backend"))
		}
		if c.S3Bucket == "" {
			errs = append(errs, errors.New(EnvPrefix+"_S3_BUCKET is required for the postgres backend"))
		}
		if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
			errs = append(errs, errors.New(EnvPrefix+"_S3_ACCESS_KEY_ID and "+EnvPrefix+"_S3_SECRET_ACCESS_KEY must be set together"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("%s_BACKEND: unknown backend %q", EnvPrefix, c.Backend))
	}
	if c.NodeID < 0 || c.NodeID > idgen.MaxNode {
		errs = append(errs, fmt.Errorf("%s_NODE_ID must be between 0 and %d", EnvPrefix, idgen.MaxNode))
	}
	if c.ReconcileInterval < 0 {
		errs = append(errs, errors.New(EnvPrefix+"_RECONCILE_INTERVAL must not be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s_LOG_FORMAT: unknown format %q", EnvPrefix, c.LogFormat))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("%s_LOG_LEVEL: %w", EnvPrefix, err)
	}
	return l, nil
}
