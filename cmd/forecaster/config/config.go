// Package config provides configuration parsing for the forecaster.
//
// Settings come from four places, in order of precedence:
//  1. Command-line flags
//  2. Environment variables
//  3. A YAML file named by -config-file or CONFIG_FILE
//  4. Built-in defaults
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	// cfg has been validated; invalid settings exit the process
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HatiCode/loadforecaster/pkg/assets"
	"github.com/HatiCode/loadforecaster/pkg/models"
	"github.com/HatiCode/loadforecaster/pkg/tls"
)

// Model names accepted by -model.
const (
	ModelLSTM     = "lstm"
	ModelBaseline = "baseline"
	ModelBYOM     = "byom"
)

// Asset sources accepted by -asset-source.
const (
	SourceFile  = "file"
	SourceRedis = "redis"
)

// Config holds all forecaster configuration.
type Config struct {
	ConfigFile string `yaml:"-"`

	Listen     string `yaml:"listen"`
	GRPCListen string `yaml:"grpc_listen"`
	LogFormat  string `yaml:"log_format"`
	LogLevel   string `yaml:"log_level"`

	AssetSource    string `yaml:"asset_source"`
	ModelAsset     string `yaml:"model_asset"`
	ScalerAsset    string `yaml:"scaler_asset"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`

	Model         string        `yaml:"model"`
	BYOMURL       string        `yaml:"byom_url"`
	BYOMValuePath string        `yaml:"byom_value_path"`
	BYOMTimeout   time.Duration `yaml:"byom_timeout"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             tls.Config    `yaml:"tls"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Listen:          ":8000",
		LogFormat:       "text",
		LogLevel:        "info",
		AssetSource:     SourceFile,
		ModelAsset:      "models/smart_load_forecaster_model.json",
		ScalerAsset:     "models/scaler.json",
		RedisAddr:       "localhost:6379",
		RedisKeyPrefix:  assets.DefaultRedisKeyPrefix,
		Model:           ModelLSTM,
		BYOMValuePath:   models.DefaultBYOMValuePath,
		BYOMTimeout:     5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided, and
// the config file, if any, supplies the fallback for both.
func ParseFlags() *Config {
	base := Defaults()

	path := configFilePath(os.Args[1:])
	if path != "" {
		if err := base.LoadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := &Config{}

	flag.StringVar(&cfg.ConfigFile, "config-file", path, "YAML config file")

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", base.Listen), "HTTP listen address")
	flag.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", base.GRPCListen), "gRPC listen address (empty disables gRPC)")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", base.LogFormat), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", base.LogLevel), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.AssetSource, "asset-source", getEnv("ASSET_SOURCE", base.AssetSource), "Where model and scaler artifacts are read from: file or redis")
	flag.StringVar(&cfg.ModelAsset, "model-asset", getEnv("MODEL_ASSET", base.ModelAsset), "Model artifact path (file) or key (redis)")
	flag.StringVar(&cfg.ScalerAsset, "scaler-asset", getEnv("SCALER_ASSET", base.ScalerAsset), "Scaler artifact path (file) or key (redis)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", base.RedisAddr), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", base.RedisPassword), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", base.RedisDB), "Redis database number")
	flag.StringVar(&cfg.RedisKeyPrefix, "redis-key-prefix", getEnv("REDIS_KEY_PREFIX", base.RedisKeyPrefix), "Prefix for artifact keys in Redis")

	flag.StringVar(&cfg.Model, "model", getEnv("MODEL", base.Model), "Forecasting model: lstm, baseline, or byom")
	flag.StringVar(&cfg.BYOMURL, "byom-url", getEnv("BYOM_URL", base.BYOMURL), "BYOM service URL (required when model=byom)")
	flag.StringVar(&cfg.BYOMValuePath, "byom-value-path", getEnv("BYOM_VALUE_PATH", base.BYOMValuePath), "GJSON path to the predictions in the BYOM response")
	flag.DurationVar(&cfg.BYOMTimeout, "byom-timeout", getEnvDuration("BYOM_TIMEOUT", base.BYOMTimeout), "BYOM request timeout")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("SHUTDOWN_TIMEOUT", base.ShutdownTimeout), "Graceful shutdown timeout")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", base.TLS.Enabled), "Enable mutual TLS")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", base.TLS.CertFile), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", base.TLS.KeyFile), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", base.TLS.CAFile), "TLS CA certificate file for peer verification")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks enumerations and required combinations.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address cannot be empty"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.LogLevel))
	}

	switch c.AssetSource {
	case SourceFile:
	case SourceRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis-addr is required when asset-source=redis"))
		}
		if c.RedisDB < 0 {
			errs = append(errs, errors.New("redis-db cannot be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid asset source %q (must be file or redis)", c.AssetSource))
	}

	if c.ScalerAsset == "" {
		errs = append(errs, errors.New("scaler-asset cannot be empty"))
	}

	switch c.Model {
	case ModelLSTM:
		if c.ModelAsset == "" {
			errs = append(errs, errors.New("model-asset is required when model=lstm"))
		}
	case ModelBaseline:
	case ModelBYOM:
		if c.BYOMURL == "" {
			errs = append(errs, errors.New("byom-url is required when model=byom"))
		}
		if c.BYOMTimeout <= 0 {
			errs = append(errs, errors.New("byom-timeout must be > 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid model %q (must be lstm, baseline, or byom)", c.Model))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown-timeout must be > 0"))
	}

	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// configFilePath finds the config file before flags are defined, so that the
// file can supply flag defaults.
func configFilePath(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config-file" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getEnv("CONFIG_FILE", "")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
