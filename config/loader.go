package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tiercache.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile, ".env")
}

// LoadFrom reads yamlPath and then the environment. envFiles are loaded
// into the process environment without overriding variables already set.
// Missing files are not an error.
func LoadFrom(yamlPath string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config env file %s: %w", f, err)
		}
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg. Only non-empty values
// override; malformed numbers are reported rather than ignored.
func loadEnv(cfg *Config) error {
	var errs []error
	setString(&cfg.Logging.Level, "TIERCACHE_LOG_LEVEL")
	setString(&cfg.Logging.Format, "TIERCACHE_LOG_FORMAT")
	setString(&cfg.Logging.Backend, "TIERCACHE_LOG_BACKEND")
	setString(&cfg.Durable.Path, "TIERCACHE_DURABLE_PATH")
	errs = append(errs, setInt64(&cfg.Durable.MaxBytes, "TIERCACHE_DURABLE_MAX_BYTES"))
	setString(&cfg.Remote.Kind, "TIERCACHE_REMOTE")
	setString(&cfg.Remote.Redis.Addr, "TIERCACHE_REDIS_ADDR")
	setString(&cfg.Remote.Redis.Password, "TIERCACHE_REDIS_PASSWORD")
	errs = append(errs, setInt(&cfg.Remote.Redis.DB, "TIERCACHE_REDIS_DB"))
	setString(&cfg.Remote.Redis.Prefix, "TIERCACHE_REDIS_PREFIX")
	setString(&cfg.Remote.NATS.URL, "NATS_URL")
	setString(&cfg.Remote.NATS.Bucket, "TIERCACHE_NATS_BUCKET")
	errs = append(errs, setDuration(&cfg.Remote.NATS.TTL, "TIERCACHE_NATS_TTL"))
	setString(&cfg.Versions, "TIERCACHE_VERSIONS")
	setString(&cfg.Sweep.Schedule, "TIERCACHE_SWEEP_SCHEDULE")
	errs = append(errs, setInt(&cfg.BatchWorkers, "TIERCACHE_BATCH_WORKERS"))
	return errors.Join(errs...)
}

// Validate checks enumerations, ranges and the sweep schedule.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format %q must be json or text", c.Logging.Format)
	}
	switch c.Logging.Backend {
	case "", "slog", "zap", "logrus":
	default:
		return fmt.Errorf("logging.backend %q is not one of slog, zap, logrus", c.Logging.Backend)
	}
	if c.Durable.MaxBytes < 0 {
		return errors.New("durable.max_bytes must be >= 0")
	}
	switch c.Remote.Kind {
	case RemoteNone, "":
	case RemoteRedis:
		if c.Remote.Redis.Addr == "" {
			return errors.New("remote.redis.addr is required")
		}
	case RemoteNATS:
		if c.Remote.NATS.URL == "" || c.Remote.NATS.Bucket == "" {
			return errors.New("remote.nats.url and remote.nats.bucket are required")
		}
	case RemoteRistretto:
		if c.Remote.Ristretto.MaxCostMB < 1 {
			return errors.New("remote.ristretto.max_cost_mb must be >= 1")
		}
	case RemoteBigCache:
		if c.Remote.BigCache.LifeWindow <= 0 {
			return errors.New("remote.bigcache.life_window must be > 0")
		}
	default:
		return fmt.Errorf("remote.kind %q is not supported", c.Remote.Kind)
	}
	switch c.Versions {
	case VersionsLocal, "":
	case VersionsRedis:
		if c.Remote.Redis.Addr == "" {
			return errors.New("versions=redis requires remote.redis.addr")
		}
	default:
		return fmt.Errorf("versions %q must be local or redis", c.Versions)
	}
	if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
		return fmt.Errorf("sweep.schedule: %w", err)
	}
	if c.BatchWorkers < 0 {
		return errors.New("batch_workers must be >= 0")
	}
	for _, ns := range c.NamespaceConfigs() {
		if err := ns.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func setInt64(dst *int64, key string) error {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}
