// Package config loads service configuration from an optional YAML file and
// the environment. Environment values win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ExplodeCfg struct {
	Concurrency    int  `yaml:"concurrency"`
	KeepProperties bool `yaml:"keep_properties"`
}

type CacheCfg struct {
	Driver    string        `yaml:"driver"` // none | lru | redis
	LRUSize   int           `yaml:"lru_size"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

type EventsCfg struct {
	Enabled   bool   `yaml:"enabled"`
	Brokers   string `yaml:"brokers"`
	Topic     string `yaml:"topic"`
	QueueSize int    `yaml:"queue_size"`
}

type MetricsCfg struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

type Config struct {
	Addr         string     `yaml:"addr"`
	LogLevel     string     `yaml:"log_level"`
	LogConsole   bool       `yaml:"log_console"`
	LogSampleN   int        `yaml:"log_sample_n"`
	MaxBodyBytes int64      `yaml:"max_body_bytes"`
	Explode      ExplodeCfg `yaml:"explode"`
	Cache        CacheCfg   `yaml:"cache"`
	Events       EventsCfg  `yaml:"events"`
	Metrics      MetricsCfg `yaml:"metrics"`
}

func Defaults() Config {
	return Config{
		Addr:         ":8090",
		LogLevel:     "info",
		MaxBodyBytes: 8 << 20,
		Explode: ExplodeCfg{
			Concurrency: 1,
		},
		Cache: CacheCfg{
			Driver:    "none",
			LRUSize:   1024,
			RedisAddr: "localhost:6379",
			TTL:       5 * time.Minute,
			OpTimeout: 250 * time.Millisecond,
		},
		Events: EventsCfg{
			Brokers:   "localhost:9092",
			Topic:     "geoconvert-ops",
			QueueSize: 1024,
		},
		Metrics: MetricsCfg{
			Addr: ":9090",
			Path: "/metrics",
		},
	}
}

func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Cache.Driver {
	case "none", "lru", "redis":
	default:
		return fmt.Errorf("cache driver %q (want none|lru|redis)", c.Cache.Driver)
	}
	if c.Cache.Driver == "lru" && c.Cache.LRUSize <= 0 {
		return fmt.Errorf("cache lru_size must be > 0 (got %d)", c.Cache.LRUSize)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be > 0 (got %d)", c.MaxBodyBytes)
	}
	if c.Events.Enabled && strings.TrimSpace(c.Events.Brokers) == "" {
		return fmt.Errorf("events enabled without brokers")
	}
	return nil
}

// BrokerList splits the comma-separated broker list.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func applyEnv(c *Config) {
	c.Addr = getenv("ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.LogSampleN = getint("LOG_SAMPLE_N", c.LogSampleN)
	c.MaxBodyBytes = int64(getint("MAX_BODY_BYTES", int(c.MaxBodyBytes)))

	c.Explode.Concurrency = getint("EXPLODE_CONCURRENCY", c.Explode.Concurrency)
	c.Explode.KeepProperties = getbool("EXPLODE_KEEP_PROPERTIES", c.Explode.KeepProperties)

	c.Cache.Driver = strings.ToLower(getenv("CACHE_DRIVER", c.Cache.Driver))
	c.Cache.LRUSize = getint("CACHE_LRU_SIZE", c.Cache.LRUSize)
	c.Cache.RedisAddr = getenv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.TTL = getduration("CACHE_TTL", c.Cache.TTL)
	c.Cache.OpTimeout = getduration("CACHE_OP_TIMEOUT", c.Cache.OpTimeout)

	c.Events.Enabled = getbool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Brokers = getenv("KAFKA_BROKERS", c.Events.Brokers)
	c.Events.Topic = getenv("KAFKA_TOPIC", c.Events.Topic)
	c.Events.QueueSize = getint("EVENTS_QUEUE_SIZE", c.Events.QueueSize)

	c.Metrics.Enabled = getbool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = getenv("METRICS_ADDR", c.Metrics.Addr)
	c.Metrics.Path = getenv("METRICS_PATH", c.Metrics.Path)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
