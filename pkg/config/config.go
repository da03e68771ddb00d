package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all cachesim configuration.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Run     RunConfig     `yaml:"run"`
	Cache   CacheConfig   `yaml:"cache"`
	Redis   RedisConfig   `yaml:"redis"`
	Scoring ScoringConfig `yaml:"scoring"`
}

// DataConfig locates the question corpus.
type DataConfig struct {
	DBPath  string `yaml:"db_path"`
	CSVPath string `yaml:"csv_path"`
	Limit   int    `yaml:"limit"`
}

// RunConfig shapes the request stream replayed against each engine.
type RunConfig struct {
	Requests int     `yaml:"requests"`
	Seed     int64   `yaml:"seed"`
	Skew     float64 `yaml:"skew"`
	Workers  int     `yaml:"workers"`
}

// CacheConfig controls the engine grid under comparison.
type CacheConfig struct {
	Policies   []string `yaml:"policies"`
	Capacities []int    `yaml:"capacities"`
	TTL        Duration `yaml:"ttl"`
	SlidingTTL bool     `yaml:"sliding_ttl"`
	Backend    string   `yaml:"backend"`
}

// RedisConfig points at the Redis backend when it is selected.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ScoringConfig selects how cache misses are answered. Mode is
// "offline" (default) or "chain".
type ScoringConfig struct {
	Mode      string           `yaml:"mode"`
	Model     string           `yaml:"model"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig defines one remote scoring endpoint.
type ProviderConfig struct {
	Name              string `yaml:"name"`
	URL               string `yaml:"url"`
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	Priority          int    `yaml:"priority"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			DBPath: "cachesim.db",
			Limit:  5000,
		},
		Run: RunConfig{
			Requests: 1000,
			Seed:     42,
			Skew:     1.5,
			Workers:  4,
		},
		Cache: CacheConfig{
			Policies:   []string{"recency", "expiry", "hybrid"},
			Capacities: []int{50, 100, 200},
			TTL:        Duration(time.Hour),
			Backend:    "memory",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Scoring: ScoringConfig{
			Mode:  "offline",
			Model: "gpt-4o-mini",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
