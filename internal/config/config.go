// Package config loads and validates configuration for the PKMS search engine.
//
// Precedence, lowest to highest: built-in defaults, YAML config file,
// PKMS_SEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete search engine configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Fuzzy   FuzzyConfig   `yaml:"fuzzy" json:"fuzzy"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Suggest SuggestConfig `yaml:"suggest" json:"suggest"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StorageConfig configures the index store location and backend.
type StorageConfig struct {
	// DataDir is the directory holding the per-type indexes and the
	// document store. Empty means in-memory (tests only).
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures ranking and orchestration.
type SearchConfig struct {
	// DefaultLimit is the page size when the caller does not specify one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps the caller-requested page size.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// CandidateLimit is the internal per-type candidate fetch size.
	// Deliberately larger than any page size so post-filtering and fuzzy
	// re-ranking have enough material.
	CandidateLimit int `yaml:"candidate_limit" json:"candidate_limit"`

	// RecallThreshold is the candidate count below which fuzzy re-ranking
	// kicks in automatically.
	RecallThreshold int `yaml:"recall_threshold" json:"recall_threshold"`

	// LightBoostTopN is how many top candidates get fuzzy re-scored in
	// light-boost mode. 0 disables light boost.
	LightBoostTopN int `yaml:"light_boost_top_n" json:"light_boost_top_n"`

	// PerTypeTimeout bounds each per-type index query. A timed-out type is
	// treated like a failed type.
	PerTypeTimeout time.Duration `yaml:"per_type_timeout" json:"per_type_timeout"`

	// TypeWeights biases cross-type ranking. Missing types default to 1.0.
	TypeWeights map[string]float64 `yaml:"type_weights" json:"type_weights"`
}

// FuzzyConfig configures fuzzy re-ranking.
type FuzzyConfig struct {
	// RelevanceBlend and FuzzyBlend combine the normalized relevance score
	// with the fuzzy similarity. Must sum to 1.0. The exact ratio is a
	// tunable, not settled product behavior.
	RelevanceBlend float64 `yaml:"relevance_blend" json:"relevance_blend"`
	FuzzyBlend     float64 `yaml:"fuzzy_blend" json:"fuzzy_blend"`

	// DefaultThreshold is the 0-100 similarity cutoff when the caller does
	// not supply one.
	DefaultThreshold int `yaml:"default_threshold" json:"default_threshold"`
}

// CacheConfig configures the tiered result cache.
type CacheConfig struct {
	// RedisAddrs lists shared-tier Redis addresses. Empty disables the
	// shared tier entirely (local-only).
	RedisAddrs    []string `yaml:"redis_addrs" json:"redis_addrs"`
	RedisUsername string   `yaml:"redis_username" json:"redis_username"`
	RedisPassword string   `yaml:"redis_password" json:"redis_password"`
	RedisDB       int      `yaml:"redis_db" json:"redis_db"`

	// TTL is the entry lifetime in both tiers. Short relative to typical
	// edit frequency; staleness up to TTL is acceptable.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// LocalSize is the local tier's entry cap (LRU, oldest evicted first).
	LocalSize int `yaml:"local_size" json:"local_size"`
}

// SuggestConfig configures typeahead suggestions.
type SuggestConfig struct {
	// MinQueryLength rejects pathologically broad prefix scans.
	MinQueryLength int `yaml:"min_query_length" json:"min_query_length"`

	// DefaultLimit is the suggestion count when unspecified.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// DefaultTypeWeights bias cross-type ranking toward high-signal types.
// Folders and projects carry little indexable text, so they are damped.
var DefaultTypeWeights = map[string]float64{
	"note":           1.0,
	"document":       1.0,
	"task":           0.95,
	"journal_entry":  0.9,
	"archive_item":   0.85,
	"project":        0.8,
	"archive_folder": 0.7,
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	weights := make(map[string]float64, len(DefaultTypeWeights))
	for k, v := range DefaultTypeWeights {
		weights[k] = v
	}
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			DefaultLimit:    20,
			MaxLimit:        100,
			CandidateLimit:  200,
			RecallThreshold: 5,
			LightBoostTopN:  20,
			PerTypeTimeout:  2 * time.Second,
			TypeWeights:     weights,
		},
		Fuzzy: FuzzyConfig{
			RelevanceBlend:   0.4,
			FuzzyBlend:       0.6,
			DefaultThreshold: 60,
		},
		Cache: CacheConfig{
			TTL:       3 * time.Minute,
			LocalSize: 512,
		},
		Suggest: SuggestConfig{
			MinQueryLength: 2,
			DefaultLimit:   10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// defaultDataDir returns ~/.pkms-search, falling back to a relative dir
// when the home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pkms-search"
	}
	return filepath.Join(home, ".pkms-search")
}

// Load builds the configuration for the given directory: defaults, then
// pkms-search.yaml (or .yml) from dir if present, then env overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from pkms-search.yaml or .yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "pkms-search.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, "pkms-search.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.CandidateLimit != 0 {
		c.Search.CandidateLimit = other.Search.CandidateLimit
	}
	if other.Search.RecallThreshold != 0 {
		c.Search.RecallThreshold = other.Search.RecallThreshold
	}
	if other.Search.LightBoostTopN != 0 {
		c.Search.LightBoostTopN = other.Search.LightBoostTopN
	}
	if other.Search.PerTypeTimeout != 0 {
		c.Search.PerTypeTimeout = other.Search.PerTypeTimeout
	}
	for k, v := range other.Search.TypeWeights {
		c.Search.TypeWeights[k] = v
	}

	if other.Fuzzy.RelevanceBlend != 0 {
		c.Fuzzy.RelevanceBlend = other.Fuzzy.RelevanceBlend
	}
	if other.Fuzzy.FuzzyBlend != 0 {
		c.Fuzzy.FuzzyBlend = other.Fuzzy.FuzzyBlend
	}
	if other.Fuzzy.DefaultThreshold != 0 {
		c.Fuzzy.DefaultThreshold = other.Fuzzy.DefaultThreshold
	}

	if len(other.Cache.RedisAddrs) > 0 {
		c.Cache.RedisAddrs = other.Cache.RedisAddrs
	}
	if other.Cache.RedisUsername != "" {
		c.Cache.RedisUsername = other.Cache.RedisUsername
	}
	if other.Cache.RedisPassword != "" {
		c.Cache.RedisPassword = other.Cache.RedisPassword
	}
	if other.Cache.RedisDB != 0 {
		c.Cache.RedisDB = other.Cache.RedisDB
	}
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}
	if other.Cache.LocalSize != 0 {
		c.Cache.LocalSize = other.Cache.LocalSize
	}

	if other.Suggest.MinQueryLength != 0 {
		c.Suggest.MinQueryLength = other.Suggest.MinQueryLength
	}
	if other.Suggest.DefaultLimit != 0 {
		c.Suggest.DefaultLimit = other.Suggest.DefaultLimit
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies PKMS_SEARCH_* environment variables.
// Env vars take precedence over file and defaults.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PKMS_SEARCH_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("PKMS_SEARCH_REDIS_ADDRS"); v != "" {
		c.Cache.RedisAddrs = strings.Split(v, ",")
	}
	if v := os.Getenv("PKMS_SEARCH_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("PKMS_SEARCH_RECALL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Search.RecallThreshold = n
		}
	}
	if v := os.Getenv("PKMS_SEARCH_FUZZY_BLEND"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
			c.Fuzzy.FuzzyBlend = f
			c.Fuzzy.RelevanceBlend = 1 - f
		}
	}
	if v := os.Getenv("PKMS_SEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration for consistency.
func (c *Config) Validate() error {
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Search.CandidateLimit < c.Search.MaxLimit {
		return fmt.Errorf("search.candidate_limit (%d) must be >= max_limit (%d)",
			c.Search.CandidateLimit, c.Search.MaxLimit)
	}
	if c.Search.PerTypeTimeout <= 0 {
		return fmt.Errorf("search.per_type_timeout must be positive, got %s", c.Search.PerTypeTimeout)
	}
	for typ, w := range c.Search.TypeWeights {
		if w <= 0 || w > 1 {
			return fmt.Errorf("search.type_weights[%s] must be in (0, 1], got %f", typ, w)
		}
	}

	sum := c.Fuzzy.RelevanceBlend + c.Fuzzy.FuzzyBlend
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("fuzzy.relevance_blend + fuzzy.fuzzy_blend must equal 1.0, got %.2f", sum)
	}
	if c.Fuzzy.DefaultThreshold < 0 || c.Fuzzy.DefaultThreshold > 100 {
		return fmt.Errorf("fuzzy.default_threshold must be in [0, 100], got %d", c.Fuzzy.DefaultThreshold)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.LocalSize <= 0 {
		return fmt.Errorf("cache.local_size must be positive, got %d", c.Cache.LocalSize)
	}

	if c.Suggest.MinQueryLength < 1 {
		return fmt.Errorf("suggest.min_query_length must be >= 1, got %d", c.Suggest.MinQueryLength)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// TypeWeight returns the configured weight for a content type, 1.0 when unset.
func (c *Config) TypeWeight(typ string) float64 {
	if w, ok := c.Search.TypeWeights[typ]; ok {
		return w
	}
	return 1.0
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
