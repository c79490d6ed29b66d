package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/intrntsrfr/meido/pkg/utils"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoToken = errors.New("config: token is required")
	ErrNoStore = errors.New("config: connection_string or data_file is required")
)

const (
	DefaultCacheDir   = "./data/cache"
	DefaultCacheTTL   = 10 * time.Minute
	DefaultGCInterval = 5 * time.Minute
)

type Config struct {
	Token  string `json:"token" yaml:"token"`
	Shards int    `json:"shards" yaml:"shards"`
	// OwnerIDs may change state shared by every guild, such as the word list.
	OwnerIDs         []string `json:"owner_ids" yaml:"owner_ids"`
	ConnectionString string   `json:"connection_string" yaml:"connection_string"`
	// DataFile selects the file backed store when no connection string is set.
	DataFile string      `json:"data_file" yaml:"data_file"`
	LogLevel string      `json:"log_level" yaml:"log_level"`
	Cache    CacheConfig `json:"cache" yaml:"cache"`
}

type CacheConfig struct {
	Disabled   bool   `json:"disabled" yaml:"disabled"`
	Dir        string `json:"dir" yaml:"dir"`
	TTL        string `json:"ttl" yaml:"ttl"`
	GCInterval string `json:"gc_interval" yaml:"gc_interval"`
}

// Load reads a JSON or YAML file, picked by extension, then applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(f, &c)
	default:
		err = json.Unmarshal(f, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %v: %w", path, err)
	}

	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// FromEnv builds a config from environment variables alone.
func FromEnv() *Config {
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WARDEN_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("WARDEN_OWNER_IDS"); v != "" {
		c.OwnerIDs = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.OwnerIDs = append(c.OwnerIDs, id)
			}
		}
	}
	if v := os.Getenv("WARDEN_DB_DSN"); v != "" {
		c.ConnectionString = v
	}
	if v := os.Getenv("WARDEN_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("WARDEN_CACHE_TTL"); v != "" {
		c.Cache.TTL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Shards <= 0 {
		c.Shards = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
}

// ValidateStore checks only what is needed to open the store.
func (c *Config) ValidateStore() error {
	if c.ConnectionString == "" && c.DataFile == "" {
		return ErrNoStore
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if _, err := c.CacheGCInterval(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrNoToken
	}
	return c.ValidateStore()
}

func (c *Config) CacheTTL() (time.Duration, error) {
	return parseDuration("cache.ttl", c.Cache.TTL, DefaultCacheTTL)
}

func (c *Config) CacheGCInterval() (time.Duration, error) {
	return parseDuration("cache.gc_interval", c.Cache.GCInterval, DefaultGCInterval)
}

func parseDuration(name, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %v: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %v must be positive", name)
	}
	return d, nil
}

// Bot converts the discord part of the config into meido's config.
func (c *Config) Bot() *utils.Config {
	cfg := utils.NewConfig()
	cfg.Set("token", c.Token)
	cfg.Set("shards", c.Shards)
	cfg.Set("owner_ids", append([]string{}, c.OwnerIDs...))
	return cfg
}
