package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type RateLimiterConfig struct {
	Limit float64 `yaml:"limit"` // requests per second
	Burst int     `yaml:"burst"`
}

type Config struct {
	Endpoint    string            `yaml:"endpoint"`
	Owner       string            `yaml:"owner"`
	APIKey      string            `yaml:"apiKey"`
	SkipVerify  bool              `yaml:"skipVerify"`
	Timeout     time.Duration     `yaml:"timeout"`
	CacheTTL    time.Duration     `yaml:"cacheTTL"`
	RateLimiter RateLimiterConfig `yaml:"rateLimiter"`
	LogLevel    string            `yaml:"logLevel"`
}

var (
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrEndpointMissing          = errors.New("endpoint is missing in config")
	ErrOwnerMissing             = errors.New("owner is missing in config")
	ErrAPIKeyMissing            = errors.New("apiKey is missing in config")
)

func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, ErrConfigFileUnreadable
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, ErrConfigFileUnmarshallable
	}

	if cfg.Endpoint == "" {
		return nil, ErrEndpointMissing
	}
	if cfg.Owner == "" {
		return nil, ErrOwnerMissing
	}
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RateLimiter.Limit == 0 {
		cfg.RateLimiter = RateLimiterConfig{Limit: 10.0, Burst: 20}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}

// GenerateConfig returns a starter configuration for first-time setup.
func GenerateConfig() *Config {
	return &Config{
		Endpoint:    "https://store.example.com",
		Owner:       "please_set_your_owner_id",
		APIKey:      "please_set_your_api_key",
		SkipVerify:  false,
		Timeout:     10 * time.Second,
		CacheTTL:    5 * time.Minute,
		RateLimiter: RateLimiterConfig{Limit: 10.0, Burst: 20},
		LogLevel:    "info",
	}
}
