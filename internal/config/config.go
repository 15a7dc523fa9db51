package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Realtime struct {
		URL              string `yaml:"url"`
		HealthCheckDelay string `yaml:"health_check_delay"`
	} `yaml:"realtime"`
	Session struct {
		AdvanceDelay string `yaml:"advance_delay"`
	} `yaml:"session"`
	Auth struct {
		TokenPath string `yaml:"token_path"`
	} `yaml:"auth"`
	Metadata struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"metadata"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
