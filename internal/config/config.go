package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Storage   StorageConfig
	Recommend RecommendConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

type RecommendConfig struct {
	Count    int
	CacheTTL string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "google/gemini-2.5-flash",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Recommend: RecommendConfig{
			Count:    8,
			CacheTTL: "10m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/nextplay/config.json) with NEXTPLAY_* environment
// variables overriding backend values. Secrets (the LLM API key and the admin
// bearer token) are environment-only and never written to the config file.
//
// An absent API key is not an error here: the server boots without one and
// the recommendation endpoint reports the model as unconfigured instead.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// CacheTTL parses Recommend.CacheTTL, falling back to fallback on a bad value.
func (c Config) CacheTTL(fallback time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(c.Recommend.CacheTTL)
	if err != nil {
		return fallback, fmt.Errorf("invalid recommend.cache_ttl %q: %w", c.Recommend.CacheTTL, err)
	}
	return d, nil
}
