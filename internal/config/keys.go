package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	apply  func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "NEXTPLAY_SERVER_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		key: "server.token", typ: kString, env: "NEXTPLAY_SERVER_TOKEN",
		secret: true,
		apply:  func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
	},
	{
		key: "llm.api_key", typ: kString, env: "NEXTPLAY_LLM_API_KEY",
		secret: true,
		apply:  func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
	},
	{
		key: "llm.base_url", typ: kString, env: "NEXTPLAY_LLM_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
	},
	{
		key: "llm.model", typ: kString, env: "NEXTPLAY_LLM_MODEL",
		apply: func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NEXTPLAY_STORAGE_DATA_DIR",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		key: "recommend.count", typ: kInt, env: "NEXTPLAY_RECOMMEND_COUNT",
		apply: func(cfg *Config, v any) { cfg.Recommend.Count = v.(int) },
	},
	{
		key: "recommend.cache_ttl", typ: kString, env: "NEXTPLAY_RECOMMEND_CACHE_TTL",
		apply: func(cfg *Config, v any) { cfg.Recommend.CacheTTL = v.(string) },
	},
	{
		key: "log.level", typ: kString, env: "NEXTPLAY_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
