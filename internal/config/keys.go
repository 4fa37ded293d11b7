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
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "BOWEN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BOWEN_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "memory.working_capacity", typ: kInt, env: "BOWEN_MEMORY_WORKING_CAPACITY",
		apply:   func(cfg *Config, v any) { cfg.Memory.WorkingCapacity = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.WorkingCapacity },
	},
	{
		key: "memory.episodic_retention", typ: kInt, env: "BOWEN_MEMORY_EPISODIC_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Memory.EpisodicRetention = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.EpisodicRetention },
	},
	{
		key: "memory.semantic_retention", typ: kInt, env: "BOWEN_MEMORY_SEMANTIC_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Memory.SemanticRetention = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.SemanticRetention },
	},
	{
		key: "context.max_chars", typ: kInt, env: "BOWEN_CONTEXT_MAX_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Context.MaxChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Context.MaxChars },
	},
	{
		key: "alerts.urgent_window_days", typ: kInt, env: "BOWEN_ALERTS_URGENT_WINDOW_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Alerts.UrgentWindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Alerts.UrgentWindowDays },
	},
	{
		key: "log.level", typ: kString, env: "BOWEN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "persona", typ: kString, env: "BOWEN_PERSONA",
		apply:   func(cfg *Config, v any) { cfg.Persona = v.(string) },
		extract: func(cfg Config) any { return cfg.Persona },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
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
