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
	kBool
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
		key: "server.port", typ: kInt, env: "DEVSETTINGS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "DEVSETTINGS_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DEVSETTINGS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "DEVSETTINGS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "provider.backend", typ: kString, env: "DEVSETTINGS_PROVIDER_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Provider.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Backend },
	},
	{
		key: "provider.file", typ: kString, env: "DEVSETTINGS_PROVIDER_FILE",
		apply:   func(cfg *Config, v any) { cfg.Provider.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.File },
	},
	{
		key: "device.profile", typ: kString, env: "DEVSETTINGS_DEVICE_PROFILE",
		apply:   func(cfg *Config, v any) { cfg.Device.Profile = v.(string) },
		extract: func(cfg Config) any { return cfg.Device.Profile },
	},
	{
		key: "radio.tunnel_command", typ: kString, env: "DEVSETTINGS_RADIO_TUNNEL_COMMAND",
		apply:   func(cfg *Config, v any) { cfg.Radio.TunnelCommand = v.(string) },
		extract: func(cfg Config) any { return cfg.Radio.TunnelCommand },
	},
	{
		key: "observer.enabled", typ: kBool, env: "DEVSETTINGS_OBSERVER_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Observer.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Observer.Enabled },
	},
	{
		key: "observer.poll_interval", typ: kString, env: "DEVSETTINGS_OBSERVER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Observer.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Observer.PollInterval },
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
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
