package config

import (
	"fmt"
	"path/filepath"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Provider ProviderConfig
	Device   DeviceConfig
	Radio    RadioConfig
	Observer ObserverConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// ProviderConfig selects the settings-provider backend: "shell" runs the
// on-device settings binary, "file" keeps keys in a JSON file.
type ProviderConfig struct {
	Backend string
	File    string
}

type DeviceConfig struct {
	Profile string
}

type RadioConfig struct {
	TunnelCommand string
}

type ObserverConfig struct {
	Enabled      bool
	PollInterval string
}

// Provider backends.
const (
	BackendShell = "shell"
	BackendFile  = "file"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     4080,
			MaxConns: 16,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Provider: ProviderConfig{
			Backend: BackendShell,
		},
		Observer: ObserverConfig{
			Enabled:      true,
			PollInterval: "1s",
		},
	}
}

// Load reads configuration from the JSON config file, then applies
// DEVSETTINGS_* environment overrides.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Provider.File == "" {
		cfg.Provider.File = filepath.Join(cfg.Storage.DataDir, "provider.json")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Provider.Backend {
	case BackendShell, BackendFile:
	default:
		return fmt.Errorf("invalid provider.backend %q: want %q or %q", c.Provider.Backend, BackendShell, BackendFile)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.MaxConns <= 0 {
		return fmt.Errorf("invalid server.max_conns %d: must be positive", c.Server.MaxConns)
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	return nil
}

// PollInterval parses observer.poll_interval.
func (c Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Observer.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid observer.poll_interval %q: %w", c.Observer.PollInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid observer.poll_interval %q: must be positive", c.Observer.PollInterval)
	}
	return d, nil
}
