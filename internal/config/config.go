package config

import "strings"

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Memory  MemoryConfig
	Context ContextConfig
	Alerts  AlertsConfig
	Log     LogConfig
	Persona string
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type MemoryConfig struct {
	WorkingCapacity   int
	EpisodicRetention int
	SemanticRetention int
}

type ContextConfig struct {
	MaxChars int
}

type AlertsConfig struct {
	UrgentWindowDays int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Memory: MemoryConfig{
			WorkingCapacity:   10,
			EpisodicRetention: 500,
			SemanticRetention: 1000,
		},
		Context: ContextConfig{
			MaxChars: 8000,
		},
		Alerts: AlertsConfig{
			UrgentWindowDays: 7,
		},
		Log: LogConfig{
			Level: "info",
		},
		Persona: "assistant",
	}
}

// Load reads configuration from the platform-native backend with
// environment overrides.
//
// On macOS the backend is UserDefaults (domain: com.bowen.app).
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/bowen/config.json.
//
// Environment variables (BOWEN_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Memory.WorkingCapacity < 1 {
		cfg.Memory.WorkingCapacity = 1
	}

	return cfg, nil
}
