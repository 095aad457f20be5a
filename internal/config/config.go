package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type LiveConfig struct {
	// Endpoint optionally overrides the provider base URL. Must be https or
	// wss; anything else is refused at session start.
	Endpoint string `yaml:"endpoint"`
}

type AudioConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFplayPath  string `yaml:"ffplay_path"`
	InputFormat string `yaml:"input_format"`
	InputDevice string `yaml:"input_device"`
	Volume      int    `yaml:"volume"`
}

type AgentConfig struct {
	DefaultRegion     string `yaml:"default_region"`
	FallbackLanguage  string `yaml:"fallback_language"`
	LocationTimeoutMS int    `yaml:"location_timeout_ms"`
	GeoEndpoint       string `yaml:"geo_endpoint"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Live  LiveConfig  `yaml:"live"`
	Audio AudioConfig `yaml:"audio"`
	Agent AgentConfig `yaml:"agent"`
	Store StoreConfig `yaml:"store"`

	// APIKey comes from the environment only, never from file.
	APIKey string `yaml:"-"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{Bind: "0.0.0.0", Port: 8080},
		Agent: AgentConfig{
			DefaultRegion:     "Andhra Pradesh",
			FallbackLanguage:  "hi",
			LocationTimeoutMS: 5000,
		},
		Store: StoreConfig{Path: "data/agent.db"},
	}
}

// Load reads the optional yaml file, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.HTTP.Bind, "AGENT_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "AGENT_HTTP_PORT")
	overrideString(&cfg.Live.Endpoint, "AGENT_LIVE_ENDPOINT")
	overrideString(&cfg.Audio.FFmpegPath, "AGENT_FFMPEG_PATH")
	overrideString(&cfg.Audio.FFplayPath, "AGENT_FFPLAY_PATH")
	overrideString(&cfg.Audio.InputFormat, "AGENT_AUDIO_INPUT_FORMAT")
	overrideString(&cfg.Audio.InputDevice, "AGENT_AUDIO_INPUT_DEVICE")
	overrideInt(&cfg.Audio.Volume, "AGENT_AUDIO_VOLUME")
	overrideString(&cfg.Agent.DefaultRegion, "AGENT_DEFAULT_REGION")
	overrideString(&cfg.Agent.FallbackLanguage, "AGENT_FALLBACK_LANGUAGE")
	overrideInt(&cfg.Agent.LocationTimeoutMS, "AGENT_LOCATION_TIMEOUT_MS")
	overrideString(&cfg.Agent.GeoEndpoint, "AGENT_GEO_ENDPOINT")
	overrideString(&cfg.Store.Path, "AGENT_STORE_PATH")
}

func validate(cfg Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", cfg.HTTP.Port)
	}
	if cfg.Agent.LocationTimeoutMS < 0 {
		return fmt.Errorf("invalid location timeout %d", cfg.Agent.LocationTimeoutMS)
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func overrideInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
