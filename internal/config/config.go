// Package config loads llmcascade's runtime configuration: local-server
// lifecycle settings, request defaults, device policy, and remote provider
// credentials/endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all llmcascade configuration.
type Config struct {
	LocalServer     LocalServerConfig        `yaml:"local_server"`
	RequestDefaults RequestDefaultsConfig    `yaml:"request_defaults"`
	Devices         DeviceConfig             `yaml:"devices"`
	RemoteProviders map[string]ProviderConfig `yaml:"remote_providers"`
}

// LocalServerConfig configures the supervised llama.cpp child process.
type LocalServerConfig struct {
	BinaryPath string        `yaml:"binary_path"`
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	WebUI      bool          `yaml:"webui"`
	ForceHTTP  bool          `yaml:"force_http"`
	LoadBudget time.Duration `yaml:"load_budget"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	CPUOnly    bool          `yaml:"cpu_only"`
	ExtraArgs  []string      `yaml:"extra_args"`
}

// RequestDefaultsConfig mirrors the Request-Config defaults from spec §3.
type RequestDefaultsConfig struct {
	SafetyTokens         int           `yaml:"safety_tokens"`
	Temperature          float64       `yaml:"temperature"`
	PresencePenalty      float64       `yaml:"presence_penalty"`
	RetryAfterFailNTimes int           `yaml:"retry_after_fail_n_times"`
	IncreaseLimitOnFail  bool          `yaml:"increase_limit_on_fail"`
	CachePrompt          bool          `yaml:"cache_prompt"`
	CompletionTimeout    time.Duration `yaml:"completion_timeout"`
}

// DeviceConfig governs GPU device inventory behavior.
type DeviceConfig struct {
	Ordinals     []int `yaml:"ordinals"`
	ErrorOnIssue bool  `yaml:"error_on_issue"`
	MainOrdinal  *int  `yaml:"main_ordinal"`
}

// ProviderConfig configures one remote backend.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns sensible defaults matching spec §3/§4.
func DefaultConfig() *Config {
	return &Config{
		LocalServer: LocalServerConfig{
			BinaryPath: "llama-server",
			LoadBudget: 180 * time.Second,
			RetryDelay: 200 * time.Millisecond,
		},
		RequestDefaults: RequestDefaultsConfig{
			SafetyTokens:         10,
			Temperature:          1.0,
			PresencePenalty:      0,
			RetryAfterFailNTimes: 3,
			CompletionTimeout:    180 * time.Second,
		},
		Devices:         DeviceConfig{ErrorOnIssue: false},
		RemoteProviders: map[string]ProviderConfig{},
	}
}

// Load reads a YAML config file, falling back to DefaultConfig() fields for
// anything the file omits. A missing file is not an error: callers that
// only use env-var-configured remote backends need no file at all.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides layers standard provider API-key env vars on top of
// whatever the config file set; env vars only fill in blanks, they never
// clobber a value the file set explicitly.
func applyEnvOverrides(cfg *Config) {
	envVars := map[string]string{
		"openai":     "OPENAI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"perplexity": "PERPLEXITY_API_KEY",
		"mistral":    "MISTRAL_API_KEY",
	}
	if cfg.RemoteProviders == nil {
		cfg.RemoteProviders = map[string]ProviderConfig{}
	}
	for provider, envVar := range envVars {
		key := os.Getenv(envVar)
		if key == "" {
			continue
		}
		pc := cfg.RemoteProviders[provider]
		if pc.APIKey == "" {
			pc.APIKey = key
			cfg.RemoteProviders[provider] = pc
		}
	}
}
