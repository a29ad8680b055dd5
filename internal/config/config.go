package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Session     SessionConfig             `json:"session" yaml:"session"`
	Scenarios   ScenarioConfig            `json:"scenarios" yaml:"scenarios"`
	Completion  CompletionConfig          `json:"completion" yaml:"completion"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Workers     WorkerConfig              `json:"workers" yaml:"workers"`
	RateLimit   RateLimitConfig           `json:"rate_limit" yaml:"rate_limit"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
}

type BasicConfig struct {
	ServerAddress    string   `json:"server_address" yaml:"server_address"`
	LogLevel         string   `json:"log_level" yaml:"log_level"`
	ErrorStatusCodes bool     `json:"error_status_codes" yaml:"error_status_codes"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
}

type SessionConfig struct {
	WindowLimit          int    `json:"window_limit" yaml:"window_limit"`
	Capacity             int    `json:"capacity" yaml:"capacity"`
	IdleTTLMinutes       int    `json:"idle_ttl_minutes" yaml:"idle_ttl_minutes"`
	SweepIntervalMinutes int    `json:"sweep_interval_minutes" yaml:"sweep_interval_minutes"`
	ResetScope           string `json:"reset_scope" yaml:"reset_scope"`
}

type ScenarioConfig struct {
	Names      []string `json:"names" yaml:"names"`
	PromptFile string   `json:"prompt_file" yaml:"prompt_file"`
}

type CompletionConfig struct {
	Engine         string `json:"engine" yaml:"engine"`
	Provider       string `json:"provider" yaml:"provider"`
	Model          string `json:"model" yaml:"model"`
	ThinkingBudget int32  `json:"thinking_budget" yaml:"thinking_budget"`
	WebSearch      *bool  `json:"web_search" yaml:"web_search"`
	URLContext     *bool  `json:"url_context" yaml:"url_context"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

type WorkerConfig struct {
	MinWorkers         *int `json:"min_workers" yaml:"min_workers"`
	MaxWorkers         int `json:"max_workers" yaml:"max_workers"`
	QueueSize          int `json:"queue_size" yaml:"queue_size"`
	IdleTimeoutSeconds int `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
}

type RateLimitConfig struct {
	Requests      *int   `json:"requests" yaml:"requests"`
	WindowSeconds int    `json:"window_seconds" yaml:"window_seconds"`
	Backend       string `json:"backend" yaml:"backend"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

const (
	ResetScopeAll  = "all"
	ResetScopeUser = "user"

	EngineGenAI = "genai"
	EngineEino  = "eino"
)

// DefaultScenarios is the scenario set served when none are configured.
var DefaultScenarios = []string{
	"new-arrival",
	"new-baby",
	"storm-damage",
	"change-address",
	"business-registration",
}

// Load reads configuration from the provided path. With no path it reads
// config.json when present and falls back to defaults otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg, err := Parse(data, filepath.Ext(absPath))
	if err != nil {
		return nil, err
	}

	if cfg.Scenarios.PromptFile != "" && !filepath.IsAbs(cfg.Scenarios.PromptFile) {
		cfg.Scenarios.PromptFile = filepath.Join(filepath.Dir(absPath), cfg.Scenarios.PromptFile)
	}
	return cfg, nil
}

// Parse decodes raw config bytes; ext selects yaml (".yaml", ".yml") or json.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8000"
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	if len(c.BasicConfig.AllowedOrigins) == 0 {
		c.BasicConfig.AllowedOrigins = []string{"*"}
	}

	if c.Session.WindowLimit == 0 {
		c.Session.WindowLimit = 10
	}
	if c.Session.Capacity == 0 {
		c.Session.Capacity = 10000
	}
	if c.Session.IdleTTLMinutes == 0 {
		c.Session.IdleTTLMinutes = 720
	}
	if c.Session.SweepIntervalMinutes == 0 {
		c.Session.SweepIntervalMinutes = 10
	}
	if c.Session.ResetScope == "" {
		c.Session.ResetScope = ResetScopeAll
	}

	if len(c.Scenarios.Names) == 0 {
		c.Scenarios.Names = append([]string(nil), DefaultScenarios...)
	}

	if c.Completion.Engine == "" {
		c.Completion.Engine = EngineGenAI
	}
	if c.Completion.Provider == "" {
		c.Completion.Provider = "gemini"
	}
	if c.Completion.Model == "" {
		if prov, ok := c.Providers[c.Completion.Provider]; ok && prov.Model != "" {
			c.Completion.Model = prov.Model
		} else {
			c.Completion.Model = "gemini-2.5-flash"
		}
	}
	if c.Completion.ThinkingBudget == 0 {
		c.Completion.ThinkingBudget = 3798
	}
	if c.Completion.WebSearch == nil {
		c.Completion.WebSearch = boolPtr(true)
	}
	if c.Completion.URLContext == nil {
		c.Completion.URLContext = boolPtr(true)
	}
	if c.Completion.TimeoutSeconds == 0 {
		c.Completion.TimeoutSeconds = 120
	}

	if c.Workers.MinWorkers == nil {
		n := 2
		c.Workers.MinWorkers = &n
	}
	if c.Workers.MaxWorkers == 0 {
		c.Workers.MaxWorkers = 16
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 256
	}
	if c.Workers.IdleTimeoutSeconds == 0 {
		c.Workers.IdleTimeoutSeconds = 30
	}

	if c.RateLimit.Requests == nil {
		n := 30
		c.RateLimit.Requests = &n
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
}

func (c *Config) validate() error {
	switch c.Session.ResetScope {
	case ResetScopeAll, ResetScopeUser:
	default:
		return fmt.Errorf("invalid session.reset_scope %q", c.Session.ResetScope)
	}
	if c.Session.WindowLimit < 1 {
		return fmt.Errorf("session.window_limit must be positive, got %d", c.Session.WindowLimit)
	}
	switch c.Completion.Engine {
	case EngineGenAI:
		if c.Completion.Provider != "gemini" {
			return fmt.Errorf("engine %s only supports provider gemini, got %s", EngineGenAI, c.Completion.Provider)
		}
	case EngineEino:
	default:
		return fmt.Errorf("invalid completion.engine %q", c.Completion.Engine)
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid rate_limit.backend %q", c.RateLimit.Backend)
	}
	if *c.Workers.MinWorkers < 0 {
		return fmt.Errorf("workers.min_workers must not be negative, got %d", *c.Workers.MinWorkers)
	}
	if c.Workers.MaxWorkers < *c.Workers.MinWorkers {
		return fmt.Errorf("workers.max_workers (%d) below min_workers (%d)", c.Workers.MaxWorkers, *c.Workers.MinWorkers)
	}
	seen := make(map[string]struct{}, len(c.Scenarios.Names))
	for _, name := range c.Scenarios.Names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("scenario names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate scenario %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// APIKey resolves the key for a provider, falling back to <NAME>_API_KEY.
func (c *Config) APIKey(provider string) string {
	if prov, ok := c.Providers[provider]; ok && prov.APIKey != "" {
		return prov.APIKey
	}
	return os.Getenv(strings.ToUpper(provider) + "_API_KEY")
}

// BaseURL returns the configured base url for a provider, if any.
func (c *Config) BaseURL(provider string) string {
	return c.Providers[provider].BaseURL
}

func (c CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (s SessionConfig) IdleTTL() time.Duration {
	return time.Duration(s.IdleTTLMinutes) * time.Minute
}

func (s SessionConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}

func (w WorkerConfig) IdleTimeout() time.Duration {
	return time.Duration(w.IdleTimeoutSeconds) * time.Second
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

func boolPtr(v bool) *bool { return &v }
