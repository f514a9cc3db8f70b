// Package config loads the agentloop JSON5 configuration file and applies
// environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// Environment variables read by Load.
const (
	EnvConfigPath   = "AGENTLOOP_CONFIG"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvDashScopeKey = "DASHSCOPE_API_KEY"
	EnvPostgresDSN  = "AGENTLOOP_POSTGRES_DSN"
	EnvRedisURL     = "AGENTLOOP_REDIS_URL"
	EnvLogLevel     = "AGENTLOOP_LOG_LEVEL"
)

// DefaultDir is the per-user state directory.
const DefaultDir = "~/.agentloop"

// Config is the root configuration.
type Config struct {
	Providers ProvidersConfig `json:"providers"`
	Loop      LoopConfig      `json:"loop"`
	Tools     ToolsConfig     `json:"tools"`
	Database  DatabaseConfig  `json:"database"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	ExecLog   ExecLogConfig   `json:"execlog"`
	HTTP      HTTPConfig      `json:"http"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Log       LogConfig       `json:"log"`
}

// ProvidersConfig selects the default gateway and configures each backend.
type ProvidersConfig struct {
	Default   string         `json:"default"`
	Gemini    ProviderConfig `json:"gemini"`
	OpenAI    ProviderConfig `json:"openai"`
	Anthropic ProviderConfig `json:"anthropic"`
	DashScope ProviderConfig `json:"dashscope"`
}

// ProviderConfig configures one model backend.
type ProviderConfig struct {
	APIKey     string  `json:"api_key,omitempty"`
	BaseURL    string  `json:"base_url,omitempty"`
	Model      string  `json:"model,omitempty"`
	TimeoutSec int     `json:"timeout_sec,omitempty"`
	RPS        float64 `json:"rps,omitempty"`
	Burst      int     `json:"burst,omitempty"`
	MaxRetries int     `json:"max_retries,omitempty"`
}

// LoopConfig tunes the orchestrator.
type LoopConfig struct {
	MaxIterations      int    `json:"max_iterations"`
	GuardAction        string `json:"guard_action"`
	MaxToolResultChars int    `json:"max_tool_result_chars,omitempty"`
	CatalogFallback    bool   `json:"catalog_fallback,omitempty"`
	MaxConcurrentRuns  int    `json:"max_concurrent_runs,omitempty"` // 0 = unlimited
}

// ToolsConfig tunes the tool invoker.
type ToolsConfig struct {
	TimeoutSec         int  `json:"timeout_sec"`
	ScriptCacheSize    int  `json:"script_cache_size"`
	ResolverTTLSec     int  `json:"resolver_ttl_sec"`
	ScrubCredentials   bool `json:"scrub_credentials"`
	RateLimitPerMinute int  `json:"rate_limit_per_minute,omitempty"`
}

// DatabaseConfig selects the catalog store.
type DatabaseConfig struct {
	Driver      string `json:"driver"` // file | sqlite | postgres
	CatalogPath string `json:"catalog_path,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`
}

// KnowledgeConfig configures the retrieval index.
type KnowledgeConfig struct {
	Enabled     bool   `json:"enabled"`
	Path        string `json:"path,omitempty"`
	MaxChunkLen int    `json:"max_chunk_len,omitempty"`
}

// ExecLogConfig selects the execution-log sink.
type ExecLogConfig struct {
	Sink     string `json:"sink"` // none | store | file | redis
	Path     string `json:"path,omitempty"`
	RedisURL string `json:"redis_url,omitempty"`
	Stream   string `json:"stream,omitempty"`
	MaxLen   int64  `json:"max_len,omitempty"`
}

// HTTPConfig configures `agentloop serve`.
type HTTPConfig struct {
	Addr           string  `json:"addr"`
	RateLimitRPS   float64 `json:"rate_limit_rps,omitempty"`
	RateLimitBurst int     `json:"rate_limit_burst,omitempty"`
	MaxBodyBytes   int64   `json:"max_body_bytes,omitempty"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"`
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `json:"level"`  // debug | info | warn | error
	Format string `json:"format"` // text | json
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{Default: "gemini"},
		Loop: LoopConfig{
			MaxIterations: 10,
			GuardAction:   "warn",
		},
		Tools: ToolsConfig{
			TimeoutSec:       30,
			ScriptCacheSize:  128,
			ResolverTTLSec:   60,
			ScrubCredentials: true,
		},
		Database: DatabaseConfig{
			Driver:      "file",
			CatalogPath: filepath.Join(DefaultDir, "catalog.yaml"),
			SQLitePath:  filepath.Join(DefaultDir, "agentloop.db"),
		},
		Knowledge: KnowledgeConfig{
			Path:        filepath.Join(DefaultDir, "knowledge.db"),
			MaxChunkLen: 1000,
		},
		ExecLog: ExecLogConfig{
			Sink: "store",
			Path: filepath.Join(DefaultDir, "executions.jsonl"),
		},
		HTTP: HTTPConfig{
			Addr:           "127.0.0.1:8787",
			RateLimitRPS:   5,
			RateLimitBurst: 10,
			MaxBodyBytes:   1 << 20,
		},
		Telemetry: TelemetryConfig{Protocol: "grpc", ServiceName: "agentloop"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// ResolvePath picks the config file: explicit flag, then AGENTLOOP_CONFIG,
// then the default location.
func ResolvePath(flag string) string {
	if flag != "" {
		return ExpandHome(flag)
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return ExpandHome(env)
	}
	return ExpandHome(filepath.Join(DefaultDir, "config.json5"))
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIf := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setIf(&c.Providers.Gemini.APIKey, EnvGeminiKey)
	setIf(&c.Providers.OpenAI.APIKey, EnvOpenAIKey)
	setIf(&c.Providers.Anthropic.APIKey, EnvAnthropicKey)
	setIf(&c.Providers.DashScope.APIKey, EnvDashScopeKey)
	setIf(&c.Database.PostgresDSN, EnvPostgresDSN)
	setIf(&c.ExecLog.RedisURL, EnvRedisURL)
	setIf(&c.Log.Level, EnvLogLevel)
}

func (c *Config) expandPaths() {
	c.Database.CatalogPath = ExpandHome(c.Database.CatalogPath)
	c.Database.SQLitePath = ExpandHome(c.Database.SQLitePath)
	c.Knowledge.Path = ExpandHome(c.Knowledge.Path)
	c.ExecLog.Path = ExpandHome(c.ExecLog.Path)
}

// Validate checks enumerations and required fields.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := c.Provider(c.Providers.Default); !ok {
		errs = append(errs, fmt.Errorf("providers.default: unknown provider %q", c.Providers.Default))
	}
	if c.Loop.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("loop.max_iterations must be >= 1, got %d", c.Loop.MaxIterations))
	}
	if !oneOf(c.Loop.GuardAction, "off", "log", "warn", "block") {
		errs = append(errs, fmt.Errorf("loop.guard_action: invalid value %q", c.Loop.GuardAction))
	}
	if !oneOf(c.Database.Driver, "file", "sqlite", "postgres") {
		errs = append(errs, fmt.Errorf("database.driver: invalid value %q", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && c.Database.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("database.postgres_dsn (or %s) is required for the postgres driver", EnvPostgresDSN))
	}
	if !oneOf(c.ExecLog.Sink, "none", "store", "file", "redis") {
		errs = append(errs, fmt.Errorf("execlog.sink: invalid value %q", c.ExecLog.Sink))
	}
	if c.ExecLog.Sink == "redis" && c.ExecLog.RedisURL == "" {
		errs = append(errs, fmt.Errorf("execlog.redis_url (or %s) is required for the redis sink", EnvRedisURL))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	if !oneOf(c.Telemetry.Protocol, "", "grpc", "http") {
		errs = append(errs, fmt.Errorf("telemetry.protocol: invalid value %q", c.Telemetry.Protocol))
	}
	if !oneOf(strings.ToLower(c.Log.Format), "", "text", "json") {
		errs = append(errs, fmt.Errorf("log.format: invalid value %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Provider returns the settings of the named backend.
func (c *Config) Provider(kind string) (ProviderConfig, bool) {
	switch strings.ToLower(kind) {
	case "gemini":
		return c.Providers.Gemini, true
	case "openai":
		return c.Providers.OpenAI, true
	case "anthropic":
		return c.Providers.Anthropic, true
	case "dashscope":
		return c.Providers.DashScope, true
	}
	return ProviderConfig{}, false
}

// Redacted returns a copy safe to print: secrets are masked.
func (c *Config) Redacted() *Config {
	cp := *c
	for _, p := range []*ProviderConfig{&cp.Providers.Gemini, &cp.Providers.OpenAI, &cp.Providers.Anthropic, &cp.Providers.DashScope} {
		p.APIKey = mask(p.APIKey)
	}
	cp.Database.PostgresDSN = mask(cp.Database.PostgresDSN)
	cp.ExecLog.RedisURL = mask(cp.ExecLog.RedisURL)
	if len(c.Telemetry.Headers) > 0 {
		cp.Telemetry.Headers = make(map[string]string, len(c.Telemetry.Headers))
		for k, v := range c.Telemetry.Headers {
			cp.Telemetry.Headers[k] = mask(v)
		}
	}
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
