package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Team     TeamConfig     `yaml:"team"`
	LLM      LLMConfig      `yaml:"llm"`
	Sessions SessionsConfig `yaml:"sessions"`
	Tools    ToolsConfig    `yaml:"tools"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// TeamConfig controls the orchestrator and its workers.
type TeamConfig struct {
	// Definition is a team YAML file; empty uses the built-in team.
	Definition string `yaml:"definition"`
	// Watch reloads the definition when the file changes.
	Watch bool `yaml:"watch"`
	// Provider and Model answer directly from confirmed context.
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	TurnTimeout   time.Duration `yaml:"turn_timeout"`
	WorkerTimeout time.Duration `yaml:"worker_timeout"`
	MaxIterations int           `yaml:"max_iterations"`
	// HistoryTokens caps the prior turns given to memory-enabled workers.
	HistoryTokens int `yaml:"history_tokens"`
	// CleanWorkspaceOnReset wipes the sandbox when a session is reset.
	CleanWorkspaceOnReset bool `yaml:"clean_workspace_on_reset"`
}

// LLMConfig holds model oracle settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        []string             `yaml:"failover,omitempty"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
}

// SessionsConfig selects the session store.
type SessionsConfig struct {
	Backend    string `yaml:"backend"` // memory, file, sqlite
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	// MaxAge reaps sessions idle longer than this; 0 disables reaping.
	MaxAge       time.Duration `yaml:"max_age"`
	ReapSchedule string        `yaml:"reap_schedule"`
}

// ToolsConfig holds tool adapter settings.
type ToolsConfig struct {
	SandboxRoot      string        `yaml:"sandbox_root"`
	AllowedCommands  []string      `yaml:"allowed_commands"`
	ShellTimeout     time.Duration `yaml:"shell_timeout"`
	GitTimeout       time.Duration `yaml:"git_timeout"`
	AllowedRepoHosts []string      `yaml:"allowed_repo_hosts"`
	MaxReadBytes     int           `yaml:"max_read_bytes"`
	SearchBackend    string        `yaml:"search_backend"` // duckduckgo, searxng
	SearXNGURL       string        `yaml:"searxng_url"`
	SearchCacheTTL   time.Duration `yaml:"search_cache_ttl"`
	SearchTimeout    time.Duration `yaml:"search_timeout"`
}

// HTTPConfig configures the HTTP front end.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RateLimit      int           `yaml:"rate_limit"` // requests per minute per client
	Burst          int           `yaml:"burst"`
	TrustedProxies []string      `yaml:"trusted_proxies,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout, file, noop
	Output   string `yaml:"output,omitempty"`
}

// Provider returns the provider named name.
func (c *LLMConfig) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".reposcribe")
}

// Defaults returns a Config with sensible defaults: Groq-hosted Qwen through
// the OpenAI-compatible API, in-memory sessions, and a ./repo workspace.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Team: TeamConfig{
			TurnTimeout:   5 * time.Minute,
			WorkerTimeout: 120 * time.Second,
			MaxIterations: 10,
			HistoryTokens: 4000,
		},
		LLM: LLMConfig{
			DefaultProvider: "groq",
			Providers: []ProviderConfig{
				{
					Name:        "groq",
					Type:        "openai",
					BaseURL:     "https://api.groq.com/openai/v1",
					Model:       "qwen/qwen3-32b",
					ConnTimeout: 10 * time.Second,
					RespTimeout: 120 * time.Second,
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Sessions: SessionsConfig{
			Backend:      "sqlite",
			DataDir:      filepath.Join(dataDir, "sessions"),
			SQLitePath:   filepath.Join(dataDir, "memory.db"),
			ReapSchedule: "@hourly",
		},
		Tools: ToolsConfig{
			SandboxRoot:      "./repo",
			AllowedCommands:  []string{"ls", "cat", "head", "wc", "find", "grep"},
			ShellTimeout:     30 * time.Second,
			GitTimeout:       2 * time.Minute,
			AllowedRepoHosts: []string{"github.com", "gitlab.com", "bitbucket.org"},
			MaxReadBytes:     64 * 1024,
			SearchBackend:    "duckduckgo",
			SearXNGURL:       "http://localhost:8888",
			SearchCacheTTL:   15 * time.Minute,
			SearchTimeout:    15 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:           "127.0.0.1:8080",
			RateLimit:      60,
			Burst:          10,
			RequestTimeout: 6 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file over the defaults, applies env var
// overrides, decrypts secrets and validates the result. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that only need part of the
// configuration (session inspection, the worker list).
func Read(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("REPOSCRIBE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}
	return cfg, nil
}

// vendorKeyEnv maps well-known provider hosts and types to the environment
// variable their SDKs conventionally read.
func vendorKeyEnv(p ProviderConfig) string {
	switch {
	case p.Type == "anthropic":
		return "ANTHROPIC_API_KEY"
	case strings.Contains(p.BaseURL, "groq.com"):
		return "GROQ_API_KEY"
	case p.Type == "openai":
		return "OPENAI_API_KEY"
	}
	return ""
}

// ApplyEnvOverrides maps REPOSCRIBE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPOSCRIBE_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("REPOSCRIBE_TEAM_DEFINITION"); v != "" {
		cfg.Team.Definition = v
	}
	if v := os.Getenv("REPOSCRIBE_TEAM_TURN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Team.TurnTimeout = d
		}
	}
	if v := os.Getenv("REPOSCRIBE_TEAM_WORKER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Team.WorkerTimeout = d
		}
	}
	if v := os.Getenv("REPOSCRIBE_TEAM_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Team.MaxIterations = n
		}
	}
	if v := os.Getenv("REPOSCRIBE_SESSIONS_BACKEND"); v != "" {
		cfg.Sessions.Backend = v
	}
	if v := os.Getenv("REPOSCRIBE_SESSIONS_DATA_DIR"); v != "" {
		cfg.Sessions.DataDir = v
	}
	if v := os.Getenv("REPOSCRIBE_SESSIONS_SQLITE_PATH"); v != "" {
		cfg.Sessions.SQLitePath = v
	}
	if v := os.Getenv("REPOSCRIBE_TOOLS_SANDBOX_ROOT"); v != "" {
		cfg.Tools.SandboxRoot = v
	}
	if v := os.Getenv("REPOSCRIBE_TOOLS_SEARCH_BACKEND"); v != "" {
		cfg.Tools.SearchBackend = v
	}
	if v := os.Getenv("REPOSCRIBE_TOOLS_SEARXNG_URL"); v != "" {
		cfg.Tools.SearXNGURL = v
	}
	if v := os.Getenv("REPOSCRIBE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("REPOSCRIBE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("REPOSCRIBE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("REPOSCRIBE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("REPOSCRIBE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	// Per-provider API keys: REPOSCRIBE_LLM_PROVIDER_<NAME>_API_KEY wins,
	// then the vendor's conventional variable fills an empty key.
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		envKey := fmt.Sprintf("REPOSCRIBE_LLM_PROVIDER_%s_API_KEY",
			strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")))
		if v := os.Getenv(envKey); v != "" {
			p.APIKey = v
			continue
		}
		if p.APIKey == "" {
			if name := vendorKeyEnv(*p); name != "" {
				p.APIKey = os.Getenv(name)
			}
		}
	}
}

// validatePermissions refuses config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
