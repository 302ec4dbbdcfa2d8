package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateTeam(cfg, ve)
	validateLLM(cfg, ve)
	validateSessions(cfg, ve)
	validateTools(cfg, ve)
	validateHTTP(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateTeam(cfg *Config, ve *ValidationError) {
	if cfg.Team.TurnTimeout <= 0 {
		ve.Add("team.turn_timeout must be > 0")
	}
	if cfg.Team.WorkerTimeout <= 0 {
		ve.Add("team.worker_timeout must be > 0")
	}
	if cfg.Team.WorkerTimeout > cfg.Team.TurnTimeout {
		ve.Add("team.worker_timeout (%s) must not exceed team.turn_timeout (%s)",
			cfg.Team.WorkerTimeout, cfg.Team.TurnTimeout)
	}
	if cfg.Team.MaxIterations <= 0 {
		ve.Add("team.max_iterations must be > 0")
	}
	if cfg.Team.HistoryTokens < 0 {
		ve.Add("team.history_tokens must be >= 0")
	}
	if cfg.Team.Provider != "" {
		if _, ok := cfg.LLM.Provider(cfg.Team.Provider); !ok {
			ve.Add("team.provider %q is not a configured llm provider", cfg.Team.Provider)
		}
	}
}

var validProviderTypes = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"bedrock":   true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if len(cfg.LLM.Providers) == 0 {
		ve.Add("llm.providers must contain at least one provider")
		return
	}

	seen := make(map[string]bool, len(cfg.LLM.Providers))
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d].name %q is duplicated", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (valid: openai, anthropic, bedrock)", i, p.Type)
		}
		if p.Model == "" {
			ve.Add("llm.providers[%d].model must not be empty", i)
		}
		if p.Type == "bedrock" {
			if p.Region == "" {
				ve.Add("llm.providers[%d].region must not be empty for bedrock", i)
			}
		} else if p.APIKey == "" {
			ve.Add("llm.providers[%d].api_key must not be empty (set REPOSCRIBE_LLM_PROVIDER_%s_API_KEY)",
				i, strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")))
		}
		if p.BaseURL != "" {
			if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				ve.Add("llm.providers[%d].base_url %q is not a valid URL", i, p.BaseURL)
			}
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			ve.Add("llm.providers[%d].temperature must be between 0 and 2", i)
		}
	}

	if !seen[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q is not a configured provider", cfg.LLM.DefaultProvider)
	}
	for _, name := range cfg.LLM.Failover {
		if !seen[name] {
			ve.Add("llm.failover references unknown provider %q", name)
		}
	}

	cb := cfg.LLM.CircuitBreaker
	if cb.Enabled {
		if cb.MaxFailures == 0 {
			ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if cb.Timeout <= 0 {
			ve.Add("llm.circuit_breaker.timeout must be > 0 when enabled")
		}
	}
}

func validateSessions(cfg *Config, ve *ValidationError) {
	switch cfg.Sessions.Backend {
	case "memory":
	case "file":
		if cfg.Sessions.DataDir == "" {
			ve.Add("sessions.data_dir must not be empty for the file backend")
		}
	case "sqlite":
		if cfg.Sessions.SQLitePath == "" {
			ve.Add("sessions.sqlite_path must not be empty for the sqlite backend")
		}
	default:
		ve.Add("sessions.backend %q is invalid (valid: memory, file, sqlite)", cfg.Sessions.Backend)
	}
	if cfg.Sessions.MaxAge < 0 {
		ve.Add("sessions.max_age must be >= 0")
	}
	if cfg.Sessions.MaxAge > 0 {
		if _, err := cron.ParseStandard(cfg.Sessions.ReapSchedule); err != nil {
			ve.Add("sessions.reap_schedule %q is invalid: %v", cfg.Sessions.ReapSchedule, err)
		}
	}
}

func validateTools(cfg *Config, ve *ValidationError) {
	t := cfg.Tools
	if t.SandboxRoot == "" {
		ve.Add("tools.sandbox_root must not be empty")
	}
	if t.ShellTimeout <= 0 {
		ve.Add("tools.shell_timeout must be > 0")
	}
	if t.GitTimeout <= 0 {
		ve.Add("tools.git_timeout must be > 0")
	}
	if t.MaxReadBytes <= 0 {
		ve.Add("tools.max_read_bytes must be > 0")
	}
	for i, cmd := range t.AllowedCommands {
		if cmd == "" || strings.ContainsAny(cmd, " /\t") {
			ve.Add("tools.allowed_commands[%d] %q must be a bare command name", i, cmd)
		}
	}
	switch t.SearchBackend {
	case "duckduckgo":
	case "searxng":
		if u, err := url.Parse(t.SearXNGURL); err != nil || u.Scheme == "" || u.Host == "" {
			ve.Add("tools.searxng_url %q is not a valid URL", t.SearXNGURL)
		}
	default:
		ve.Add("tools.search_backend %q is invalid (valid: duckduckgo, searxng)", t.SearchBackend)
	}
	if t.SearchTimeout <= 0 {
		ve.Add("tools.search_timeout must be > 0")
	}
}

func validateHTTP(cfg *Config, ve *ValidationError) {
	if cfg.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			ve.Add("http.addr %q is invalid: %v", cfg.HTTP.Addr, err)
		}
	}
	if cfg.HTTP.RateLimit < 0 {
		ve.Add("http.rate_limit must be >= 0")
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.Burst <= 0 {
		ve.Add("http.burst must be > 0 when rate limiting is enabled")
	}
	for i, p := range cfg.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			ve.Add("http.trusted_proxies[%d] %q is not an IP or CIDR", i, p)
		}
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is invalid (valid: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		ve.Add("logger.format %q is invalid (valid: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop":
	case "file":
		if cfg.Tracer.Output == "" {
			ve.Add("tracer.output must not be empty for the file exporter")
		}
	default:
		ve.Add("tracer.exporter %q is invalid (valid: stdout, file, noop)", cfg.Tracer.Exporter)
	}
}
