package config

import (
	"fmt"
	"slices"

	"github.com/soyeahso/kairos/internal/logging"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			add(path, "must be one of %v, got %q", valid, value)
		}
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	oneOf("gateway.bind", cfg.Gateway.Bind, []string{"loopback", "lan", "custom"})
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	if cfg.Gateway.TurnTimeoutSeconds < 0 {
		add("gateway.turnTimeoutSeconds", "must not be negative")
	}

	// Model validation
	providers := []string{"gemini", "openai", "ollama"}
	oneOf("model.provider", cfg.Model.Provider, providers)
	if cfg.Model.Model == "" {
		add("model.model", "model is required")
	}
	if cfg.Model.MaxTokens < 0 {
		add("model.maxTokens", "must not be negative")
	}
	if t := cfg.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("model.temperature", "must be between 0 and 2, got %g", *t)
	}
	for i, fb := range cfg.Model.Fallbacks {
		path := fmt.Sprintf("model.fallbacks[%d]", i)
		if fb.Provider == "" {
			add(path+".provider", "provider is required")
		}
		oneOf(path+".provider", fb.Provider, providers)
	}

	// Agent validation
	if cfg.Agent.MaxIterations < 1 {
		add("agent.maxIterations", "must be at least 1, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.PerMessageOverhead < 0 {
		add("agent.perMessageOverhead", "must not be negative")
	}

	// Tools validation
	if cfg.Tools.Concurrency < 1 {
		add("tools.concurrency", "must be at least 1, got %d", cfg.Tools.Concurrency)
	}
	if cfg.Tools.TimeoutSeconds < 1 {
		add("tools.timeoutSeconds", "must be at least 1, got %d", cfg.Tools.TimeoutSeconds)
	}
	oneOf("tools.weather.units", cfg.Tools.Weather.Units, []string{"metric", "imperial", "standard"})
	if cfg.Tools.Weather.Enabled && cfg.Tools.Weather.APIKey == "" {
		add("tools.weather.apiKey", "required when the weather tool is enabled")
	}
	if cfg.Tools.Gmail.Enabled && cfg.Tools.Gmail.CredentialsFile == "" {
		add("tools.gmail.credentialsFile", "required when gmail is enabled")
	}
	if cfg.Tools.IMAP.Enabled {
		if cfg.Tools.IMAP.Server == "" {
			add("tools.imap.server", "server is required")
		}
		if cfg.Tools.IMAP.Username == "" {
			add("tools.imap.username", "username is required")
		}
	}

	// Search validation
	if cfg.Search.Enabled && cfg.Search.APIKey == "" {
		add("search.apiKey", "required when search is enabled")
	}
	if cfg.Search.RateLimit < 0 {
		add("search.rateLimit", "must not be negative")
	}

	// Checkpoint validation
	oneOf("checkpoint.store", cfg.Checkpoint.Store, []string{"sqlite", "memory"})

	// Logging validation
	oneOf("logging.level", cfg.Logging.Level, logging.Levels)
	oneOf("logging.consoleLevel", cfg.Logging.ConsoleLevel, logging.Levels)
	oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "compact", "json"})

	return issues
}
