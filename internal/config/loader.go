package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	for i := range cfg.Model.Fallbacks {
		cfg.Model.Fallbacks[i].APIKey = expandEnvVars(cfg.Model.Fallbacks[i].APIKey)
	}
	cfg.Tools.Weather.APIKey = expandEnvVars(cfg.Tools.Weather.APIKey)
	cfg.Tools.IMAP.Password = expandEnvVars(cfg.Tools.IMAP.Password)
	cfg.Search.APIKey = expandEnvVars(cfg.Search.APIKey)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8000
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if len(cfg.Gateway.AllowedOrigins) == 0 {
		cfg.Gateway.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Gateway.TurnTimeoutSeconds == 0 {
		cfg.Gateway.TurnTimeoutSeconds = 120
	}

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "gemini"
	}
	if cfg.Model.Model == "" {
		switch cfg.Model.Provider {
		case "openai":
			cfg.Model.Model = "gpt-4o-mini"
		case "ollama":
			cfg.Model.Model = "llama3.1"
		default:
			cfg.Model.Model = "gemini-1.5-pro"
		}
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 2048
	}
	if cfg.Model.Temperature == nil {
		zero := 0.0
		cfg.Model.Temperature = &zero
	}

	if cfg.Agent.SystemInstruction == "" {
		cfg.Agent.SystemInstruction = DefaultSystemInstruction
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 8
	}
	if cfg.Agent.ContextBudget == 0 {
		cfg.Agent.ContextBudget = 4000
	}
	if cfg.Agent.PerMessageOverhead == 0 {
		cfg.Agent.PerMessageOverhead = 4
	}
	if cfg.Agent.Encoding == "" {
		cfg.Agent.Encoding = "cl100k_base"
	}

	if cfg.Tools.Concurrency == 0 {
		cfg.Tools.Concurrency = 4
	}
	if cfg.Tools.TimeoutSeconds == 0 {
		cfg.Tools.TimeoutSeconds = 30
	}
	if cfg.Tools.Weather.Units == "" {
		cfg.Tools.Weather.Units = "metric"
	}
	if cfg.Tools.IMAP.Mailbox == "" {
		cfg.Tools.IMAP.Mailbox = "INBOX"
	}
	if cfg.Tools.Python.Interpreter == "" {
		cfg.Tools.Python.Interpreter = "python3"
	}
	if cfg.Tools.Python.TimeoutSeconds == 0 {
		cfg.Tools.Python.TimeoutSeconds = 10
	}

	if cfg.Search.Endpoint == "" {
		cfg.Search.Endpoint = "https://google.serper.dev/search"
	}
	if cfg.Search.GL == "" {
		cfg.Search.GL = "in"
	}
	if cfg.Search.HL == "" {
		cfg.Search.HL = "en"
	}
	if cfg.Search.RateLimit == 0 {
		cfg.Search.RateLimit = 5
	}

	if cfg.Checkpoint.Store == "" {
		cfg.Checkpoint.Store = "sqlite"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleLevel == "" {
		cfg.Logging.ConsoleLevel = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads KAIROS_* environment variables and overrides config
// values. The provider key variables (GOOGLE_API_KEY, OPENAI_API_KEY,
// SERPER_API_KEY, OPENWEATHERMAP_API_KEY) fill keys left empty by the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KAIROS_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("KAIROS_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("KAIROS_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("KAIROS_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("KAIROS_MODEL"); v != "" {
		cfg.Model.Model = v
	}
	if v := os.Getenv("KAIROS_MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("KAIROS_CHECKPOINT_STORE"); v != "" {
		cfg.Checkpoint.Store = strings.ToLower(v)
	}
	if v := os.Getenv("KAIROS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if cfg.Model.APIKey == "" {
		switch cfg.Model.Provider {
		case "gemini":
			cfg.Model.APIKey = os.Getenv("GOOGLE_API_KEY")
		case "openai":
			cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("SERPER_API_KEY")
	}
	if cfg.Tools.Weather.APIKey == "" {
		cfg.Tools.Weather.APIKey = os.Getenv("OPENWEATHERMAP_API_KEY")
	}
}
