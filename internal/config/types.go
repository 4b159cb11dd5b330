package config

// Config is the root configuration for Kairos.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Model      ModelConfig      `yaml:"model,omitempty"`
	Agent      AgentConfig      `yaml:"agent,omitempty"`
	Tools      ToolsConfig      `yaml:"tools,omitempty"`
	Search     SearchConfig     `yaml:"search,omitempty"`
	Checkpoint CheckpointConfig `yaml:"checkpoint,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port               int         `yaml:"port,omitempty"`
	Bind               string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost     string      `yaml:"customBindHost,omitempty"`
	Auth               GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins     []string    `yaml:"allowedOrigins,omitempty"`
	TurnTimeoutSeconds int         `yaml:"turnTimeoutSeconds,omitempty"`
}

// GatewayAuth configures gateway authentication. An empty token disables auth.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// ModelConfig selects the primary model provider and its fallbacks.
type ModelConfig struct {
	Provider    string          `yaml:"provider,omitempty"` // "gemini" | "openai" | "ollama"
	APIKey      string          `yaml:"apiKey,omitempty"`
	Model       string          `yaml:"model,omitempty"`
	BaseURL     string          `yaml:"baseUrl,omitempty"`
	MaxTokens   int             `yaml:"maxTokens,omitempty"`
	Temperature *float64        `yaml:"temperature,omitempty"`
	Fallbacks   []ModelProvider `yaml:"fallbacks,omitempty"`
}

// ModelProvider is a secondary provider tried when the primary fails.
type ModelProvider struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"apiKey,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"baseUrl,omitempty"`
}

// AgentConfig controls the conversation engine.
type AgentConfig struct {
	SystemInstruction  string `yaml:"systemInstruction,omitempty"`
	MaxIterations      int    `yaml:"maxIterations,omitempty"`
	ContextBudget      int    `yaml:"contextBudget,omitempty"`
	PerMessageOverhead int    `yaml:"perMessageOverhead,omitempty"`
	Encoding           string `yaml:"encoding,omitempty"` // tiktoken encoding, "estimate" skips BPE loading
}

// ToolsConfig configures the tools offered to the model.
type ToolsConfig struct {
	Concurrency    int           `yaml:"concurrency,omitempty"`
	TimeoutSeconds int           `yaml:"timeoutSeconds,omitempty"`
	Weather        WeatherConfig `yaml:"weather,omitempty"`
	Gmail          GmailConfig   `yaml:"gmail,omitempty"`
	IMAP           IMAPConfig    `yaml:"imap,omitempty"`
	Python         PythonConfig  `yaml:"python,omitempty"`
}

// WeatherConfig configures the OpenWeatherMap tool.
type WeatherConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
	Units   string `yaml:"units,omitempty"` // "metric" | "imperial" | "standard"
}

// GmailConfig configures the Gmail toolkit.
type GmailConfig struct {
	Enabled         bool   `yaml:"enabled,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
}

// IMAPConfig configures the generic mailbox tool.
type IMAPConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Server   string `yaml:"server,omitempty"` // host:port
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Mailbox  string `yaml:"mailbox,omitempty"`
}

// PythonConfig configures the python_repl tool.
type PythonConfig struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	Interpreter    string `yaml:"interpreter,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// SearchConfig configures the web search pipeline.
type SearchConfig struct {
	Enabled   bool    `yaml:"enabled,omitempty"`
	APIKey    string  `yaml:"apiKey,omitempty"`
	Endpoint  string  `yaml:"endpoint,omitempty"`
	GL        string  `yaml:"gl,omitempty"`
	HL        string  `yaml:"hl,omitempty"`
	RateLimit float64 `yaml:"rateLimit,omitempty"` // requests per second
}

// CheckpointConfig selects where conversation state is persisted.
type CheckpointConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
	Path  string `yaml:"path,omitempty"`  // defaults to <data>/kairos.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
