package config

import "fmt"

// DefaultSystemInstruction is the persona prepended to every model call.
const DefaultSystemInstruction = "You are a helpful assistant. You are a human being. Talk like a human. " +
	"You can use tools whenever required if you feel the need for it."

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}
