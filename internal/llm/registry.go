package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/soyeahso/kairos/internal/config"
	"github.com/soyeahso/kairos/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	order    []string          // registration order
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[name]; !exists {
		r.order = append(r.order, name)
	}
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("gemini-1.5-pro", "gemini") means that model resolves to the "gemini" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Direct provider name match
	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	// Alias lookup
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	// Fallback
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// IsProvider reports whether name is a registered provider name rather than
// a model alias.
func (r *Registry) IsProvider(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// List returns all registered provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// NewClient builds a provider client from its configuration.
func NewClient(p config.ModelProvider) (Client, error) {
	switch strings.ToLower(p.Provider) {
	case "gemini":
		if p.APIKey == "" {
			return nil, fmt.Errorf("gemini: api key is required")
		}
		return NewGeminiClient(p.APIKey, p.Model, p.BaseURL), nil
	case "openai":
		if p.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		return NewOpenAIClient("openai", p.APIKey, p.Model, p.BaseURL), nil
	case "ollama":
		// Ollama serves an OpenAI-compatible API and ignores the key.
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return NewOpenAIClient("ollama", "ollama", p.Model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", p.Provider)
	}
}

// NewRegistryFromConfig registers the primary provider followed by each
// fallback. The primary is the registry fallback, and every configured
// model name is aliased to its provider. A fallback that reuses a provider
// name is registered as "<provider>-<n>".
func NewRegistryFromConfig(cfg config.ModelConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	entries := append([]config.ModelProvider{{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	}}, cfg.Fallbacks...)

	for i, entry := range entries {
		client, err := NewClient(entry)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("primary model provider: %w", err)
			}
			reg.log.Warn().Err(err).Str("provider", entry.Provider).Msg("skipping fallback provider")
			continue
		}

		name := strings.ToLower(entry.Provider)
		if reg.IsProvider(name) {
			name = fmt.Sprintf("%s-%d", name, i)
		}
		reg.Register(name, client)
		if entry.Model != "" {
			reg.Alias(entry.Model, name)
		}
		if i == 0 {
			reg.SetFallback(name)
		}
	}
	return reg, nil
}
