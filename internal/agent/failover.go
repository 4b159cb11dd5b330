package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/kairos/internal/llm"
	"github.com/soyeahso/kairos/internal/logging"
)

var errNoProviders = errors.New("no model providers configured")

// FailoverClient is an llm.Client over every provider of a registry. Calls go
// to the primary (first registered) provider and move down the chain while
// the failure looks transient.
type FailoverClient struct {
	registry  *llm.Registry
	providers []string
	log       *logging.Logger
}

func NewFailoverClient(registry *llm.Registry, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		providers: registry.List(),
		log:       log.Sub("failover"),
	}
}

// Name reports the primary provider.
func (f *FailoverClient) Name() string {
	if len(f.providers) == 0 {
		return "failover"
	}
	return f.providers[0]
}

func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return tryProviders(ctx, f, func(c llm.Client) (*llm.CompletionResponse, error) {
		return c.Complete(ctx, withProviderModel(req))
	})
}

// Stream fails over only on errors returned before the stream opens. A
// stream that breaks midway reports its error event to the caller.
func (f *FailoverClient) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	return tryProviders(ctx, f, func(c llm.Client) (<-chan llm.StreamEvent, error) {
		return c.Stream(ctx, withProviderModel(req))
	})
}

// withProviderModel clears the model so each provider uses the one it was
// configured with.
func withProviderModel(req llm.CompletionRequest) llm.CompletionRequest {
	req.Model = ""
	return req
}

func tryProviders[T any](ctx context.Context, f *FailoverClient, call func(llm.Client) (T, error)) (T, error) {
	var zero T
	lastErr := errNoProviders
	for i, name := range f.providers {
		client, err := f.registry.Resolve(name)
		if err != nil {
			f.log.Debug().Str("provider", name).Err(err).Msg("provider not resolvable, skipping")
			lastErr = err
			continue
		}

		out, err := call(client)
		if err == nil {
			if i > 0 {
				f.log.Info().Str("provider", name).Msg("served by fallback provider")
			}
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			return zero, err
		}
		f.log.Warn().Str("provider", name).Err(err).Msg("transient provider error, trying next")
	}
	return zero, lastErr
}

// isRetryable reports whether another provider might succeed where this one
// failed: auth and quota problems, overload, server errors and timeouts.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case 401, 403, 408, 429, 500, 502, 503, 504, 529:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"overloaded", "rate limit", "resource_exhausted", "capacity", "timeout", "connection refused"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
