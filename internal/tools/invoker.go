package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/kairos/internal/domain"
	"github.com/soyeahso/kairos/internal/logging"
	"golang.org/x/sync/errgroup"
)

// InvokerConfig bounds tool execution.
type InvokerConfig struct {
	Concurrency int           // max tools running at once; <1 means 1
	Timeout     time.Duration // per call; 0 disables
}

// Invoker executes the tool calls of one assistant message.
type Invoker struct {
	registry *Registry
	cfg      InvokerConfig
	metrics  *Metrics
	log      *logging.Logger
}

// NewInvoker creates an Invoker. metrics may be nil.
func NewInvoker(registry *Registry, cfg InvokerConfig, metrics *Metrics, log *logging.Logger) *Invoker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Invoker{
		registry: registry,
		cfg:      cfg,
		metrics:  metrics,
		log:      log.Sub("tools"),
	}
}

// Invoke runs every call and returns one tool message per call in request
// order. Calls run concurrently up to the configured limit. A failing,
// panicking or unknown tool yields an "Error: ..." result instead of
// failing the batch.
func (inv *Invoker) Invoke(ctx context.Context, calls []domain.ToolCall) []domain.Message {
	results := make([]domain.Message, len(calls))

	var g errgroup.Group
	g.SetLimit(inv.cfg.Concurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = domain.NewToolMessage(call.ID, inv.invokeOne(ctx, call))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (inv *Invoker) invokeOne(ctx context.Context, call domain.ToolCall) (out string) {
	start := time.Now()
	log := inv.log.With("tool", call.Name).With("callId", call.ID)

	tool, ok := inv.registry.Get(call.Name)
	if !ok {
		log.Warn().Msg("unknown tool requested")
		inv.metrics.observe(call.Name, "unknown", time.Since(start))
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	if inv.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.cfg.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("tool panicked")
			inv.metrics.observe(call.Name, "panic", time.Since(start))
			out = fmt.Sprintf("Error: tool %s panicked: %v", call.Name, r)
		}
	}()

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("tool failed")
		inv.metrics.observe(call.Name, "error", time.Since(start))
		return "Error: " + err.Error()
	}

	log.Debug().Dur("duration", time.Since(start)).Int("bytes", len(result)).Msg("tool completed")
	inv.metrics.observe(call.Name, "ok", time.Since(start))
	return result
}
