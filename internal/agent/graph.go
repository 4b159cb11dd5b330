package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/kairos/internal/domain"
	"github.com/soyeahso/kairos/internal/history"
	"github.com/soyeahso/kairos/internal/llm"
	"github.com/soyeahso/kairos/internal/logging"
	"github.com/soyeahso/kairos/internal/tools"
)

const (
	// DefaultMaxIterations caps tool rounds per turn.
	DefaultMaxIterations = 8
	// DefaultContextBudget is the working-context token budget.
	DefaultContextBudget = 4000
)

// ErrThreadIDRequired is returned when a turn has no thread id.
var ErrThreadIDRequired = errors.New("thread id is required")

// GraphConfig configures the conversation state machine.
type GraphConfig struct {
	SystemInstruction string
	MaxIterations     int
	Model             string
	MaxTokens         int
	Temperature       *float64
}

// Deps are the collaborators of a Graph. Model and Checkpoints are
// required; the rest have defaults.
type Deps struct {
	Model       llm.Client
	Tools       *tools.Registry
	Invoker     *tools.Invoker
	Trimmer     *history.Trimmer
	Checkpoints CheckpointStore
	Metrics     *Metrics
	Log         *logging.Logger
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	ThreadID   string                    `json:"threadId"`
	Answer     string                    `json:"answer"`
	State      *domain.ConversationState `json:"-"`
	Iterations int                       `json:"iterations"`
	Duration   time.Duration             `json:"duration"`
}

// Event kinds delivered to an Observer.
const (
	EventDelta       = "delta"        // streamed model text
	EventAssistant   = "assistant"    // assistant message appended
	EventToolResults = "tool_results" // tool results appended
	EventDone        = "done"
	EventFailed      = "failed"
)

// StepEvent reports progress of a turn.
type StepEvent struct {
	Kind      string            `json:"kind"`
	ThreadID  string            `json:"threadId"`
	Step      domain.Step       `json:"step"`
	Iteration int               `json:"iteration"`
	Content   string            `json:"content,omitempty"`
	ToolCalls []domain.ToolCall `json:"toolCalls,omitempty"`
	Results   []domain.Message  `json:"results,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Observer receives StepEvents synchronously from the turn goroutine.
type Observer func(StepEvent)

// Graph runs the RESPOND ⇄ TOOLS state machine for conversation threads,
// checkpointing after every transition.
type Graph struct {
	cfg       GraphConfig
	deps      Deps
	toolDefs  []llm.ToolDefinition
	toolNames []string
	locks     *ThreadLocks
	log       *logging.Logger
}

// NewGraph creates a Graph. Tool definitions are read from deps.Tools once
// here and offered to the model on every RESPOND step.
func NewGraph(cfg GraphConfig, deps Deps) (*Graph, error) {
	if deps.Model == nil {
		return nil, errors.New("agent: model client is required")
	}
	if deps.Checkpoints == nil {
		return nil, errors.New("agent: checkpoint store is required")
	}
	if deps.Log == nil {
		deps.Log = logging.New(nil, "silent")
	}
	if deps.Tools == nil {
		deps.Tools = tools.NewRegistry()
	}
	if deps.Invoker == nil {
		deps.Invoker = tools.NewInvoker(deps.Tools, tools.InvokerConfig{}, nil, deps.Log)
	}
	if deps.Trimmer == nil {
		deps.Trimmer = history.NewTrimmer(history.NewCounter(nil), DefaultContextBudget)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	return &Graph{
		cfg:       cfg,
		deps:      deps,
		toolDefs:  deps.Tools.Definitions(),
		toolNames: deps.Tools.Names(),
		locks:     NewThreadLocks(),
		log:       deps.Log.Sub("agent"),
	}, nil
}

// NewThreadID returns a fresh random thread id.
func NewThreadID() string {
	return uuid.NewString()
}

// Run processes one turn: newMessages are appended to the thread as human
// messages and the state machine runs until DONE or FAILED.
func (g *Graph) Run(ctx context.Context, threadID string, newMessages []string) (*TurnResult, error) {
	return g.RunObserved(ctx, threadID, newMessages, nil)
}

// RunObserved is Run with progress events delivered to obs. With an
// observer the model is called in streaming mode.
func (g *Graph) RunObserved(ctx context.Context, threadID string, newMessages []string, obs Observer) (*TurnResult, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	start := time.Now()
	log := g.log.With("thread", threadID)

	unlock, err := g.locks.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := g.deps.Checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, &PersistenceError{ThreadID: threadID, Op: "load", Err: err}
	}
	if state == nil {
		state = domain.NewConversationState(threadID)
	}

	// A turn interrupted mid-cycle is finished before new input is taken.
	if !state.Step.Terminal() {
		log.Info().Str("step", string(state.Step)).Int("iterations", state.Iterations).Msg("resuming interrupted turn")
		if err := g.advance(ctx, state, obs); err != nil {
			return g.finish(state, start, err, obs)
		}
	}

	if len(newMessages) > 0 {
		for _, m := range newMessages {
			state.Append(domain.NewHumanMessage(m))
		}
		state.Step = domain.StepRespond
		state.Iterations = 0
		state.Error = ""
		if err := g.save(ctx, state); err != nil {
			return nil, err
		}
		log.Info().Int("newMessages", len(newMessages)).Int("historyLen", len(state.Messages)).Msg("processing turn")
	}

	err = g.advance(ctx, state, obs)
	return g.finish(state, start, err, obs)
}

// History returns the durable state of a thread, or nil if it does not exist.
func (g *Graph) History(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	st, err := g.deps.Checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, &PersistenceError{ThreadID: threadID, Op: "load", Err: err}
	}
	return st, nil
}

// Threads lists stored threads.
func (g *Graph) Threads(ctx context.Context) ([]domain.ThreadSummary, error) {
	list, err := g.deps.Checkpoints.List(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return list, nil
}

// advance runs transitions until the state is terminal.
func (g *Graph) advance(ctx context.Context, state *domain.ConversationState, obs Observer) error {
	for !state.Step.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch state.Step {
		case domain.StepRespond:
			err = g.respond(ctx, state, obs)
		case domain.StepTools:
			err = g.runTools(ctx, state, obs)
		default:
			err = fmt.Errorf("unknown step %q", state.Step)
		}
		if err != nil {
			return err
		}
	}
	if state.Step == domain.StepFailed {
		return ErrMaxIterations
	}
	return nil
}

// respond sends the trimmed working context to the model and appends its reply.
func (g *Graph) respond(ctx context.Context, state *domain.ConversationState, obs Observer) error {
	working := make([]domain.Message, 0, len(state.Messages)+1)
	working = append(working, domain.NewSystemMessage(BuildSystemPrompt(PromptConfig{
		Instruction: g.cfg.SystemInstruction,
		ToolNames:   g.toolNames,
	})))
	working = append(working, state.Messages...)
	trimmed := g.deps.Trimmer.Trim(working)
	if dropped := len(working) - len(trimmed); dropped > 0 {
		g.log.Trace().Str("thread", state.ThreadID).Int("dropped", dropped).Msg("history trimmed")
	}

	req := llm.CompletionRequest{
		Model:       g.cfg.Model,
		System:      trimmed[0].Content,
		Messages:    toLLMMessages(trimmed[1:], state.Messages),
		Tools:       g.toolDefs,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}

	g.log.Debug().
		Str("thread", state.ThreadID).
		Int("historyLen", len(state.Messages)).
		Int("contextLen", len(req.Messages)).
		Int("iteration", state.Iterations).
		Msg("calling model")

	resp, err := g.complete(ctx, req, state, obs)
	if err != nil {
		g.deps.Metrics.modelCall("error")
		return g.failModel(ctx, state, err)
	}
	g.deps.Metrics.modelCall("ok")

	reply := domain.Message{
		Role:      domain.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: fromLLMToolCalls(resp.ToolCalls),
		Timestamp: time.Now(),
	}

	if reply.HasToolCalls() && state.Iterations >= g.cfg.MaxIterations {
		// The unanswered request is not logged; providers reject tool
		// calls that have no results.
		state.Step = domain.StepFailed
		state.Error = fmt.Sprintf("%s after %d rounds", ErrMaxIterations, state.Iterations)
		g.log.Warn().Str("thread", state.ThreadID).Int("iterations", state.Iterations).Msg("tool iteration limit reached")
		return g.save(ctx, state)
	}

	state.Append(reply)
	if reply.HasToolCalls() {
		state.Step = domain.StepTools
	} else {
		state.Step = domain.StepDone
	}
	if err := g.save(ctx, state); err != nil {
		return err
	}

	g.emit(obs, StepEvent{
		Kind:      EventAssistant,
		ThreadID:  state.ThreadID,
		Step:      state.Step,
		Iteration: state.Iterations,
		Content:   reply.Content,
		ToolCalls: reply.ToolCalls,
	})
	return nil
}

// complete calls the model, streaming deltas to obs when one is attached.
func (g *Graph) complete(ctx context.Context, req llm.CompletionRequest, state *domain.ConversationState, obs Observer) (*llm.CompletionResponse, error) {
	if obs == nil {
		return g.deps.Model.Complete(ctx, req)
	}

	req.Stream = true
	ch, err := g.deps.Model.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	// Accumulate content from stream while forwarding deltas in real-time.
	var content strings.Builder
	var final *llm.CompletionResponse
	var streamErr error
	for evt := range ch {
		switch evt.Type {
		case llm.StreamDelta:
			content.WriteString(evt.Content)
			g.emit(obs, StepEvent{
				Kind:      EventDelta,
				ThreadID:  state.ThreadID,
				Step:      domain.StepRespond,
				Iteration: state.Iterations,
				Content:   evt.Content,
			})
		case llm.StreamDone:
			final = evt.Response
		case llm.StreamError:
			streamErr = fmt.Errorf("stream error: %s", evt.Error)
		}
	}
	if streamErr != nil {
		return nil, streamErr
	}

	if final == nil {
		final = &llm.CompletionResponse{Content: content.String()}
	} else if final.Content == "" {
		final.Content = content.String()
	}
	return final, nil
}

// failModel records a model failure. A cancelled turn stays at RESPOND so
// it can be resumed; any other failure marks the turn FAILED.
func (g *Graph) failModel(ctx context.Context, state *domain.ConversationState, cause error) error {
	modelErr := &ModelInvocationError{ThreadID: state.ThreadID, Err: cause}
	if ctx.Err() != nil {
		return modelErr
	}
	state.Step = domain.StepFailed
	state.Error = cause.Error()
	if err := g.save(ctx, state); err != nil {
		g.log.Error().Err(err).Str("thread", state.ThreadID).Msg("could not record model failure")
	}
	return modelErr
}

// runTools executes the tool calls of the last assistant message.
func (g *Graph) runTools(ctx context.Context, state *domain.ConversationState, obs Observer) error {
	last, ok := state.LastMessage()
	if !ok || !last.HasToolCalls() {
		state.Step = domain.StepRespond
		return nil
	}

	g.log.Info().
		Str("thread", state.ThreadID).
		Int("toolCalls", len(last.ToolCalls)).
		Int("iteration", state.Iterations+1).
		Msg("executing tool calls")

	results := g.deps.Invoker.Invoke(ctx, last.ToolCalls)
	// Results produced under a cancelled context are discarded; the step
	// reruns on resume.
	if err := ctx.Err(); err != nil {
		return err
	}

	state.Append(results...)
	state.Iterations++
	state.Step = domain.StepRespond
	if err := g.save(ctx, state); err != nil {
		return err
	}

	g.emit(obs, StepEvent{
		Kind:      EventToolResults,
		ThreadID:  state.ThreadID,
		Step:      state.Step,
		Iteration: state.Iterations,
		Results:   results,
	})
	return nil
}

func (g *Graph) save(ctx context.Context, state *domain.ConversationState) error {
	state.UpdatedAt = time.Now()
	if err := g.deps.Checkpoints.Save(ctx, state); err != nil {
		return &PersistenceError{ThreadID: state.ThreadID, Op: "save", Err: err}
	}
	return nil
}

func (g *Graph) finish(state *domain.ConversationState, start time.Time, err error, obs Observer) (*TurnResult, error) {
	res := &TurnResult{
		ThreadID:   state.ThreadID,
		State:      state.Clone(),
		Iterations: state.Iterations,
		Duration:   time.Since(start),
	}
	if state.Step == domain.StepDone {
		if a, ok := state.LastAssistant(); ok {
			res.Answer = a.Content
		}
	}

	log := g.log.With("thread", state.ThreadID)
	switch {
	case err == nil:
		g.deps.Metrics.turn("done", state.Iterations, res.Duration)
		log.Info().
			Int("iterations", state.Iterations).
			Dur("duration", res.Duration).
			Msg("turn completed")
		g.emit(obs, StepEvent{Kind: EventDone, ThreadID: state.ThreadID, Step: state.Step, Iteration: state.Iterations, Content: res.Answer})
	case errors.Is(err, ErrMaxIterations):
		g.deps.Metrics.turn("failed", state.Iterations, res.Duration)
		log.Warn().Str("error", state.Error).Msg("turn failed")
		g.emit(obs, StepEvent{Kind: EventFailed, ThreadID: state.ThreadID, Step: state.Step, Iteration: state.Iterations, Error: state.Error})
	default:
		g.deps.Metrics.turn("error", state.Iterations, res.Duration)
		log.Error().Err(err).Str("step", string(state.Step)).Msg("turn aborted")
		g.emit(obs, StepEvent{Kind: EventFailed, ThreadID: state.ThreadID, Step: state.Step, Iteration: state.Iterations, Error: err.Error()})
	}
	return res, err
}

func (g *Graph) emit(obs Observer, evt StepEvent) {
	if obs != nil {
		obs(evt)
	}
}

// toLLMMessages converts the working context for the model. Tool results
// carry the name of the tool that produced them, looked up in the full log
// since the requesting message may have been trimmed away.
func toLLMMessages(msgs, full []domain.Message) []llm.Message {
	names := make(map[string]string)
	for _, m := range full {
		for _, tc := range m.ToolCalls {
			names[tc.ID] = tc.Name
		}
	}

	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleHuman:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case domain.RoleAssistant:
			lm := llm.Message{Role: llm.RoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				lm.ToolCalls = append(lm.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
			}
			out = append(out, lm)
		case domain.RoleTool:
			out = append(out, llm.Message{
				Role:       llm.RoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       names[m.ToolCallID],
			})
		}
	}
	return out
}

func fromLLMToolCalls(calls []llm.ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, len(calls))
	for i, tc := range calls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out[i] = domain.ToolCall{ID: id, Name: tc.Name, Arguments: tc.Arguments}
	}
	return out
}
