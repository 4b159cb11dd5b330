package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soyeahso/kairos/internal/agent"
	"github.com/soyeahso/kairos/internal/domain"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /threads", s.handleThreads)
	mux.HandleFunc("GET /threads/{id}", s.handleThread)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up the websocket RPC methods.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("threads.list", s.rpcThreadsList)
	s.Handle("threads.get", s.rpcThreadsGet)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
		Turns:   s.clients.ActiveTurns(),
	}
	if !s.startedAt.IsZero() {
		resp.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	if s.health != nil {
		if err := s.health(rc.Ctx); err != nil {
			resp.Status = "unavailable"
		}
	}
	rc.Respond(resp)
}

// stepEvent is the payload of a chat.step event.
type stepEvent struct {
	RequestID string `json:"requestId"`
	agent.StepEvent
}

// rpcChatSend runs a turn, streaming its progress as chat.step events before
// the final response.
func (s *Server) rpcChatSend(rc *RequestContext) {
	var p ChatRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if err := s.validateChat(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if s.graph == nil {
		rc.RespondError(CodeUnavailable, "no model provider configured")
		return
	}
	end, err := rc.Client.BeginTurn(rc.Frame.ID, p.ThreadID)
	if errors.Is(err, ErrTooManyTurns) {
		rc.RespondErrorShape(ErrorShape{Code: CodeTooManyTurns, Message: err.Error(), Retryable: true})
		return
	}
	if err != nil {
		return
	}
	defer end()

	obs := func(evt agent.StepEvent) {
		if err := rc.Client.SendEvent(EventChatStep, stepEvent{RequestID: rc.Frame.ID, StepEvent: evt}, s.eventSeq.Add(1)); err != nil {
			s.log.Debug().Err(err).Str("connId", rc.Client.ConnID).Msg("dropping chat.step event")
		}
	}

	res, err := s.runTurn(rc.Ctx, p, obs)
	if err != nil {
		s.log.Error().Err(err).Str("threadId", p.ThreadID).Str("connId", rc.Client.ConnID).Msg("chat turn failed")
		rc.RespondErrorShape(turnErrorShape(err))
		return
	}

	rc.Respond(ChatResponse{
		ThreadID:   res.ThreadID,
		Answer:     res.Answer,
		Iterations: res.Iterations,
		DurationMs: res.Duration.Milliseconds(),
	})
}

// turnErrorShape classifies a turn failure for the client without exposing
// provider or storage details.
func turnErrorShape(err error) ErrorShape {
	var modelErr *agent.ModelInvocationError
	var persistErr *agent.PersistenceError
	switch {
	case errors.Is(err, agent.ErrMaxIterations):
		return ErrorShape{Code: CodeIterationLimit, Message: "the assistant used too many tool rounds"}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorShape{Code: CodeTimeout, Message: "the turn timed out", Retryable: true}
	case errors.Is(err, context.Canceled):
		return ErrorShape{Code: CodeCancelled, Message: "the turn was cancelled", Retryable: true}
	case errors.As(err, &modelErr):
		return ErrorShape{Code: CodeModelError, Message: "the model call failed", Retryable: true}
	case errors.As(err, &persistErr):
		return ErrorShape{Code: CodePersistence, Message: "conversation state could not be stored"}
	default:
		return ErrorShape{Code: CodeAgentError, Message: "Internal Server Error"}
	}
}

func (s *Server) rpcThreadsList(rc *RequestContext) {
	if s.graph == nil {
		rc.Respond(map[string]any{"threads": []domain.ThreadSummary{}})
		return
	}
	list, err := s.graph.Threads(rc.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("listing threads failed")
		rc.RespondError(CodePersistence, "threads could not be listed")
		return
	}
	if list == nil {
		list = []domain.ThreadSummary{}
	}
	rc.Respond(map[string]any{"threads": list})
}

type threadGetParams struct {
	ThreadID string `json:"thread_id" validate:"required"`
}

func (s *Server) rpcThreadsGet(rc *RequestContext) {
	var p threadGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if err := s.validate.Struct(&p); err != nil {
		rc.RespondError(CodeInvalidParams, "thread_id is required")
		return
	}
	if s.graph == nil {
		rc.RespondError(CodeNotFound, "thread not found: "+p.ThreadID)
		return
	}
	st, err := s.graph.History(rc.Ctx, p.ThreadID)
	if err != nil {
		s.log.Error().Err(err).Str("threadId", p.ThreadID).Msg("loading thread failed")
		rc.RespondError(CodePersistence, "thread could not be loaded")
		return
	}
	if st == nil {
		rc.RespondError(CodeNotFound, "thread not found: "+p.ThreadID)
		return
	}
	rc.Respond(threadResponse(st))
}
