package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/soyeahso/kairos/internal/agent"
	"github.com/soyeahso/kairos/internal/domain"
)

// maxChatBody caps the JSON body accepted by POST /chat.
const maxChatBody = 1 << 20

// ChatRequest is the body of POST /chat and the params of chat.send.
type ChatRequest struct {
	Messages []string `json:"messages" validate:"required,min=1,dive,required"`
	ThreadID string   `json:"thread_id" validate:"required,max=200"`
}

// ChatResponse is the chat.send result payload.
type ChatResponse struct {
	ThreadID   string `json:"threadId"`
	Answer     string `json:"answer"`
	Iterations int    `json:"iterations"`
	DurationMs int64  `json:"durationMs"`
}

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the RPC handler fills the rest.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
	Turns   int    `json:"turns,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// ThreadResponse is the durable log of one thread.
type ThreadResponse struct {
	ThreadID   string           `json:"threadId"`
	Step       domain.Step      `json:"step"`
	Iterations int              `json:"iterations"`
	Error      string           `json:"error,omitempty"`
	Messages   []domain.Message `json:"messages"`
}

func threadResponse(st *domain.ConversationState) ThreadResponse {
	msgs := st.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return ThreadResponse{
		ThreadID:   st.ThreadID,
		Step:       st.Step,
		Iterations: st.Iterations,
		Error:      st.Error,
		Messages:   msgs,
	}
}

// validateChat checks a chat request and renders violations with their JSON
// field names, e.g. "thread_id is required".
func (s *Server) validateChat(req *ChatRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	t := reflect.TypeOf(*req)
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if f, ok := t.FieldByName(fe.StructField()); ok {
			name = strings.Split(f.Tag.Get("json"), ",")[0]
		}
		switch fe.Tag() {
		case "required":
			if strings.HasPrefix(fe.StructNamespace(), "ChatRequest.Messages[") {
				parts = append(parts, "messages must not contain empty strings")
			} else {
				parts = append(parts, name+" is required")
			}
		case "min":
			parts = append(parts, name+" must contain at least "+fe.Param()+" item")
		case "max":
			parts = append(parts, name+" is too long")
		default:
			parts = append(parts, name+" is invalid")
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

// runTurn executes one chat turn under the gateway turn timeout.
func (s *Server) runTurn(ctx context.Context, req ChatRequest, obs agent.Observer) (*agent.TurnResult, error) {
	if s.graph == nil {
		return nil, errChatUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout())
	defer cancel()
	return s.graph.RunObserved(ctx, req.ThreadID, req.Messages, obs)
}

var errChatUnavailable = errors.New("no conversation graph configured")

// handleRoot answers the plain-text liveness probe.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello"))
}

// handleHealth reports whether the server and its dependencies are usable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs one turn and returns the final answer as plain text. Any
// failure past validation yields a bare 500; the cause is only logged.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.validateChat(&req); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	res, err := s.runTurn(r.Context(), req, nil)
	if err != nil {
		s.log.Error().Err(err).
			Str("threadId", req.ThreadID).
			Str("requestId", w.Header().Get("X-Request-ID")).
			Msg("chat turn failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(res.Answer))
}

// handleThreads lists stored threads, most recently updated first.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		writeJSON(w, http.StatusOK, map[string]any{"threads": []domain.ThreadSummary{}})
		return
	}
	list, err := s.graph.Threads(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("listing threads failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []domain.ThreadSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": list})
}

// handleThread returns the durable message log of one thread.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.graph == nil {
		handleNotFound(w, r)
		return
	}
	st, err := s.graph.History(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("threadId", id).Msg("loading thread failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if st == nil {
		handleNotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, threadResponse(st))
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequestHandler processes an RPC request frame from a websocket client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything an RPC handler needs. Ctx is cancelled
// when the client disconnects.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.RespondErrorShape(ErrorShape{Code: code, Message: message})
}

// RespondErrorShape sends a fully specified error response.
func (rc *RequestContext) RespondErrorShape(shape ErrorShape) {
	if err := rc.Client.RespondError(rc.Frame.ID, shape); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Params unmarshals the request params into target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
