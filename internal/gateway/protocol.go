package gateway

import "encoding/json"

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// ProtocolVersion is the websocket protocol revision spoken by this server.
const ProtocolVersion = 1

// Events pushed to websocket clients.
const (
	EventConnectChallenge = "connect.challenge"
	EventChatStep         = "chat.step"
)

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocol       = "protocol_error"
	CodeUnauthorized   = "unauthorized"
	CodeInvalidParams  = "invalid_params"
	CodeMethodNotFound = "method_not_found"
	CodeNotFound       = "not_found"
	CodeUnavailable    = "unavailable"
	CodeTooManyTurns   = "too_many_turns"
	CodeIterationLimit = "iteration_limit"
	CodeTimeout        = "timeout"
	CodeCancelled      = "cancelled"
	CodeModelError     = "model_error"
	CodePersistence    = "persistence_error"
	CodeAgentError     = "agent_error"
)

// Frame is the envelope for every websocket message. Type selects which of
// the remaining fields are meaningful.
type Frame struct {
	Type string `json:"type"`

	// req
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// res
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`

	// event
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
}

// ErrorShape is the error body of a failed response frame.
type ErrorShape struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ConnectParams are sent by the client in its "connect" request.
type ConnectParams struct {
	Protocol int          `json:"protocol"`
	Client   ClientInfo   `json:"client"`
	Auth     *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token string `json:"token,omitempty"`
}

// HelloOK is the payload of a successful connect response.
type HelloOK struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Methods  []string   `json:"methods"`
	Events   []string   `json:"events"`
	// MaxPayload is the largest frame the server reads, in bytes.
	MaxPayload int `json:"maxPayload"`
}

// ServerInfo identifies the gateway.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &errShape}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, nil
}
