package gateway

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/kairos/internal/logging"
)

// maxTurnsPerClient bounds the chat.send requests one connection may have in
// flight.
const maxTurnsPerClient = 4

// ErrTooManyTurns is returned by BeginTurn when the client is at its limit.
var ErrTooManyTurns = errors.New("too many turns in flight")

// wsConn is the subset of *websocket.Conn used by Client.
type wsConn interface {
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	Close() error
}

var _ wsConn = (*websocket.Conn)(nil)

// Client is a websocket connection that completed the connect handshake.
// Frames written from concurrent turns are serialized.
type Client struct {
	ConnID      string
	Info        ClientInfo
	ConnectedAt time.Time

	socket wsConn
	log    *logging.Logger

	mu     sync.Mutex
	closed bool
	turns  map[string]string // request id -> thread id
}

// NewClient wraps a connection that passed the handshake.
func NewClient(conn wsConn, info ClientInfo, log *logging.Logger) *Client {
	return &Client{
		ConnID:      uuid.NewString(),
		Info:        info,
		ConnectedAt: time.Now(),
		socket:      conn,
		log:         log,
		turns:       make(map[string]string),
	}
}

// BeginTurn records a chat turn for threadID under request reqID. The
// returned func ends it.
func (c *Client) BeginTurn(reqID, threadID string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if len(c.turns) >= maxTurnsPerClient {
		return nil, ErrTooManyTurns
	}
	c.turns[reqID] = threadID
	return func() {
		c.mu.Lock()
		delete(c.turns, reqID)
		c.mu.Unlock()
	}, nil
}

// ActiveThreads returns the sorted, de-duplicated threads this client has
// turns running on.
func (c *Client) ActiveThreads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(c.turns))
	out := make([]string, 0, len(c.turns))
	for _, id := range c.turns {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Client) activeTurns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Send writes one frame.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.socket.WriteJSON(frame)
}

func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

// ReadFrame blocks for the next inbound frame. It is only called from the
// connection's read loop.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	err = json.Unmarshal(msg, &f)
	return f, err
}

// Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if len(c.turns) > 0 {
		c.log.Debug().Str("connId", c.ConnID).Int("turns", len(c.turns)).Msg("closing with turns in flight")
	}
	return c.socket.Close()
}

// ClientRegistry is the set of connected clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client), log: log}
}

func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	n := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Int("clients", n).Msg("client connected")
}

func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	_, ok := r.clients[connID]
	delete(r.clients, connID)
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", connID).Msg("client disconnected")
	}
}

func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ActiveTurns sums the chat turns in flight across clients.
func (r *ClientRegistry) ActiveTurns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.clients {
		n += c.activeTurns()
	}
	return n
}

// CloseAll closes and forgets every client. Used on shutdown.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
