package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/kairos/internal/version"
	"golang.org/x/time/rate"
)

// DefaultSerperEndpoint is the Serper Google search API.
const DefaultSerperEndpoint = "https://google.serper.dev/search"

// SerperConfig configures a SerperBackend.
type SerperConfig struct {
	APIKey    string
	Endpoint  string
	GL        string  // country, e.g. "in"
	HL        string  // language, e.g. "en"
	RateLimit float64 // requests per second; 0 disables limiting
}

// SerperBackend queries the Serper API.
type SerperBackend struct {
	cfg        SerperConfig
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewSerperBackend creates a Serper backend.
func NewSerperBackend(cfg SerperConfig) *SerperBackend {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSerperEndpoint
	}
	b := &SerperBackend{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	if cfg.RateLimit > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return b
}

type serperRequest struct {
	Q  string `json:"q"`
	GL string `json:"gl,omitempty"`
	HL string `json:"hl,omitempty"`
}

type serperResponse struct {
	Organic []Organic `json:"organic"`
}

func (b *SerperBackend) Search(ctx context.Context, query string) (Response, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return Response{}, &BackendError{Backend: "serper", Message: "rate limit wait", Err: err}
		}
	}

	payload, err := json.Marshal(serperRequest{Q: query, GL: b.cfg.GL, HL: b.cfg.HL})
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, &BackendError{Backend: "serper", Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", b.cfg.APIKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Response{}, &BackendError{Backend: "serper", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Response{}, &BackendError{Backend: "serper", Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Response{}, &BackendError{Backend: "serper", StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed serperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Not a JSON object: pass the text through as a degraded response.
		return Response{Raw: strings.TrimSpace(string(body))}, nil
	}
	return Response{Organic: parsed.Organic}, nil
}
