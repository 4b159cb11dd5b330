// Package search implements the web search pipeline: a model rewrites the
// question into a search query, a search backend fetches results, and the
// model answers from the returned snippets.
package search

import (
	"context"
	"fmt"
)

// Sitelink is a nested link under an organic result.
type Sitelink struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Organic is one organic search result.
type Organic struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Snippet   string     `json:"snippet"`
	Sitelinks []Sitelink `json:"sitelinks,omitempty"`
}

// Response is what a Backend returns. A degraded backend may answer with
// plain text, in which case Raw is set and Organic is empty.
type Response struct {
	Raw     string    `json:"raw,omitempty"`
	Organic []Organic `json:"organic,omitempty"`
}

// IsRaw reports whether the backend answered with plain text.
func (r Response) IsRaw() bool {
	return r.Raw != "" && len(r.Organic) == 0
}

// Backend runs a web search.
type Backend interface {
	Search(ctx context.Context, query string) (Response, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, query string) (Response, error)

func (f BackendFunc) Search(ctx context.Context, query string) (Response, error) {
	return f(ctx, query)
}

// BackendError is a hard failure of the search backend.
type BackendError struct {
	Backend    string
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Backend, e.Message, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	}
}

func (e *BackendError) Unwrap() error { return e.Err }
