package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/kairos/internal/llm"
	"github.com/soyeahso/kairos/internal/logging"
)

// MaxLinks is the number of source links kept from a search.
const MaxLinks = 3

const optimizeInstruction = `You improve user questions so they work well as web search queries.

The user message may be vague, conversational or casually phrased. Rewrite it into a focused, search-friendly statement that captures the user's intent.

Guidelines:
- Keep the original meaning while improving clarity and focus.
- Turn casual or question-style messages into fact-based search phrases.
- Avoid opinion words such as "should", "could", "best" or "is it good to".
- Do not add details the user did not mention.
- For current events, sports, news or tools, phrase the query so it fetches live results.
- Never return a single word or an ultra-short phrase.

Return only the rewritten query as plain text with no formatting or explanation.`

const synthesizeInstruction = "You are a helpful assistant. Use the provided web content to answer the user's question clearly and accurately."

// State is the working state of one pipeline run. It is never persisted.
type State struct {
	Question       string   `json:"question"`
	OptimizedQuery string   `json:"optimizedQuery"`
	Documents      []string `json:"documents"`
	Links          []string `json:"links"`
	FinalAnswer    string   `json:"finalAnswer"`
}

// PipelineConfig holds model parameters for the pipeline's two model calls.
type PipelineConfig struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Pipeline runs optimize, search and synthesize in order.
type Pipeline struct {
	model   llm.Client
	backend Backend
	cfg     PipelineConfig
	log     *logging.Logger
}

// NewPipeline creates a search pipeline.
func NewPipeline(model llm.Client, backend Backend, cfg PipelineConfig, log *logging.Logger) *Pipeline {
	return &Pipeline{
		model:   model,
		backend: backend,
		cfg:     cfg,
		log:     log.Sub("search"),
	}
}

// Run answers question from web search results. Errors from the model or
// the backend are returned unchanged apart from wrapping.
func (p *Pipeline) Run(ctx context.Context, question string) (*State, error) {
	start := time.Now()
	st := &State{Question: question}

	query, err := p.optimize(ctx, question)
	if err != nil {
		return st, fmt.Errorf("optimizing query: %w", err)
	}
	st.OptimizedQuery = query
	p.log.Debug().Str("question", question).Str("query", query).Msg("optimized query")

	resp, err := p.backend.Search(ctx, query)
	if err != nil {
		return st, fmt.Errorf("searching: %w", err)
	}
	st.Documents, st.Links = extract(resp)
	p.log.Debug().Strs("links", st.Links).Bool("raw", resp.IsRaw()).Msg("search results")

	answer, err := p.synthesize(ctx, question, st.Documents)
	if err != nil {
		return st, fmt.Errorf("generating answer: %w", err)
	}
	st.FinalAnswer = answer

	p.log.Info().Dur("duration", time.Since(start)).Int("links", len(st.Links)).Msg("search completed")
	return st, nil
}

func (p *Pipeline) optimize(ctx context.Context, question string) (string, error) {
	resp, err := p.model.Complete(ctx, p.request(optimizeInstruction, "user_request: "+question))
	if err != nil {
		return "", err
	}
	query := strings.TrimSpace(resp.Content)
	if query == "" {
		// The search still needs something to run on.
		query = question
	}
	return query, nil
}

func (p *Pipeline) synthesize(ctx context.Context, question string, documents []string) (string, error) {
	prompt := fmt.Sprintf("User's original question: %s\nDocuments:\n%s\n\n"+
		"Answer the user's question based only on the information above. If the documents don't help, say so clearly.",
		question, strings.Join(documents, "\n\n"))
	resp, err := p.model.Complete(ctx, p.request(synthesizeInstruction, prompt))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (p *Pipeline) request(system, user string) llm.CompletionRequest {
	return llm.CompletionRequest{
		Model:       p.cfg.Model,
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
}

// extract turns a backend response into documents and links. A raw text
// response is the sole document with no links. For structured results the
// snippets are joined into one document and links are collected from each
// result and its sitelinks in encounter order, keeping the first MaxLinks.
func extract(resp Response) (documents, links []string) {
	if resp.IsRaw() {
		return []string{resp.Raw}, []string{}
	}

	var snippets []string
	links = []string{}
	for _, r := range resp.Organic {
		if r.Link != "" {
			links = append(links, r.Link)
		}
		if r.Snippet != "" {
			snippets = append(snippets, r.Snippet)
		}
		for _, s := range r.Sitelinks {
			if s.Link != "" {
				links = append(links, s.Link)
			}
		}
	}
	if len(links) > MaxLinks {
		links = links[:MaxLinks]
	}
	return []string{strings.Join(snippets, "\n\n")}, links
}
