package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// NewGmailService builds an authorized Gmail client from an OAuth client
// credentials file and a previously saved token file.
func NewGmailService(ctx context.Context, credentialsFile, tokenFile string) (*gmail.Service, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read gmail credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.MailGoogleComScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse gmail credentials: %w", err)
	}

	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no gmail token at %s, run 'kairos gmail auth' first", tokenFile)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	return svc, nil
}

// GmailAuthConfig parses a credentials file into an OAuth config for the
// interactive authorization flow.
func GmailAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read gmail credentials file: %w", err)
	}
	return google.ConfigFromJSON(b, gmail.MailGoogleComScope)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// SaveGmailToken writes an OAuth token with owner-only permissions.
func SaveGmailToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// GmailTools returns the Gmail toolkit bound to svc.
func GmailTools(svc *gmail.Service) []Tool {
	return []Tool{
		&gmailSearchTool{svc: svc},
		&gmailGetMessageTool{svc: svc},
		&gmailGetThreadTool{svc: svc},
		&gmailSendTool{svc: svc},
		&gmailDraftTool{svc: svc},
	}
}

// --- search_gmail ---

type gmailSearchTool struct{ svc *gmail.Service }

func (t *gmailSearchTool) Name() string { return "search_gmail" }

func (t *gmailSearchTool) Description() string {
	return "Searches Gmail for messages matching a Gmail query (e.g. \"from:alice newer_than:7d\") " +
		"and returns id, sender, subject, date and snippet for each."
}

func (t *gmailSearchTool) InputSchema() string {
	return `{"type":"object","properties":{"query":{"type":"string"},"max_results":{"type":"integer","description":"1-50, default 10"}},"required":["query"]}`
}

func (t *gmailSearchTool) Execute(ctx context.Context, args string) (string, error) {
	var in struct {
		Query      string `json:"query"`
		MaxResults int64  `json:"max_results"`
	}
	if strings.HasPrefix(strings.TrimSpace(args), "{") {
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
	} else {
		q, err := stringArg(args, "query")
		if err != nil {
			return "", err
		}
		in.Query = q
	}
	if in.MaxResults <= 0 {
		in.MaxResults = 10
	}
	if in.MaxResults > 50 {
		in.MaxResults = 50
	}

	call := t.svc.Users.Messages.List("me").MaxResults(in.MaxResults).Context(ctx)
	if in.Query != "" {
		call = call.Q(in.Query)
	}
	r, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}
	if len(r.Messages) == 0 {
		return "No messages found.", nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Found %d message(s):\n\n", len(r.Messages))
	for i, msg := range r.Messages {
		detail, err := t.svc.Users.Messages.Get("me", msg.Id).
			Format("metadata").MetadataHeaders("From", "Subject", "Date").Context(ctx).Do()
		if err != nil {
			fmt.Fprintf(&out, "%d. ID: %s (details unavailable: %v)\n\n", i+1, msg.Id, err)
			continue
		}
		h := headerMap(detail.Payload)
		fmt.Fprintf(&out, "%d. ID: %s\n", i+1, msg.Id)
		fmt.Fprintf(&out, "   Thread: %s\n", detail.ThreadId)
		fmt.Fprintf(&out, "   From: %s\n", h["From"])
		fmt.Fprintf(&out, "   Subject: %s\n", h["Subject"])
		fmt.Fprintf(&out, "   Date: %s\n", h["Date"])
		fmt.Fprintf(&out, "   Snippet: %s\n\n", detail.Snippet)
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

// --- get_gmail_message ---

type gmailGetMessageTool struct{ svc *gmail.Service }

func (t *gmailGetMessageTool) Name() string { return "get_gmail_message" }

func (t *gmailGetMessageTool) Description() string {
	return "Fetches a Gmail message by id and returns its headers and body."
}

func (t *gmailGetMessageTool) InputSchema() string {
	return `{"type":"object","properties":{"message_id":{"type":"string"}},"required":["message_id"]}`
}

func (t *gmailGetMessageTool) Execute(ctx context.Context, args string) (string, error) {
	id, err := stringArg(args, "message_id")
	if err != nil {
		return "", err
	}
	msg, err := t.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}
	return formatGmailMessage(msg), nil
}

// --- get_gmail_thread ---

type gmailGetThreadTool struct{ svc *gmail.Service }

func (t *gmailGetThreadTool) Name() string { return "get_gmail_thread" }

func (t *gmailGetThreadTool) Description() string {
	return "Fetches every message of a Gmail thread by thread id."
}

func (t *gmailGetThreadTool) InputSchema() string {
	return `{"type":"object","properties":{"thread_id":{"type":"string"}},"required":["thread_id"]}`
}

func (t *gmailGetThreadTool) Execute(ctx context.Context, args string) (string, error) {
	id, err := stringArg(args, "thread_id")
	if err != nil {
		return "", err
	}
	thread, err := t.svc.Users.Threads.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read thread: %w", err)
	}
	parts := make([]string, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		parts = append(parts, formatGmailMessage(msg))
	}
	return strings.Join(parts, "\n\n"), nil
}

// --- send_gmail_message / create_gmail_draft ---

type gmailOutgoing struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Cc      string `json:"cc,omitempty"`
	Bcc     string `json:"bcc,omitempty"`
}

const gmailOutgoingSchema = `{"type":"object","properties":{"to":{"type":"string","description":"Comma-separated recipients"},"subject":{"type":"string"},"body":{"type":"string"},"cc":{"type":"string"},"bcc":{"type":"string"}},"required":["to","subject","body"]}`

func parseOutgoing(args string) (gmailOutgoing, error) {
	var in gmailOutgoing
	if err := decodeArgs(args, &in); err != nil {
		return in, err
	}
	for name, v := range map[string]string{"to": in.To, "subject": in.Subject, "body": in.Body} {
		if strings.TrimSpace(v) == "" {
			return in, fmt.Errorf("missing argument %q", name)
		}
	}
	return in, nil
}

// raw renders the message as base64url RFC 2822 text.
func (m gmailOutgoing) raw() string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	if m.Cc != "" {
		fmt.Fprintf(&b, "Cc: %s\r\n", m.Cc)
	}
	if m.Bcc != "" {
		fmt.Fprintf(&b, "Bcc: %s\r\n", m.Bcc)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(m.Body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

type gmailSendTool struct{ svc *gmail.Service }

func (t *gmailSendTool) Name() string { return "send_gmail_message" }

func (t *gmailSendTool) Description() string {
	return "Sends a plain-text email from the user's Gmail account."
}

func (t *gmailSendTool) InputSchema() string { return gmailOutgoingSchema }

func (t *gmailSendTool) Execute(ctx context.Context, args string) (string, error) {
	in, err := parseOutgoing(args)
	if err != nil {
		return "", err
	}
	sent, err := t.svc.Users.Messages.Send("me", &gmail.Message{Raw: in.raw()}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return fmt.Sprintf("Message sent. Message Id: %s", sent.Id), nil
}

type gmailDraftTool struct{ svc *gmail.Service }

func (t *gmailDraftTool) Name() string { return "create_gmail_draft" }

func (t *gmailDraftTool) Description() string {
	return "Creates a plain-text draft in the user's Gmail account without sending it."
}

func (t *gmailDraftTool) InputSchema() string { return gmailOutgoingSchema }

func (t *gmailDraftTool) Execute(ctx context.Context, args string) (string, error) {
	in, err := parseOutgoing(args)
	if err != nil {
		return "", err
	}
	draft, err := t.svc.Users.Drafts.Create("me", &gmail.Draft{Message: &gmail.Message{Raw: in.raw()}}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create draft: %w", err)
	}
	return fmt.Sprintf("Draft created. Draft Id: %s", draft.Id), nil
}

// --- helpers ---

func headerMap(payload *gmail.MessagePart) map[string]string {
	h := make(map[string]string)
	if payload == nil {
		return h
	}
	for _, header := range payload.Headers {
		h[header.Name] = header.Value
	}
	return h
}

func formatGmailMessage(msg *gmail.Message) string {
	var out strings.Builder
	fmt.Fprintf(&out, "ID: %s\n", msg.Id)
	h := headerMap(msg.Payload)
	for _, name := range []string{"From", "To", "Cc", "Subject", "Date"} {
		if v := h[name]; v != "" {
			fmt.Fprintf(&out, "%s: %s\n", name, v)
		}
	}
	if body := extractBody(msg.Payload); body != "" {
		out.WriteString("\n")
		out.WriteString(body)
	} else if msg.Snippet != "" {
		out.WriteString("\n")
		out.WriteString(msg.Snippet)
	}
	return strings.TrimRight(out.String(), "\n")
}

// extractBody returns the first text part, preferring text/plain.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if body := findPart(payload, "text/plain"); body != "" {
		return body
	}
	return findPart(payload, "text/html")
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
		if data, err := base64.RawURLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, p := range part.Parts {
		if body := findPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}
